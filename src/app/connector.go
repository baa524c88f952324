package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/converter"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/kafka"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pipeline"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/utils"
	"github.com/google/uuid"
)

const retryDelay = 5 * time.Second

type Connector struct {
	cfg         *config.Config
	logger      observability.Logger
	resolver    *strategy.Resolver
	converters  kafka.Converters
	sinkFactory pipeline.SinkFactory
	closeSinks  func(ctx context.Context) error
	reporter    pipeline.RejectionReporter
	producer    *kafka.ProducerService
	clientID    string

	mu         sync.Mutex
	dispatcher *pipeline.Dispatcher
	poller     *kafka.Poller
	consuming  atomic.Bool
	running    atomic.Bool
}

// NewConnector arma todo lo que sobrevive entre reconexiones: resolver, converters,
// sink de Neo4j (o de dry-run) y productor de la dead letter queue.
func NewConnector(ctx context.Context, cfg *config.Config, logger observability.Logger) (*Connector, error) {
	resolver, err := strategy.NewResolver(cfg.Sink, cfg.Kafka.Topics)
	if err != nil {
		return nil, fmt.Errorf("resolve strategies: %w", err)
	}

	keyConverter, err := converter.New(cfg.Kafka.KeyConverter)
	if err != nil {
		return nil, fmt.Errorf("key converter: %w", err)
	}
	valueConverter, err := converter.New(cfg.Kafka.ValueConverter)
	if err != nil {
		return nil, fmt.Errorf("value converter: %w", err)
	}

	c := &Connector{
		cfg:        cfg,
		logger:     logger,
		resolver:   resolver,
		converters: kafka.Converters{Key: keyConverter, Value: valueConverter},
		clientID:   clientID(cfg),
	}

	for topic, s := range resolver.Assignments() {
		logger.Info(ctx, "Estrategia asignada", "topic", topic, "strategy", s)
	}

	if cfg.Neo4j.DryRun {
		fileFactory, err := pipeline.NewFileSinkFactory(cfg.Neo4j.DryRunDir, logger)
		if err != nil {
			return nil, fmt.Errorf("create file sink factory: %w", err)
		}
		c.sinkFactory = fileFactory
		c.closeSinks = func(context.Context) error { return fileFactory.Close() }
		logger.Info(ctx, "Usando File sink (dry-run)", "dir", cfg.Neo4j.DryRunDir)
	} else {
		neo4jFactory, err := pipeline.NewNeo4jSinkFactory(ctx, cfg.Neo4j, logger)
		if err != nil {
			return nil, fmt.Errorf("create neo4j sink factory: %w", err)
		}
		c.sinkFactory = neo4jFactory
		c.closeSinks = neo4jFactory.Close
		logger.Info(ctx, "Usando Neo4j sink", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	}

	if err := c.prepareTopics(ctx); err != nil {
		c.Close(ctx)
		return nil, err
	}

	if cfg.Kafka.DeadLetterTopic != "" {
		producer, err := c.newDeadLetterProducer()
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("create dead letter producer: %w", err)
		}
		c.producer = producer
		c.reporter = kafka.NewDeadLetterProducer(cfg.Kafka.DeadLetterTopic, producer, logger)
		logger.Info(ctx, "Dead letter queue habilitada", "topic", cfg.Kafka.DeadLetterTopic)
	}

	return c, nil
}

func clientID(cfg *config.Config) string {
	if !utils.StringIsEmptyOrWhitespace(cfg.Kafka.ClientID) {
		return cfg.Kafka.ClientID
	}
	return fmt.Sprintf("%s-%s", cfg.Log.ServiceName, uuid.NewString()[:8])
}

// prepareTopics valida que existan los topics declarados y crea el de la DLQ si falta.
func (c *Connector) prepareTopics(ctx context.Context) error {
	if !c.cfg.Kafka.ValidateTopics && c.cfg.Kafka.DeadLetterTopic == "" {
		return nil
	}

	svr, err := kafka.NewServerConfigs(c.cfg.Kafka.BootstrapServers, &c.clientID)
	if err != nil {
		return err
	}

	adminCfg, err := kafka.NewAdminCgfWithSvrCfgs(svr.WithProperties(c.cfg.Kafka.Properties), kafka.NewSecurityConfigFrom(c.cfg.Kafka.Security))
	if err != nil {
		return err
	}

	admin, err := kafka.NewAdminService(adminCfg.WithTuning(c.cfg.Kafka.Admin), c.logger)
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer admin.Close()

	if c.cfg.Kafka.ValidateTopics {
		missing, err := admin.MissingTopics(ctx, c.cfg.Kafka.Topics)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("topics inexistentes: %v", missing)
		}
	}

	if c.cfg.Kafka.DeadLetterTopic != "" {
		if err := admin.EnsureTopic(ctx, kafka.NewTopic(c.cfg.Kafka.DeadLetterTopic, 1, 1)); err != nil {
			c.logger.Warn(ctx, "No se pudo crear el topic de la dead letter queue", err,
				"topic", c.cfg.Kafka.DeadLetterTopic)
		}
	}

	return nil
}

func (c *Connector) newDeadLetterProducer() (*kafka.ProducerService, error) {
	svr, err := kafka.NewServerConfigs(c.cfg.Kafka.BootstrapServers, &c.clientID)
	if err != nil {
		return nil, err
	}

	producerCfg, err := kafka.NewProducerCgfWithSvrCfgs(svr.WithProperties(c.cfg.Kafka.Properties), kafka.NewSecurityConfigFrom(c.cfg.Kafka.Security))
	if err != nil {
		return nil, err
	}

	if _, err := producerCfg.WithTuning(c.cfg.Kafka.DeadLetterProducer); err != nil {
		return nil, err
	}

	return kafka.NewProducerService(producerCfg, c.logger)
}

func (c *Connector) newConsumer() (*kafka.ConsumerConfig, error) {
	svr, err := kafka.NewServerConfigs(c.cfg.Kafka.BootstrapServers, &c.clientID)
	if err != nil {
		return nil, err
	}

	consumerCfg, err := kafka.NewConsumerCfgWithSvrCfgs(svr.WithProperties(c.cfg.Kafka.Properties),
		kafka.NewSecurityConfigFrom(c.cfg.Kafka.Security),
		c.cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}

	if _, err := consumerCfg.WithAutoOffsetReset(kafka.AutoOffsetReset(c.cfg.Kafka.AutoOffsetReset)); err != nil {
		return nil, err
	}
	if _, err := consumerCfg.WithPartitionAssignmentStrategy(
		kafka.PartitionAssignmentStrategy(c.cfg.Kafka.PartitionAssignmentStrategy)); err != nil {
		return nil, err
	}

	return consumerCfg.WithSessionTimeoutMs(c.cfg.Kafka.SessionTimeoutMs), nil
}

// Start corre ciclos de consumo hasta que se cancele el contexto. Cada ciclo usa un
// consumer, coordinador y dispatcher nuevos; lo no confirmado se vuelve a leer.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Trace(ctx, "Iniciando Connector", "client_id", c.clientID, "group_id", c.cfg.Kafka.GroupID)

	c.running.Store(true)
	defer c.running.Store(false)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		func() {
			defer c.recoverPanic(ctx, "bucle de consumo")

			err := c.runCycle(ctx)
			c.cleanupCycle(ctx)

			if ctx.Err() != nil {
				return
			}

			c.logger.Error(ctx, "Consumo detenido, esperando antes de reintentar...", err)
			sleep(ctx, retryDelay)
		}()
	}
}

func (c *Connector) runCycle(ctx context.Context) error {
	consumerCfg, err := c.newConsumer()
	if err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(consumerCfg)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	coordinator := pipeline.NewOffsetCoordinator(c.logger)

	dispatcher := pipeline.NewDispatcher(c.sinkFactory,
		c.resolver,
		c.reporter,
		c.cfg.Sink.ErrorTolerance,
		c.cfg.Kafka.WorkerBufferSize,
		coordinator,
		c.logger)

	poller := kafka.NewPoller(consumer, dispatcher, coordinator, c.converters, kafka.PollerConfig{
		Topics:         c.resolver.Topics(),
		MaxPollRecords: c.cfg.Kafka.MaxPollRecords,
		PollTimeout:    c.cfg.Kafka.PollTimeout,
		BatchTimeout:   c.cfg.Sink.BatchTimeout,
		CommitInterval: c.cfg.Kafka.CommitInterval,
	}, c.logger)

	c.mu.Lock()
	c.dispatcher, c.poller = dispatcher, poller
	c.mu.Unlock()

	c.logger.Info(ctx, "Iniciando consumo...", "topics", c.resolver.Topics())
	c.consuming.Store(true)

	return poller.Run(ctx)
}

// cleanupCycle detiene los workers antes de cerrar el consumer para que el ultimo commit
// incluya el lote que estaba en curso.
func (c *Connector) cleanupCycle(ctx context.Context) {
	c.consuming.Store(false)

	c.mu.Lock()
	dispatcher, poller := c.dispatcher, c.poller
	c.dispatcher, c.poller = nil, nil
	c.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if dispatcher != nil {
		c.logger.Trace(ctx, "Deteniendo dispatcher")
		if err := dispatcher.Stop(stopCtx); err != nil {
			c.logger.Warn(ctx, "Error deteniendo dispatcher", err)
		}
	}

	if poller != nil {
		c.logger.Trace(ctx, "Cerrando consumer")
		if err := poller.Close(stopCtx); err != nil {
			c.logger.Warn(ctx, "Error cerrando consumer", err)
		}
	}
}

// Ready indica si hay un ciclo de consumo en curso.
func (c *Connector) Ready() bool {
	return c.consuming.Load()
}

// Plan devuelve la estrategia asignada a cada topic.
func (c *Connector) Plan() map[string]strategy.Strategy {
	return c.resolver.Assignments()
}

func (c *Connector) recoverPanic(ctx context.Context, operation string) {
	if r := recover(); r != nil {

		stackTrace := string(debug.Stack())

		c.logger.Error(ctx, fmt.Sprintf("Panic capturado en %s", operation),
			fmt.Errorf("panic: %v", r),
			"operation", operation,
			"panic_value", r,
			"stack_trace", stackTrace)

		c.cleanupCycle(ctx)
		sleep(ctx, retryDelay)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Connector) Close(ctx context.Context) error {

	c.logger.Trace(ctx, "Cerrando Connector")

	// si Start sigue vivo, el ciclo en curso se limpia desde su propia goroutine
	if c.running.Load() {
		c.logger.Warn(ctx, "Start sigue en ejecucion, se omite la limpieza del ciclo", nil)
	} else {
		c.cleanupCycle(ctx)
	}

	if c.producer != nil {
		c.logger.Trace(ctx, "Cerrando productor de la dead letter queue")
		c.producer.Close()
		c.producer = nil
	}

	if c.closeSinks != nil {
		c.logger.Trace(ctx, "Cerrando sink factory")
		if err := c.closeSinks(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn(ctx, "Error cerrando sink factory", err)
		}
		c.closeSinks = nil
	}

	c.logger.Trace(ctx, "Connector cerrado")
	return nil
}
