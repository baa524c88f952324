package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pipeline"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Consumer es el subconjunto de *kafka.Consumer que usa el Poller.
type Consumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Close() error
}

type BatchDispatcher interface {
	Dispatch(ctx context.Context, records []pipeline.Record) error
	Errors() <-chan error
}

type PollerConfig struct {
	Topics         []string
	MaxPollRecords int
	PollTimeout    time.Duration
	BatchTimeout   time.Duration
	CommitInterval time.Duration
}

// Poller lee de Kafka, arma lotes por cantidad o tiempo, los entrega al dispatcher y
// confirma periodicamente los offsets que el coordinador da por procesados.
type Poller struct {
	consumer    Consumer
	dispatcher  BatchDispatcher
	coordinator *pipeline.OffsetCoordinator
	converters  Converters
	cfg         PollerConfig
	logger      observability.Logger

	ctx        context.Context
	batch      []pipeline.Record
	batchStart time.Time
	lastCommit time.Time
}

func NewPoller(consumer Consumer,
	dispatcher BatchDispatcher,
	coordinator *pipeline.OffsetCoordinator,
	converters Converters,
	cfg PollerConfig,
	logger observability.Logger) *Poller {

	return &Poller{
		consumer:    consumer,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		converters:  converters,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run bloquea hasta que se cancele el contexto o falle un worker. Lo que no llego a
// confirmarse se vuelve a entregar en el siguiente ciclo.
func (p *Poller) Run(ctx context.Context) error {
	p.ctx = ctx

	if err := p.consumer.SubscribeTopics(p.cfg.Topics, p.rebalance); err != nil {
		return fmt.Errorf("subscribe topics: %w", err)
	}

	p.logger.Info(ctx, "Suscrito a topics", "topics", p.cfg.Topics)

	p.lastCommit = time.Now()
	pollTimeoutMs := int(p.cfg.PollTimeout.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			p.commit(ctx)
			return ctx.Err()
		case err := <-p.dispatcher.Errors():
			p.commit(ctx)
			return err
		default:
		}

		if err := p.handleEvent(ctx, p.consumer.Poll(pollTimeoutMs)); err != nil {
			return err
		}

		if p.batchReady() {
			if err := p.flush(ctx); err != nil {
				return err
			}
		}

		if time.Since(p.lastCommit) >= p.cfg.CommitInterval {
			p.commit(ctx)
		}
	}
}

func (p *Poller) handleEvent(ctx context.Context, ev kafka.Event) error {
	switch e := ev.(type) {
	case nil:
		return nil

	case *kafka.Message:
		if e.TopicPartition.Error != nil {
			p.logger.Warn(ctx, "Error en mensaje consumido", e.TopicPartition.Error)
			return nil
		}

		msg, err := NewSinkMessage(e, p.converters)
		if msg == nil {
			return err
		}
		if err != nil {
			p.logger.Debug(ctx, "Error de conversion", "topic", msg.Topic(),
				"partition", msg.Partition(), "offset", msg.Offset(), "error", err.Error())
		}

		if len(p.batch) == 0 {
			p.batchStart = time.Now()
		}
		p.batch = append(p.batch, pipeline.Record{Message: msg, Err: err})

		observability.GetConnectorMetrics().IncMessagesConsumed(msg.Topic())
		return nil

	case kafka.Error:
		if e.IsFatal() {
			return fmt.Errorf("kafka fatal error: %w", e)
		}
		p.logger.Warn(ctx, "Error de Kafka", e, "event_type", KafkaEventTypeError, "code", e.Code().String())
		return nil

	default:
		p.logger.Trace(ctx, "Evento ignorado", "event_type", KafkaEventTypeOther, "event", e.String())
		return nil
	}
}

func (p *Poller) batchReady() bool {
	if len(p.batch) == 0 {
		return false
	}
	return len(p.batch) >= p.cfg.MaxPollRecords || time.Since(p.batchStart) >= p.cfg.BatchTimeout
}

func (p *Poller) flush(ctx context.Context) error {
	batch := p.batch
	p.batch = nil

	if err := p.dispatcher.Dispatch(ctx, batch); err != nil {
		return fmt.Errorf("dispatch batch: %w", err)
	}
	return nil
}

// commit confirma offset procesado + 1 de cada particion que avanzo.
func (p *Poller) commit(ctx context.Context) {
	p.lastCommit = time.Now()

	pending := p.coordinator.Pending()
	if len(pending) == 0 {
		return
	}

	offsets := make([]kafka.TopicPartition, len(pending))
	for i, po := range pending {
		topic := po.Topic
		offsets[i] = kafka.TopicPartition{Topic: &topic, Partition: po.Partition, Offset: kafka.Offset(po.Offset)}
	}

	if _, err := p.consumer.CommitOffsets(offsets); err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrNoOffset {
			return
		}
		p.logger.Warn(ctx, "Error confirmando offsets", err, "partitions", len(offsets))
		return
	}

	p.coordinator.MarkCommitted(pending)

	metrics := observability.GetConnectorMetrics()
	for _, po := range pending {
		metrics.SetCommittedOffset(po.Topic, strconv.Itoa(int(po.Partition)), po.Offset)
	}

	p.logger.Trace(ctx, "Offsets confirmados", "partitions", len(pending))
}

// rebalance corre dentro de Poll. Al perder particiones se confirma lo procesado y se
// olvida su estado; librdkafka aplica la asignacion por defecto.
func (p *Poller) rebalance(_ *kafka.Consumer, ev kafka.Event) error {
	ctx := p.ctx

	switch e := ev.(type) {
	case kafka.AssignedPartitions:
		p.logger.Info(ctx, "Particiones asignadas",
			"event_type", KafkaEventTypeAssignedPartitions, "partitions", describePartitions(e.Partitions))

		for _, tp := range e.Partitions {
			if tp.Topic != nil {
				p.coordinator.Assign(*tp.Topic, tp.Partition)
			}
		}

	case kafka.RevokedPartitions:
		p.logger.Info(ctx, "Particiones revocadas",
			"event_type", KafkaEventTypeRevokedPartitions, "partitions", describePartitions(e.Partitions))

		p.commit(ctx)
		for _, tp := range e.Partitions {
			if tp.Topic != nil {
				p.coordinator.Forget(*tp.Topic, tp.Partition)
			}
		}
	}

	return nil
}

func describePartitions(partitions []kafka.TopicPartition) []string {
	out := make([]string, 0, len(partitions))
	for _, tp := range partitions {
		if tp.Topic != nil {
			out = append(out, fmt.Sprintf("%s[%d]", *tp.Topic, tp.Partition))
		}
	}
	return out
}

// Close confirma lo que los workers alcanzaron a escribir y cierra el consumer; se
// llama despues de detener el dispatcher.
func (p *Poller) Close(ctx context.Context) error {
	p.commit(ctx)
	return p.consumer.Close()
}
