package kafka

import (
	"context"
	"errors"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ProducerConfig configura el producer de la dead letter queue.
type ProducerConfig struct {
	serverConfigs
	*securityConfig

	acks ACKS

	lingerMs         int
	idempotent       bool
	messageTimeoutMs int
}

func NewProducerCgfWithSvrCfgs(serverConfigs *serverConfigs,
	securityConfig *securityConfig) (*ProducerConfig, error) {

	if serverConfigs == nil {
		return nil, errors.New("serverConfigs is required")
	}

	p := &ProducerConfig{
		serverConfigs:    *serverConfigs,
		securityConfig:   securityConfig,
		acks:             ACKsAll,
		idempotent:       true,
		messageTimeoutMs: 30000,
	}

	return p, nil
}

func (p *ProducerConfig) WithACKs(acks ACKS) (*ProducerConfig, error) {
	if IsNotValidACKs(acks) {
		return nil, errors.New("invalid acks value")
	}
	p.acks = acks
	// la idempotencia exige acks=all
	if acks != ACKsAll {
		p.idempotent = false
	}
	return p, nil
}

func (p *ProducerConfig) WithLingerMs(lingerMs int) *ProducerConfig {
	if lingerMs < 0 {
		return p
	}
	p.lingerMs = lingerMs
	return p
}

func (p *ProducerConfig) WithMessageTimeoutMs(messageTimeoutMs int) *ProducerConfig {
	if messageTimeoutMs <= 0 {
		return p
	}
	p.messageTimeoutMs = messageTimeoutMs
	return p
}

// WithTuning aplica los ajustes de configuracion del producer de la DLQ.
func (p *ProducerConfig) WithTuning(tuning config.ProducerTuning) (*ProducerConfig, error) {
	acks, err := ParseACKs(tuning.Acks)
	if err != nil {
		return nil, err
	}
	if _, err := p.WithACKs(acks); err != nil {
		return nil, err
	}
	return p.WithLingerMs(tuning.LingerMs).WithMessageTimeoutMs(tuning.MessageTimeoutMs), nil
}

func (p *ProducerConfig) Build() (*kafka.ConfigMap, error) {
	configMap := kafka.ConfigMap{}

	p.serverConfigs.build(&configMap)

	configMap.SetKey("acks", int(p.acks))
	configMap.SetKey("enable.idempotence", p.idempotent)
	configMap.SetKey("message.timeout.ms", p.messageTimeoutMs)

	if p.lingerMs > 0 {
		configMap.SetKey("linger.ms", p.lingerMs)
	}

	if p.securityConfig != nil {
		p.securityConfig.Build(&configMap)
	}

	p.serverConfigs.applyProperties(&configMap)

	return &configMap, nil
}

type ProducerService struct {
	Config *ProducerConfig
	*kafka.Producer
	logger          observability.Logger
	DeliveryReports chan kafka.Event
}

func NewProducerService(config *ProducerConfig, logger observability.Logger) (*ProducerService, error) {
	p := &ProducerService{
		Config: config,
		logger: logger,
	}

	cfg, err := config.Build()
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}

	p.Producer = producer
	p.DeliveryReports = producer.Events()

	return p, nil
}

func (s *ProducerService) Close() {
	if s.Producer != nil {
		s.Producer.Flush(5000)
		s.Producer.Close()
	}
}

// ProduceRecordSync envia un registro con key y headers y espera el reporte de entrega.
func (s *ProducerService) ProduceRecordSync(ctx context.Context,
	topic string, key []byte, value []byte, headers []kafka.Header) error {

	deliveryChanReport := make(chan kafka.Event, 1)

	err := s.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: int32(kafka.PartitionAny),
		},
		Key:     key,
		Value:   value,
		Headers: headers,
	}, deliveryChanReport)

	if err != nil {
		return err
	}

	select {
	case e := <-deliveryChanReport:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.New("unexpected delivery report")
		}
		if m.TopicPartition.Error != nil {
			s.logger.Error(ctx, "Error producing message", m.TopicPartition.Error, "topic", topic)
			return m.TopicPartition.Error
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
