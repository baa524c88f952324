package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type AdminClientConfig struct {
	serverConfigs
	*securityConfig

	requestTimeoutMs int
	retries          int
	retryBackoffMs   int
	socketTimeoutMs  int
}

func NewAdminCgfWithSvrCfgs(serverConfigs *serverConfigs,
	securityConfig *securityConfig) (*AdminClientConfig, error) {

	if serverConfigs == nil {
		return nil, errors.New("serverConfigs is required")
	}

	a := &AdminClientConfig{
		serverConfigs:    *serverConfigs,
		securityConfig:   securityConfig,
		requestTimeoutMs: 30000,
		retries:          3,
		retryBackoffMs:   100,
		socketTimeoutMs:  60000,
	}

	return a, nil
}

func (a *AdminClientConfig) WithRequestTimeoutMs(timeoutMs int) *AdminClientConfig {
	if timeoutMs > 0 {
		a.requestTimeoutMs = timeoutMs
	}
	return a
}

func (a *AdminClientConfig) WithRetries(retries int) *AdminClientConfig {
	if retries >= 0 {
		a.retries = retries
	}
	return a
}

func (a *AdminClientConfig) WithRetryBackoffMs(backoffMs int) *AdminClientConfig {
	if backoffMs > 0 {
		a.retryBackoffMs = backoffMs
	}
	return a
}

func (a *AdminClientConfig) WithSocketTimeoutMs(timeoutMs int) *AdminClientConfig {
	if timeoutMs > 0 {
		a.socketTimeoutMs = timeoutMs
	}
	return a
}

// WithTuning aplica los ajustes de configuracion; Retries en cero conserva el default.
func (a *AdminClientConfig) WithTuning(tuning config.AdminTuning) *AdminClientConfig {
	a.WithRequestTimeoutMs(tuning.RequestTimeoutMs).
		WithRetryBackoffMs(tuning.RetryBackoffMs).
		WithSocketTimeoutMs(tuning.SocketTimeoutMs)
	if tuning.Retries > 0 {
		a.WithRetries(tuning.Retries)
	}
	return a
}

func (a *AdminClientConfig) Build() (*kafka.ConfigMap, error) {
	configMap := kafka.ConfigMap{}

	a.serverConfigs.build(&configMap)

	configMap.SetKey("request.timeout.ms", a.requestTimeoutMs)
	configMap.SetKey("retries", a.retries)
	configMap.SetKey("retry.backoff.ms", a.retryBackoffMs)
	configMap.SetKey("socket.timeout.ms", a.socketTimeoutMs)

	if a.securityConfig != nil {
		a.securityConfig.Build(&configMap)
	}

	a.serverConfigs.applyProperties(&configMap)

	return &configMap, nil
}

// AdminService valida los topics declarados y crea el topic de la dead letter queue.
type AdminService struct {
	Config *AdminClientConfig
	*kafka.AdminClient
	logger observability.Logger
}

func NewAdminService(config *AdminClientConfig, logger observability.Logger) (*AdminService, error) {
	cfg, err := config.Build()
	if err != nil {
		return nil, err
	}

	admin, err := kafka.NewAdminClient(cfg)
	if err != nil {
		return nil, err
	}

	return &AdminService{Config: config, AdminClient: admin, logger: logger}, nil
}

// MissingTopics devuelve, ordenados, los topics que no existen en el cluster.
func (s *AdminService) MissingTopics(ctx context.Context, topics []string) ([]string, error) {
	metadata, err := s.GetMetadata(nil, true, s.Config.requestTimeoutMs)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	var missing []string
	for _, topic := range topics {
		if _, ok := metadata.Topics[topic]; !ok {
			missing = append(missing, topic)
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		s.logger.Warn(ctx, "Topics no encontrados en el cluster", nil, "topics", missing)
	}

	return missing, nil
}

// EnsureTopic crea el topic si no existe; que ya exista no es un error.
func (s *AdminService) EnsureTopic(ctx context.Context, topic *Topic) error {
	if err := topic.Validate(); err != nil {
		return err
	}

	results, err := s.CreateTopics(ctx,
		[]kafka.TopicSpecification{*topic.Build()},
		kafka.SetAdminOperationTimeout(time.Duration(s.Config.requestTimeoutMs)*time.Millisecond))
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic.Name, err)
	}

	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
			s.logger.Info(ctx, "Topic creado", "topic", r.Topic)
		case kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Error)
		}
	}

	return nil
}

func (s *AdminService) Close() {
	if s.AdminClient != nil {
		s.AdminClient.Close()
	}
}
