package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pipeline"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dryRunConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			BootstrapServers: []string{"localhost:9092"},
			GroupID:          "neo4j-sink",
			Topics:           []string{"ops", "users"},
		},
		Neo4j: config.Neo4jConfig{DryRun: true, DryRunDir: t.TempDir()},
		Sink: config.SinkConfig{
			Cud:     config.CudConfig{Topics: []string{"ops"}},
			Pattern: config.PatternConfig{NodeTopics: map[string]string{"users": "(:User{!id})"}},
		},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewConnectorDryRun(t *testing.T) {
	ctx := context.Background()

	c, err := NewConnector(ctx, dryRunConfig(t), observability.NewNopLogger())
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.Equal(t, map[string]strategy.Strategy{
		"ops":   strategy.StrategyCud,
		"users": strategy.StrategyNodePattern,
	}, c.Plan())
	assert.False(t, c.Ready())
	assert.Nil(t, c.reporter)
	assert.True(t, strings.HasPrefix(c.clientID, "go_neo4j_connector-"))
}

func TestNewConnectorRejectsUnassignedTopic(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Kafka.Topics = append(cfg.Kafka.Topics, "orphan")

	_, err := NewConnector(context.Background(), cfg, observability.NewNopLogger())
	assert.Error(t, err)
}

func TestCloseLeavesActiveCycleToStart(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewNopLogger()

	c, err := NewConnector(ctx, dryRunConfig(t), logger)
	require.NoError(t, err)

	dispatcher := pipeline.NewDispatcher(c.sinkFactory, c.resolver, nil, config.ErrorToleranceNone, 1,
		pipeline.NewOffsetCoordinator(logger), logger)

	c.mu.Lock()
	c.dispatcher = dispatcher
	c.mu.Unlock()

	c.running.Store(true)
	require.NoError(t, c.Close(ctx))
	assert.Same(t, dispatcher, c.dispatcher)

	c.running.Store(false)
	c.cleanupCycle(ctx)
	assert.Nil(t, c.dispatcher)
}

func TestClientIDFromConfig(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Kafka.ClientID = "fixed"
	assert.Equal(t, "fixed", clientID(cfg))
}

func TestHTTPServerEndpoints(t *testing.T) {
	metricsService := observability.NewMetricsService()

	ready := false
	srv := NewHTTPServer(config.ServerConfig{HttpPort: 9999}, metricsService,
		observability.NewNopLogger(), func() bool { return ready })
	assert.Equal(t, ":9999", srv.Addr)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Request-ID", "req-1")
		srv.Handler.ServeHTTP(rec, req)
		return rec
	}

	health := get("/health")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "req-1", health.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusServiceUnavailable, get("/ready").Code)
	ready = true
	assert.Equal(t, http.StatusOK, get("/ready").Code)

	metrics := get("/metrics")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "go_goroutines")
}
