package strategy

import (
	"errors"
	"testing"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullConfig() config.SinkConfig {
	return sinkConfig(func(c *config.SinkConfig) {
		c.Cypher.Topics = map[string]string{"people": "MERGE (p:Person {id: event.id})"}
		c.Pattern.NodeTopics = map[string]string{"users": "(:User{!id})"}
		c.Pattern.RelationshipTopics = map[string]string{"purchases": "(:User{!userId})-[:BOUGHT]->(:Product{!productId})"}
		c.Cdc.SourceIDTopics = []string{"cdc-src"}
		c.Cdc.SchemaTopics = []string{"cdc-schema"}
		c.Cud.Topics = []string{"ops"}
	})
}

func TestResolverAssignsOneHandlerPerTopic(t *testing.T) {
	declared := []string{"people", "users", "purchases", "cdc-src", "cdc-schema", "ops"}

	r, err := NewResolver(fullConfig(), declared)
	require.NoError(t, err)

	assert.Equal(t, map[string]Strategy{
		"people":     StrategyCypher,
		"users":      StrategyNodePattern,
		"purchases":  StrategyRelationshipPattern,
		"cdc-src":    StrategyCdcSourceID,
		"cdc-schema": StrategyCdcSchema,
		"ops":        StrategyCud,
	}, r.Assignments())

	assert.Equal(t, []string{"cdc-schema", "cdc-src", "ops", "people", "purchases", "users"}, r.Topics())
	assert.Equal(t, []Strategy{
		StrategyCdcSchema, StrategyCdcSourceID, StrategyCud, StrategyCypher, StrategyNodePattern, StrategyRelationshipPattern,
	}, r.ConfiguredStrategies())

	h, ok := r.Handler("users")
	require.True(t, ok)
	assert.IsType(t, &NodePatternHandler{}, h)

	_, ok = r.Handler("unknown")
	assert.False(t, ok)
}

func TestResolverConfiguredStrategiesAreDistinct(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cud.Topics = []string{"a", "b"}
	})

	r, err := NewResolver(cfg, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []Strategy{StrategyCud}, r.ConfiguredStrategies())
}

func TestResolverRejectsCrossDefinedTopics(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cypher.Topics = map[string]string{"foo": "CREATE (:Foo)"}
		c.Cud.Topics = []string{"foo", "bar"}
		c.Cdc.SchemaTopics = []string{"bar"}
	})

	_, err := NewResolver(cfg, []string{"foo", "bar"})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigErrorCrossDefined, cfgErr.Kind)
	assert.Equal(t, []string{"bar", "foo"}, cfgErr.Topics)
	assert.Contains(t, err.Error(), "foo")
	assert.Contains(t, err.Error(), "bar")
}

func TestResolverRejectsDeclaredTopicWithoutStrategy(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cud.Topics = []string{"foo"}
	})

	_, err := NewResolver(cfg, []string{"foo", "bar"})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigErrorMismatch, cfgErr.Kind)
	assert.Equal(t, "mismatch: declared=[bar, foo], configured=[foo]", err.Error())
	assert.Equal(t, []string{"bar"}, cfgErr.Topics)
}

func TestResolverRejectsConfiguredTopicNotDeclared(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cud.Topics = []string{"foo", "zed"}
	})

	_, err := NewResolver(cfg, []string{"foo"})
	require.Error(t, err)
	assert.Equal(t, "mismatch: declared=[foo], configured=[foo, zed]", err.Error())
}

func TestResolverSurfacesInvalidPatterns(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Pattern.NodeTopics = map[string]string{"users": "(:User{name})"}
	})

	_, err := NewResolver(cfg, []string{"users"})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigErrorInvalid, cfgErr.Kind)
	assert.Equal(t, []string{"users"}, cfgErr.Topics)
	assert.ErrorIs(t, err, pattern.ErrSyntax)
}

func TestResolverRejectsNodePatternConfiguredAsRelationship(t *testing.T) {
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Pattern.RelationshipTopics = map[string]string{"users": "(:User{!id})"}
	})

	_, err := NewResolver(cfg, []string{"users"})
	assert.ErrorIs(t, err, pattern.ErrSyntax)
}
