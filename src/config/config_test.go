package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
Kafka:
  BootstrapServers: ["localhost:9092"]
  GroupID: neo4j-sink
  Topics: [people, purchases.v1]
  CommitInterval: 2s
Neo4j:
  URI: neo4j://localhost:7687
  Username: neo4j
  Password: secret
Sink:
  BatchSize: 50
  BatchTimeout: 250ms
  ErrorTolerance: ALL
  Cypher:
    Topics:
      people: "MERGE (p:Person {id: event.id})"
  Pattern:
    NodeTopics:
      purchases.v1: "(:Purchase{!id})"
`

func TestLoadStringYAML(t *testing.T) {
	cfg, err := LoadString("yaml", sampleYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.BootstrapServers)
	assert.Equal(t, []string{"people", "purchases.v1"}, cfg.Kafka.Topics)
	assert.Equal(t, 2*time.Second, cfg.Kafka.CommitInterval)
	assert.Equal(t, 50, cfg.Sink.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Sink.BatchTimeout)
	assert.Equal(t, ErrorToleranceAll, cfg.Sink.ErrorTolerance)
	assert.Equal(t, "MERGE (p:Person {id: event.id})", cfg.Sink.Cypher.Topics["people"])
	assert.Equal(t, "(:Purchase{!id})", cfg.Sink.Pattern.NodeTopics["purchases.v1"])

	// defaults
	assert.Equal(t, DefaultMaxPollRecords, cfg.Kafka.MaxPollRecords)
	assert.Equal(t, ConverterJSON, cfg.Kafka.ValueConverter.Type)
	assert.Equal(t, ConverterString, cfg.Kafka.KeyConverter.Type)
	assert.Equal(t, DefaultSourceIDLabelName, cfg.Sink.Cdc.SourceIDLabelName)
	assert.Equal(t, DefaultHttpPort, cfg.Server.HttpPort)
	require.NotNil(t, cfg.Sink.Cypher.BindValueAsEvent)
	assert.True(t, *cfg.Sink.Cypher.BindValueAsEvent)
}

func TestLoadStringRejectsInvalidConfig(t *testing.T) {
	_, err := LoadString("json", `{"Kafka": {"Topics": ["a"]}, "Sink": {"ErrorTolerance": "some"}}`)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "BootstrapServers")
	assert.Contains(t, err.Error(), "GroupID")
	assert.Contains(t, err.Error(), "Neo4j.URI")
	assert.Contains(t, err.Error(), "ErrorTolerance")
}

func TestDryRunDoesNotRequireURI(t *testing.T) {
	cfg, err := LoadString("json", `{
		"Kafka": {"BootstrapServers": ["b:9092"], "GroupID": "g", "Topics": ["a"]},
		"Neo4j": {"DryRun": true},
		"Sink":  {"Cud": {"Topics": ["a"]}}
	}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultDryRunDir, cfg.Neo4j.DryRunDir)
}

func TestAvroConverterRequiresSchema(t *testing.T) {
	assert.Error(t, ConverterConfig{Type: ConverterAvro}.Validate())
	assert.NoError(t, ConverterConfig{Type: ConverterAvro, Schema: `"string"`}.Validate())
	assert.Error(t, ConverterConfig{Type: "xml"}.Validate())
}

func TestEnabledBindings(t *testing.T) {
	var sink SinkConfig
	sink.ApplyDefaults()
	assert.Equal(t, []string{"__timestamp", "__header", "__key", "__value", "event"}, sink.Cypher.EnabledBindings())

	disabled := false
	sink.Cypher = CypherConfig{
		Topics:           map[string]string{"t": "RETURN 1"},
		BindTimestampAs:  BindingDisabled,
		BindHeaderAs:     BindingDisabled,
		BindKeyAs:        BindingDisabled,
		BindValueAs:      BindingDisabled,
		BindValueAsEvent: &disabled,
	}
	assert.Empty(t, sink.Cypher.EnabledBindings())
	assert.Error(t, sink.Validate())
}

func TestFromProperties(t *testing.T) {
	sink, topics, err := FromProperties(map[string]string{
		"topics":                                "people, purchases.v1 ,cdc,cud",
		"neo4j.cypher.topic.people":             "MERGE (p:Person {id: event.id})",
		"neo4j.pattern.node.topic.purchases.v1": "(:Purchase{!id})",
		"neo4j.cdc.source-id.topics":            "cdc",
		"neo4j.cdc.source-id.label-name":        "Src",
		"neo4j.cud.topics":                      "cud",
		"neo4j.batch-size":                      "20",
		"neo4j.batch-timeout":                   "3s",
		"errors.tolerance":                      "all",
		"neo4j.pattern.node.merge-properties":   "true",
		"neo4j.cypher.bind-value-as-event":      "false",
		"neo4j.cypher.bind-key-as":              "-",
		"some.unrelated.property":               "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"people", "purchases.v1", "cdc", "cud"}, topics)
	assert.Equal(t, "MERGE (p:Person {id: event.id})", sink.Cypher.Topics["people"])
	assert.Equal(t, "(:Purchase{!id})", sink.Pattern.NodeTopics["purchases.v1"])
	assert.Equal(t, []string{"cdc"}, sink.Cdc.SourceIDTopics)
	assert.Equal(t, "Src", sink.Cdc.SourceIDLabelName)
	assert.Equal(t, DefaultSourceIDPropertyName, sink.Cdc.SourceIDPropertyName)
	assert.Equal(t, []string{"cud"}, sink.Cud.Topics)
	assert.Equal(t, 20, sink.BatchSize)
	assert.Equal(t, 3*time.Second, sink.BatchTimeout)
	assert.Equal(t, ErrorToleranceAll, sink.ErrorTolerance)
	assert.True(t, sink.Pattern.MergeNodeProperties)
	require.NotNil(t, sink.Cypher.BindValueAsEvent)
	assert.False(t, *sink.Cypher.BindValueAsEvent)
	assert.Equal(t, []string{"__timestamp", "__header", "__value"}, sink.Cypher.EnabledBindings())
}

func TestFromPropertiesRejectsBadValues(t *testing.T) {
	_, _, err := FromProperties(map[string]string{"neo4j.batch-size": "many"})
	assert.Error(t, err)

	_, _, err = FromProperties(map[string]string{"errors.tolerance": "sometimes"})
	assert.Error(t, err)
}

func TestApplyProperties(t *testing.T) {
	cfg := &Config{Kafka: KafkaConfig{
		BootstrapServers: []string{"localhost:9092"},
		GroupID:          "g",
		Topics:           []string{"old"},
	}, Neo4j: Neo4jConfig{DryRun: true}}
	cfg.Sink.Cud.Topics = []string{"old"}
	cfg.ApplyDefaults()

	require.NoError(t, cfg.ApplyProperties(nil))
	assert.Equal(t, []string{"old"}, cfg.Sink.Cud.Topics)

	require.NoError(t, cfg.ApplyProperties([]string{
		"topics=users,ops",
		"neo4j.pattern.node.topic.users=(:User{!id})",
		"neo4j.cud.topics=ops",
		"neo4j.cypher.bind-header-as=h=x",
	}))
	assert.Equal(t, []string{"users", "ops"}, cfg.Kafka.Topics)
	assert.Equal(t, "(:User{!id})", cfg.Sink.Pattern.NodeTopics["users"])
	assert.Equal(t, []string{"ops"}, cfg.Sink.Cud.Topics)
	assert.Equal(t, "h=x", cfg.Sink.Cypher.BindHeaderAs)

	assert.Error(t, cfg.ApplyProperties([]string{"neo4j.cud.topics"}))
}
