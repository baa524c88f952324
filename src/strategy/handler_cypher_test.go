package strategy

import (
	"testing"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCypherHandlerQueryShape(t *testing.T) {
	h, err := NewCypherHandler("people", "MERGE (p:Person {id: event.id})", sinkConfig(nil))
	require.NoError(t, err)

	assert.Equal(t, StrategyCypher, h.Strategy())
	assert.Equal(t,
		"UNWIND $events AS message"+
			" WITH message.timestamp AS `__timestamp`, message.header AS `__header`, message.key AS `__key`, message.value AS `__value`, message.value AS `event`"+
			" CALL { WITH `__timestamp`, `__header`, `__key`, `__value`, `event` MERGE (p:Person {id: event.id}) }",
		h.Query())
}

func TestCypherHandlerCustomBindings(t *testing.T) {
	disabled := false
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cypher.BindTimestampAs = config.BindingDisabled
		c.Cypher.BindHeaderAs = config.BindingDisabled
		c.Cypher.BindKeyAs = "k"
		c.Cypher.BindValueAs = config.BindingDisabled
		c.Cypher.BindValueAsEvent = &disabled
	})

	h, err := NewCypherHandler("people", "CREATE (:Key {id: k})", cfg)
	require.NoError(t, err)
	assert.Equal(t, "UNWIND $events AS message WITH message.key AS `k` CALL { WITH `k` CREATE (:Key {id: k}) }", h.Query())
}

func TestCypherHandlerRequiresBindingsAndStatement(t *testing.T) {
	disabled := false
	cfg := sinkConfig(func(c *config.SinkConfig) {
		c.Cypher.BindTimestampAs = config.BindingDisabled
		c.Cypher.BindHeaderAs = config.BindingDisabled
		c.Cypher.BindKeyAs = config.BindingDisabled
		c.Cypher.BindValueAs = config.BindingDisabled
		c.Cypher.BindValueAsEvent = &disabled
	})

	_, err := NewCypherHandler("people", "RETURN 1", cfg)
	assert.ErrorIs(t, err, errNoBindings)

	_, err = NewCypherHandler("people", "   ", sinkConfig(nil))
	assert.ErrorIs(t, err, errEmptyStatement)
}

func TestCypherHandlerChunksBySize(t *testing.T) {
	h, err := NewCypherHandler("people", "MERGE (p:Person {id: event.id})",
		sinkConfig(func(c *config.SinkConfig) { c.BatchSize = 2 }))
	require.NoError(t, err)

	var messages []*message.Message
	for i := int64(0); i < 5; i++ {
		messages = append(messages, msg("people", i, i, map[string]any{"id": i}))
	}

	plan, err := h.Handle(messages)
	require.NoError(t, err)

	require.Len(t, plan.Transactions, 3)
	var seen []any
	for i, size := range []int{2, 2, 1} {
		require.Len(t, plan.Transactions[i], 1)
		events := eventsOf(plan.Transactions[i][0])
		assert.Len(t, events, size)
		for _, e := range events {
			seen = append(seen, e.(map[string]any)["key"])
		}
	}
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3), int64(4)}, seen)

	first := eventsOf(plan.Transactions[0][0])[0].(map[string]any)
	assert.Equal(t, baseTime.UnixMilli(), first["timestamp"])
	assert.Equal(t, map[string]any{"id": int64(0)}, first["value"])
	assert.Nil(t, plan.Transactions[0][0].TransactionID)
}

func TestCypherHandlerIsIdempotent(t *testing.T) {
	h, err := NewCypherHandler("people", "MERGE (p:Person {id: event.id})", sinkConfig(nil))
	require.NoError(t, err)

	messages := []*message.Message{
		msg("people", 1, "a", map[string]any{"id": 1}),
		msg("people", 2, "b", map[string]any{"id": 2}),
	}

	first, err := h.Handle(messages)
	require.NoError(t, err)
	second, err := h.Handle(messages)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCypherHandlerEmptyBatch(t *testing.T) {
	h, err := NewCypherHandler("people", "RETURN 1", sinkConfig(nil))
	require.NoError(t, err)

	plan, err := h.Handle(nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Transactions)
	assert.Zero(t, plan.QueryCount())
}
