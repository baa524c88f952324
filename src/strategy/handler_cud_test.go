package strategy

import (
	"testing"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCudNodeOperations(t *testing.T) {
	cases := []struct {
		name  string
		value map[string]any
		text  string
	}{
		{
			name:  "create",
			value: map[string]any{"type": "node", "op": "create", "labels": []any{"Person"}, "properties": map[string]any{"name": "a"}},
			text:  "CREATE (n:`Person`) SET n = $properties",
		},
		{
			name:  "create with ids",
			value: map[string]any{"type": "NODE", "op": "CREATE", "labels": []any{"Person"}, "ids": map[string]any{"id": 1}},
			text:  "CREATE (n:`Person`) SET n = $properties SET n += $keys",
		},
		{
			name:  "merge",
			value: map[string]any{"type": "node", "op": "merge", "labels": []any{"Person", "Admin"}, "ids": map[string]any{"id": 1, "tenant": "x"}},
			text:  "MERGE (n:`Person`:`Admin` {`id`: $keys.`id`, `tenant`: $keys.`tenant`}) SET n += $properties",
		},
		{
			name:  "update",
			value: map[string]any{"type": "node", "op": "update", "labels": []any{"Person"}, "ids": map[string]any{"id": 1}},
			text:  "MATCH (n:`Person` {`id`: $keys.`id`}) SET n += $properties",
		},
		{
			name:  "delete",
			value: map[string]any{"type": "node", "op": "delete", "labels": []any{"Person"}, "ids": map[string]any{"id": 1}},
			text:  "MATCH (n:`Person` {`id`: $keys.`id`}) DELETE n",
		},
		{
			name:  "detach delete",
			value: map[string]any{"type": "node", "op": "delete", "labels": []any{"Person"}, "ids": map[string]any{"id": 1}, "detach": true},
			text:  "MATCH (n:`Person` {`id`: $keys.`id`}) DETACH DELETE n",
		},
	}

	h := NewCudHandler("ops", sinkConfig(nil))
	assert.Equal(t, StrategyCud, h.Strategy())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := h.Handle([]*message.Message{msg("ops", 0, nil, tc.value)})
			require.NoError(t, err)
			require.Equal(t, []int{1}, groupSizes(plan))
			assert.Equal(t, tc.text, plan.Transactions[0][0].Query.Text)
		})
	}
}

func TestCudRelationshipOperations(t *testing.T) {
	base := func(op string) map[string]any {
		return map[string]any{
			"type":       "relationship",
			"op":         op,
			"rel_type":   "KNOWS",
			"from":       map[string]any{"labels": []any{"Person"}, "ids": map[string]any{"id": 1}},
			"to":         map[string]any{"labels": []any{"Person"}, "ids": map[string]any{"id": 2}, "op": "merge"},
			"properties": map[string]any{"since": 2020},
		}
	}
	endpoints := "MATCH (startNode:`Person` {`id`: $from.`id`}) MERGE (endNode:`Person` {`id`: $to.`id`}) "

	h := NewCudHandler("ops", sinkConfig(nil))

	plan, err := h.Handle([]*message.Message{
		msg("ops", 0, nil, base("create")),
		msg("ops", 1, nil, base("merge")),
		msg("ops", 2, nil, base("delete")),
	})
	require.NoError(t, err)
	require.Equal(t, []int{3}, groupSizes(plan))

	create := plan.Transactions[0][0].Query
	assert.Equal(t, endpoints+"CREATE (startNode)-[r:`KNOWS`]->(endNode) SET r = $properties", create.Text)
	assert.Equal(t, map[string]any{
		"from":       map[string]any{"id": 1},
		"to":         map[string]any{"id": 2},
		"properties": map[string]any{"since": 2020},
	}, create.Parameters)

	assert.Equal(t, endpoints+"MERGE (startNode)-[r:`KNOWS`]->(endNode) SET r += $properties", plan.Transactions[0][1].Query.Text)
	assert.Equal(t, endpoints+"MATCH (startNode)-[r:`KNOWS`]->(endNode) DELETE r", plan.Transactions[0][2].Query.Text)
}

func TestCudRelationshipWithIds(t *testing.T) {
	value := map[string]any{
		"type":     "relationship",
		"op":       "update",
		"rel_type": "KNOWS",
		"ids":      map[string]any{"rid": "r1"},
		"from":     map[string]any{"labels": []any{"Person"}, "ids": map[string]any{"id": 1}},
		"to":       map[string]any{"labels": []any{"Person"}, "ids": map[string]any{"id": 2}},
	}

	plan, err := NewCudHandler("ops", sinkConfig(nil)).Handle([]*message.Message{msg("ops", 0, nil, value)})
	require.NoError(t, err)

	q := plan.Transactions[0][0].Query
	assert.Equal(t,
		"MATCH (startNode:`Person` {`id`: $from.`id`}) MATCH (endNode:`Person` {`id`: $to.`id`})"+
			" MATCH (startNode)-[r:`KNOWS` {`rid`: $keys.`rid`}]->(endNode) SET r += $properties",
		q.Text)
	assert.Equal(t, map[string]any{"rid": "r1"}, q.Parameters["keys"])
	assert.Equal(t, map[string]any{}, q.Parameters["properties"])
}

func TestCudMalformedOperations(t *testing.T) {
	bad := []any{
		"not a map",
		map[string]any{"type": "graph", "op": "create"},
		map[string]any{"type": "node", "op": "upsert", "ids": map[string]any{"id": 1}},
		map[string]any{"type": "node", "op": "merge", "labels": []any{"Person"}},
		map[string]any{"type": "relationship", "op": "create", "rel_type": "KNOWS", "from": map[string]any{"ids": map[string]any{"id": 1}}},
		map[string]any{"type": "relationship", "op": "create", "from": map[string]any{"ids": map[string]any{"id": 1}}, "to": map[string]any{"ids": map[string]any{"id": 2}}},
		map[string]any{"type": "relationship", "op": "create", "rel_type": "KNOWS",
			"from": map[string]any{"ids": map[string]any{"id": 1}, "op": "create"}, "to": map[string]any{"ids": map[string]any{"id": 2}}},
	}

	h := NewCudHandler("ops", sinkConfig(nil))
	for i, value := range bad {
		_, err := h.Handle([]*message.Message{msg("ops", int64(i), nil, value)})
		assert.ErrorIs(t, err, ErrMalformedPayload, "case %d", i)
	}
}

func TestCudChunksAndSkipsInvalid(t *testing.T) {
	h := NewCudHandler("ops", sinkConfig(func(c *config.SinkConfig) {
		c.BatchSize = 2
		c.ErrorTolerance = config.ErrorToleranceAll
	}))

	node := func(id int) map[string]any {
		return map[string]any{"type": "node", "op": "merge", "labels": []any{"N"}, "ids": map[string]any{"id": id}}
	}

	plan, err := h.Handle([]*message.Message{
		msg("ops", 0, nil, node(0)),
		msg("ops", 1, nil, map[string]any{"type": "node", "op": "merge"}),
		msg("ops", 2, nil, node(2)),
		msg("ops", 3, nil, node(3)),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, groupSizes(plan))
	require.Len(t, plan.Rejected, 1)
	assert.Equal(t, int64(1), plan.Rejected[0].Offset)
	assert.Equal(t, map[string]any{"id": 3}, plan.Transactions[1][0].Query.Parameters["keys"])
}

func TestCudHandlerIsIdempotent(t *testing.T) {
	h := NewCudHandler("ops", sinkConfig(nil))

	messages := []*message.Message{
		msg("ops", 0, nil, map[string]any{"type": "node", "op": "merge", "labels": []any{"Person"},
			"ids": map[string]any{"id": 1, "tenant": "x", "region": "eu"}, "properties": map[string]any{"a": 1, "b": 2}}),
		msg("ops", 1, nil, map[string]any{"type": "node", "op": "delete", "labels": []any{"Person"},
			"ids": map[string]any{"id": 2}, "detach": true}),
	}

	first, err := h.Handle(messages)
	require.NoError(t, err)
	second, err := h.Handle(messages)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
