package strategy

import (
	"errors"
	"testing"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/cdc"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personCreated(elementID string, id int) map[string]any {
	return nodeCreated(elementID, []any{"Person"},
		map[string]any{"Person": []any{map[string]any{"id": id}}},
		map[string]any{"id": id, "name": "p"})
}

func knows(op string, state map[string]any) map[string]any {
	return map[string]any{
		"elementId": "5:r:1",
		"eventType": "r",
		"operation": op,
		"type":      "KNOWS",
		"start": map[string]any{
			"elementId": "4:n:1",
			"labels":    []any{"Person"},
			"keys":      map[string]any{"Person": []any{map[string]any{"id": 1}}},
		},
		"end": map[string]any{
			"elementId": "4:n:2",
			"labels":    []any{"Person"},
			"keys":      map[string]any{"Person": []any{map[string]any{"id": 2}}},
		},
		"state": state,
	}
}

func TestCdcGroupsByContiguousTransaction(t *testing.T) {
	h := NewCdcSourceIDHandler("cdc", sinkConfig(nil))

	var messages []*message.Message
	for i, tx := range []int64{1, 1, 2, 2, 2, 1} {
		messages = append(messages, msg("cdc", int64(i), nil, changeEvent(tx, int32(i), personCreated("4:n:1", i))))
	}

	plan, err := h.Handle(messages)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 1}, groupSizes(plan))
	assert.Equal(t, int64(1), *plan.Transactions[2][0].TransactionID)
	assert.Equal(t, int32(5), *plan.Transactions[2][0].SequenceNumber)

	var order []int32
	for _, tx := range plan.Transactions {
		for _, q := range tx {
			order = append(order, *q.SequenceNumber)
		}
	}
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, order)
}

func TestCdcSequenceValidation(t *testing.T) {
	h := NewCdcSchemaHandler("cdc", sinkConfig(func(c *config.SinkConfig) { c.Cdc.ValidateSequence = true }))

	_, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 3, personCreated("a", 1))),
		msg("cdc", 1, nil, changeEvent(1, 2, personCreated("b", 2))),
	})
	assert.ErrorIs(t, err, ErrSequenceOrder)

	plan, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 3, personCreated("a", 1))),
		msg("cdc", 1, nil, changeEvent(2, 0, personCreated("b", 2))),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, groupSizes(plan))
}

func TestCdcRejectsNonChangeEvents(t *testing.T) {
	messages := []*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, personCreated("a", 1))),
		msg("cdc", 1, nil, map[string]any{"name": "not cdc"}),
	}

	_, err := NewCdcSourceIDHandler("cdc", sinkConfig(nil)).Handle(messages)
	var msgErr *MessageError
	require.True(t, errors.As(err, &msgErr))
	assert.Equal(t, int64(1), msgErr.Offset)
	assert.ErrorIs(t, err, cdc.ErrNotChangeEvent)

	plan, err := NewCdcSourceIDHandler("cdc", sinkConfig(func(c *config.SinkConfig) {
		c.ErrorTolerance = config.ErrorToleranceAll
	})).Handle(messages)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, groupSizes(plan))
	require.Len(t, plan.Rejected, 1)
	assert.Equal(t, int64(1), plan.Rejected[0].Offset)
}

func TestCdcSourceIDNodeQueries(t *testing.T) {
	h := NewCdcSourceIDHandler("cdc", sinkConfig(nil))

	update := map[string]any{
		"elementId": "4:n:1",
		"eventType": "n",
		"operation": "u",
		"labels":    []any{"Person", "Admin"},
		"state": map[string]any{
			"before": map[string]any{"labels": []any{"Person", "Guest"}, "properties": map[string]any{"name": "a", "tmp": 1}},
			"after":  map[string]any{"labels": []any{"Person", "Admin"}, "properties": map[string]any{"name": "b"}},
		},
	}
	deleted := map[string]any{
		"elementId": "4:n:1",
		"eventType": "n",
		"operation": "d",
		"labels":    []any{"Person"},
		"state":     map[string]any{"before": map[string]any{"labels": []any{"Person"}, "properties": map[string]any{}}},
	}

	plan, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, personCreated("4:n:1", 1))),
		msg("cdc", 1, nil, changeEvent(1, 1, update)),
		msg("cdc", 2, nil, changeEvent(1, 2, deleted)),
	})
	require.NoError(t, err)
	require.Equal(t, []int{3}, groupSizes(plan))

	create := plan.Transactions[0][0].Query
	assert.Equal(t, "MERGE (n:`SourceEvent` {`sourceId`: $id}) SET n = $properties SET n.`sourceId` = $id SET n:`Person`", create.Text)
	assert.Equal(t, map[string]any{"id": "4:n:1", "properties": map[string]any{"id": 1, "name": "p"}}, create.Parameters)

	upd := plan.Transactions[0][1].Query
	assert.Equal(t, "MERGE (n:`SourceEvent` {`sourceId`: $id}) SET n += $properties SET n:`Admin` REMOVE n:`Guest`", upd.Text)
	assert.Equal(t, map[string]any{"name": "b", "tmp": nil}, upd.Parameters["properties"])

	del := plan.Transactions[0][2].Query
	assert.Equal(t, "MATCH (n:`SourceEvent` {`sourceId`: $id}) DETACH DELETE n", del.Text)
}

func TestCdcSourceIDCustomNames(t *testing.T) {
	h := NewCdcSourceIDHandler("cdc", sinkConfig(func(c *config.SinkConfig) {
		c.Cdc.SourceIDLabelName = "Src`X"
		c.Cdc.SourceIDPropertyName = "origin"
	}))

	plan, err := h.Handle([]*message.Message{msg("cdc", 0, nil, changeEvent(1, 0, personCreated("e", 1)))})
	require.NoError(t, err)
	assert.Equal(t, "MERGE (n:`Src``X` {`origin`: $id}) SET n = $properties SET n.`origin` = $id SET n:`Person`",
		plan.Transactions[0][0].Query.Text)
}

func TestCdcSourceIDRelationshipQueries(t *testing.T) {
	h := NewCdcSourceIDHandler("cdc", sinkConfig(nil))

	plan, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, knows("c", map[string]any{"after": map[string]any{"properties": map[string]any{"since": 2020}}}))),
		msg("cdc", 1, nil, changeEvent(2, 0, knows("d", map[string]any{"before": map[string]any{"properties": map[string]any{}}}))),
	})
	require.NoError(t, err)

	create := plan.Transactions[0][0].Query
	assert.Equal(t,
		"MERGE (startNode:`SourceEvent` {`sourceId`: $start}) MERGE (endNode:`SourceEvent` {`sourceId`: $end})"+
			" MERGE (startNode)-[r:`KNOWS` {`sourceId`: $id}]->(endNode) SET r = $properties SET r.`sourceId` = $id",
		create.Text)
	assert.Equal(t, "4:n:1", create.Parameters["start"])
	assert.Equal(t, "4:n:2", create.Parameters["end"])
	assert.Equal(t, "5:r:1", create.Parameters["id"])

	assert.Equal(t, "MATCH ()-[r:`KNOWS` {`sourceId`: $id}]->() DELETE r", plan.Transactions[1][0].Query.Text)
}

func TestCdcSchemaNodeQueries(t *testing.T) {
	h := NewCdcSchemaHandler("cdc", sinkConfig(nil))

	created := nodeCreated("4:n:1", []any{"Person", "Employee"},
		map[string]any{"Employee": []any{map[string]any{"id": 3}}},
		map[string]any{"id": 3, "name": "x"})

	plan, err := h.Handle([]*message.Message{msg("cdc", 0, nil, changeEvent(1, 0, created))})
	require.NoError(t, err)

	q := plan.Transactions[0][0].Query
	assert.Equal(t, "MERGE (n:`Employee` {`id`: $keys.`id`}) SET n = $properties SET n += $keys SET n:`Person`", q.Text)
	assert.Equal(t, map[string]any{"id": 3}, q.Parameters["keys"])
}

func TestCdcSchemaRelationshipQuery(t *testing.T) {
	h := NewCdcSchemaHandler("cdc", sinkConfig(nil))

	plan, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, knows("c", map[string]any{"after": map[string]any{"properties": map[string]any{"since": 2020}}}))),
	})
	require.NoError(t, err)

	q := plan.Transactions[0][0].Query
	assert.Equal(t,
		"MATCH (startNode:`Person` {`id`: $start.`id`}) MATCH (endNode:`Person` {`id`: $end.`id`})"+
			" MERGE (startNode)-[r:`KNOWS`]->(endNode) SET r = $properties",
		q.Text)
	assert.Equal(t, map[string]any{"id": 1}, q.Parameters["start"])
	assert.Equal(t, map[string]any{"since": 2020}, q.Parameters["properties"])
}

func TestCdcSchemaMissingKeysIsMessageError(t *testing.T) {
	h := NewCdcSchemaHandler("cdc", sinkConfig(nil))

	noKeys := nodeCreated("4:n:1", []any{"Person"}, map[string]any{}, map[string]any{"name": "x"})
	_, err := h.Handle([]*message.Message{msg("cdc", 9, nil, changeEvent(1, 0, noKeys))})

	var msgErr *MessageError
	require.True(t, errors.As(err, &msgErr))
	assert.Equal(t, int64(9), msgErr.Offset)
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestCdcSequenceErrorIdentifiesRecord(t *testing.T) {
	for _, tolerance := range []config.ErrorTolerance{config.ErrorToleranceNone, config.ErrorToleranceAll} {
		h := NewCdcSchemaHandler("cdc", sinkConfig(func(c *config.SinkConfig) {
			c.Cdc.ValidateSequence = true
			c.ErrorTolerance = tolerance
		}))

		_, err := h.Handle([]*message.Message{
			msg("cdc", 40, nil, changeEvent(1, 3, personCreated("a", 1))),
			msg("cdc", 41, nil, changeEvent(1, 2, personCreated("b", 2))),
		})

		var msgErr *MessageError
		require.True(t, errors.As(err, &msgErr), "tolerance %s", tolerance)
		assert.Equal(t, "cdc", msgErr.Topic)
		assert.Equal(t, int64(41), msgErr.Offset)
		assert.ErrorIs(t, err, ErrSequenceOrder)
	}
}

func TestCdcSkippedRecordSplitsTransaction(t *testing.T) {
	noKeys := nodeCreated("4:n:9", []any{"Person"}, map[string]any{}, map[string]any{"name": "x"})

	h := NewCdcSchemaHandler("cdc", sinkConfig(func(c *config.SinkConfig) {
		c.ErrorTolerance = config.ErrorToleranceAll
	}))

	plan, err := h.Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, personCreated("a", 1))),
		msg("cdc", 1, nil, changeEvent(2, 0, noKeys)),
		msg("cdc", 2, nil, changeEvent(1, 1, personCreated("b", 2))),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1}, groupSizes(plan))
	require.Len(t, plan.Rejected, 1)
	assert.Equal(t, int64(1), plan.Rejected[0].Offset)
	assert.ErrorIs(t, plan.Rejected[0], ErrMissingIdentity)

	plan, err = NewCdcSourceIDHandler("cdc", sinkConfig(func(c *config.SinkConfig) {
		c.ErrorTolerance = config.ErrorToleranceAll
	})).Handle([]*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, personCreated("a", 1))),
		msg("cdc", 1, nil, map[string]any{"name": "not cdc"}),
		msg("cdc", 2, nil, changeEvent(1, 1, personCreated("b", 2))),
		msg("cdc", 3, nil, changeEvent(1, 2, personCreated("c", 3))),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, groupSizes(plan))
}

func TestCdcHandlersAreIdempotent(t *testing.T) {
	update := map[string]any{
		"elementId": "4:n:1",
		"eventType": "n",
		"operation": "u",
		"labels":    []any{"Person"},
		"keys":      map[string]any{"Person": []any{map[string]any{"id": 1}}},
		"state": map[string]any{
			"before": map[string]any{"labels": []any{"Person"}, "properties": map[string]any{"id": 1, "a": 1, "b": 2, "c": 3}},
			"after":  map[string]any{"labels": []any{"Person"}, "properties": map[string]any{"id": 1, "a": 5, "d": 4}},
		},
	}
	messages := []*message.Message{
		msg("cdc", 0, nil, changeEvent(1, 0, personCreated("4:n:1", 1))),
		msg("cdc", 1, nil, changeEvent(1, 1, update)),
		msg("cdc", 2, nil, changeEvent(2, 0, knows("c", map[string]any{"after": map[string]any{"properties": map[string]any{"since": 2020}}}))),
	}

	handlers := map[string]Handler{
		"source id": NewCdcSourceIDHandler("cdc", sinkConfig(nil)),
		"schema":    NewCdcSchemaHandler("cdc", sinkConfig(nil)),
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			first, err := h.Handle(messages)
			require.NoError(t, err)
			second, err := h.Handle(messages)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}
