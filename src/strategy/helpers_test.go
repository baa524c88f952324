package strategy

import (
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

func sinkConfig(mutate func(*config.SinkConfig)) config.SinkConfig {
	cfg := config.SinkConfig{}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.ApplyDefaults()
	return cfg
}

var baseTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func msg(topic string, offset int64, key, value any) *message.Message {
	return message.New(message.Record{
		Topic:     topic,
		Partition: 0,
		Offset:    offset,
		Timestamp: baseTime.Add(time.Duration(offset) * time.Millisecond),
		Key:       key,
		Value:     value,
	})
}

func changeEvent(txID int64, seq int32, event map[string]any) map[string]any {
	return map[string]any{
		"id":       "evt",
		"txId":     txID,
		"seq":      seq,
		"metadata": map[string]any{},
		"event":    event,
	}
}

func nodeCreated(elementID string, labels []any, keys map[string]any, props map[string]any) map[string]any {
	return map[string]any{
		"elementId": elementID,
		"eventType": "n",
		"operation": "c",
		"labels":    labels,
		"keys":      keys,
		"state": map[string]any{
			"after": map[string]any{"labels": labels, "properties": props},
		},
	}
}

func groupSizes(plan *Plan) []int {
	out := make([]int, len(plan.Transactions))
	for i, tx := range plan.Transactions {
		out[i] = len(tx)
	}
	return out
}

func eventsOf(q ChangeQuery) []any {
	return q.Query.Parameters["events"].([]any)
}
