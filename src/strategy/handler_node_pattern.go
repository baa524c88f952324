package strategy

import (
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pattern"
)

const (
	opUpsert = "C"
	opDelete = "D"
)

// NodePatternHandler hace MERGE de un nodo por sus identidades; un tombstone borra el nodo.
type NodePatternHandler struct {
	topic     string
	node      *pattern.Node
	batchSize int
	tolerance config.ErrorTolerance
	skip      map[string]struct{}
	query     string
}

func NewNodePatternHandler(topic string, text string, cfg config.SinkConfig) (*NodePatternHandler, error) {
	node, err := pattern.CompileNode(text)
	if err != nil {
		return nil, invalidError(topic, err)
	}

	keyNames := make([]string, len(node.Keys))
	for i, k := range node.Keys {
		keyNames[i] = k.Name
	}

	match := "(n" + labelList(node.Labels) + propertyMatch(keyNames, "event.keys") + ")"

	query := "UNWIND $events AS event" +
		" CALL { WITH event WITH event WHERE event.op = \"" + opUpsert + "\"" +
		" MERGE " + match +
		" " + setProperties("n", "event.properties", "event.keys", cfg.Pattern.MergeNodeProperties) + " }" +
		" CALL { WITH event WITH event WHERE event.op = \"" + opDelete + "\"" +
		" MATCH " + match +
		" DETACH DELETE n }"

	return &NodePatternHandler{
		topic:     topic,
		node:      node,
		batchSize: cfg.BatchSize,
		tolerance: cfg.ErrorTolerance,
		skip:      usedFields(&node.Entity),
		query:     query,
	}, nil
}

func (h *NodePatternHandler) Strategy() Strategy { return StrategyNodePattern }

func (h *NodePatternHandler) Query() string { return h.query }

func (h *NodePatternHandler) event(m *message.Message) (map[string]any, error) {
	if m.IsTombstone() {
		keys, err := resolveKeys("node", h.node.Keys, m.Key(), nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"op": opDelete, "keys": keys}, nil
	}

	if _, ok := m.Value().(map[string]any); !ok {
		return nil, fmt.Errorf("%w: node pattern expects a structured value, got %T", ErrMalformedPayload, m.Value())
	}

	keys, err := resolveKeys("node", h.node.Keys, m.Key(), m.Value())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"op":         opUpsert,
		"keys":       keys,
		"properties": resolveProperties(&h.node.Entity, true, m.Key(), m.Value(), h.skip),
	}, nil
}

func (h *NodePatternHandler) Handle(messages []*message.Message) (*Plan, error) {
	return handleChunked(messages, h.batchSize, h.tolerance, h.query, h.event)
}

// handleChunked es comun a los handlers de patrones: descarta los mensajes invalidos segun la
// politica y arma una query UNWIND por cada lote de batchSize eventos validos.
func handleChunked(messages []*message.Message, batchSize int, tolerance config.ErrorTolerance,
	query string, toEvent func(*message.Message) (map[string]any, error)) (*Plan, error) {

	rej := newRejector(tolerance)
	events := make([]any, 0, len(messages))

	for _, m := range messages {
		ev, err := toEvent(m)
		if err != nil {
			if fatal := rej.reject(m, err); fatal != nil {
				return nil, fatal
			}
			continue
		}
		events = append(events, ev)
	}

	plan := &Plan{Rejected: rej.rejected}
	for _, batch := range chunk(events, batchSize) {
		plan.Transactions = append(plan.Transactions, []ChangeQuery{
			newQuery(query, map[string]any{"events": batch}),
		})
	}
	return plan, nil
}
