package strategy

import (
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pattern"
)

// RelationshipPatternHandler hace MERGE de los dos extremos y luego de la relacion entre ellos.
type RelationshipPatternHandler struct {
	topic     string
	rel       *pattern.Relationship
	batchSize int
	tolerance config.ErrorTolerance
	relSkip   map[string]struct{}
	query     string
}

func NewRelationshipPatternHandler(topic string, text string, cfg config.SinkConfig) (*RelationshipPatternHandler, error) {
	rel, err := pattern.CompileRelationship(text)
	if err != nil {
		return nil, invalidError(topic, err)
	}

	startMatch := "(startNode" + labelList(rel.Start.Labels) + propertyMatch(propertyNames(rel.Start.Keys), "event.start.keys") + ")"
	endMatch := "(endNode" + labelList(rel.End.Labels) + propertyMatch(propertyNames(rel.End.Keys), "event.end.keys") + ")"
	relKeys := propertyMatch(propertyNames(rel.Keys), "event.keys")
	relMatch := "[r:" + quote(rel.Type) + relKeys + "]"

	relKeysParam := ""
	if len(rel.Keys) > 0 {
		relKeysParam = "event.keys"
	}

	mergeNodes := cfg.Pattern.MergeNodeProperties
	query := "UNWIND $events AS event" +
		" CALL { WITH event WITH event WHERE event.op = \"" + opUpsert + "\"" +
		" MERGE " + startMatch +
		" " + setProperties("startNode", "event.start.properties", "event.start.keys", mergeNodes) +
		" MERGE " + endMatch +
		" " + setProperties("endNode", "event.end.properties", "event.end.keys", mergeNodes) +
		" MERGE (startNode)-" + relMatch + "->(endNode)" +
		" " + setProperties("r", "event.properties", relKeysParam, cfg.Pattern.MergeRelationshipProperties) + " }" +
		" CALL { WITH event WITH event WHERE event.op = \"" + opDelete + "\"" +
		" MATCH " + startMatch + "-" + relMatch + "->" + endMatch +
		" DELETE r }"

	// la relacion incluye todo lo que no consumen sus extremos
	relSkip := usedFields(&rel.Entity)
	for _, side := range []*pattern.Node{rel.Start, rel.End} {
		for name := range usedFields(&side.Entity) {
			relSkip[name] = struct{}{}
		}
	}

	return &RelationshipPatternHandler{
		topic:     topic,
		rel:       rel,
		batchSize: cfg.BatchSize,
		tolerance: cfg.ErrorTolerance,
		relSkip:   relSkip,
		query:     query,
	}, nil
}

func propertyNames(props []pattern.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}

func (h *RelationshipPatternHandler) Strategy() Strategy { return StrategyRelationshipPattern }

func (h *RelationshipPatternHandler) Query() string { return h.query }

func (h *RelationshipPatternHandler) event(m *message.Message) (map[string]any, error) {
	key := m.Key()

	value := m.Value()
	if !m.IsTombstone() {
		if _, ok := value.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: relationship pattern expects a structured value, got %T", ErrMalformedPayload, value)
		}
	}

	startKeys, err := resolveKeys("start node", h.rel.Start.Keys, key, value)
	if err != nil {
		return nil, err
	}
	endKeys, err := resolveKeys("end node", h.rel.End.Keys, key, value)
	if err != nil {
		return nil, err
	}
	relKeys, err := resolveKeys("relationship", h.rel.Keys, key, value)
	if err != nil {
		return nil, err
	}

	if m.IsTombstone() {
		return map[string]any{
			"op":    opDelete,
			"start": map[string]any{"keys": startKeys},
			"end":   map[string]any{"keys": endKeys},
			"keys":  relKeys,
		}, nil
	}

	return map[string]any{
		"op": opUpsert,
		"start": map[string]any{
			"keys":       startKeys,
			"properties": resolveProperties(&h.rel.Start.Entity, false, key, value, usedFields(&h.rel.Start.Entity)),
		},
		"end": map[string]any{
			"keys":       endKeys,
			"properties": resolveProperties(&h.rel.End.Entity, false, key, value, usedFields(&h.rel.End.Entity)),
		},
		"keys":       relKeys,
		"properties": resolveProperties(&h.rel.Entity, true, key, value, h.relSkip),
	}, nil
}

func (h *RelationshipPatternHandler) Handle(messages []*message.Message) (*Plan, error) {
	return handleChunked(messages, h.batchSize, h.tolerance, h.query, h.event)
}
