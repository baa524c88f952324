package strategy

import (
	"strings"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/utils"
)

// CypherHandler ejecuta una plantilla Cypher del usuario por cada mensaje, en lotes con UNWIND.
type CypherHandler struct {
	topic     string
	batchSize int
	query     string
}

func NewCypherHandler(topic string, statement string, cfg config.SinkConfig) (*CypherHandler, error) {
	if utils.StringIsEmptyOrWhitespace(statement) {
		return nil, invalidError(topic, errEmptyStatement)
	}

	bindings := cfg.Cypher
	var aliases []string
	var imports []string

	add := func(name, source string) {
		if name == "" || name == config.BindingDisabled {
			return
		}
		aliases = append(aliases, source+" AS "+quote(name))
		imports = append(imports, quote(name))
	}

	add(bindings.BindTimestampAs, "message.timestamp")
	add(bindings.BindHeaderAs, "message.header")
	add(bindings.BindKeyAs, "message.key")
	add(bindings.BindValueAs, "message.value")
	if bindings.BindValueAsEvent == nil || *bindings.BindValueAsEvent {
		add("event", "message.value")
	}

	if len(aliases) == 0 {
		return nil, invalidError(topic, errNoBindings)
	}

	query := "UNWIND $events AS message WITH " + strings.Join(aliases, ", ") +
		" CALL { WITH " + strings.Join(imports, ", ") + " " + strings.TrimSpace(statement) + " }"

	return &CypherHandler{topic: topic, batchSize: cfg.BatchSize, query: query}, nil
}

func (h *CypherHandler) Strategy() Strategy { return StrategyCypher }

func (h *CypherHandler) Query() string { return h.query }

func (h *CypherHandler) Handle(messages []*message.Message) (*Plan, error) {
	plan := &Plan{}

	for _, batch := range chunk(messages, h.batchSize) {
		events := make([]any, len(batch))
		for i, m := range batch {
			events[i] = map[string]any{
				"timestamp": m.Timestamp().UnixMilli(),
				"header":    m.HeaderMap(),
				"key":       m.Key(),
				"value":     m.Value(),
			}
		}
		plan.Transactions = append(plan.Transactions, []ChangeQuery{
			newQuery(h.query, map[string]any{"events": events}),
		})
	}

	return plan, nil
}
