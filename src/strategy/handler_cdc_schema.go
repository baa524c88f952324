package strategy

import (
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/cdc"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

// CdcSchemaHandler replica eventos CDC usando las claves (constraints) declaradas en el propio evento.
type CdcSchemaHandler struct {
	topic            string
	tolerance        config.ErrorTolerance
	validateSequence bool
}

func NewCdcSchemaHandler(topic string, cfg config.SinkConfig) *CdcSchemaHandler {
	return &CdcSchemaHandler{
		topic:            topic,
		tolerance:        cfg.ErrorTolerance,
		validateSequence: cfg.Cdc.ValidateSequence,
	}
}

func (h *CdcSchemaHandler) Strategy() Strategy { return StrategyCdcSchema }

func (h *CdcSchemaHandler) Handle(messages []*message.Message) (*Plan, error) {
	return handleChangeEvents(messages, h.tolerance, h.validateSequence, h.translate)
}

func keyedNode(variable, label string, keys map[string]any, param string) string {
	return "(" + variable + ":" + quote(label) + propertyMatch(sortedKeys(keys), "$"+param) + ")"
}

func (h *CdcSchemaHandler) translate(ev *cdc.ChangeEvent) (Query, error) {
	e := &ev.Event

	if e.IsNode() {
		label, keys, ok := e.NodeIdentity()
		if !ok {
			return Query{}, fmt.Errorf("%w: node event %s carries no keys for labels %v", ErrMissingIdentity, ev.ID, e.Labels)
		}

		node := keyedNode("n", label, keys, "keys")

		switch e.Operation {
		case cdc.OperationCreate:
			text := "MERGE " + node + " SET n = $properties SET n += $keys" +
				setLabels("n", labelsExcept(finalLabels(e), label))
			return Query{Text: text, Parameters: map[string]any{"keys": keys, "properties": e.AfterProperties()}}, nil

		case cdc.OperationUpdate:
			text := "MERGE " + node + " SET n += $properties" +
				setLabels("n", labelsExcept(e.AddedLabels(), label)) +
				removeLabels("n", labelsExcept(e.RemovedLabels(), label))
			return Query{Text: text, Parameters: map[string]any{"keys": keys, "properties": e.PropertyChanges()}}, nil

		default:
			return Query{Text: "MATCH " + node + " DETACH DELETE n", Parameters: map[string]any{"keys": keys}}, nil
		}
	}

	startLabel, startKeys, ok := cdc.IdentityOf(e.Start.Labels, e.Start.Keys)
	if !ok {
		return Query{}, fmt.Errorf("%w: relationship event %s has no keys for its start node", ErrMissingIdentity, ev.ID)
	}
	endLabel, endKeys, ok := cdc.IdentityOf(e.End.Labels, e.End.Keys)
	if !ok {
		return Query{}, fmt.Errorf("%w: relationship event %s has no keys for its end node", ErrMissingIdentity, ev.ID)
	}

	params := map[string]any{"start": startKeys, "end": endKeys}

	relMatch := "[r:" + quote(e.Type)
	relKeys, hasKeys := e.RelationshipIdentity()
	if hasKeys {
		relMatch += propertyMatch(sortedKeys(relKeys), "$keys")
		params["keys"] = relKeys
	}
	relMatch += "]"

	startNode := keyedNode("startNode", startLabel, startKeys, "start")
	endNode := keyedNode("endNode", endLabel, endKeys, "end")

	if e.Operation == cdc.OperationDelete {
		return Query{Text: "MATCH " + startNode + "-" + relMatch + "->" + endNode + " DELETE r", Parameters: params}, nil
	}

	text := "MATCH " + startNode + " MATCH " + endNode +
		" MERGE (startNode)-" + relMatch + "->(endNode)"

	if e.Operation == cdc.OperationCreate {
		text += " SET r = $properties"
		if hasKeys {
			text += " SET r += $keys"
		}
		params["properties"] = e.AfterProperties()
	} else {
		text += " SET r += $properties"
		params["properties"] = e.PropertyChanges()
	}

	return Query{Text: text, Parameters: params}, nil
}
