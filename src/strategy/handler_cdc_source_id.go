package strategy

import (
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/cdc"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

// CdcSourceIDHandler replica eventos CDC correlacionando entidades por un id sintetico
// (el elementId de origen) guardado en una propiedad y label configurables.
type CdcSourceIDHandler struct {
	topic            string
	labelName        string
	propertyName     string
	tolerance        config.ErrorTolerance
	validateSequence bool
}

func NewCdcSourceIDHandler(topic string, cfg config.SinkConfig) *CdcSourceIDHandler {
	return &CdcSourceIDHandler{
		topic:            topic,
		labelName:        cfg.Cdc.SourceIDLabelName,
		propertyName:     cfg.Cdc.SourceIDPropertyName,
		tolerance:        cfg.ErrorTolerance,
		validateSequence: cfg.Cdc.ValidateSequence,
	}
}

func (h *CdcSourceIDHandler) Strategy() Strategy { return StrategyCdcSourceID }

func (h *CdcSourceIDHandler) Handle(messages []*message.Message) (*Plan, error) {
	return handleChangeEvents(messages, h.tolerance, h.validateSequence, h.translate)
}

func (h *CdcSourceIDHandler) nodeRef(variable, param string) string {
	return "(" + variable + ":" + quote(h.labelName) + " {" + quote(h.propertyName) + ": $" + param + "})"
}

func (h *CdcSourceIDHandler) translate(ev *cdc.ChangeEvent) (Query, error) {
	e := &ev.Event

	if e.ElementID == "" {
		return Query{}, fmt.Errorf("%w: change event %s has no elementId", ErrMalformedPayload, ev.ID)
	}

	prop := quote(h.propertyName)

	if e.IsNode() {
		node := h.nodeRef("n", "id")

		switch e.Operation {
		case cdc.OperationCreate:
			text := "MERGE " + node +
				" SET n = $properties SET n." + prop + " = $id" +
				setLabels("n", labelsExcept(finalLabels(e), h.labelName))
			return Query{Text: text, Parameters: map[string]any{"id": e.ElementID, "properties": e.AfterProperties()}}, nil

		case cdc.OperationUpdate:
			text := "MERGE " + node +
				" SET n += $properties" +
				setLabels("n", labelsExcept(e.AddedLabels(), h.labelName)) +
				removeLabels("n", labelsExcept(e.RemovedLabels(), h.labelName))
			props := e.PropertyChanges()
			delete(props, h.propertyName)
			return Query{Text: text, Parameters: map[string]any{"id": e.ElementID, "properties": props}}, nil

		default:
			return Query{
				Text:       "MATCH " + node + " DETACH DELETE n",
				Parameters: map[string]any{"id": e.ElementID},
			}, nil
		}
	}

	relType := quote(e.Type)

	if e.Operation == cdc.OperationDelete {
		return Query{
			Text:       "MATCH ()-[r:" + relType + " {" + prop + ": $id}]->() DELETE r",
			Parameters: map[string]any{"id": e.ElementID},
		}, nil
	}

	if e.Start.ElementID == "" || e.End.ElementID == "" {
		return Query{}, fmt.Errorf("%w: relationship event %s is missing endpoint elementIds", ErrMalformedPayload, ev.ID)
	}

	text := "MERGE " + h.nodeRef("startNode", "start") +
		" MERGE " + h.nodeRef("endNode", "end") +
		" MERGE (startNode)-[r:" + relType + " {" + prop + ": $id}]->(endNode)"

	props := e.AfterProperties()
	if e.Operation == cdc.OperationCreate {
		text += " SET r = $properties SET r." + prop + " = $id"
	} else {
		text += " SET r += $properties"
		props = e.PropertyChanges()
		delete(props, h.propertyName)
	}

	return Query{Text: text, Parameters: map[string]any{
		"id":         e.ElementID,
		"start":      e.Start.ElementID,
		"end":        e.End.ElementID,
		"properties": props,
	}}, nil
}
