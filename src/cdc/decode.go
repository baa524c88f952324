package cdc

import (
	"errors"
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/mitchellh/mapstructure"
)

var (
	ErrNotChangeEvent       = errors.New("message is not a change event")
	ErrMalformedChangeEvent = errors.New("malformed change event")
)

// FromMessage decodifica el valor de un mensaje que ya se sabe que es un evento de cambio.
func FromMessage(m *message.Message) (*ChangeEvent, error) {
	if !m.IsChangeEvent() {
		return nil, fmt.Errorf("%w: %s", ErrNotChangeEvent, m)
	}
	return Decode(m.Value())
}

func Decode(value any) (*ChangeEvent, error) {
	var ev ChangeEvent

	if err := decodeInto(value, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChangeEvent, err)
	}

	if err := normalizeKeys(&ev.Event); err != nil {
		return nil, fmt.Errorf("%w: keys: %v", ErrMalformedChangeEvent, err)
	}

	if err := validate(&ev.Event); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedChangeEvent, err.Error())
	}

	return &ev, nil
}

func decodeInto(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func normalizeKeys(e *Event) error {
	if e.Keys == nil {
		return nil
	}

	if e.EventType == EventTypeNode {
		return decodeInto(e.Keys, &e.NodeKeys)
	}

	// versiones antiguas de CDC envian un unico mapa para las claves de la relacion
	if single, ok := e.Keys.(map[string]any); ok {
		e.RelationshipKeys = []map[string]any{single}
		return nil
	}
	return decodeInto(e.Keys, &e.RelationshipKeys)
}

func validate(e *Event) error {
	switch e.EventType {
	case EventTypeNode, EventTypeRelationship:
	default:
		return fmt.Errorf("unknown event type %q", e.EventType)
	}

	switch e.Operation {
	case OperationCreate:
		if e.State.After == nil {
			return errors.New("create without after state")
		}
	case OperationUpdate:
		if e.State.Before == nil || e.State.After == nil {
			return errors.New("update requires before and after state")
		}
	case OperationDelete:
		if e.State.Before == nil {
			return errors.New("delete without before state")
		}
	default:
		return fmt.Errorf("unknown operation %q", e.Operation)
	}

	if e.EventType == EventTypeRelationship {
		if e.Type == "" {
			return errors.New("relationship event without type")
		}
		if e.Start == nil || e.End == nil {
			return errors.New("relationship event without start or end node")
		}
	}

	return nil
}
