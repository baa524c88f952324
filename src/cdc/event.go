// Package cdc models the change events produced by Neo4j change data capture
// (`{id, txId, seq, metadata, event}` envelopes) and decodes them from message values.
package cdc

type EventType string

const (
	EventTypeNode         EventType = "n"
	EventTypeRelationship EventType = "r"
)

type Operation string

const (
	OperationCreate Operation = "c"
	OperationUpdate Operation = "u"
	OperationDelete Operation = "d"
)

// ChangeEvent es el sobre completo de un evento CDC.
type ChangeEvent struct {
	ID       string         `mapstructure:"id"`
	TxID     int64          `mapstructure:"txId"`
	Seq      int32          `mapstructure:"seq"`
	Metadata map[string]any `mapstructure:"metadata"`
	Event    Event          `mapstructure:"event"`
}

type Event struct {
	ElementID string    `mapstructure:"elementId"`
	EventType EventType `mapstructure:"eventType"`
	Operation Operation `mapstructure:"operation"`

	// Nodos
	Labels []string `mapstructure:"labels"`

	// Relaciones
	Type  string   `mapstructure:"type"`
	Start *NodeRef `mapstructure:"start"`
	End   *NodeRef `mapstructure:"end"`

	// Keys llega como label -> []keymap en nodos y como []keymap en relaciones;
	// se normaliza en NodeKeys / RelationshipKeys al decodificar.
	Keys any `mapstructure:"keys"`

	NodeKeys         map[string][]map[string]any `mapstructure:"-"`
	RelationshipKeys []map[string]any            `mapstructure:"-"`

	State State `mapstructure:"state"`
}

type NodeRef struct {
	ElementID string                      `mapstructure:"elementId"`
	Labels    []string                    `mapstructure:"labels"`
	Keys      map[string][]map[string]any `mapstructure:"keys"`
}

type State struct {
	Before *EntityState `mapstructure:"before"`
	After  *EntityState `mapstructure:"after"`
}

type EntityState struct {
	Labels     []string       `mapstructure:"labels"`
	Properties map[string]any `mapstructure:"properties"`
}

func (e *Event) IsNode() bool { return e.EventType == EventTypeNode }

// IdentityOf devuelve el primer conjunto de claves no vacio, recorriendo los labels en orden.
func IdentityOf(labels []string, keys map[string][]map[string]any) (label string, identity map[string]any, ok bool) {
	for _, l := range labels {
		for _, k := range keys[l] {
			if len(k) > 0 {
				return l, k, true
			}
		}
	}
	return "", nil, false
}

// NodeIdentity aplica IdentityOf a los labels del nodo. En un delete el estado after no existe,
// asi que se usan los labels del evento.
func (e *Event) NodeIdentity() (string, map[string]any, bool) {
	return IdentityOf(e.Labels, e.NodeKeys)
}

// RelationshipIdentity devuelve el primer conjunto de claves de la relacion, si hay.
func (e *Event) RelationshipIdentity() (map[string]any, bool) {
	for _, k := range e.RelationshipKeys {
		if len(k) > 0 {
			return k, true
		}
	}
	return nil, false
}

// AddedLabels y RemovedLabels comparan before/after en un update de nodo.
func (e *Event) AddedLabels() []string {
	return labelDiff(labelsOf(e.State.After), labelsOf(e.State.Before))
}

func (e *Event) RemovedLabels() []string {
	return labelDiff(labelsOf(e.State.Before), labelsOf(e.State.After))
}

// PropertyChanges devuelve las propiedades del estado after mas las eliminadas con valor nil.
func (e *Event) PropertyChanges() map[string]any {
	out := make(map[string]any)

	if e.State.After != nil {
		for k, v := range e.State.After.Properties {
			out[k] = v
		}
	}

	if e.State.Before != nil {
		for k := range e.State.Before.Properties {
			if _, ok := out[k]; !ok {
				out[k] = nil
			}
		}
	}

	return out
}

// AfterProperties devuelve las propiedades finales, vacio si no hay estado after.
func (e *Event) AfterProperties() map[string]any {
	if e.State.After == nil || e.State.After.Properties == nil {
		return map[string]any{}
	}
	return e.State.After.Properties
}

func labelsOf(s *EntityState) []string {
	if s == nil {
		return nil
	}
	return s.Labels
}

func labelDiff(a, b []string) []string {
	var out []string
	for _, l := range a {
		found := false
		for _, x := range b {
			if x == l {
				found = true
				break
			}
		}
		if !found {
			out = append(out, l)
		}
	}
	return out
}
