// Package pattern compiles declarative node and relationship patterns such as
//
//	(:Person:Customer{!id, name, surname})
//	(:User{!userId})-[:BOUGHT{price, currency}]->(:Product{!productId})
//
// into identity and property specs used to build MERGE statements.
package pattern

import (
	"errors"
	"strings"
)

var ErrSyntax = errors.New("invalid pattern")

// Prefijos de ruta que eligen explicitamente de donde se lee un campo del mensaje.
const (
	KeyPrefix   = "__key."
	ValuePrefix = "__value."
)

type Kind int

const (
	KindNode Kind = iota
	KindRelationship
)

func (k Kind) String() string {
	if k == KindRelationship {
		return "relationship"
	}
	return "node"
}

// Property asocia una propiedad del grafo con la ruta del campo en el mensaje.
type Property struct {
	Name string
	Path string
}

// Source devuelve de donde se lee la propiedad y la ruta sin prefijo.
func (p Property) Source() (source string, path string) {
	switch {
	case strings.HasPrefix(p.Path, KeyPrefix):
		return "key", strings.TrimPrefix(p.Path, KeyPrefix)
	case strings.HasPrefix(p.Path, ValuePrefix):
		return "value", strings.TrimPrefix(p.Path, ValuePrefix)
	default:
		return "", p.Path
	}
}

// Entity es la parte {...} de un nodo o relacion.
type Entity struct {
	Keys       []Property
	Properties []Property
	Excluded   []string
	Wildcard   bool
}

// IncludesAll indica si se copian todos los campos del valor (menos identidades y exclusiones).
// defaultAll aplica cuando el patron no lista ninguna propiedad.
func (e *Entity) IncludesAll(defaultAll bool) bool {
	if e.Wildcard || len(e.Excluded) > 0 {
		return true
	}
	return defaultAll && len(e.Properties) == 0
}

func (e *Entity) IsExcluded(name string) bool {
	for _, x := range e.Excluded {
		if x == name {
			return true
		}
	}
	return false
}

type Node struct {
	Labels []string
	Entity
}

type Relationship struct {
	Type  string
	Start *Node
	End   *Node
	Entity
}

// Pattern es el resultado de Compile; solo uno de Node o Relationship esta definido.
type Pattern struct {
	Kind         Kind
	Text         string
	Node         *Node
	Relationship *Relationship
}

func Compile(text string) (*Pattern, error) {
	p := &parser{text: text}

	p.skipSpace()
	first, err := p.parseNode()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.eof() {
		if err := p.validate(&first.Entity, true, "node"); err != nil {
			return nil, err
		}
		return &Pattern{Kind: KindNode, Text: text, Node: first}, nil
	}

	rel, err := p.parseRelationship(first)
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input")
	}

	if err := p.validate(&rel.Start.Entity, true, "start node"); err != nil {
		return nil, err
	}
	if err := p.validate(&rel.End.Entity, true, "end node"); err != nil {
		return nil, err
	}
	if err := p.validate(&rel.Entity, false, "relationship"); err != nil {
		return nil, err
	}

	return &Pattern{Kind: KindRelationship, Text: text, Relationship: rel}, nil
}

func CompileNode(text string) (*Node, error) {
	p, err := Compile(text)
	if err != nil {
		return nil, err
	}
	if p.Kind != KindNode {
		return nil, (&parser{text: text}).errorf("expected a node pattern, got a relationship pattern")
	}
	return p.Node, nil
}

func CompileRelationship(text string) (*Relationship, error) {
	p, err := Compile(text)
	if err != nil {
		return nil, err
	}
	if p.Kind != KindRelationship {
		return nil, (&parser{text: text}).errorf("expected a relationship pattern, got a node pattern")
	}
	return p.Relationship, nil
}
