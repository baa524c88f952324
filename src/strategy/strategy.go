// Package strategy turns batches of messages from one topic into ordered,
// transactionally grouped graph write queries. Handlers are pure: they never
// log nor perform I/O, every failure is returned to the caller.
package strategy

import (
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

type Strategy string

const (
	StrategyCypher              Strategy = "CYPHER"
	StrategyNodePattern         Strategy = "NODE_PATTERN"
	StrategyRelationshipPattern Strategy = "RELATIONSHIP_PATTERN"
	StrategyCdcSourceID         Strategy = "CDC_SOURCE_ID"
	StrategyCdcSchema           Strategy = "CDC_SCHEMA"
	StrategyCud                 Strategy = "CUD"
)

// Query es una sentencia parametrizada; no se modifica despues de creada.
type Query struct {
	Text       string         `json:"text"`
	Parameters map[string]any `json:"parameters"`
}

// ChangeQuery lleva los metadatos de transaccion solo cuando la query viene de un evento CDC.
type ChangeQuery struct {
	TransactionID  *int64 `json:"txId,omitempty"`
	SequenceNumber *int32 `json:"seq,omitempty"`
	Query          Query  `json:"query"`
}

// Plan es el resultado de Handle: grupos a ejecutar en orden, cada uno de forma atomica,
// y los mensajes descartados bajo la politica de tolerancia.
type Plan struct {
	Transactions [][]ChangeQuery `json:"transactions"`
	Rejected     []*MessageError `json:"-"`
}

func (p *Plan) QueryCount() int {
	n := 0
	for _, tx := range p.Transactions {
		n += len(tx)
	}
	return n
}

type Handler interface {
	Strategy() Strategy
	Handle(messages []*message.Message) (*Plan, error)
}

func newQuery(text string, params map[string]any) ChangeQuery {
	return ChangeQuery{Query: Query{Text: text, Parameters: params}}
}
