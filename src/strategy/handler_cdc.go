package strategy

import (
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/cdc"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

// cdcTranslator convierte un evento ya decodificado en una query.
type cdcTranslator func(ev *cdc.ChangeEvent) (Query, error)

// handleChangeEvents agrupa por corridas contiguas del mismo txId, en orden de entrega.
func handleChangeEvents(messages []*message.Message, tolerance config.ErrorTolerance,
	validateSequence bool, translate cdcTranslator) (*Plan, error) {

	rej := newRejector(tolerance)
	entries := make([]changeEntry, 0, len(messages))
	skipped := false

	for _, m := range messages {
		meta, query, err := translateMessage(m, translate)
		if err != nil {
			if fatal := rej.reject(m, err); fatal != nil {
				return nil, fatal
			}
			skipped = true
			continue
		}

		txID, seq := meta.TransactionID, meta.SequenceNumber
		entries = append(entries, changeEntry{
			query:    ChangeQuery{TransactionID: &txID, SequenceNumber: &seq, Query: query},
			source:   m,
			boundary: skipped,
		})
		skipped = false
	}

	groups, err := groupByTransaction(entries, validateSequence)
	if err != nil {
		return nil, err
	}

	return &Plan{Transactions: groups, Rejected: rej.rejected}, nil
}

// translateMessage devuelve los metadatos de transaccion del registro y su query. Cualquier
// error pasa por el rejector, que lo asocia al registro.
func translateMessage(m *message.Message, translate cdcTranslator) (message.TxMetadata, Query, error) {
	ev, err := cdc.FromMessage(m)
	if err != nil {
		return message.TxMetadata{}, Query{}, err
	}

	meta, err := m.TransactionMetadata()
	if err != nil {
		return message.TxMetadata{}, Query{}, err
	}

	query, err := translate(ev)
	return meta, query, err
}

// labelsExcept quita de labels los que aparecen en skip, conservando el orden.
func labelsExcept(labels []string, skip ...string) []string {
	var out []string
	for _, l := range labels {
		keep := true
		for _, s := range skip {
			if l == s {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, l)
		}
	}
	return out
}

func setLabels(variable string, labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return " SET " + variable + labelList(labels)
}

func removeLabels(variable string, labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return " REMOVE " + variable + labelList(labels)
}

func finalLabels(e *cdc.Event) []string {
	if e.State.After != nil && len(e.State.After.Labels) > 0 {
		return e.State.After.Labels
	}
	return e.Labels
}
