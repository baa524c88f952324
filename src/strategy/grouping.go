package strategy

import (
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

// chunk parte items en grupos de como mucho size elementos, conservando el orden.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}

	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// changeEntry es una query CDC junto al mensaje que la origino. boundary marca que antes
// de ella se aparto un mensaje rechazado, asi que no puede unirse al grupo anterior.
type changeEntry struct {
	query    ChangeQuery
	source   *message.Message
	boundary bool
}

// groupByTransaction corta un nuevo grupo cada vez que cambia el txId. Un txId que reaparece
// despues de otro abre un grupo nuevo, nunca se une al anterior.
func groupByTransaction(entries []changeEntry, validateSequence bool) ([][]ChangeQuery, error) {
	var groups [][]ChangeQuery

	for _, e := range entries {
		q := e.query
		n := len(groups)
		if n > 0 && !e.boundary && *groups[n-1][0].TransactionID == *q.TransactionID {
			if validateSequence {
				prev := groups[n-1][len(groups[n-1])-1]
				if *q.SequenceNumber <= *prev.SequenceNumber {
					return nil, newMessageError(e.source, fmt.Errorf("%w: txId=%d seq %d after %d",
						ErrSequenceOrder, *q.TransactionID, *q.SequenceNumber, *prev.SequenceNumber))
				}
			}
			groups[n-1] = append(groups[n-1], q)
			continue
		}
		groups = append(groups, []ChangeQuery{q})
	}

	return groups, nil
}
