package message

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// ErrInvalidState se devuelve cuando se piden metadatos CDC a un mensaje que no es un evento de cambio.
var ErrInvalidState = errors.New("invalid state")

// Campos del sobre CDC que identifican un evento de cambio.
const (
	FieldID    = "id"
	FieldTxID  = "txId"
	FieldSeq   = "seq"
	FieldEvent = "event"
)

type Header struct {
	Key   string
	Value any
}

type TxMetadata struct {
	TransactionID  int64
	SequenceNumber int32
}

// Record son los datos crudos de un registro ya decodificado por el converter.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Key       any
	Value     any
	Headers   []Header
}

// Message es la vista inmutable de un registro entregado por el transporte.
// Key y Value son opacos: el mensaje no los copia, quien lo construye no debe mutarlos despues.
type Message struct {
	topic     string
	partition int32
	offset    int64
	timestamp time.Time
	key       any
	value     any
	headers   []Header

	changeEvent bool
	tx          TxMetadata
}

func New(r Record) *Message {
	m := &Message{
		topic:     r.Topic,
		partition: r.Partition,
		offset:    r.Offset,
		timestamp: r.Timestamp,
		key:       r.Key,
		value:     r.Value,
	}

	if len(r.Headers) > 0 {
		m.headers = make([]Header, len(r.Headers))
		copy(m.headers, r.Headers)
	}

	m.tx, m.changeEvent = deriveTxMetadata(r.Value)

	return m
}

func deriveTxMetadata(value any) (TxMetadata, bool) {
	envelope, ok := value.(map[string]any)
	if !ok {
		return TxMetadata{}, false
	}

	if _, ok := envelope[FieldID]; !ok {
		return TxMetadata{}, false
	}
	if _, ok := envelope[FieldEvent].(map[string]any); !ok {
		return TxMetadata{}, false
	}

	txID, ok := ToInt64(envelope[FieldTxID])
	if !ok {
		return TxMetadata{}, false
	}

	seq, ok := ToInt64(envelope[FieldSeq])
	if !ok || seq < math.MinInt32 || seq > math.MaxInt32 {
		return TxMetadata{}, false
	}

	return TxMetadata{TransactionID: txID, SequenceNumber: int32(seq)}, true
}

func (m *Message) Topic() string { return m.topic }

func (m *Message) Partition() int32 { return m.partition }

func (m *Message) Offset() int64 { return m.offset }

func (m *Message) Timestamp() time.Time { return m.timestamp }

func (m *Message) Key() any { return m.key }

func (m *Message) Value() any { return m.value }

// Headers devuelve una copia de los headers en el orden de entrega.
func (m *Message) Headers() []Header {
	if len(m.headers) == 0 {
		return nil
	}
	out := make([]Header, len(m.headers))
	copy(out, m.headers)
	return out
}

// HeaderMap aplana los headers; si un nombre se repite gana el ultimo.
func (m *Message) HeaderMap() map[string]any {
	out := make(map[string]any, len(m.headers))
	for _, h := range m.headers {
		out[h.Key] = h.Value
	}
	return out
}

func (m *Message) IsTombstone() bool { return m.value == nil }

func (m *Message) IsChangeEvent() bool { return m.changeEvent }

// TransactionMetadata solo es valido para eventos de cambio; comprobar IsChangeEvent antes.
func (m *Message) TransactionMetadata() (TxMetadata, error) {
	if !m.changeEvent {
		return TxMetadata{}, fmt.Errorf("%w: %s is not a change event", ErrInvalidState, m)
	}
	return m.tx, nil
}

// SameRecord compara las coordenadas del registro, no el contenido.
func (m *Message) SameRecord(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.topic == other.topic &&
		m.partition == other.partition &&
		m.offset == other.offset &&
		m.timestamp.Equal(other.timestamp)
}

func (m *Message) String() string {
	return fmt.Sprintf("SinkMessage{topic=%s, partition=%d, offset=%d, timestamp=%s}",
		m.topic, m.partition, m.offset, m.timestamp.UTC().Format(time.RFC3339Nano))
}

// ToInt64 acepta los tipos numericos que producen los converters (json.Number, int*, float integral).
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt64(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
