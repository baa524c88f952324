package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
)

var (
	ErrMissingIdentity  = errors.New("missing identity property")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrSequenceOrder    = errors.New("sequence number out of order")

	errEmptyStatement = errors.New("cypher statement is empty")
	errNoBindings     = errors.New("at least one message binding must be enabled")
)

// MessageError identifica el registro que fallo, sin importar la politica de errores.
type MessageError struct {
	Topic     string
	Partition int32
	Offset    int64
	Err       error
}

func newMessageError(m *message.Message, err error) *MessageError {
	return &MessageError{Topic: m.Topic(), Partition: m.Partition(), Offset: m.Offset(), Err: err}
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("topic=%s partition=%d offset=%d: %v", e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

type ConfigErrorKind string

const (
	ConfigErrorUnassigned   ConfigErrorKind = "unassigned"
	ConfigErrorCrossDefined ConfigErrorKind = "cross-defined"
	ConfigErrorMismatch     ConfigErrorKind = "mismatch"
	ConfigErrorInvalid      ConfigErrorKind = "invalid"
)

type ConfigError struct {
	Kind   ConfigErrorKind
	Topics []string
	msg    string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.Err)
	}
	return e.msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func unassignedError(topic string) *ConfigError {
	return &ConfigError{
		Kind:   ConfigErrorUnassigned,
		Topics: []string{topic},
		msg:    fmt.Sprintf("topic %q has no sink strategy configured", topic),
	}
}

func crossDefinedError(topics []string) *ConfigError {
	sorted := sortedCopy(topics)
	return &ConfigError{
		Kind:   ConfigErrorCrossDefined,
		Topics: sorted,
		msg:    fmt.Sprintf("topics defined for more than one strategy: [%s]", strings.Join(sorted, ", ")),
	}
}

func mismatchError(declared, configured []string) *ConfigError {
	d, c := sortedCopy(declared), sortedCopy(configured)
	return &ConfigError{
		Kind:   ConfigErrorMismatch,
		Topics: symmetricDifference(d, c),
		msg:    fmt.Sprintf("mismatch: declared=[%s], configured=[%s]", strings.Join(d, ", "), strings.Join(c, ", ")),
	}
}

func invalidError(topic string, err error) *ConfigError {
	return &ConfigError{
		Kind:   ConfigErrorInvalid,
		Topics: []string{topic},
		msg:    fmt.Sprintf("invalid configuration for topic %q", topic),
		Err:    err,
	}
}

// rejector aplica la politica de tolerancia: con none el primer error corta el batch,
// con all el mensaje se aparta y se registra.
type rejector struct {
	tolerance config.ErrorTolerance
	rejected  []*MessageError
}

func newRejector(tolerance config.ErrorTolerance) *rejector {
	return &rejector{tolerance: tolerance}
}

func (r *rejector) reject(m *message.Message, err error) error {
	me := newMessageError(m, err)
	if r.tolerance != config.ErrorToleranceAll {
		return me
	}
	r.rejected = append(r.rejected, me)
	return nil
}

func sortedCopy(items []string) []string {
	out := append([]string{}, items...)
	sort.Strings(out)
	return out
}

func symmetricDifference(a, b []string) []string {
	inA := toSet(a)
	inB := toSet(b)
	var out []string
	for _, x := range a {
		if _, ok := inB[x]; !ok {
			out = append(out, x)
		}
	}
	for _, x := range b {
		if _, ok := inA[x]; !ok {
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, x := range items {
		out[x] = struct{}{}
	}
	return out
}
