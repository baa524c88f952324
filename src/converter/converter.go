// Package converter transforma los bytes crudos de key/value de Kafka en los valores
// estructurados que consumen las estrategias.
package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro"
)

var ErrConversion = errors.New("conversion error")

// confluentMagicByte abre el prefijo de 5 bytes (magic + schema id) del schema registry.
const confluentMagicByte = 0

// Converter decodifica un key o value. Un payload nil (tombstone) siempre produce nil.
type Converter interface {
	Convert(data []byte) (any, error)
}

func New(cfg config.ConverterConfig) (Converter, error) {
	switch cfg.Type {
	case config.ConverterJSON, "":
		return JSONConverter{}, nil
	case config.ConverterString:
		return StringConverter{}, nil
	case config.ConverterBytes:
		return BytesConverter{}, nil
	case config.ConverterAvro:
		return NewAvroConverter(cfg)
	default:
		return nil, fmt.Errorf("converter desconocido: %q", cfg.Type)
	}
}

type JSONConverter struct{}

func (JSONConverter) Convert(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrConversion, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: json: trailing data after value", ErrConversion)
	}

	return normalizeNumbers(v), nil
}

// normalizeNumbers cambia json.Number por int64 o float64; el driver de Neo4j mandaria
// json.Number como string.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}

type StringConverter struct{}

func (StringConverter) Convert(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}

type BytesConverter struct{}

func (BytesConverter) Convert(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// AvroConverter decodifica con un schema fijo. Con ConfluentWireFormat se descarta el
// prefijo del schema registry; el schema id no se resuelve contra el registry.
type AvroConverter struct {
	codec     *goavro.Codec
	confluent bool
}

func NewAvroConverter(cfg config.ConverterConfig) (*AvroConverter, error) {
	schema := cfg.Schema
	if schema == "" {
		raw, err := os.ReadFile(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("error leyendo schema avro %s: %w", cfg.SchemaFile, err)
		}
		schema = string(raw)
	}

	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("schema avro invalido: %w", err)
	}

	return &AvroConverter{codec: codec, confluent: cfg.ConfluentWireFormat}, nil
}

func (c *AvroConverter) Convert(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}

	if c.confluent {
		if len(data) < 5 || data[0] != confluentMagicByte {
			return nil, fmt.Errorf("%w: avro: missing confluent wire format prefix", ErrConversion)
		}
		data = data[5:]
	}

	native, rest, err := c.codec.NativeFromBinary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: avro: %v", ErrConversion, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: avro: %d trailing bytes", ErrConversion, len(rest))
	}

	return native, nil
}
