package kafka

import (
	"errors"
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/converter"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type KafkaEventType string

const (
	KafkaEventTypeAssignedPartitions KafkaEventType = "assigned_partitions"
	KafkaEventTypeRevokedPartitions  KafkaEventType = "revoked_partitions"
	KafkaEventTypeError              KafkaEventType = "error"
	KafkaEventTypeOther              KafkaEventType = "other"
)

type Topic struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

func NewTopic(name string, partitions int, replicationFactor int) *Topic {
	return &Topic{Name: name, Partitions: partitions, ReplicationFactor: replicationFactor}
}

func (t *Topic) Validate() error {
	if t.Name == "" {
		return errors.New("topic name is required")
	}
	if t.Partitions <= 0 {
		return errors.New("partitions must be greater than 0")
	}
	if t.ReplicationFactor <= 0 {
		return errors.New("replication factor must be greater than 0")
	}
	return nil
}

func (t *Topic) Build() *kafka.TopicSpecification {
	return &kafka.TopicSpecification{
		Topic:             t.Name,
		NumPartitions:     t.Partitions,
		ReplicationFactor: t.ReplicationFactor,
	}
}

// Converters decodifican key y value de cada registro.
type Converters struct {
	Key   converter.Converter
	Value converter.Converter
}

// NewSinkMessage convierte un registro de Kafka en un Message. Si el converter falla se
// devuelve igualmente un Message con key/value crudos para poder reportarlo.
func NewSinkMessage(km *kafka.Message, conv Converters) (*message.Message, error) {
	if km.TopicPartition.Topic == nil {
		return nil, errors.New("topic is nil")
	}

	record := message.Record{
		Topic:     *km.TopicPartition.Topic,
		Partition: km.TopicPartition.Partition,
		Offset:    int64(km.TopicPartition.Offset),
		Timestamp: km.Timestamp,
		Headers:   convertHeaders(km.Headers),
	}

	key, keyErr := conv.Key.Convert(km.Key)
	value, valueErr := conv.Value.Convert(km.Value)

	if keyErr != nil || valueErr != nil {
		record.Key = km.Key
		record.Value = km.Value
		return message.New(record), errors.Join(wrapConversion("key", keyErr), wrapConversion("value", valueErr))
	}

	record.Key = key
	record.Value = value
	return message.New(record), nil
}

func wrapConversion(part string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", part, err)
}

// convertHeaders expone los valores de header como string; un header sin valor queda en nil.
func convertHeaders(headers []kafka.Header) []message.Header {
	if len(headers) == 0 {
		return nil
	}

	out := make([]message.Header, len(headers))
	for i, h := range headers {
		out[i] = message.Header{Key: h.Key}
		if h.Value != nil {
			out[i].Value = string(h.Value)
		}
	}
	return out
}
