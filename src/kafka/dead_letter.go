package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pipeline"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/goccy/go-json"
)

type recordProducer interface {
	ProduceRecordSync(ctx context.Context, topic string, key []byte, value []byte, headers []kafka.Header) error
}

// DeadLetterProducer reenvia los mensajes descartados a un topic de errores, con las
// coordenadas de origen y el motivo en headers.
type DeadLetterProducer struct {
	topic    string
	producer recordProducer
	logger   observability.Logger
}

func NewDeadLetterProducer(topic string, producer recordProducer, logger observability.Logger) *DeadLetterProducer {
	return &DeadLetterProducer{topic: topic, producer: producer, logger: logger}
}

func (d *DeadLetterProducer) Report(ctx context.Context, r pipeline.Rejection) error {
	var key, value []byte
	var headers []kafka.Header

	if r.Message != nil {
		var err error
		if key, err = encodePayload(r.Message.Key()); err != nil {
			return fmt.Errorf("encode dead letter key: %w", err)
		}
		if value, err = encodePayload(r.Message.Value()); err != nil {
			return fmt.Errorf("encode dead letter value: %w", err)
		}
		headers = originalHeaders(r.Message.Headers())
	}

	headers = append(headers,
		kafka.Header{Key: HeaderErrorTopic, Value: []byte(r.Err.Topic)},
		kafka.Header{Key: HeaderErrorPartition, Value: []byte(strconv.FormatInt(int64(r.Err.Partition), 10))},
		kafka.Header{Key: HeaderErrorOffset, Value: []byte(strconv.FormatInt(r.Err.Offset, 10))},
		kafka.Header{Key: HeaderErrorMessage, Value: []byte(r.Err.Err.Error())},
		kafka.Header{Key: HeaderErrorStrategy, Value: []byte(r.Strategy)},
	)

	if err := d.producer.ProduceRecordSync(ctx, d.topic, key, value, headers); err != nil {
		d.logger.Error(ctx, "Error enviando a dead letter queue", err,
			"dlq", d.topic, "topic", r.Err.Topic, "offset", r.Err.Offset)
		return err
	}

	d.logger.Debug(ctx, "Mensaje enviado a dead letter queue",
		"dlq", d.topic, "topic", r.Err.Topic, "partition", r.Err.Partition, "offset", r.Err.Offset)

	return nil
}

// encodePayload devuelve bytes y strings tal cual y serializa como JSON el resto.
func encodePayload(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return json.Marshal(t)
	}
}

func originalHeaders(headers []message.Header) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+5)
	for _, h := range headers {
		kh := kafka.Header{Key: h.Key}
		if h.Value != nil {
			kh.Value = []byte(fmt.Sprint(h.Value))
		}
		out = append(out, kh)
	}
	return out
}
