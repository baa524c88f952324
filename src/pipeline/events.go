package pipeline

import (
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
)

// Record es lo que entrega el transporte: el mensaje ya convertido o, si el converter fallo,
// el mensaje con key/value crudos y el error de conversion.
type Record struct {
	Message *message.Message
	Err     error
}

// TopicBatch es el lote de un topic que procesa su worker, en orden de entrega.
type TopicBatch struct {
	Topic   string
	Records []Record
}

// PartitionOffset es el offset mas alto procesado (o a confirmar) de una particion.
type PartitionOffset struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Rejection es un mensaje descartado bajo tolerancia all, con sus coordenadas y el motivo.
type Rejection struct {
	Strategy strategy.Strategy
	Message  *message.Message
	Err      *strategy.MessageError
}
