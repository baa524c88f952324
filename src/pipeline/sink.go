package pipeline

import (
	"context"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
)

// GraphSink ejecuta un plan: cada grupo de transaccion de forma atomica y en orden de emision.
type GraphSink interface {
	Execute(ctx context.Context, topic string, plan *strategy.Plan) error

	Close(ctx context.Context) error
}

// SinkFactory es la interfaz que debe implementar un factory para crear sinks
type SinkFactory interface {
	CreateSink(topic string) (GraphSink, error)
}

// RejectionReporter recibe los mensajes descartados por tolerancia all.
type RejectionReporter interface {
	Report(ctx context.Context, r Rejection) error
}
