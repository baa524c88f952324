package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"golang.org/x/sync/errgroup"
)

type Dispatcher struct {
	workers          map[string]*TopicWorker
	coordinator      *OffsetCoordinator
	logger           observability.Logger
	mu               sync.RWMutex
	sinkFactory      SinkFactory
	resolver         *strategy.Resolver
	reporter         RejectionReporter
	tolerance        config.ErrorTolerance
	workerBufferSize int
	errCh            chan error
}

func NewDispatcher(sinkFactory SinkFactory,
	resolver *strategy.Resolver,
	reporter RejectionReporter,
	tolerance config.ErrorTolerance,
	workerBufferSize int,
	coordinator *OffsetCoordinator,
	logger observability.Logger) *Dispatcher {

	return &Dispatcher{
		workers:          make(map[string]*TopicWorker),
		coordinator:      coordinator,
		logger:           logger,
		mu:               sync.RWMutex{},
		sinkFactory:      sinkFactory,
		resolver:         resolver,
		reporter:         reporter,
		tolerance:        tolerance,
		workerBufferSize: workerBufferSize,
		errCh:            make(chan error, 1),
	}
}

// Errors entrega el primer fallo de cualquier worker; despues de eso el ciclo debe reiniciarse.
func (d *Dispatcher) Errors() <-chan error {
	return d.errCh
}

func (d *Dispatcher) getOrCreateWorker(ctx context.Context, topic string) (*TopicWorker, error) {

	d.mu.RLock()
	worker, exists := d.workers[topic]
	d.mu.RUnlock()

	if exists {
		return worker, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if worker, exists := d.workers[topic]; exists {
		return worker, nil
	}

	handler, ok := d.resolver.Handler(topic)
	if !ok {
		return nil, fmt.Errorf("no strategy resolved for topic %q", topic)
	}

	sink, err := d.sinkFactory.CreateSink(topic)
	if err != nil {
		d.logger.Error(ctx, "Error creating sink", err, "topic", topic)
		return nil, err
	}

	worker = NewTopicWorker(topic, handler, sink, d.coordinator, d.reporter,
		d.tolerance, d.workerBufferSize, d.errCh, d.logger)

	worker.Start(ctx)

	d.workers[topic] = worker

	observability.GetConnectorMetrics().SetWorkerBufferSize(topic, 0)

	d.logger.Info(ctx, "Created new worker",
		"topic", topic, "strategy", string(handler.Strategy()))

	return worker, nil
}

// Dispatch parte los registros por topic conservando el orden y encola cada parte
// en el worker de su topic.
func (d *Dispatcher) Dispatch(ctx context.Context, records []Record) error {

	if len(records) == 0 {
		return nil
	}

	var order []string
	byTopic := make(map[string]*TopicBatch)

	for _, r := range records {
		topic := r.Message.Topic()
		batch, ok := byTopic[topic]
		if !ok {
			batch = &TopicBatch{Topic: topic}
			byTopic[topic] = batch
			order = append(order, topic)
		}
		batch.Records = append(batch.Records, r)
	}

	for _, topic := range order {
		worker, err := d.getOrCreateWorker(ctx, topic)
		if err != nil {
			return err
		}

		if err := worker.Process(ctx, byTopic[topic]); err != nil {
			d.logger.Error(ctx, "Error dispatching batch", err,
				"topic", topic, "records", len(byTopic[topic].Records))
			return err
		}
	}

	return nil
}

// Stop detiene los workers en paralelo y cierra sus sinks.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	for topic, worker := range d.workers {
		topic, worker := topic, worker
		g.Go(func() error {
			worker.Stop(gctx)

			if err := worker.sink.Close(gctx); err != nil {
				d.logger.Error(gctx, "Error closing sink", err, "topic", topic)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	d.workers = make(map[string]*TopicWorker)
	return err
}
