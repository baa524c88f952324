package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
)

var ErrWorkerStopped = errors.New("worker stopped")

// TopicWorker procesa los lotes de un unico topic, uno a la vez y en orden de llegada.
type TopicWorker struct {
	topic       string
	handler     strategy.Handler
	sink        GraphSink
	coordinator *OffsetCoordinator
	reporter    RejectionReporter
	tolerance   config.ErrorTolerance
	batchCh     chan *TopicBatch
	errCh       chan<- error
	wg          sync.WaitGroup
	stopCh      chan struct{}
	stopOnce    sync.Once
	observability.Logger
}

func NewTopicWorker(topic string,
	handler strategy.Handler,
	sink GraphSink,
	coordinator *OffsetCoordinator,
	reporter RejectionReporter,
	tolerance config.ErrorTolerance,
	bufferSize int,
	errCh chan<- error,
	logger observability.Logger) *TopicWorker {

	return &TopicWorker{
		topic:       topic,
		handler:     handler,
		sink:        sink,
		coordinator: coordinator,
		reporter:    reporter,
		tolerance:   tolerance,
		batchCh:     make(chan *TopicBatch, bufferSize),
		errCh:       errCh,
		wg:          sync.WaitGroup{},
		stopCh:      make(chan struct{}),
		Logger:      logger,
	}
}

func (tw *TopicWorker) strategyName() string {
	return string(tw.handler.Strategy())
}

func (tw *TopicWorker) processBatch(ctx context.Context, batch *TopicBatch) error {

	if batch == nil || len(batch.Records) == 0 {
		return nil
	}

	metrics := observability.GetConnectorMetrics()
	start := time.Now()

	messages := make([]*message.Message, 0, len(batch.Records))
	var rejections []Rejection

	for _, r := range batch.Records {
		if r.Err == nil {
			messages = append(messages, r.Message)
			continue
		}

		msgErr := &strategy.MessageError{
			Topic:     r.Message.Topic(),
			Partition: r.Message.Partition(),
			Offset:    r.Message.Offset(),
			Err:       r.Err,
		}
		if tw.tolerance != config.ErrorToleranceAll {
			return msgErr
		}
		rejections = append(rejections, Rejection{Strategy: tw.handler.Strategy(), Message: r.Message, Err: msgErr})
	}

	plan, err := tw.handler.Handle(messages)
	if err != nil {
		return fmt.Errorf("handle %s batch: %w", tw.strategyName(), err)
	}

	rejections = append(rejections, tw.rejectionsOf(plan, messages)...)

	for _, rej := range rejections {
		tw.Warn(ctx, "Mensaje descartado", rej.Err,
			"topic", rej.Err.Topic, "partition", rej.Err.Partition, "offset", rej.Err.Offset)

		if tw.reporter != nil {
			if err := tw.reporter.Report(ctx, rej); err != nil {
				return fmt.Errorf("report rejection: %w", err)
			}
		}
	}
	metrics.AddMessagesRejected(tw.topic, tw.strategyName(), len(rejections))

	tw.Trace(ctx, "Ejecutando plan", "topic", tw.topic,
		"transactions", len(plan.Transactions), "queries", plan.QueryCount())

	if err := tw.sink.Execute(ctx, tw.topic, plan); err != nil {
		return fmt.Errorf("execute %s plan: %w", tw.strategyName(), err)
	}

	metrics.AddQueriesExecuted(tw.topic, tw.strategyName(), plan.QueryCount())
	metrics.ObserveBatch(tw.topic, tw.strategyName(), time.Since(start))

	for _, po := range highestOffsets(batch.Records) {
		tw.coordinator.ReportOffset(po.Topic, po.Partition, po.Offset)
	}

	return nil
}

// rejectionsOf une cada MessageError del plan con su mensaje original.
func (tw *TopicWorker) rejectionsOf(plan *strategy.Plan, messages []*message.Message) []Rejection {
	if len(plan.Rejected) == 0 {
		return nil
	}

	byOffset := make(map[partitionKey]map[int64]*message.Message)
	for _, m := range messages {
		key := partitionKey{topic: m.Topic(), partition: m.Partition()}
		if byOffset[key] == nil {
			byOffset[key] = make(map[int64]*message.Message)
		}
		byOffset[key][m.Offset()] = m
	}

	out := make([]Rejection, 0, len(plan.Rejected))
	for _, me := range plan.Rejected {
		m := byOffset[partitionKey{topic: me.Topic, partition: me.Partition}][me.Offset]
		out = append(out, Rejection{Strategy: tw.handler.Strategy(), Message: m, Err: me})
	}
	return out
}

func highestOffsets(records []Record) []PartitionOffset {
	var out []PartitionOffset
	index := make(map[partitionKey]int)

	for _, r := range records {
		m := r.Message
		key := partitionKey{topic: m.Topic(), partition: m.Partition()}
		if i, ok := index[key]; ok {
			if m.Offset() > out[i].Offset {
				out[i].Offset = m.Offset()
			}
			continue
		}
		index[key] = len(out)
		out = append(out, PartitionOffset{Topic: key.topic, Partition: key.partition, Offset: m.Offset()})
	}
	return out
}

func (tw *TopicWorker) run(ctx context.Context) {
	defer tw.wg.Done()

	ctx = tw.AddFieldsToContext(ctx, map[string]string{"worker": tw.topic, "strategy": tw.strategyName()})

	metrics := observability.GetConnectorMetrics()

	for {
		select {
		case <-ctx.Done():
			tw.Info(ctx, "TopicWorker stopped by context done", "topic", tw.topic)
			return
		case <-tw.stopCh:
			tw.Info(ctx, "TopicWorker stopped by stop channel", "topic", tw.topic)
			return
		case batch := <-tw.batchCh:
			metrics.SetWorkerBufferSize(tw.topic, float64(tw.PendingBatches()))
			metrics.SetEventsInProcess(tw.topic, float64(len(batch.Records)))

			err := tw.processBatch(ctx, batch)
			metrics.SetEventsInProcess(tw.topic, 0)

			if err != nil {
				metrics.IncBatchFailures(tw.topic, tw.strategyName())
				tw.Error(ctx, "Error processing batch", err,
					"topic", tw.topic, "records", len(batch.Records))

				// un lote fallido detiene el worker; lo no confirmado se vuelve a entregar
				tw.stopOnce.Do(func() {
					close(tw.stopCh)
				})
				select {
				case tw.errCh <- fmt.Errorf("topic %s: %w", tw.topic, err):
				default:
				}
				return
			}

			tw.Trace(ctx, "Lote procesado", "topic", tw.topic, "records", len(batch.Records))
		}
	}
}

func (tw *TopicWorker) Start(ctx context.Context) {
	tw.wg.Add(1)
	go tw.run(ctx)
}

// Stop detiene el worker y espera a que termine el lote en curso.
func (tw *TopicWorker) Stop(ctx context.Context) {
	tw.stopOnce.Do(func() {
		close(tw.stopCh)
	})
	tw.wg.Wait()
}

func (tw *TopicWorker) Process(ctx context.Context, batch *TopicBatch) error {

	select {
	case <-tw.stopCh:
		return ErrWorkerStopped
	default:
	}

	// con el buffer lleno se bloquea: es la contrapresion sobre el poll
	select {
	case tw.batchCh <- batch:
		observability.GetConnectorMetrics().SetWorkerBufferSize(tw.topic, float64(tw.PendingBatches()))
		return nil
	case <-tw.stopCh:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingBatches es la cantidad de lotes encolados que el worker aun no tomo.
func (tw *TopicWorker) PendingBatches() int {
	return len(tw.batchCh)
}
