package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectorMetrics contiene todas las métricas del conector
type ConnectorMetrics struct {
	// Kafka
	messagesConsumed *prometheus.CounterVec
	committedOffset  *prometheus.GaugeVec

	// Estrategias
	messagesRejected *prometheus.CounterVec
	queriesExecuted  *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
	batchFailures    *prometheus.CounterVec

	// Workers
	eventsInProcessByWorker *prometheus.GaugeVec
	workerBufferSize        *prometheus.GaugeVec
}

var (
	metricsInstance *ConnectorMetrics
	metricsOnce     sync.Once
)

// NewConnectorMetrics crea e inicializa las métricas del conector
func NewConnectorMetrics(registry *prometheus.Registry) *ConnectorMetrics {
	metricsOnce.Do(func() {
		metrics := &ConnectorMetrics{
			messagesConsumed: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "connector_messages_consumed_total",
					Help: "Mensajes leídos de Kafka por tópico",
				},
				[]string{"topic"},
			),
			committedOffset: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "connector_committed_offset",
					Help: "Último offset confirmado en Kafka por tópico y partición",
				},
				[]string{"topic", "partition"},
			),
			messagesRejected: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "connector_messages_rejected_total",
					Help: "Mensajes descartados por la estrategia (tolerancia all)",
				},
				[]string{"topic", "strategy"},
			),
			queriesExecuted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "connector_queries_executed_total",
					Help: "Queries Cypher ejecutadas contra Neo4j",
				},
				[]string{"topic", "strategy"},
			),
			batchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "connector_batch_duration_seconds",
					Help:    "Duración de la escritura de un lote en Neo4j",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"topic", "strategy"},
			),
			batchFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "connector_batch_failures_total",
					Help: "Lotes que fallaron al planificarse o escribirse",
				},
				[]string{"topic", "strategy"},
			),
			eventsInProcessByWorker: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "connector_events_in_process_by_worker",
					Help: "Número de mensajes acumulados en el lote actual de cada worker",
				},
				[]string{"worker"},
			),
			workerBufferSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "connector_worker_buffer_size",
					Help: "Tamaño del buffer de cada worker",
				},
				[]string{"worker"},
			),
		}

		registry.MustRegister(
			metrics.messagesConsumed,
			metrics.committedOffset,
			metrics.messagesRejected,
			metrics.queriesExecuted,
			metrics.batchDuration,
			metrics.batchFailures,
			metrics.eventsInProcessByWorker,
			metrics.workerBufferSize,
		)

		metricsInstance = metrics
	})

	return metricsInstance
}

// GetConnectorMetrics retorna la instancia singleton de métricas
func GetConnectorMetrics() *ConnectorMetrics {
	return metricsInstance
}

func (cm *ConnectorMetrics) IncMessagesConsumed(topic string) {
	if cm == nil {
		return
	}
	cm.messagesConsumed.WithLabelValues(topic).Inc()
}

func (cm *ConnectorMetrics) SetCommittedOffset(topic string, partition string, offset int64) {
	if cm == nil {
		return
	}
	cm.committedOffset.WithLabelValues(topic, partition).Set(float64(offset))
}

func (cm *ConnectorMetrics) AddMessagesRejected(topic, strategy string, n int) {
	if cm == nil || n == 0 {
		return
	}
	cm.messagesRejected.WithLabelValues(topic, strategy).Add(float64(n))
}

func (cm *ConnectorMetrics) AddQueriesExecuted(topic, strategy string, n int) {
	if cm == nil || n == 0 {
		return
	}
	cm.queriesExecuted.WithLabelValues(topic, strategy).Add(float64(n))
}

// ObserveBatch registra la duración de un lote escrito
func (cm *ConnectorMetrics) ObserveBatch(topic, strategy string, elapsed time.Duration) {
	if cm == nil {
		return
	}
	cm.batchDuration.WithLabelValues(topic, strategy).Observe(elapsed.Seconds())
}

func (cm *ConnectorMetrics) IncBatchFailures(topic, strategy string) {
	if cm == nil {
		return
	}
	cm.batchFailures.WithLabelValues(topic, strategy).Inc()
}

// SetEventsInProcess actualiza el número de eventos en proceso
func (cm *ConnectorMetrics) SetEventsInProcess(worker string, count float64) {
	if cm == nil {
		return
	}
	cm.eventsInProcessByWorker.WithLabelValues(worker).Set(count)
}

// SetWorkerBufferSize actualiza el tamaño del buffer del worker
func (cm *ConnectorMetrics) SetWorkerBufferSize(worker string, size float64) {
	if cm == nil {
		return
	}
	cm.workerBufferSize.WithLabelValues(worker).Set(size)
}
