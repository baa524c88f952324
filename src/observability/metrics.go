package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService maneja el registro de Prometheus del conector
type MetricsService struct {
	registry *prometheus.Registry
}

// NewMetricsService crea el registro con las métricas estándar de Go y del proceso
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &MetricsService{
		registry: registry,
	}
}

// GetRegistry retorna el registro donde se agregan las métricas del conector
func (ms *MetricsService) GetRegistry() *prometheus.Registry {
	return ms.registry
}

// Handler sirve el registro en formato OpenMetrics para /metrics.
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
