package app

import (
	"fmt"
	"net/http"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/gin-gonic/gin"
)

// NewHTTPServer expone /metrics, /health y /ready. ready puede ser nil mientras el
// conector no exista todavia.
func NewHTTPServer(cfg config.ServerConfig,
	metrics *observability.MetricsService,
	logger *observability.ZerologLogger,
	ready func() bool) *http.Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.GinMiddleware(logger))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if ready == nil || !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "starting",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HttpPort),
		Handler: router,
	}
}
