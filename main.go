package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/app"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
)

func consume() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONNECTOR_CONFIG"))
	if err != nil {
		panic(fmt.Sprintf("error loading config: %v", err))
	}

	observability.NewConnectorMetrics(observability.NewMetricsService().GetRegistry())

	connector, err := app.NewConnector(ctx, cfg, observability.NewLogger(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("error creating connector: %v", err))
	}
	defer connector.Close(ctx)

	if err := connector.Start(ctx); err != nil && ctx.Err() == nil {
		panic(fmt.Sprintf("error starting connector: %v", err))
	}
}

func main() {

	fmt.Println("Starting consumer...")
	consume()
	fmt.Println("Consumer stopped")
}
