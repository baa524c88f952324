package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/app"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"github.com/spf13/cobra"
)

var (
	configPath string
	properties []string
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyProperties(properties); err != nil {
		return nil, fmt.Errorf("propiedades del sink: %w", err)
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:           "neo4j-connector",
	Short:         "Consume topics de Kafka y los escribe en Neo4j",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Muestra la estrategia asignada a cada topic sin conectarse a nada",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		resolver, err := strategy.NewResolver(cfg.Sink, cfg.Kafka.Topics)
		if err != nil {
			return err
		}

		assignments := resolver.Assignments()
		topics := make([]string, 0, len(assignments))
		for topic := range assignments {
			topics = append(topics, topic)
		}
		sort.Strings(topics)

		for _, topic := range topics {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", topic, assignments[topic])
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "archivo de configuración (json o yaml); por defecto junto al ejecutable")
	rootCmd.PersistentFlags().StringArrayVarP(&properties, "property", "p", nil,
		"propiedad del sink estilo Kafka Connect (key=value, repetible); reemplaza la sección Sink")
	rootCmd.AddCommand(planCmd)
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	logger := observability.NewLogger(cfg.Log)

	metricsService := observability.NewMetricsService()
	observability.NewConnectorMetrics(metricsService.GetRegistry())

	connector, err := app.NewConnector(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "Error creating connector", err)
		return err
	}
	defer connector.Close(ctx)

	httpServer := app.NewHTTPServer(cfg.Server, metricsService, logger, connector.Ready)

	go func() {
		logger.Info(ctx, "Starting metrics server", "port", cfg.Server.HttpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Metrics server error", err, "port", cfg.Server.HttpPort)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info(ctx, "Stopping metrics server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Error stopping metrics server", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	connectorCtx, connectorCancel := context.WithCancel(ctx)
	defer connectorCancel()

	connectorErrChan := make(chan error, 1)
	go func() {
		connectorErrChan <- connector.Start(connectorCtx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info(ctx, "Received termination signal", "signal", sig.String())
		connectorCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		select {
		case err := <-connectorErrChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "Connector stopped with error", err)
			}
		case <-shutdownCtx.Done():
			logger.Warn(ctx, "Timeout waiting for connector to stop", nil)
		}
		return nil

	case err := <-connectorErrChan:
		logger.Error(ctx, "Connector error", err)
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
