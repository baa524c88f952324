package pipeline

import (
	"context"
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/strategy"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jSinkFactory comparte un unico driver entre los sinks de todos los topics.
type Neo4jSinkFactory struct {
	driver   neo4j.DriverWithContext
	database string
	logger   observability.Logger
}

func NewNeo4jSinkFactory(ctx context.Context, cfg config.Neo4jConfig, logger observability.Logger) (*Neo4jSinkFactory, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity %s: %w", cfg.URI, err)
	}

	logger.Info(ctx, "Conectado a Neo4j", "uri", cfg.URI, "database", cfg.Database)

	return &Neo4jSinkFactory{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (f *Neo4jSinkFactory) CreateSink(topic string) (GraphSink, error) {
	return &Neo4jSink{driver: f.driver, database: f.database, logger: f.logger}, nil
}

func (f *Neo4jSinkFactory) Close(ctx context.Context) error {
	return f.driver.Close(ctx)
}

type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
	logger   observability.Logger
}

// Execute corre cada grupo en su propia transaccion gestionada (con reintentos del driver),
// en orden; el primer grupo que falla corta el plan.
func (s *Neo4jSink) Execute(ctx context.Context, topic string, plan *strategy.Plan) error {
	if plan == nil || len(plan.Transactions) == 0 {
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	for i, group := range plan.Transactions {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return nil, runGroup(ctx, tx, group)
		})
		if err != nil {
			return fmt.Errorf("transaction %d of %d: %w", i+1, len(plan.Transactions), err)
		}
	}

	s.logger.Trace(ctx, "Plan aplicado en Neo4j", "topic", topic,
		"transactions", len(plan.Transactions), "queries", plan.QueryCount())

	return nil
}

type queryRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

func runGroup(ctx context.Context, tx queryRunner, group []strategy.ChangeQuery) error {
	for _, q := range group {
		result, err := tx.Run(ctx, q.Query.Text, q.Query.Parameters)
		if err != nil {
			return describe(q, err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return describe(q, err)
		}
	}
	return nil
}

func describe(q strategy.ChangeQuery, err error) error {
	if q.TransactionID != nil {
		return fmt.Errorf("txId=%d seq=%d: %w", *q.TransactionID, *q.SequenceNumber, err)
	}
	return err
}

func (s *Neo4jSink) Close(ctx context.Context) error {
	return nil
}
