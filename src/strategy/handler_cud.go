package strategy

import (
	"fmt"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/message"
	"github.com/mitchellh/mapstructure"
)

const (
	cudTypeNode         = "node"
	cudTypeRelationship = "relationship"

	cudOpCreate = "create"
	cudOpMerge  = "merge"
	cudOpUpdate = "update"
	cudOpDelete = "delete"
	cudOpMatch  = "match"
)

// cudOperation es el descriptor que trae el mensaje; no se infiere nada fuera de el.
type cudOperation struct {
	Type       string         `mapstructure:"type"`
	Op         string         `mapstructure:"op"`
	Labels     []string       `mapstructure:"labels"`
	IDs        map[string]any `mapstructure:"ids"`
	Properties map[string]any `mapstructure:"properties"`
	Detach     bool           `mapstructure:"detach"`
	RelType    string         `mapstructure:"rel_type"`
	From       *cudNode       `mapstructure:"from"`
	To         *cudNode       `mapstructure:"to"`
}

type cudNode struct {
	Labels []string       `mapstructure:"labels"`
	IDs    map[string]any `mapstructure:"ids"`
	Op     string         `mapstructure:"op"`
}

// CudHandler aplica operaciones create/merge/update/delete descritas directamente en el mensaje.
type CudHandler struct {
	topic     string
	batchSize int
	tolerance config.ErrorTolerance
}

func NewCudHandler(topic string, cfg config.SinkConfig) *CudHandler {
	return &CudHandler{topic: topic, batchSize: cfg.BatchSize, tolerance: cfg.ErrorTolerance}
}

func (h *CudHandler) Strategy() Strategy { return StrategyCud }

func (h *CudHandler) Handle(messages []*message.Message) (*Plan, error) {
	rej := newRejector(h.tolerance)
	queries := make([]ChangeQuery, 0, len(messages))

	for _, m := range messages {
		q, err := cudQuery(m.Value())
		if err != nil {
			if fatal := rej.reject(m, err); fatal != nil {
				return nil, fatal
			}
			continue
		}
		queries = append(queries, ChangeQuery{Query: q})
	}

	plan := &Plan{Rejected: rej.rejected}
	for _, batch := range chunk(queries, h.batchSize) {
		plan.Transactions = append(plan.Transactions, batch)
	}
	return plan, nil
}

func decodeCud(value any) (*cudOperation, error) {
	if _, ok := value.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: cud operation must be a structured value, got %T", ErrMalformedPayload, value)
	}

	var op cudOperation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &op, WeaklyTypedInput: true})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	op.Type = strings.ToLower(op.Type)
	op.Op = strings.ToLower(op.Op)
	if op.Properties == nil {
		op.Properties = map[string]any{}
	}
	return &op, nil
}

func cudQuery(value any) (Query, error) {
	op, err := decodeCud(value)
	if err != nil {
		return Query{}, err
	}

	switch op.Type {
	case cudTypeNode:
		return cudNodeQuery(op)
	case cudTypeRelationship:
		return cudRelationshipQuery(op)
	default:
		return Query{}, fmt.Errorf("%w: unknown cud type %q", ErrMalformedPayload, op.Type)
	}
}

func cudNodeQuery(op *cudOperation) (Query, error) {
	if op.Op != cudOpCreate && len(op.IDs) == 0 {
		return Query{}, fmt.Errorf("%w: cud %s on node requires ids", ErrMalformedPayload, op.Op)
	}

	node := "(n" + labelList(op.Labels) + propertyMatch(sortedKeys(op.IDs), "$keys") + ")"
	params := map[string]any{"keys": op.IDs, "properties": op.Properties}

	switch op.Op {
	case cudOpCreate:
		text := "CREATE (n" + labelList(op.Labels) + ") SET n = $properties"
		if len(op.IDs) > 0 {
			text += " SET n += $keys"
		}
		return Query{Text: text, Parameters: params}, nil
	case cudOpMerge:
		return Query{Text: "MERGE " + node + " SET n += $properties", Parameters: params}, nil
	case cudOpUpdate:
		return Query{Text: "MATCH " + node + " SET n += $properties", Parameters: params}, nil
	case cudOpDelete:
		del := "DELETE n"
		if op.Detach {
			del = "DETACH DELETE n"
		}
		return Query{Text: "MATCH " + node + " " + del, Parameters: map[string]any{"keys": op.IDs}}, nil
	default:
		return Query{}, fmt.Errorf("%w: unknown cud operation %q", ErrMalformedPayload, op.Op)
	}
}

func cudEndpoint(variable, param string, n *cudNode) (string, error) {
	if n == nil || len(n.IDs) == 0 {
		return "", fmt.Errorf("%w: relationship %s node requires ids", ErrMalformedPayload, param)
	}

	clause := "MATCH"
	switch strings.ToLower(n.Op) {
	case "", cudOpMatch:
	case cudOpMerge:
		clause = "MERGE"
	default:
		return "", fmt.Errorf("%w: unknown %s node operation %q", ErrMalformedPayload, param, n.Op)
	}

	return clause + " (" + variable + labelList(n.Labels) + propertyMatch(sortedKeys(n.IDs), "$"+param) + ")", nil
}

func cudRelationshipQuery(op *cudOperation) (Query, error) {
	if op.RelType == "" {
		return Query{}, fmt.Errorf("%w: cud relationship requires rel_type", ErrMalformedPayload)
	}

	start, err := cudEndpoint("startNode", "from", op.From)
	if err != nil {
		return Query{}, err
	}
	end, err := cudEndpoint("endNode", "to", op.To)
	if err != nil {
		return Query{}, err
	}

	params := map[string]any{"from": op.From.IDs, "to": op.To.IDs}
	rel := "[r:" + quote(op.RelType) + propertyMatch(sortedKeys(op.IDs), "$keys") + "]"
	if len(op.IDs) > 0 {
		params["keys"] = op.IDs
	}
	prefix := start + " " + end + " "

	switch op.Op {
	case cudOpCreate:
		params["properties"] = op.Properties
		return Query{Text: prefix + "CREATE (startNode)-[r:" + quote(op.RelType) + "]->(endNode) SET r = $properties", Parameters: params}, nil
	case cudOpMerge:
		params["properties"] = op.Properties
		return Query{Text: prefix + "MERGE (startNode)-" + rel + "->(endNode) SET r += $properties", Parameters: params}, nil
	case cudOpUpdate:
		params["properties"] = op.Properties
		return Query{Text: prefix + "MATCH (startNode)-" + rel + "->(endNode) SET r += $properties", Parameters: params}, nil
	case cudOpDelete:
		return Query{Text: prefix + "MATCH (startNode)-" + rel + "->(endNode) DELETE r", Parameters: params}, nil
	default:
		return Query{}, fmt.Errorf("%w: unknown cud operation %q", ErrMalformedPayload, op.Op)
	}
}
