package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Claves planas estilo connector de Kafka Connect.
const (
	PropTopics                      = "topics"
	PropCypherTopicPrefix           = "neo4j.cypher.topic."
	PropNodePatternTopicPrefix      = "neo4j.pattern.node.topic."
	PropRelationshipPatternPrefix   = "neo4j.pattern.relationship.topic."
	PropCdcSourceIDTopics           = "neo4j.cdc.source-id.topics"
	PropCdcSourceIDLabelName        = "neo4j.cdc.source-id.label-name"
	PropCdcSourceIDPropertyName     = "neo4j.cdc.source-id.property-name"
	PropCdcSchemaTopics             = "neo4j.cdc.schema.topics"
	PropCudTopics                   = "neo4j.cud.topics"
	PropBatchSize                   = "neo4j.batch-size"
	PropBatchTimeout                = "neo4j.batch-timeout"
	PropErrorTolerance              = "errors.tolerance"
	PropMergeNodeProperties         = "neo4j.pattern.node.merge-properties"
	PropMergeRelationshipProperties = "neo4j.pattern.relationship.merge-properties"
	PropBindTimestampAs             = "neo4j.cypher.bind-timestamp-as"
	PropBindHeaderAs                = "neo4j.cypher.bind-header-as"
	PropBindKeyAs                   = "neo4j.cypher.bind-key-as"
	PropBindValueAs                 = "neo4j.cypher.bind-value-as"
	PropBindValueAsEvent            = "neo4j.cypher.bind-value-as-event"
	PropValidateSequence            = "neo4j.cdc.validate-sequence"
)

// ruta dentro de SinkConfig (nombres de tag json) para cada propiedad escalar
var propertyPaths = map[string][]string{
	PropCdcSourceIDTopics:           {"Cdc", "SourceIDTopics"},
	PropCdcSourceIDLabelName:        {"Cdc", "SourceIDLabelName"},
	PropCdcSourceIDPropertyName:     {"Cdc", "SourceIDPropertyName"},
	PropCdcSchemaTopics:             {"Cdc", "SchemaTopics"},
	PropValidateSequence:            {"Cdc", "ValidateSequence"},
	PropCudTopics:                   {"Cud", "Topics"},
	PropBatchSize:                   {"BatchSize"},
	PropBatchTimeout:                {"BatchTimeout"},
	PropErrorTolerance:              {"ErrorTolerance"},
	PropMergeNodeProperties:         {"Pattern", "MergeNodeProperties"},
	PropMergeRelationshipProperties: {"Pattern", "MergeRelationshipProperties"},
	PropBindTimestampAs:             {"Cypher", "BindTimestampAs"},
	PropBindHeaderAs:                {"Cypher", "BindHeaderAs"},
	PropBindKeyAs:                   {"Cypher", "BindKeyAs"},
	PropBindValueAs:                 {"Cypher", "BindValueAs"},
	PropBindValueAsEvent:            {"Cypher", "BindValueAsEvent"},
}

var topicPrefixes = []struct {
	prefix string
	path   []string
}{
	{PropCypherTopicPrefix, []string{"Cypher", "Topics"}},
	{PropNodePatternTopicPrefix, []string{"Pattern", "NodeTopics"}},
	{PropRelationshipPatternPrefix, []string{"Pattern", "RelationshipTopics"}},
}

// FromProperties traduce propiedades planas neo4j.* a un SinkConfig con defaults aplicados,
// mas la lista de topics declarados (propiedad "topics").
func FromProperties(props map[string]string) (SinkConfig, []string, error) {
	tree := map[string]any{}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := strings.TrimSpace(props[name])

		if path, ok := propertyPaths[name]; ok {
			setPath(tree, path, value)
			continue
		}

		for _, tp := range topicPrefixes {
			if topic, ok := strings.CutPrefix(name, tp.prefix); ok && topic != "" {
				setPath(tree, append(append([]string{}, tp.path...), topic), value)
				break
			}
		}
	}

	var sink SinkConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &sink,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return SinkConfig{}, nil, err
	}

	if err := decoder.Decode(tree); err != nil {
		return SinkConfig{}, nil, fmt.Errorf("error al decodificar las propiedades del sink: %w", err)
	}

	sink.Cdc.SourceIDTopics = splitList(sink.Cdc.SourceIDTopics)
	sink.Cdc.SchemaTopics = splitList(sink.Cdc.SchemaTopics)
	sink.Cud.Topics = splitList(sink.Cud.Topics)

	sink.ApplyDefaults()

	if err := sink.Validate(); err != nil {
		return SinkConfig{}, nil, err
	}

	return sink, splitList(strings.Split(props[PropTopics], ",")), nil
}

// ApplyProperties reemplaza la seccion Sink por la traducida desde propiedades key=value.
// Si las propiedades declaran "topics", tambien reemplazan Kafka.Topics.
func (c *Config) ApplyProperties(pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("propiedad inválida %q, se espera key=value", pair)
		}
		props[strings.TrimSpace(name)] = value
	}

	sink, topics, err := FromProperties(props)
	if err != nil {
		return err
	}

	c.Sink = sink
	if len(topics) > 0 {
		c.Kafka.Topics = topics
	}

	return c.Validate()
}

// setPath deja keys con puntos (nombres de topic) intactas porque el arbol se arma por segmentos.
func setPath(tree map[string]any, path []string, value string) {
	node := tree
	for _, segment := range path[:len(path)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
