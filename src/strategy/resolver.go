package strategy

import (
	"sort"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
)

// topicSource es una fuente de configuracion que asigna topics a una estrategia.
type topicSource struct {
	strategy Strategy
	topics   []string
	build    func(topic string) (Handler, error)
}

// sources devuelve las fuentes en orden de prioridad; la primera que contiene el topic gana.
func sources(cfg config.SinkConfig) []topicSource {
	return []topicSource{
		{StrategyCypher, mapKeys(cfg.Cypher.Topics), func(t string) (Handler, error) {
			return NewCypherHandler(t, cfg.Cypher.Topics[t], cfg)
		}},
		{StrategyNodePattern, mapKeys(cfg.Pattern.NodeTopics), func(t string) (Handler, error) {
			return NewNodePatternHandler(t, cfg.Pattern.NodeTopics[t], cfg)
		}},
		{StrategyRelationshipPattern, mapKeys(cfg.Pattern.RelationshipTopics), func(t string) (Handler, error) {
			return NewRelationshipPatternHandler(t, cfg.Pattern.RelationshipTopics[t], cfg)
		}},
		{StrategyCdcSourceID, cfg.Cdc.SourceIDTopics, func(t string) (Handler, error) {
			return NewCdcSourceIDHandler(t, cfg), nil
		}},
		{StrategyCdcSchema, cfg.Cdc.SchemaTopics, func(t string) (Handler, error) {
			return NewCdcSchemaHandler(t, cfg), nil
		}},
		{StrategyCud, cfg.Cud.Topics, func(t string) (Handler, error) {
			return NewCudHandler(t, cfg), nil
		}},
	}
}

// Resolver asigna un unico Handler a cada topic declarado. Se construye una vez y es de solo lectura.
type Resolver struct {
	handlers map[string]Handler
}

func NewResolver(cfg config.SinkConfig, declaredTopics []string) (*Resolver, error) {
	srcs := sources(cfg)

	// un topic en mas de una fuente nunca debe llegar a tener dos handlers
	seenIn := map[string]int{}
	for _, src := range srcs {
		for topic := range toSet(src.topics) {
			seenIn[topic]++
		}
	}

	var crossDefined []string
	configured := make([]string, 0, len(seenIn))
	for topic, count := range seenIn {
		configured = append(configured, topic)
		if count > 1 {
			crossDefined = append(crossDefined, topic)
		}
	}
	if len(crossDefined) > 0 {
		return nil, crossDefinedError(crossDefined)
	}

	declared := make([]string, 0, len(declaredTopics))
	for topic := range toSet(declaredTopics) {
		declared = append(declared, topic)
	}
	if len(symmetricDifference(declared, configured)) > 0 {
		return nil, mismatchError(declared, configured)
	}

	handlers := make(map[string]Handler, len(declared))
	for _, topic := range sortedCopy(declared) {
		handler, err := resolve(srcs, topic)
		if err != nil {
			return nil, err
		}
		handlers[topic] = handler
	}

	return &Resolver{handlers: handlers}, nil
}

func resolve(srcs []topicSource, topic string) (Handler, error) {
	for _, src := range srcs {
		for _, t := range src.topics {
			if t == topic {
				return src.build(topic)
			}
		}
	}
	return nil, unassignedError(topic)
}

func (r *Resolver) Handler(topic string) (Handler, bool) {
	h, ok := r.handlers[topic]
	return h, ok
}

// Topics devuelve los topics resueltos, ordenados.
func (r *Resolver) Topics() []string {
	out := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Assignments devuelve topic -> estrategia.
func (r *Resolver) Assignments() map[string]Strategy {
	out := make(map[string]Strategy, len(r.handlers))
	for topic, h := range r.handlers {
		out[topic] = h.Strategy()
	}
	return out
}

// ConfiguredStrategies devuelve las estrategias distintas en uso, ordenadas.
func (r *Resolver) ConfiguredStrategies() []Strategy {
	set := map[Strategy]struct{}{}
	for _, h := range r.handlers {
		set[h.Strategy()] = struct{}{}
	}

	out := make([]Strategy, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
