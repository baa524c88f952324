package pipeline

import (
	"sort"
	"sync"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/observability"
)

type partitionKey struct {
	topic     string
	partition int32
}

type partitionState struct {
	processed int64
	committed int64
}

// OffsetCoordinator es el coordinador de los offsets procesados por los workers.
// Solo se confirma lo que un worker termino de escribir en el grafo.
type OffsetCoordinator struct {
	mu      sync.RWMutex
	offsets map[partitionKey]*partitionState
	revoked map[partitionKey]struct{}
	observability.Logger
}

// NewOffsetCoordinator crea un nuevo OffsetCoordinator
func NewOffsetCoordinator(logger observability.Logger) *OffsetCoordinator {
	return &OffsetCoordinator{
		mu:      sync.RWMutex{},
		offsets: make(map[partitionKey]*partitionState),
		revoked: make(map[partitionKey]struct{}),
		Logger:  logger,
	}
}

func (oc *OffsetCoordinator) HasRegisteredPartitions() bool {
	oc.mu.RLock()
	defer oc.mu.RUnlock()
	return len(oc.offsets) > 0
}

// ReportOffset registra el offset procesado; nunca retrocede. Los reportes de una
// particion revocada se ignoran hasta que vuelva a asignarse.
func (oc *OffsetCoordinator) ReportOffset(topic string, partition int32, offset int64) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	key := partitionKey{topic: topic, partition: partition}
	if _, gone := oc.revoked[key]; gone {
		return
	}

	state, exists := oc.offsets[key]

	if !exists {
		oc.offsets[key] = &partitionState{processed: offset, committed: -1}
		return
	}

	if offset > state.processed {
		state.processed = offset
	}
}

// Pending devuelve, por particion, el siguiente offset a confirmar (procesado + 1)
// solo para las particiones que avanzaron desde el ultimo MarkCommitted.
func (oc *OffsetCoordinator) Pending() []PartitionOffset {
	oc.mu.RLock()
	defer oc.mu.RUnlock()

	var out []PartitionOffset
	for key, state := range oc.offsets {
		next := state.processed + 1
		if next > state.committed {
			out = append(out, PartitionOffset{Topic: key.topic, Partition: key.partition, Offset: next})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})

	return out
}

// MarkCommitted anota los offsets que el broker acepto.
func (oc *OffsetCoordinator) MarkCommitted(committed []PartitionOffset) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	for _, c := range committed {
		if state, ok := oc.offsets[partitionKey{topic: c.Topic, partition: c.Partition}]; ok && c.Offset > state.committed {
			state.committed = c.Offset
		}
	}
}

// Assign vuelve a aceptar reportes de una particion que el grupo nos entrego.
func (oc *OffsetCoordinator) Assign(topic string, partition int32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	delete(oc.revoked, partitionKey{topic: topic, partition: partition})
}

// Forget descarta una particion revocada; si vuelve a asignarse empieza de cero.
func (oc *OffsetCoordinator) Forget(topic string, partition int32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	key := partitionKey{topic: topic, partition: partition}
	delete(oc.offsets, key)
	oc.revoked[key] = struct{}{}
}
