package kafka

import (
	"fmt"
	"strings"
)

type AutoOffsetReset string

const (
	AutoOffsetResetEarliest AutoOffsetReset = "earliest"
	AutoOffsetResetLatest   AutoOffsetReset = "latest"
	AutoOffsetResetNone     AutoOffsetReset = "none"
)

func IsNotValidAutoOffsetReset(offsetReset AutoOffsetReset) bool {
	return offsetReset != AutoOffsetResetEarliest &&
		offsetReset != AutoOffsetResetLatest &&
		offsetReset != AutoOffsetResetNone
}

type PartitionAssignmentStrategy string

const (
	PartitionAssignmentStrategyRange      PartitionAssignmentStrategy = "range"
	PartitionAssignmentStrategyRoundRobin PartitionAssignmentStrategy = "roundrobin"
	PartitionAssignmentStrategySticky     PartitionAssignmentStrategy = "cooperative-sticky"
)

func IsNotValidPartitionAssignmentStrategy(strategy PartitionAssignmentStrategy) bool {
	return strategy != PartitionAssignmentStrategyRange &&
		strategy != PartitionAssignmentStrategyRoundRobin &&
		strategy != PartitionAssignmentStrategySticky
}

type ACKS int

const (
	ACKsAll    ACKS = -1
	ACKsLeader ACKS = 1
	ACKsNone   ACKS = 0
)

// ParseACKs traduce el valor de configuracion (all, -1, 1, leader, 0, none).
func ParseACKs(value string) (ACKS, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all", "-1":
		return ACKsAll, nil
	case "1", "leader":
		return ACKsLeader, nil
	case "0", "none":
		return ACKsNone, nil
	}
	return 0, fmt.Errorf("invalid acks value %q", value)
}

func IsNotValidACKs(acks ACKS) bool {
	return acks != ACKsAll &&
		acks != ACKsLeader &&
		acks != ACKsNone
}

// Headers que acompañan a un registro enviado a la dead letter queue.
const (
	HeaderErrorTopic     = "__connect.errors.topic"
	HeaderErrorPartition = "__connect.errors.partition"
	HeaderErrorOffset    = "__connect.errors.offset"
	HeaderErrorMessage   = "__connect.errors.exception.message"
	HeaderErrorStrategy  = "__connect.errors.strategy"
)
