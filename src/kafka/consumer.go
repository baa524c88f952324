package kafka

import (
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type ConsumerConfig struct {
	serverConfigs
	*securityConfig

	groupId                     string
	autoOffsetReset             AutoOffsetReset
	partitionAssignmentStrategy PartitionAssignmentStrategy
	sessionTimeoutMs            int
}

func NewConsumerCfgWithSvrCfgs(serverConfigs *serverConfigs,
	securityConfig *securityConfig,
	groupId string) (*ConsumerConfig, error) {

	if serverConfigs == nil {
		return nil, errors.New("serverConfigs is required")
	}

	if groupId == "" {
		return nil, errors.New("groupId is required")
	}

	return &ConsumerConfig{
		serverConfigs:   *serverConfigs,
		securityConfig:  securityConfig,
		groupId:         groupId,
		autoOffsetReset: AutoOffsetResetEarliest,
	}, nil
}

func (c *ConsumerConfig) WithAutoOffsetReset(reset AutoOffsetReset) (*ConsumerConfig, error) {
	if reset == "" {
		return c, nil
	}
	if IsNotValidAutoOffsetReset(reset) {
		return nil, fmt.Errorf("invalid auto.offset.reset %q", reset)
	}
	c.autoOffsetReset = reset
	return c, nil
}

func (c *ConsumerConfig) WithPartitionAssignmentStrategy(strategy PartitionAssignmentStrategy) (*ConsumerConfig, error) {
	if strategy == "" {
		return c, nil
	}
	if IsNotValidPartitionAssignmentStrategy(strategy) {
		return nil, fmt.Errorf("invalid partition.assignment.strategy %q", strategy)
	}
	c.partitionAssignmentStrategy = strategy
	return c, nil
}

func (c *ConsumerConfig) WithSessionTimeoutMs(timeoutMs int) *ConsumerConfig {
	if timeoutMs > 0 {
		c.sessionTimeoutMs = timeoutMs
	}
	return c
}

// Build arma el ConfigMap del consumer. Los offsets se confirman a mano desde el
// coordinador, nunca de forma automatica.
func (c *ConsumerConfig) Build() (*kafka.ConfigMap, error) {
	configMap := kafka.ConfigMap{}

	c.serverConfigs.build(&configMap)

	configMap.SetKey("group.id", c.groupId)
	configMap.SetKey("auto.offset.reset", string(c.autoOffsetReset))
	configMap.SetKey("enable.auto.commit", false)
	configMap.SetKey("enable.auto.offset.store", false)

	if c.partitionAssignmentStrategy != "" {
		configMap.SetKey("partition.assignment.strategy", string(c.partitionAssignmentStrategy))
	}

	if c.sessionTimeoutMs > 0 {
		configMap.SetKey("session.timeout.ms", c.sessionTimeoutMs)
	}

	if c.securityConfig != nil {
		c.securityConfig.Build(&configMap)
	}

	c.serverConfigs.applyProperties(&configMap)

	return &configMap, nil
}

func NewConsumer(config *ConsumerConfig) (*kafka.Consumer, error) {
	cfg, err := config.Build()
	if err != nil {
		return nil, err
	}

	return kafka.NewConsumer(cfg)
}
