package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/utils"
)

const (
	DefaultBatchSize            = 1000
	DefaultBatchTimeout         = time.Second
	DefaultMaxPollRecords       = 500
	DefaultPollTimeout          = 100 * time.Millisecond
	DefaultCommitInterval       = 5 * time.Second
	DefaultWorkerBufferSize     = 16
	DefaultSessionTimeoutMs     = 45000
	DefaultSourceIDLabelName    = "SourceEvent"
	DefaultSourceIDPropertyName = "sourceId"
	DefaultBindTimestampAs      = "__timestamp"
	DefaultBindHeaderAs         = "__header"
	DefaultBindKeyAs            = "__key"
	DefaultBindValueAs          = "__value"
	DefaultHttpPort             = 8080
	DefaultDryRunDir            = "plans"
)

func (c *Config) ApplyDefaults() {
	k := &c.Kafka

	if k.AutoOffsetReset == "" {
		k.AutoOffsetReset = "earliest"
	}
	if k.SessionTimeoutMs <= 0 {
		k.SessionTimeoutMs = DefaultSessionTimeoutMs
	}
	if k.MaxPollRecords <= 0 {
		k.MaxPollRecords = DefaultMaxPollRecords
	}
	if k.PollTimeout <= 0 {
		k.PollTimeout = DefaultPollTimeout
	}
	if k.CommitInterval <= 0 {
		k.CommitInterval = DefaultCommitInterval
	}
	if k.WorkerBufferSize <= 0 {
		k.WorkerBufferSize = DefaultWorkerBufferSize
	}
	if k.DeadLetterProducer.Acks == "" {
		k.DeadLetterProducer.Acks = "all"
	}
	if k.KeyConverter.Type == "" {
		k.KeyConverter.Type = ConverterString
	}
	if k.ValueConverter.Type == "" {
		k.ValueConverter.Type = ConverterJSON
	}

	if c.Neo4j.DryRun && c.Neo4j.DryRunDir == "" {
		c.Neo4j.DryRunDir = DefaultDryRunDir
	}

	c.Sink.ApplyDefaults()

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.ServiceName == "" {
		c.Log.ServiceName = "go_neo4j_connector"
	}
	if c.Server.HttpPort <= 0 {
		c.Server.HttpPort = DefaultHttpPort
	}
}

func (s *SinkConfig) ApplyDefaults() {
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.BatchTimeout <= 0 {
		s.BatchTimeout = DefaultBatchTimeout
	}
	if s.ErrorTolerance == "" {
		s.ErrorTolerance = ErrorToleranceNone
	}
	s.ErrorTolerance = ErrorTolerance(strings.ToLower(string(s.ErrorTolerance)))

	if s.Cypher.BindTimestampAs == "" {
		s.Cypher.BindTimestampAs = DefaultBindTimestampAs
	}
	if s.Cypher.BindHeaderAs == "" {
		s.Cypher.BindHeaderAs = DefaultBindHeaderAs
	}
	if s.Cypher.BindKeyAs == "" {
		s.Cypher.BindKeyAs = DefaultBindKeyAs
	}
	if s.Cypher.BindValueAs == "" {
		s.Cypher.BindValueAs = DefaultBindValueAs
	}
	if s.Cypher.BindValueAsEvent == nil {
		enabled := true
		s.Cypher.BindValueAsEvent = &enabled
	}

	if s.Cdc.SourceIDLabelName == "" {
		s.Cdc.SourceIDLabelName = DefaultSourceIDLabelName
	}
	if s.Cdc.SourceIDPropertyName == "" {
		s.Cdc.SourceIDPropertyName = DefaultSourceIDPropertyName
	}
}

// Validate revisa la configuración global. La asignación de estrategias por topic la valida el resolver.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Kafka.BootstrapServers) == 0 {
		errs = append(errs, errors.New("Kafka.BootstrapServers is required"))
	}
	if utils.StringIsEmptyOrWhitespace(c.Kafka.GroupID) {
		errs = append(errs, errors.New("Kafka.GroupID is required"))
	}
	if len(c.Kafka.Topics) == 0 {
		errs = append(errs, errors.New("Kafka.Topics must declare at least one topic"))
	}

	if err := c.Kafka.KeyConverter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("Kafka.KeyConverter: %w", err))
	}
	if err := c.Kafka.ValueConverter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("Kafka.ValueConverter: %w", err))
	}

	if !c.Neo4j.DryRun && utils.StringIsEmptyOrWhitespace(c.Neo4j.URI) {
		errs = append(errs, errors.New("Neo4j.URI is required unless DryRun is enabled"))
	}

	if err := c.Sink.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuración inválida: %w", errors.Join(errs...))
	}
	return nil
}

func (s *SinkConfig) Validate() error {
	var errs []error

	if s.BatchSize <= 0 {
		errs = append(errs, errors.New("Sink.BatchSize must be greater than 0"))
	}

	switch s.ErrorTolerance {
	case ErrorToleranceNone, ErrorToleranceAll:
	default:
		errs = append(errs, fmt.Errorf("Sink.ErrorTolerance %q is not one of none, all", s.ErrorTolerance))
	}

	if len(s.Cypher.Topics) > 0 && len(s.Cypher.EnabledBindings()) == 0 {
		errs = append(errs, errors.New("Sink.Cypher: at least one binding must be enabled"))
	}

	if utils.StringIsEmptyOrWhitespace(s.Cdc.SourceIDLabelName) || utils.StringIsEmptyOrWhitespace(s.Cdc.SourceIDPropertyName) {
		errs = append(errs, errors.New("Sink.Cdc source id label and property names must not be blank"))
	}

	return errors.Join(errs...)
}

func (c ConverterConfig) Validate() error {
	switch c.Type {
	case ConverterJSON, ConverterString, ConverterBytes:
		return nil
	case ConverterAvro:
		if c.Schema == "" && c.SchemaFile == "" {
			return errors.New("avro converter requires Schema or SchemaFile")
		}
		return nil
	default:
		return fmt.Errorf("unknown converter type %q", c.Type)
	}
}

// EnabledBindings devuelve los nombres de binding activos del handler Cypher, en orden fijo.
func (c CypherConfig) EnabledBindings() []string {
	var out []string
	for _, name := range []string{c.BindTimestampAs, c.BindHeaderAs, c.BindKeyAs, c.BindValueAs} {
		if name != "" && name != BindingDisabled {
			out = append(out, name)
		}
	}
	if c.BindValueAsEvent == nil || *c.BindValueAsEvent {
		out = append(out, "event")
	}
	return out
}
