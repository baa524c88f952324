package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gookit "github.com/gookit/config/v2"
	"github.com/gookit/config/v2/yaml"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/utils"
)

type ErrorTolerance string

const (
	ErrorToleranceNone ErrorTolerance = "none"
	ErrorToleranceAll  ErrorTolerance = "all"
)

// BindingDisabled desactiva un binding del handler Cypher.
const BindingDisabled = "-"

type ConverterType string

const (
	ConverterJSON   ConverterType = "json"
	ConverterString ConverterType = "string"
	ConverterBytes  ConverterType = "bytes"
	ConverterAvro   ConverterType = "avro"
)

type ConverterConfig struct {
	Type       ConverterType `json:"Type"`
	Schema     string        `json:"Schema,omitempty"`
	SchemaFile string        `json:"SchemaFile,omitempty"`

	// Los mensajes llevan el prefijo del schema registry de Confluent (magic byte + id).
	ConfluentWireFormat bool `json:"ConfluentWireFormat,omitempty"`
}

type SecurityConfig struct {
	Protocol string `json:"Protocol,omitempty"`

	SaslMechanism string `json:"SaslMechanism,omitempty"`
	SaslUsername  string `json:"SaslUsername,omitempty"`
	SaslPassword  string `json:"SaslPassword,omitempty"`

	SslCaLocation          string `json:"SslCaLocation,omitempty"`
	SslCertificateLocation string `json:"SslCertificateLocation,omitempty"`
	SslKeyLocation         string `json:"SslKeyLocation,omitempty"`
	SslKeyPassword         string `json:"SslKeyPassword,omitempty"`
	SslKeystoreLocation    string `json:"SslKeystoreLocation,omitempty"`
	SslKeystorePassword    string `json:"SslKeystorePassword,omitempty"`
}

type KafkaConfig struct {
	BootstrapServers []string `json:"BootstrapServers"`
	GroupID          string   `json:"GroupID"`
	ClientID         string   `json:"ClientID,omitempty"`

	// Topics son los topics declarados para consumo.
	Topics []string `json:"Topics"`

	AutoOffsetReset             string        `json:"AutoOffsetReset,omitempty"`
	PartitionAssignmentStrategy string        `json:"PartitionAssignmentStrategy,omitempty"`
	SessionTimeoutMs            int           `json:"SessionTimeoutMs,omitempty"`
	MaxPollRecords              int           `json:"MaxPollRecords,omitempty"`
	PollTimeout                 time.Duration `json:"PollTimeout,omitempty"`
	CommitInterval              time.Duration `json:"CommitInterval,omitempty"`
	WorkerBufferSize            int           `json:"WorkerBufferSize,omitempty"`

	KeyConverter   ConverterConfig `json:"KeyConverter"`
	ValueConverter ConverterConfig `json:"ValueConverter"`

	Security SecurityConfig `json:"Security"`

	DeadLetterTopic    string         `json:"DeadLetterTopic,omitempty"`
	DeadLetterProducer ProducerTuning `json:"DeadLetterProducer"`
	ValidateTopics     bool           `json:"ValidateTopics,omitempty"`
	Admin              AdminTuning    `json:"Admin"`

	// Propiedades librdkafka adicionales, se aplican tal cual.
	Properties map[string]string `json:"Properties,omitempty"`
}

// ProducerTuning ajusta el producer de la dead letter queue. Acks acepta all, 1 o 0;
// con otro valor que all se desactiva la idempotencia.
type ProducerTuning struct {
	Acks             string `json:"Acks,omitempty"`
	LingerMs         int    `json:"LingerMs,omitempty"`
	MessageTimeoutMs int    `json:"MessageTimeoutMs,omitempty"`
}

// AdminTuning ajusta el admin client que valida topics y crea el de la DLQ.
// Los valores en cero dejan los defaults del cliente.
type AdminTuning struct {
	RequestTimeoutMs int `json:"RequestTimeoutMs,omitempty"`
	Retries          int `json:"Retries,omitempty"`
	RetryBackoffMs   int `json:"RetryBackoffMs,omitempty"`
	SocketTimeoutMs  int `json:"SocketTimeoutMs,omitempty"`
}

type Neo4jConfig struct {
	URI      string `json:"URI"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database,omitempty"`

	// DryRun escribe el plan en DryRunDir en lugar de ejecutarlo contra Neo4j.
	DryRun    bool   `json:"DryRun,omitempty"`
	DryRunDir string `json:"DryRunDir,omitempty"`
}

type CypherConfig struct {
	Topics map[string]string `json:"Topics,omitempty"`

	BindTimestampAs  string `json:"BindTimestampAs,omitempty"`
	BindHeaderAs     string `json:"BindHeaderAs,omitempty"`
	BindKeyAs        string `json:"BindKeyAs,omitempty"`
	BindValueAs      string `json:"BindValueAs,omitempty"`
	BindValueAsEvent *bool  `json:"BindValueAsEvent,omitempty"`
}

type PatternConfig struct {
	NodeTopics         map[string]string `json:"NodeTopics,omitempty"`
	RelationshipTopics map[string]string `json:"RelationshipTopics,omitempty"`

	MergeNodeProperties         bool `json:"MergeNodeProperties,omitempty"`
	MergeRelationshipProperties bool `json:"MergeRelationshipProperties,omitempty"`
}

type CdcConfig struct {
	SourceIDTopics       []string `json:"SourceIDTopics,omitempty"`
	SchemaTopics         []string `json:"SchemaTopics,omitempty"`
	SourceIDLabelName    string   `json:"SourceIDLabelName,omitempty"`
	SourceIDPropertyName string   `json:"SourceIDPropertyName,omitempty"`
	ValidateSequence     bool     `json:"ValidateSequence,omitempty"`
}

type CudConfig struct {
	Topics []string `json:"Topics,omitempty"`
}

// SinkConfig es todo lo que necesita el motor de estrategias.
type SinkConfig struct {
	BatchSize      int            `json:"BatchSize,omitempty"`
	BatchTimeout   time.Duration  `json:"BatchTimeout,omitempty"`
	ErrorTolerance ErrorTolerance `json:"ErrorTolerance,omitempty"`

	Cypher  CypherConfig  `json:"Cypher"`
	Pattern PatternConfig `json:"Pattern"`
	Cdc     CdcConfig     `json:"Cdc"`
	Cud     CudConfig     `json:"Cud"`
}

type LogConfig struct {
	Level       string `json:"Level,omitempty"`
	Pretty      bool   `json:"Pretty,omitempty"`
	ServiceName string `json:"ServiceName,omitempty"`

	File       string `json:"File,omitempty"`
	MaxSizeMB  int    `json:"MaxSizeMB,omitempty"`
	MaxBackups int    `json:"MaxBackups,omitempty"`
	MaxAgeDays int    `json:"MaxAgeDays,omitempty"`
	Compress   bool   `json:"Compress,omitempty"`
}

type ServerConfig struct {
	HttpPort int `json:"HttpPort,omitempty"`
}

type Config struct {
	Kafka  KafkaConfig  `json:"Kafka"`
	Neo4j  Neo4jConfig  `json:"Neo4j"`
	Sink   SinkConfig   `json:"Sink"`
	Log    LogConfig    `json:"Log"`
	Server ServerConfig `json:"Server"`
}

func newLoader() *gookit.Config {
	c := gookit.New("connector", gookit.ParseEnv, gookit.ParseTime, gookit.WithTagName("json"))
	c.AddDriver(yaml.Driver)
	return c
}

// DefaultPath busca config.json / config.yaml junto al ejecutable.
func DefaultPath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error al obtener el path del archivo de configuración: %w", err)
	}

	execDir := filepath.Dir(execPath)

	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		candidate := filepath.Join(execDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return filepath.Join(execDir, "config.json"), nil
}

// Load lee el archivo, aplica defaults y valida.
func Load(path string) (*Config, error) {
	if utils.StringIsEmptyOrWhitespace(path) {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	loader := newLoader()

	if err := loader.LoadFiles(path); err != nil {
		return nil, fmt.Errorf("error al cargar el archivo de configuración %s: %w", path, err)
	}

	return decode(loader)
}

// LoadString carga la configuración desde un string (format: json o yaml).
func LoadString(format string, content string) (*Config, error) {
	loader := newLoader()

	if err := loader.LoadStrings(strings.ToLower(format), content); err != nil {
		return nil, fmt.Errorf("error al cargar la configuración: %w", err)
	}

	return decode(loader)
}

func decode(loader *gookit.Config) (*Config, error) {
	cfg := &Config{}

	if err := loader.Decode(cfg); err != nil {
		return nil, fmt.Errorf("error al decodificar la configuración: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
