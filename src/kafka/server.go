package kafka

import (
	"errors"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type serverConfigs struct {
	bootstrapServers []string
	clientId         *string
	properties       map[string]string
}

func NewServerConfigs(bootstrapServers []string, clientId *string) (*serverConfigs, error) {
	if len(bootstrapServers) == 0 {
		return nil, errors.New("bootstrapServers is required")
	}

	return &serverConfigs{
		bootstrapServers: bootstrapServers,
		clientId:         clientId,
	}, nil
}

// WithProperties agrega propiedades librdkafka crudas; se aplican al final y pisan las demas.
func (s *serverConfigs) WithProperties(properties map[string]string) *serverConfigs {
	s.properties = properties
	return s
}

func (s *serverConfigs) build(configMap *kafka.ConfigMap) {
	configMap.SetKey("bootstrap.servers", strings.Join(s.bootstrapServers, ","))

	if s.clientId != nil {
		configMap.SetKey("client.id", *s.clientId)
	}
}

func (s *serverConfigs) applyProperties(configMap *kafka.ConfigMap) {
	for k, v := range s.properties {
		configMap.SetKey(k, v)
	}
}

type securityConfig struct {
	securityProtocol string

	sslCaLocation          string
	sslCertificateLocation string
	sslKeyLocation         string
	sslKeyPassword         string
	sslKeystoreLocation    string
	sslKeystorePassword    string

	saslMechanism string
	saslUsername  string
	saslPassword  string
}

func NewSecurityConfig() *securityConfig {
	return &securityConfig{}
}

// NewSecurityConfigFrom traduce la seccion Kafka.Security del archivo de configuracion.
func NewSecurityConfigFrom(cfg config.SecurityConfig) *securityConfig {
	return NewSecurityConfig().
		WithProtocol(cfg.Protocol).
		WithSASL(cfg.SaslMechanism, cfg.SaslUsername, cfg.SaslPassword).
		WithSSL(cfg.SslCaLocation, cfg.SslCertificateLocation, cfg.SslKeyLocation, cfg.SslKeyPassword).
		WithKeystore(cfg.SslKeystoreLocation, cfg.SslKeystorePassword)
}

func (c *securityConfig) WithProtocol(protocol string) *securityConfig {
	c.securityProtocol = protocol
	return c
}

func (c *securityConfig) WithSASL(
	mechanism,
	username,
	password string) *securityConfig {

	if mechanism == "" || username == "" || password == "" {
		return c
	}

	c.saslMechanism = mechanism
	c.saslUsername = username
	c.saslPassword = password

	return c
}

// WithSSL configura TLS con archivos PEM; el CA basta para TLS sin certificado de cliente.
func (c *securityConfig) WithSSL(caLocation,
	certificateLocation,
	keyLocation,
	keyPassword string) *securityConfig {

	c.sslCaLocation = caLocation
	c.sslCertificateLocation = certificateLocation
	c.sslKeyLocation = keyLocation
	c.sslKeyPassword = keyPassword

	return c
}

func (c *securityConfig) WithKeystore(location, password string) *securityConfig {

	if location == "" || password == "" {
		return c
	}

	c.sslKeystoreLocation = location
	c.sslKeystorePassword = password

	return c
}

func (c *securityConfig) Build(configMap *kafka.ConfigMap) {

	if c.securityProtocol != "" {
		configMap.SetKey("security.protocol", c.securityProtocol)
	}

	if c.saslMechanism != "" {
		configMap.SetKey("sasl.mechanisms", c.saslMechanism)
	}
	if c.saslUsername != "" {
		configMap.SetKey("sasl.username", c.saslUsername)
	}
	if c.saslPassword != "" {
		configMap.SetKey("sasl.password", c.saslPassword)
	}

	if c.sslCaLocation != "" {
		configMap.SetKey("ssl.ca.location", c.sslCaLocation)
	}
	if c.sslCertificateLocation != "" {
		configMap.SetKey("ssl.certificate.location", c.sslCertificateLocation)
	}
	if c.sslKeyLocation != "" {
		configMap.SetKey("ssl.key.location", c.sslKeyLocation)
	}
	if c.sslKeyPassword != "" {
		configMap.SetKey("ssl.key.password", c.sslKeyPassword)
	}
	if c.sslKeystoreLocation != "" {
		configMap.SetKey("ssl.keystore.location", c.sslKeystoreLocation)
	}
	if c.sslKeystorePassword != "" {
		configMap.SetKey("ssl.keystore.password", c.sslKeystorePassword)
	}

}
