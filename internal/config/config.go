// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/intent-bridge/pkg/commsutil"
)

const logPrefix = "config:LoadConfig"

// Config holds intent-bridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"intent-bridge"`
	// HostName names the privileged host process in derived subjects.
	HostName string `envconfig:"HOST_NAME" default:"essentials"`

	// Subject overrides (empty = derive from HOST_NAME and SERVICE_NAME)
	RequestSubject  string `envconfig:"BRIDGE_REQUEST_SUBJECT"`
	ResponseSubject string `envconfig:"BRIDGE_RESPONSE_SUBJECT"`
	InvokeSubject   string `envconfig:"BRIDGE_INVOKE_SUBJECT"`
	ResultSubject   string `envconfig:"BRIDGE_RESULT_SUBJECT"`

	// Codec for host envelopes: json or msgpack.
	Codec string `envconfig:"BRIDGE_CODEC" default:"json"`

	// InvokeTimeout bounds gateway invocations; zero disables it.
	InvokeTimeout time.Duration `envconfig:"INVOKE_TIMEOUT" default:"0s"`

	// Identity
	ApplicationDID string `envconfig:"APPLICATION_DID"`

	// Host handshake, skipped when HostVersionConstraint is empty.
	HostVersionConstraint string        `envconfig:"HOST_VERSION_CONSTRAINT"`
	HandshakeTimeout      time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`

	// Database (empty disables the dispatch journal)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health and metrics endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge server.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.HostName == "" || c.COMMSName == "" {
		return fmt.Errorf("%s - HOST_NAME and SERVICE_NAME must not be empty", logPrefix)
	}
	if _, err := commsutil.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%s - BRIDGE_CODEC: %w", logPrefix, err)
	}
	if c.InvokeTimeout < 0 {
		return fmt.Errorf("%s - INVOKE_TIMEOUT must not be negative", logPrefix)
	}
	if c.HostVersionConstraint != "" && c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%s - HANDSHAKE_TIMEOUT must be positive", logPrefix)
	}
	if c.RunMigrations && c.DatabaseURL == "" {
		return fmt.Errorf("%s - RUN_MIGRATIONS requires DATABASE_URL", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// JournalEnabled reports whether dispatch outcomes are persisted.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// BridgeRequestSubject returns the subject requests to the host are published on.
func (c *Config) BridgeRequestSubject() string {
	if c.RequestSubject != "" {
		return c.RequestSubject
	}
	return commsutil.BuildRequestSubject(c.HostName)
}

// BridgeResponseSubject returns the subject the host answers on.
func (c *Config) BridgeResponseSubject() string {
	if c.ResponseSubject != "" {
		return c.ResponseSubject
	}
	return commsutil.BuildResponseSubject(c.HostName, c.COMMSName)
}

// BridgeInvokeSubject returns the subject sandboxed code invokes the gateway on.
func (c *Config) BridgeInvokeSubject() string {
	if c.InvokeSubject != "" {
		return c.InvokeSubject
	}
	return commsutil.BuildInvokeSubject(c.COMMSName)
}

// BridgeResultSubject returns the subject fire-and-forget results are published on.
func (c *Config) BridgeResultSubject() string {
	if c.ResultSubject != "" {
		return c.ResultSubject
	}
	return commsutil.BuildResultSubject(c.COMMSName)
}
