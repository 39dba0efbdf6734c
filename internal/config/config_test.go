package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"COMMS_URL", "SERVICE_NAME", "HOST_NAME",
	"BRIDGE_REQUEST_SUBJECT", "BRIDGE_RESPONSE_SUBJECT", "BRIDGE_INVOKE_SUBJECT", "BRIDGE_RESULT_SUBJECT",
	"BRIDGE_CODEC", "INVOKE_TIMEOUT", "APPLICATION_DID",
	"HOST_VERSION_CONSTRAINT", "HANDSHAKE_TIMEOUT",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range allEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "intent-bridge" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "intent-bridge")
	}
	if cfg.HostName != "essentials" {
		t.Errorf("config:config_test - HostName = %q, want %q", cfg.HostName, "essentials")
	}
	if cfg.Codec != "json" {
		t.Errorf("config:config_test - Codec = %q, want json", cfg.Codec)
	}
	if cfg.InvokeTimeout != 0 {
		t.Errorf("config:config_test - InvokeTimeout = %v, want disabled", cfg.InvokeTimeout)
	}
	if cfg.ApplicationDID != "" || cfg.HostVersionConstraint != "" {
		t.Errorf("config:config_test - expected empty identity and constraint")
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("config:config_test - HandshakeTimeout = %v, want 10s", cfg.HandshakeTimeout)
	}
	if cfg.DatabaseURL != "" || cfg.JournalEnabled() {
		t.Errorf("config:config_test - expected journal disabled by default")
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "migrations")
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should be servable: %v", err)
	}
}

func TestLoadConfig_DerivedSubjects(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"request", cfg.BridgeRequestSubject(), "bridge.essentials.request"},
		{"response", cfg.BridgeResponseSubject(), "bridge.essentials.response.intent-bridge"},
		{"invoke", cfg.BridgeInvokeSubject(), "bridge.intent-bridge.invoke"},
		{"result", cfg.BridgeResultSubject(), "bridge.intent-bridge.results"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("config:config_test - %s subject = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"COMMS_URL":               "nats://custom:4222",
		"SERVICE_NAME":            "test-bridge",
		"HOST_NAME":               "wallet",
		"BRIDGE_REQUEST_SUBJECT":  "custom.req",
		"BRIDGE_RESPONSE_SUBJECT": "custom.resp",
		"BRIDGE_INVOKE_SUBJECT":   "custom.invoke",
		"BRIDGE_RESULT_SUBJECT":   "custom.results",
		"BRIDGE_CODEC":            "msgpack",
		"INVOKE_TIMEOUT":          "30s",
		"APPLICATION_DID":         "did:elastos:app",
		"HOST_VERSION_CONSTRAINT": "^2.0.0",
		"HANDSHAKE_TIMEOUT":       "3s",
		"DATABASE_URL":            "postgres://test@localhost/test",
		"RUN_MIGRATIONS":          "true",
		"MIGRATION_PATH":          "/tmp/migrations",
		"HTTP_PORT":               "9090",
		"HEALTH_CHECK_TIMEOUT":    "10s",
		"LOG_LEVEL":               "debug",
	}

	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "test-bridge" || cfg.HostName != "wallet" {
		t.Errorf("config:config_test - unexpected COMMS settings %q %q %q", cfg.COMMSURL, cfg.COMMSName, cfg.HostName)
	}
	if cfg.BridgeRequestSubject() != "custom.req" || cfg.BridgeResponseSubject() != "custom.resp" {
		t.Errorf("config:config_test - subject overrides not applied")
	}
	if cfg.BridgeInvokeSubject() != "custom.invoke" || cfg.BridgeResultSubject() != "custom.results" {
		t.Errorf("config:config_test - subject overrides not applied")
	}
	if cfg.Codec != "msgpack" {
		t.Errorf("config:config_test - Codec = %q, want msgpack", cfg.Codec)
	}
	if cfg.InvokeTimeout != 30*time.Second {
		t.Errorf("config:config_test - InvokeTimeout = %v, want 30s", cfg.InvokeTimeout)
	}
	if cfg.ApplicationDID != "did:elastos:app" {
		t.Errorf("config:config_test - ApplicationDID = %q", cfg.ApplicationDID)
	}
	if cfg.HostVersionConstraint != "^2.0.0" || cfg.HandshakeTimeout != 3*time.Second {
		t.Errorf("config:config_test - unexpected handshake settings %q %v", cfg.HostVersionConstraint, cfg.HandshakeTimeout)
	}
	if !cfg.JournalEnabled() || !cfg.RunMigrations || cfg.MigrationPath != "/tmp/migrations" {
		t.Errorf("config:config_test - unexpected database settings")
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 10*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 10s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{
			COMMSURL:           "nats://127.0.0.1:4222",
			COMMSName:          "intent-bridge",
			HostName:           "essentials",
			Codec:              "json",
			HandshakeTimeout:   10 * time.Second,
			HealthCheckTimeout: 5 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty comms url", func(c *Config) { c.COMMSURL = "" }, true},
		{"empty host", func(c *Config) { c.HostName = "" }, true},
		{"unknown codec", func(c *Config) { c.Codec = "protobuf" }, true},
		{"negative invoke timeout", func(c *Config) { c.InvokeTimeout = -time.Second }, true},
		{"constraint without handshake timeout", func(c *Config) {
			c.HostVersionConstraint = "^2.0.0"
			c.HandshakeTimeout = 0
		}, true},
		{"migrations without database", func(c *Config) { c.RunMigrations = true }, true},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.ValidateForServe(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	if err := (&Config{}).ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	if err := (&Config{DatabaseURL: "postgres://x@localhost/db"}).ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}

func TestLoadConfig_LogLevels(t *testing.T) {
	clearEnv()
	for _, level := range []string{"debug", "info", "warn", "error"} {
		os.Setenv("LOG_LEVEL", level)
		cfg, err := LoadConfig()
		os.Unsetenv("LOG_LEVEL")

		if err != nil {
			t.Fatalf("config:config_test - unexpected error for level %q: %v", level, err)
		}
		if cfg.LogLevel != level {
			t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, level)
		}
	}
}
