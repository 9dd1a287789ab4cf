// Package config loads the kernel's configuration from an optional YAML
// file plus environment overrides (spec §6.3), the way the teacher's
// config.Loader layers defaults -> file -> env, but flattened to the
// literal environment variable names this system's operators set rather
// than a nested AGENTFLOW_-prefixed tree.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the kernel's complete runtime configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	StorageRoot string `yaml:"storage_root" env:"STORAGE_ROOT"`

	HTTPHost                          string `yaml:"http_host" env:"HTTP_HOST"`
	HTTPPort                          int    `yaml:"http_port" env:"HTTP_PORT"`
	HTTPPath                          string `yaml:"http_path" env:"HTTP_PATH"`
	HTTPBearerToken                   string `yaml:"http_bearer_token" env:"HTTP_BEARER_TOKEN"`
	HTTPBearerJWTSecret               string `yaml:"http_bearer_jwt_secret" env:"HTTP_BEARER_JWT_SECRET"`
	HTTPAllowLocalhostUnauthenticated bool   `yaml:"http_allow_localhost_unauthenticated" env:"HTTP_ALLOW_LOCALHOST_UNAUTHENTICATED"`

	ReuseRunning  bool   `yaml:"am_reuse_running" env:"AM_REUSE_RUNNING"`
	InterfaceMode string `yaml:"am_interface_mode" env:"AM_INTERFACE_MODE"`

	AckSweepInterval             time.Duration `yaml:"ack_sweep_interval" env:"ACK_SWEEP_INTERVAL"`
	ReservationForceReleaseGrace time.Duration `yaml:"reservation_force_release_grace" env:"RESERVATION_FORCE_RELEASE_GRACE"`

	DBMaxRetries     int           `yaml:"db_max_retries" env:"DB_MAX_RETRIES"`
	DBRetryBaseDelay time.Duration `yaml:"db_retry_base_delay" env:"DB_RETRY_BASE_DELAY"`

	DBPoolMaxOpenConns    int           `yaml:"db_pool_max_open_conns" env:"DB_POOL_MAX_OPEN_CONNS"`
	DBPoolMaxIdleConns    int           `yaml:"db_pool_max_idle_conns" env:"DB_POOL_MAX_IDLE_CONNS"`
	DBPoolConnMaxLifetime time.Duration `yaml:"db_pool_conn_max_lifetime" env:"DB_POOL_CONN_MAX_LIFETIME"`
	DBPoolConnMaxIdleTime time.Duration `yaml:"db_pool_conn_max_idle_time" env:"DB_POOL_CONN_MAX_IDLE_TIME"`
	DBStatsInterval       time.Duration `yaml:"db_stats_interval" env:"DB_STATS_INTERVAL"`

	OTLPEndpoint string `yaml:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsPort  int    `yaml:"metrics_port" env:"METRICS_PORT"`

	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls the zap logger built by NewLogger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LOG_LEVEL"`
	Format           string   `yaml:"format" env:"LOG_FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"LOG_OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"LOG_ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"LOG_ENABLE_STACKTRACE"`
}

// TelemetryConfig controls the OTel SDK bootstrap in internal/telemetry.
// Enabled is derived, not configured directly: tracing turns on exactly
// when OTLPEndpoint is non-empty.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	SampleRate   float64
}

// Telemetry derives the telemetry sub-config from the loaded Config.
func (c *Config) Telemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      c.OTLPEndpoint != "",
		OTLPEndpoint: c.OTLPEndpoint,
		ServiceName:  "agentmail",
		SampleRate:   0.1,
	}
}

// DefaultConfig returns the spec-mandated defaults (spec §6.3, §4.5, §4.6).
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:   "sqlite://agentmail.db",
		StorageRoot:   ".agentmail/storage",
		HTTPHost:      "127.0.0.1",
		HTTPPort:      8765,
		HTTPPath:      "/mcp/",
		ReuseRunning:  true,
		InterfaceMode: "mcp",

		AckSweepInterval:             60 * time.Second,
		ReservationForceReleaseGrace: 10 * time.Second,

		DBMaxRetries:     5,
		DBRetryBaseDelay: time.Millisecond,

		DBPoolMaxOpenConns:    10,
		DBPoolMaxIdleConns:    5,
		DBPoolConnMaxLifetime: time.Hour,
		DBPoolConnMaxIdleTime: 10 * time.Minute,
		DBStatsInterval:       15 * time.Second,

		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Validate rejects configurations that would make the kernel unsafe or
// unable to start (spec §6.3, §7 InvalidArgument-class checks applied to
// the server's own bootstrap inputs).
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, "database_url must not be empty")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		problems = append(problems, "http_port must be between 1 and 65535")
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		problems = append(problems, "metrics_port must be between 0 and 65535")
	}
	if c.InterfaceMode != "mcp" && c.InterfaceMode != "cli" {
		problems = append(problems, "am_interface_mode must be \"mcp\" or \"cli\"")
	}
	if c.AckSweepInterval <= 0 {
		problems = append(problems, "ack_sweep_interval must be positive")
	}
	if c.ReservationForceReleaseGrace < 0 {
		problems = append(problems, "reservation_force_release_grace must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		problems = append(problems, "tls_cert_file and tls_key_file must both be set or both be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
	}
	return nil
}
