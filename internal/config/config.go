package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	// DriverMemory keeps micros in process memory.
	DriverMemory = "memory"
	// DriverSQLite stores micros in a SQLite database file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores micros in PostgreSQL.
	DriverPostgres = "postgres"
)

// ConfigurationError reports an invalid setting. It is fatal at startup.
type ConfigurationError struct {
	// Setting is the name of the offending setting.
	Setting string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Setting, e.Reason)
}

// Config stores configuration values for the application.
// These values can be read from a configuration file or environment variables.
type Config struct {
	// ServerAddress is the IP address where the servers will listen.
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	// ServerPort is the port of the REST server.
	ServerPort int `mapstructure:"SERVER_PORT"`
	// GRPCPort is the port of the gRPC health server. Zero disables it.
	GRPCPort int `mapstructure:"GRPC_PORT"`

	// DatabaseDriver selects the store: memory, sqlite or postgres.
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the SQLite file path or the PostgreSQL connection string.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DatabaseMaxOpenConns limits the PostgreSQL connection pool.
	DatabaseMaxOpenConns int `mapstructure:"DATABASE_MAX_OPEN_CONNS"`

	// MicroTTL is how long a registered micro stays resolvable.
	MicroTTL time.Duration `mapstructure:"MICRO_TTL"`
	// MicroWords is the number of vocabulary words joined into one micro.
	MicroWords int `mapstructure:"MICRO_WORDS"`
	// VocabularyFile is an optional word list replacing the embedded one.
	VocabularyFile string `mapstructure:"VOCABULARY_FILE"`
	// MaxGenerateAttempts bounds code generation retries on collisions.
	MaxGenerateAttempts int `mapstructure:"MAX_GENERATE_ATTEMPTS"`
	// SweepInterval is the period of the expired micro sweeper.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	// LookupCacheTTL is the lifetime of cached lookups. Zero disables the cache.
	LookupCacheTTL time.Duration `mapstructure:"LOOKUP_CACHE_TTL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// TracingEnabled turns on OpenTelemetry tracing.
	TracingEnabled bool `mapstructure:"TRACING_ENABLED"`
	// TracingExporter is one of stdout, otlp, none.
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	// TracingOTLPEndpoint is the collector address for the otlp exporter.
	TracingOTLPEndpoint string `mapstructure:"TRACING_OTLP_ENDPOINT"`
	// TracingSampleRate is the fraction of traces sampled.
	TracingSampleRate float64 `mapstructure:"TRACING_SAMPLE_RATE"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":          "",
	"SERVER_PORT":             8080,
	"GRPC_PORT":               9090,
	"DATABASE_DRIVER":         DriverSQLite,
	"DATABASE_URL":            "microurl.db",
	"DATABASE_MAX_OPEN_CONNS": 10,
	"MICRO_TTL":               24 * time.Hour,
	"MICRO_WORDS":             3,
	"VOCABULARY_FILE":         "",
	"MAX_GENERATE_ATTEMPTS":   10,
	"SWEEP_INTERVAL":          10 * time.Minute,
	"LOOKUP_CACHE_TTL":        time.Minute,
	"LOG_LEVEL":               "info",
	"TRACING_ENABLED":         false,
	"TRACING_EXPORTER":        "stdout",
	"TRACING_OTLP_ENDPOINT":   "localhost:4317",
	"TRACING_SAMPLE_RATE":     1.0,
}

// Load loads configuration settings from a specified file or environment variables.
// If both a configuration file and environment variables are used, environment variables take precedence.
// An empty filePath loads defaults and environment variables only.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if filePath != "" {
		v.SetConfigFile(filePath)
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// Validate checks the settings that cannot be recovered from at runtime.
func (c *Config) Validate() error {
	switch {
	case c.MicroTTL <= 0:
		return &ConfigurationError{Setting: "MICRO_TTL", Reason: "must be positive"}
	case c.MicroWords <= 0:
		return &ConfigurationError{Setting: "MICRO_WORDS", Reason: "must be positive"}
	case c.MaxGenerateAttempts <= 0:
		return &ConfigurationError{Setting: "MAX_GENERATE_ATTEMPTS", Reason: "must be positive"}
	case c.SweepInterval <= 0:
		return &ConfigurationError{Setting: "SWEEP_INTERVAL", Reason: "must be positive"}
	case c.LookupCacheTTL < 0:
		return &ConfigurationError{Setting: "LOOKUP_CACHE_TTL", Reason: "must not be negative"}
	case c.ServerPort <= 0:
		return &ConfigurationError{Setting: "SERVER_PORT", Reason: "must be positive"}
	case c.GRPCPort < 0:
		return &ConfigurationError{Setting: "GRPC_PORT", Reason: "must not be negative"}
	}

	switch c.DatabaseDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.DatabaseURL == "" {
			return &ConfigurationError{Setting: "DATABASE_URL", Reason: "required for driver " + c.DatabaseDriver}
		}
	default:
		return &ConfigurationError{Setting: "DATABASE_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", c.DatabaseDriver)}
	}

	return nil
}
