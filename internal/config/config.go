package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`         // listen address (e.g., ":8080")
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS / WebSocket origin patterns
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // JWT signing secret
}

// TelemetryConfig contains realtime relay settings.
type TelemetryConfig struct {
	OfflineGrace   time.Duration `yaml:"offline_grace"`   // how long an offline session survives before purge
	CommandTimeout time.Duration `yaml:"command_timeout"` // bounded wait for a drone's command confirmation
}

// Load loads configuration from environment variables (and an optional
// YAML file named by CONFIG_PATH, with env vars taking precedence for
// the secret). JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET
// in development. WARNING: Only use in development! Use Load() in
// production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:        getEnv("HTTP_ADDRESS", ":8080"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "fleet.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Telemetry: TelemetryConfig{
			OfflineGrace:   getEnvDuration("TELEMETRY_OFFLINE_GRACE", 5*time.Minute),
			CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 10*time.Second),
		},
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Expand ${VAR} references before parsing.
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{HTTP: %s, DB: %s, Auth: *** (masked) ***, OfflineGrace: %s, CommandTimeout: %s}",
		c.Server.Address, c.Database.Path, c.Telemetry.OfflineGrace, c.Telemetry.CommandTimeout)
}
