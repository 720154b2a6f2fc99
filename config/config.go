package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends the binary knows how to open.
var Backends = []string{"memory", "redis", "sqlite", "mysql", "neo4j"}

// Config holds all application configuration
type Config struct {
	ServerPort      int           `json:"server_port" toml:"port"`
	LogLevel        string        `json:"log_level" toml:"log_level"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" toml:"shutdown_timeout"`
	Version         string        `json:"version" toml:"version"`

	// Storage
	StorageBackend string        `json:"storage_backend" toml:"storage_backend"`
	PersistTimeout time.Duration `json:"persist_timeout" toml:"persist_timeout"` // 0 waits forever
	RedisURL       string        `json:"redis_url" toml:"redis_url"`
	RedisKey       string        `json:"redis_key" toml:"redis_key"` // hash holding the tasks
	SQLitePath     string        `json:"sqlite_path" toml:"sqlite_path"`
	MySQLDSN       string        `json:"-" toml:"mysql_dsn"`
	Neo4jURI       string        `json:"neo4j_uri" toml:"neo4j_uri"`
	Neo4jUser      string        `json:"neo4j_user" toml:"neo4j_user"`
	Neo4jPassword  string        `json:"-" toml:"neo4j_password"`
	Neo4jDatabase  string        `json:"neo4j_database" toml:"neo4j_database"`

	// Event relay, disabled while RelayRedisURL is empty
	RelayRedisURL string `json:"relay_redis_url" toml:"relay_redis_url"`
	RelayQueue    string `json:"relay_queue" toml:"relay_queue"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ServerPort:      8080,
		LogLevel:        "INFO",
		ShutdownTimeout: 15 * time.Second,
		Version:         "1.0.0",
		StorageBackend:  "memory",
		RedisURL:        "redis://localhost:6379",
		RedisKey:        "tasks",
		SQLitePath:      "data/tasks.db",
		Neo4jURI:        "neo4j://localhost:7687",
		Neo4jUser:       "neo4j",
		RelayQueue:      "task_events",
	}
}

// LoadConfig builds the configuration from defaults, then the TOML file
// named by CONFIG_FILE if set, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServerPort = getEnvInt("PORT", cfg.ServerPort)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.Version = getEnvString("VERSION", cfg.Version)
	cfg.StorageBackend = getEnvString("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.PersistTimeout = getEnvDuration("PERSIST_TIMEOUT", cfg.PersistTimeout)
	cfg.RedisURL = getEnvString("REDIS_URL", cfg.RedisURL)
	cfg.RedisKey = getEnvString("REDIS_KEY", cfg.RedisKey)
	cfg.SQLitePath = getEnvString("SQLITE_PATH", cfg.SQLitePath)
	cfg.MySQLDSN = getEnvString("MYSQL_DSN", cfg.MySQLDSN)
	cfg.Neo4jURI = getEnvString("NEO4J_URI", cfg.Neo4jURI)
	cfg.Neo4jUser = getEnvString("NEO4J_USER", cfg.Neo4jUser)
	cfg.Neo4jPassword = getEnvString("NEO4J_PASSWORD", cfg.Neo4jPassword)
	cfg.Neo4jDatabase = getEnvString("NEO4J_DATABASE", cfg.Neo4jDatabase)
	cfg.RelayRedisURL = getEnvString("RELAY_REDIS_URL", cfg.RelayRedisURL)
	cfg.RelayQueue = getEnvString("RELAY_QUEUE", cfg.RelayQueue)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// RelayEnabled reports whether notifications are forwarded to Redis.
func (c *Config) RelayEnabled() bool {
	return c.RelayRedisURL != ""
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// validate performs basic validation of the configuration
func (c *Config) validate() error {
	// Validate ServerPort
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d: must be between 1 and 65535", c.ServerPort)
	}

	// Validate and normalize LogLevel
	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true,
	}
	upperLevel := strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if !validLevels[upperLevel] {
		return fmt.Errorf("invalid log level '%s': must be DEBUG, INFO, WARN, ERROR, or FATAL", c.LogLevel)
	}
	c.LogLevel = upperLevel

	// Validate ShutdownTimeout
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout)
	}
	if c.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("invalid shutdown timeout %v: must not exceed 5 minutes", c.ShutdownTimeout)
	}

	// Validate Version
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("version cannot be empty")
	}
	c.Version = strings.TrimSpace(c.Version)

	if c.PersistTimeout < 0 {
		return fmt.Errorf("invalid persist timeout %v: must not be negative", c.PersistTimeout)
	}

	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if !slices.Contains(Backends, c.StorageBackend) {
		return fmt.Errorf("invalid storage backend '%s': must be one of %s", c.StorageBackend, strings.Join(Backends, ", "))
	}

	switch c.StorageBackend {
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("redis URL cannot be empty when the redis backend is selected")
		}
		if strings.TrimSpace(c.RedisKey) == "" {
			return fmt.Errorf("redis key cannot be empty when the redis backend is selected")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite path cannot be empty when the sqlite backend is selected")
		}
	case "mysql":
		if strings.TrimSpace(c.MySQLDSN) == "" {
			return fmt.Errorf("mysql DSN cannot be empty when the mysql backend is selected")
		}
	case "neo4j":
		if strings.TrimSpace(c.Neo4jURI) == "" {
			return fmt.Errorf("neo4j URI cannot be empty when the neo4j backend is selected")
		}
	}

	if c.RelayEnabled() && strings.TrimSpace(c.RelayQueue) == "" {
		return fmt.Errorf("relay queue cannot be empty when the relay is enabled")
	}

	return nil
}
