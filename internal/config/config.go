// Package config provides configuration management for Keepsake.
// It loads settings from environment variables with the KEEPSAKE_ prefix and
// provides sensible defaults for all configuration options, validated once at
// load time.
//
// Runtime-mutable provider settings (model, api key, prompts) live in the
// settings service instead; this package only covers process configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backend identifiers for StorageConfig.Backend.
const (
	BackendTemporalTree  = "temporal-tree"
	BackendKeywordVector = "keyword-vector"
	BackendSimpleStore   = "simple-store"
)

// Storage engine identifiers for StorageConfig.Engine.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Config holds all configuration settings for the Keepsake application.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Memory  MemoryConfig
	History HistoryConfig
	Context ContextConfig
	Import  ImportConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7270)
	Host string // Server host (default: 127.0.0.1)

	// RateLimitPerSecond caps inbound requests per client; 0 disables.
	RateLimitPerSecond int
	RateLimitBurst     int
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Backend selects the memory store variant: temporal-tree (default),
	// keyword-vector, or simple-store. The set is closed; selection happens
	// once at construction.
	Backend string

	// Engine is the SQL engine for the keyword-vector and simple-store
	// backends: sqlite (default) or postgres.
	Engine string

	DataPath    string // directory for JSON snapshots and sqlite files (default: ./data)
	SQLitePath  string // sqlite database file (default: <DataPath>/keepsake.db)
	PostgresDSN string // postgres connection string, required when Engine=postgres

	SeedDemoData bool // insert demo memories into an empty store (default: false)
}

// MemoryConfig tunes the memory engine.
type MemoryConfig struct {
	// CoreImportanceThreshold partitions core memories from the relevance
	// pool (default: 0.8).
	CoreImportanceThreshold float64

	// RelevanceLimit bounds the ranked context pool (default: 30).
	RelevanceLimit int

	ConsolidationIntervalHours int // default: 24
	ShortTermRetentionHours    int // default: 48
	DailySummaryMaxLength      int // default: 500
}

// HistoryConfig tunes conversation history handling.
type HistoryConfig struct {
	Strategy             string // compression (default) or sliding_window
	WindowBudget         int    // sliding-window token budget (default: 1200)
	MaxTurns             int    // raw history cap is 2×MaxTurns messages (default: 10)
	HotTailMessages      int    // verbatim tail under compression (default: 4)
	CompressionThreshold int    // default: 1000
	CompressionTarget    int    // default: 200
}

// ContextConfig carries the context assembler token budgets.
type ContextConfig struct {
	PersonaBudget int // default: 450
	StateBudget   int // default: 300
	MemoryBudget  int // default: 900
	ToolBudget    int // default: 600
	TotalBudget   int // default: 2200
}

// ImportConfig configures transcript import.
type ImportConfig struct {
	// WatchDir is a drop directory scanned for transcript files; empty
	// disables the watcher.
	WatchDir string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults and validates it. All environment variables use the KEEPSAKE_
// prefix.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints once at load time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Backend {
	case BackendTemporalTree, BackendKeywordVector, BackendSimpleStore:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.Engine {
	case EngineSQLite:
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres engine requires KEEPSAKE_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Memory.CoreImportanceThreshold <= 0 || c.Memory.CoreImportanceThreshold > 1 {
		return fmt.Errorf("config: core importance threshold %v out of (0,1]", c.Memory.CoreImportanceThreshold)
	}
	return nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	dataPath := getEnv("KEEPSAKE_DATA_PATH", "./data")
	return &Config{
		Server: ServerConfig{
			Port:               getEnvInt("KEEPSAKE_PORT", 7270),
			Host:               getEnv("KEEPSAKE_HOST", "127.0.0.1"),
			RateLimitPerSecond: getEnvInt("KEEPSAKE_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getEnvInt("KEEPSAKE_RATE_LIMIT_BURST", 20),
		},
		Storage: StorageConfig{
			Backend:      getEnv("KEEPSAKE_STORAGE_BACKEND", BackendTemporalTree),
			Engine:       getEnv("KEEPSAKE_STORAGE_ENGINE", EngineSQLite),
			DataPath:     dataPath,
			SQLitePath:   getEnv("KEEPSAKE_SQLITE_PATH", dataPath+"/keepsake.db"),
			PostgresDSN:  getEnv("KEEPSAKE_POSTGRES_DSN", ""),
			SeedDemoData: getEnvBool("KEEPSAKE_SEED_DEMO_DATA", false),
		},
		Memory: MemoryConfig{
			CoreImportanceThreshold:    getEnvFloat("KEEPSAKE_CORE_IMPORTANCE_THRESHOLD", 0.8),
			RelevanceLimit:             getEnvInt("KEEPSAKE_RELEVANCE_LIMIT", 30),
			ConsolidationIntervalHours: getEnvInt("KEEPSAKE_CONSOLIDATION_INTERVAL_HOURS", 24),
			ShortTermRetentionHours:    getEnvInt("KEEPSAKE_SHORT_TERM_RETENTION_HOURS", 48),
			DailySummaryMaxLength:      getEnvInt("KEEPSAKE_DAILY_SUMMARY_MAX_LENGTH", 500),
		},
		History: HistoryConfig{
			Strategy:             getEnv("KEEPSAKE_HISTORY_STRATEGY", "compression"),
			WindowBudget:         getEnvInt("KEEPSAKE_HISTORY_WINDOW_BUDGET", 1200),
			MaxTurns:             getEnvInt("KEEPSAKE_HISTORY_MAX_TURNS", 10),
			HotTailMessages:      getEnvInt("KEEPSAKE_HISTORY_HOT_TAIL_MESSAGES", 4),
			CompressionThreshold: getEnvInt("KEEPSAKE_COMPRESSION_THRESHOLD", 1000),
			CompressionTarget:    getEnvInt("KEEPSAKE_COMPRESSION_TARGET", 200),
		},
		Context: ContextConfig{
			PersonaBudget: getEnvInt("KEEPSAKE_BUDGET_PERSONA", 450),
			StateBudget:   getEnvInt("KEEPSAKE_BUDGET_STATE", 300),
			MemoryBudget:  getEnvInt("KEEPSAKE_BUDGET_MEMORY", 900),
			ToolBudget:    getEnvInt("KEEPSAKE_BUDGET_TOOL", 600),
			TotalBudget:   getEnvInt("KEEPSAKE_BUDGET_TOTAL", 2200),
		},
		Import: ImportConfig{
			WatchDir: getEnv("KEEPSAKE_IMPORT_WATCH_DIR", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
