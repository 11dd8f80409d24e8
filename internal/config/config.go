package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StorageSQLite    = "sqlite"
	StorageRedis     = "redis"
)

const (
	defaultHistoryLimit = 5
	maxHistoryLimit     = 20

	defaultShiftSignificance = 0.7
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // memory, firestore, sqlite or redis
	SQLitePath     string
	RedisAddr      string
	UseMockLLM     bool // true = use mock even on GCP

	// HistoryLimit is how many previous signals feed each turn.
	HistoryLimit int
	// DefaultShiftSignificance scores archetype transitions missing from the
	// catalog's relationship table.
	DefaultShiftSignificance float64
	LogLevel                 string
	// CatalogPath points to a YAML archetype catalog; empty uses the built-in one.
	CatalogPath string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	modeStr := getEnv("MIRROR_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	historyLimit, err := getIntEnv("MIRROR_HISTORY_LIMIT", defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	shiftSignificance, err := getFloatEnv("MIRROR_DEFAULT_SHIFT_SIGNIFICANCE", defaultShiftSignificance)
	if err != nil {
		return nil, err
	}
	if shiftSignificance < 0 || shiftSignificance > 1 {
		return nil, fmt.Errorf("MIRROR_DEFAULT_SHIFT_SIGNIFICANCE must be within [0,1], got %v", shiftSignificance)
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("MIRROR_PORT", "8080"),

		GCPProjectID: getEnv("MIRROR_GCP_PROJECT", ""),
		GCPLocation:  getEnv("MIRROR_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("MIRROR_MODEL_NAME", "gemini-2.5-flash-lite"),

		StorageBackend: strings.ToLower(getEnv("MIRROR_STORAGE_BACKEND", StorageMemory)),
		SQLitePath:     getEnv("MIRROR_SQLITE_PATH", "data/mirror.db"),
		RedisAddr:      getEnv("MIRROR_REDIS_ADDR", "localhost:6379"),
		UseMockLLM:     getBoolEnv("MIRROR_USE_MOCK_LLM", mode == ModeLocal),

		HistoryLimit:             min(max(historyLimit, 1), maxHistoryLimit),
		DefaultShiftSignificance: shiftSignificance,
		LogLevel:                 getEnv("MIRROR_LOG_LEVEL", "info"),
		CatalogPath:              getEnv("MIRROR_CATALOG_PATH", ""),
	}

	switch cfg.StorageBackend {
	case StorageMemory, StorageFirestore, StorageSQLite, StorageRedis:
	default:
		return nil, fmt.Errorf("unknown MIRROR_STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("MIRROR_GCP_PROJECT must be set in gcp mode")
	}
	if cfg.StorageBackend == StorageFirestore && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("MIRROR_GCP_PROJECT must be set for firestore storage")
	}

	return cfg, nil
}
