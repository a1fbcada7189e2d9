package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is assembled in three layers: built-in defaults, then an optional
// YAML file, then environment variables. Environment always wins.
type Config struct {
	ChatPort  int `yaml:"chat_port"`
	EmailPort int `yaml:"email_port"`
	SimPort   int `yaml:"sim_port"`

	EmailURL string `yaml:"email_url"`
	ChatURL  string `yaml:"chat_url"`
	SimURL   string `yaml:"sim_url"`

	DatasetRoot    string `yaml:"dataset_root"`
	PersonaHandle  string `yaml:"persona_handle"`
	CheckpointPath string `yaml:"checkpoint_path"`

	DBDriver    string `yaml:"db_driver"` // "sqlite" or "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`

	NatsURL string `yaml:"nats_url"`

	PollInterval time.Duration `yaml:"poll_interval"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`

	LogLevel string `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		ChatPort:     8001,
		EmailPort:    8000,
		SimPort:      8015,
		EmailURL:     "http://localhost:8000",
		ChatURL:      "http://localhost:8001",
		SimURL:       "http://localhost:8015",
		DBDriver:     "sqlite",
		SQLitePath:   "officesync.db",
		PollInterval: 30 * time.Second,
		HTTPTimeout:  5 * time.Second,
		LogLevel:     "info",
	}
}

// Load builds the configuration. path may be empty, in which case the YAML
// layer is skipped; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ChatPort = envInt("OFFICESYNC_CHAT_PORT", cfg.ChatPort)
	cfg.EmailPort = envInt("OFFICESYNC_EMAIL_PORT", cfg.EmailPort)
	cfg.SimPort = envInt("OFFICESYNC_SIM_PORT", cfg.SimPort)
	cfg.EmailURL = envStr("OFFICESYNC_EMAIL_URL", cfg.EmailURL)
	cfg.ChatURL = envStr("OFFICESYNC_CHAT_URL", cfg.ChatURL)
	cfg.SimURL = envStr("OFFICESYNC_SIM_URL", cfg.SimURL)
	cfg.DatasetRoot = envStr("OFFICESYNC_DATASET_ROOT", cfg.DatasetRoot)
	cfg.PersonaHandle = envStr("OFFICESYNC_PERSONA", cfg.PersonaHandle)
	cfg.CheckpointPath = envStr("OFFICESYNC_CHECKPOINT", cfg.CheckpointPath)
	cfg.DBDriver = envStr("OFFICESYNC_DB_DRIVER", cfg.DBDriver)
	cfg.SQLitePath = envStr("OFFICESYNC_SQLITE_PATH", cfg.SQLitePath)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.PollInterval = envDuration("OFFICESYNC_POLL_INTERVAL", cfg.PollInterval)
	cfg.HTTPTimeout = envDuration("OFFICESYNC_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return cfg, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("postgres driver requires DATABASE_URL")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
