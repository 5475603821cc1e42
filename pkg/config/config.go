// Package config loads service settings from an optional YAML or TOML file
// and then applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type Neo4j struct {
	URL      string `yaml:"url" toml:"url"`
	User     string `yaml:"user" toml:"user"`
	Pass     string `yaml:"pass" toml:"pass"`
	Database string `yaml:"database" toml:"database"`
}

type Qdrant struct {
	URL        string `yaml:"url" toml:"url"`
	Collection string `yaml:"collection" toml:"collection"`
}

type Ollama struct {
	URL   string `yaml:"url" toml:"url"`
	Model string `yaml:"model" toml:"model"`
	// EmbedRPS throttles embedding calls during index sync.
	EmbedRPS float64 `yaml:"embed_rps" toml:"embed_rps"`
}

type Sync struct {
	Interval Duration `yaml:"interval" toml:"interval"`
	Ledger   string   `yaml:"ledger" toml:"ledger"`
	Workers  int      `yaml:"workers" toml:"workers"`
	// Schedule is a cron expression for search-sync; empty means one-shot.
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// Config is shared by every binary; each reads the parts it needs.
type Config struct {
	Port        string `yaml:"port" toml:"port"`
	MetricsPort string `yaml:"metrics_port" toml:"metrics_port"`
	NATSURL     string `yaml:"nats_url" toml:"nats_url"`
	DataDir     string `yaml:"data_dir" toml:"data_dir"`
	CORSOrigin  string `yaml:"cors_origin" toml:"cors_origin"`
	FoldCase    bool   `yaml:"decode_fold_case" toml:"decode_fold_case"`
	Neo4j       Neo4j  `yaml:"neo4j" toml:"neo4j"`
	Qdrant      Qdrant `yaml:"qdrant" toml:"qdrant"`
	Ollama      Ollama `yaml:"ollama" toml:"ollama"`
	Sync        Sync   `yaml:"sync" toml:"sync"`
}

// Default returns the settings used for local development.
func Default() Config {
	return Config{
		Port:        "8080",
		MetricsPort: "9090",
		NATSURL:     "nats://localhost:4222",
		DataDir:     "lib",
		CORSOrigin:  "*",
		Neo4j:       Neo4j{URL: "neo4j://localhost:7687", User: "neo4j", Pass: "password"},
		Qdrant:      Qdrant{URL: "localhost:6334", Collection: "bmwdex"},
		Ollama:      Ollama{URL: "http://localhost:11434", Model: "nomic-embed-text", EmbedRPS: 5},
		Sync: Sync{
			Interval: Duration{5 * time.Minute},
			Ledger:   "sync-ledger.db",
			Workers:  4,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then the environment.
// The file format follows the extension: .yaml, .yml or .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("METRICS_PORT", &cfg.MetricsPort)
	str("NATS_URL", &cfg.NATSURL)
	str("DATA_DIR", &cfg.DataDir)
	str("CORS_ORIGIN", &cfg.CORSOrigin)
	str("NEO4J_URL", &cfg.Neo4j.URL)
	str("NEO4J_USER", &cfg.Neo4j.User)
	str("NEO4J_PASS", &cfg.Neo4j.Pass)
	str("NEO4J_DATABASE", &cfg.Neo4j.Database)
	str("QDRANT_URL", &cfg.Qdrant.URL)
	str("QDRANT_COLLECTION", &cfg.Qdrant.Collection)
	str("OLLAMA_URL", &cfg.Ollama.URL)
	str("OLLAMA_MODEL", &cfg.Ollama.Model)
	str("SYNC_LEDGER", &cfg.Sync.Ledger)
	str("SYNC_SCHEDULE", &cfg.Sync.Schedule)

	if v := getenv("DECODE_FOLD_CASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: DECODE_FOLD_CASE: %w", err)
		}
		cfg.FoldCase = b
	}
	if v := getenv("SYNC_INTERVAL"); v != "" {
		if err := cfg.Sync.Interval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: SYNC_INTERVAL: %w", err)
		}
	}
	if v := getenv("OLLAMA_EMBED_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: OLLAMA_EMBED_RPS: %w", err)
		}
		cfg.Ollama.EmbedRPS = f
	}
	if v := getenv("SYNC_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SYNC_WORKERS: %w", err)
		}
		cfg.Sync.Workers = n
	}
	return nil
}

// Validate rejects settings no binary can run with.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("config: port is required")
	case c.Sync.Interval.Duration <= 0:
		return fmt.Errorf("config: sync interval must be positive, got %s", c.Sync.Interval)
	case c.Sync.Workers < 1:
		return fmt.Errorf("config: sync workers must be at least 1, got %d", c.Sync.Workers)
	case c.Ollama.EmbedRPS <= 0:
		return fmt.Errorf("config: ollama embed_rps must be positive")
	}
	return nil
}
