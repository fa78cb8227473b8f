// Package config loads the miner's yaml configuration. The document is validated
// against an embedded JSON schema, then decoded over defaults so unspecified fields keep
// their default values.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaJSON string

type AppConfig struct {
	ServerURL  string `yaml:"server_url"`
	AgentName  string `yaml:"agent_name"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // "console" or "json"
	JournalDir string `yaml:"journal_dir"`
	HistoryDB  string `yaml:"history_db"`
	CatalogDir string `yaml:"catalog_dir"`
	// Schedule is an optional cron spec for recurring sessions.
	Schedule string `yaml:"schedule"`

	Sim SimConfig `yaml:"sim"`

	Mining MiningConfig `yaml:"mining"`
}

// SimConfig drives the in-memory world used by -sim runs.
type SimConfig struct {
	Seed     int64 `yaml:"seed"`
	SurfaceY int   `yaml:"surface_y"`
	Logs     int   `yaml:"logs"`
}

func Default() AppConfig {
	return AppConfig{
		ServerURL:  "ws://localhost:8080/v1/ws",
		AgentName:  "miner",
		LogLevel:   "info",
		LogFormat:  "console",
		JournalDir: "./data/journal",
		HistoryDB:  "./data/history.db",
		Sim: SimConfig{
			Seed:     1337,
			SurfaceY: 80,
			Logs:     5,
		},
		Mining: DefaultMining(),
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Load reads path; a missing path yields defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(raw)
}

// Parse validates and decodes a yaml document over defaults.
func Parse(raw []byte) (AppConfig, error) {
	cfg := Default()
	if err := validateYAML(raw); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	if err := cfg.Mining.Validate(); err != nil {
		return cfg, fmt.Errorf("config.yaml: mining: %w", err)
	}
	return cfg, nil
}

func validateYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON types (json.Number, map[string]any).
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}
	return nil
}
