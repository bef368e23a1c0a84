// Package config loads the orchestrator configuration from YAML and watches
// it for changes so scoring weights can be reloaded without a restart.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/rank"
	"github.com/tripweaver/tripweaver/internal/travel"
)

// Duration wraps time.Duration so YAML accepts "8s" style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "postgres", "etcd".
	Backend   string   `yaml:"backend"`
	Path      string   `yaml:"path"`
	DSN       string   `yaml:"dsn"`
	Endpoints []string `yaml:"endpoints"`
}

// NLUConfig configures slot extraction.
type NLUConfig struct {
	// Model is a provider-prefixed model string ("openai/gpt-4o-mini").
	// Empty means the rule-based extractor.
	Model string `yaml:"model"`
}

// WorkerConfig configures one domain's search worker.
type WorkerConfig struct {
	// Kind is "process", "http", or "stub".
	Kind    string   `yaml:"kind"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"api_key"`
}

// DomainConfig overrides one domain's slot dependency rule. Omitted
// fields keep the built-in table's values.
type DomainConfig struct {
	// Deps are the slots whose change re-dispatches the domain.
	Deps []string `yaml:"deps"`
	// Required are the slots the domain cannot run without.
	Required []string `yaml:"required"`
	// Prompts are slots worth asking for even though the domain can run.
	Prompts []string `yaml:"prompts"`
}

// DispatchConfig bounds concurrent search execution.
type DispatchConfig struct {
	Concurrency int      `yaml:"concurrency"`
	TaskTimeout Duration `yaml:"task_timeout"`
	RetryWait   Duration `yaml:"retry_wait"`
}

// ScoringConfig configures package ranking.
type ScoringConfig struct {
	Weights     rank.Weights `yaml:"weights"`
	MaxPackages int          `yaml:"max_packages"`
	Filter      string       `yaml:"filter"`
}

// SessionConfig configures session lifecycle.
type SessionConfig struct {
	Expiry Duration `yaml:"expiry"`
	// SweepSchedule is a cron expression for the expiry sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ArchiveConfig configures S3 transcript archiving. An empty bucket
// disables archiving.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Config is the full orchestrator configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Store    StoreConfig             `yaml:"store"`
	NLU      NLUConfig               `yaml:"nlu"`
	Workers  map[string]WorkerConfig `yaml:"workers"`
	Domains  map[string]DomainConfig `yaml:"domains"`
	Dispatch DispatchConfig          `yaml:"dispatch"`
	Scoring  ScoringConfig           `yaml:"scoring"`
	Session  SessionConfig           `yaml:"session"`
	Archive  ArchiveConfig           `yaml:"archive"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Backend: "memory"},
		Dispatch: DispatchConfig{
			Concurrency: 4,
			TaskTimeout: Duration(8 * time.Second),
			RetryWait:   Duration(500 * time.Millisecond),
		},
		Scoring: ScoringConfig{
			Weights:     rank.DefaultWeights(),
			MaxPackages: 3,
		},
		Session: SessionConfig{
			Expiry:        Duration(24 * time.Hour),
			SweepSchedule: "@every 1h",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// PlanRules returns the domain dependency table, with any configured
// overrides applied over the built-in defaults. Omitted fields of an
// override keep the default rule's values.
func (c *Config) PlanRules() plan.Rules {
	rules := plan.DefaultRules()
	for name, dc := range c.Domains {
		domain := travel.Domain(name)
		rule := rules[domain]
		if len(dc.Deps) > 0 {
			rule.Deps = dc.Deps
		}
		if len(dc.Required) > 0 {
			rule.Required = dc.Required
		}
		if len(dc.Prompts) > 0 {
			rule.Prompts = dc.Prompts
		}
		rules[domain] = rule
	}
	return rules
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "":
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for file backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn required for postgres backend")
		}
	case "etcd":
		if len(c.Store.Endpoints) == 0 {
			return fmt.Errorf("store.endpoints required for etcd backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	for name := range c.Domains {
		switch travel.Domain(name) {
		case travel.DomainFlights, travel.DomainHotels, travel.DomainExperiences:
		default:
			return fmt.Errorf("domains.%s: unknown domain", name)
		}
	}

	for domain, w := range c.Workers {
		switch w.Kind {
		case "process":
			if w.Command == "" {
				return fmt.Errorf("workers.%s: command required for process kind", domain)
			}
		case "http":
			if w.URL == "" {
				return fmt.Errorf("workers.%s: url required for http kind", domain)
			}
		case "stub":
		default:
			return fmt.Errorf("workers.%s: unknown kind %q", domain, w.Kind)
		}
	}
	return nil
}
