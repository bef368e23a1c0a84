package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/travel"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tripweaver.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Dispatch.TaskTimeout.Std() != 8*time.Second {
		t.Errorf("TaskTimeout = %v, want 8s", cfg.Dispatch.TaskTimeout.Std())
	}
	if cfg.Scoring.Weights.Price != 0.5 {
		t.Errorf("Weights.Price = %v, want 0.5", cfg.Scoring.Weights.Price)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  api_key: secret
store:
  backend: file
  path: /tmp/sessions
dispatch:
  concurrency: 8
  task_timeout: 12s
scoring:
  weights:
    price: 0.4
    quality: 0.4
    fit: 0.2
  filter: "total_price < 2000"
workers:
  flights:
    kind: process
    command: search-flights
  hotels:
    kind: http
    url: http://localhost:9100/search
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Dispatch.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Dispatch.Concurrency)
	}
	if cfg.Dispatch.TaskTimeout.Std() != 12*time.Second {
		t.Errorf("TaskTimeout = %v, want 12s", cfg.Dispatch.TaskTimeout.Std())
	}
	if cfg.Dispatch.RetryWait.Std() != 500*time.Millisecond {
		t.Errorf("RetryWait = %v, want default 500ms", cfg.Dispatch.RetryWait.Std())
	}
	if cfg.Scoring.Weights.Quality != 0.4 {
		t.Errorf("Weights.Quality = %v, want 0.4", cfg.Scoring.Weights.Quality)
	}
	if cfg.Workers["flights"].Command != "search-flights" {
		t.Errorf("flights worker command = %q, want search-flights", cfg.Workers["flights"].Command)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: redis\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted unknown store backend")
	}
}

func TestLoadRejectsIncompleteWorker(t *testing.T) {
	path := writeConfig(t, "workers:\n  flights:\n    kind: process\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted process worker without command")
	}
}

func TestPlanRulesOverrides(t *testing.T) {
	path := writeConfig(t, `
domains:
  hotels:
    required: [destination, start_date, end_date, neighborhood]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	rules := cfg.PlanRules()

	hotels := rules[travel.DomainHotels]
	if len(hotels.Required) != 4 || hotels.Required[3] != "neighborhood" {
		t.Errorf("hotels.Required = %v, want override with neighborhood", hotels.Required)
	}
	if len(hotels.Deps) == 0 {
		t.Error("hotels.Deps lost default value when only required was overridden")
	}

	flights := rules[travel.DomainFlights]
	want := plan.DefaultRules()[travel.DomainFlights]
	if len(flights.Deps) != len(want.Deps) {
		t.Errorf("flights rule changed without an override: %v", flights.Deps)
	}
}

func TestLoadRejectsUnknownDomain(t *testing.T) {
	path := writeConfig(t, "domains:\n  cruises:\n    required: [destination]\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted unknown domain override")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "dispatch:\n  task_timeout: fast\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted unparseable duration")
	}
}
