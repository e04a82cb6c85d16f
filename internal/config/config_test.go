package config

import (
	"testing"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"1500ms", 1500 * time.Millisecond},
		{"bogus", 15 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("TEST_TIMEOUT", tt.value)
		if got := getEnvDuration("TEST_TIMEOUT", 15*time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvFallback(t *testing.T) {
	if got := getEnv("ONBOARD_TEST_UNSET_KEY", "fallback"); got != "fallback" {
		t.Errorf("Expected the fallback, got %q", got)
	}
	t.Setenv("ONBOARD_TEST_SET_KEY", "value")
	if got := getEnv("ONBOARD_TEST_SET_KEY", "fallback"); got != "value" {
		t.Errorf("Expected the env value, got %q", got)
	}
}

func validConfig() *Config {
	return &Config{
		Port:         "8080",
		DBPath:       "./data/onboard.db",
		ResourcesDir: "./resources",
		Heuristics:   DefaultHeuristics(),
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected the defaults to validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty resources dir", func(c *Config) { c.ResourcesDir = "" }},
		{"zero chain length", func(c *Config) { c.Heuristics.MaxChainLength = 0 }},
		{"zero turn budget", func(c *Config) { c.Heuristics.TurnBudgets[domain.StepArea] = 0 }},
		{"zero candidate cap", func(c *Config) { c.Heuristics.CandidateCap = 0 }},
	}
	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", tt.name)
		}
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://onboard.serviceseeking.com.au", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.frontendURL}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}

func TestDefaultHeuristicsBudgetsCoverAllSteps(t *testing.T) {
	h := DefaultHeuristics()
	for _, step := range []domain.Step{
		domain.StepIdentity, domain.StepServices, domain.StepArea,
		domain.StepProfile, domain.StepPlan,
	} {
		if h.TurnBudgets[step] <= 0 {
			t.Errorf("Expected a positive budget for %s", step)
		}
	}
}
