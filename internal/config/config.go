// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	DBPath       string
	ResourcesDir string

	// External service credentials. Any of these may be empty, in which
	// case the corresponding enrichment client degrades to empty results.
	RegistryGUID    string
	TradesAPIKey    string
	TradesAuth      string
	SearchAPIKey    string
	PlacesAPIKey    string
	GeneratorAPIKey string
	GeneratorModel  string
	VisionModel     string

	// Outbound call timeouts. Every enrichment call is bounded; a timeout
	// is a soft failure, never a fatal one.
	HTTPTimeout      time.Duration
	ScrapeTimeout    time.Duration
	ProbeTimeout     time.Duration
	GeneratorTimeout time.Duration

	Heuristics Heuristics
}

// Heuristics holds the empirically tuned decision constants. They are
// configuration, not hard values: small bounded retries and small bounded
// scores.
type Heuristics struct {
	// TurnBudgets caps handler invocations per step; past the cap the
	// handler forces its own completion flag.
	TurnBudgets map[domain.Step]int
	// MaxChainLength bounds the orchestrator's auto-chain loop.
	MaxChainLength int
	// GapFallbackTurns is the turn count after which a gap list with zero
	// mapped services is discarded in favour of full-taxonomy mode.
	GapFallbackTurns int

	// Coverage grouping.
	RadiusKm      float64
	MinRegionSize int
	MaxCandidates int // register matches shown to the user
	MinIDDigits   int // digits for a query to classify as a numeric id

	// Asset scoring weights.
	ScoreJPEG        int
	ScoreDimensions  int
	ScoreScaled      int
	ScoreWidthAttr   int
	ScoreGalleryPath int
	ScoreGalleryTag  int
	MinDimensionPx   int
	MinWidthAttr     int

	// Asset caps and byte-size gates.
	CandidateCap     int // candidates handed to the vision classifier
	FallbackCap      int // candidates kept by the raw-size fallback
	MinPhotoBytes    int // below this a JPEG is likely a logo or icon
	MinDownloadBytes int
	MaxDownloadBytes int
	MaxPhotos        int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/onboard.db"),
		ResourcesDir: getEnv("RESOURCES_DIR", "./resources"),

		RegistryGUID:    getEnv("ABR_GUID", ""),
		TradesAPIKey:    getEnv("TRADES_API_KEY", ""),
		TradesAuth:      getEnv("TRADES_AUTH_HEADER", ""),
		SearchAPIKey:    getEnv("SEARCH_API_KEY", ""),
		PlacesAPIKey:    getEnv("PLACES_API_KEY", ""),
		GeneratorAPIKey: getEnv("GENERATOR_API_KEY", ""),
		GeneratorModel:  getEnv("GENERATOR_MODEL", "claude-sonnet-4-5-20250929"),
		VisionModel:     getEnv("VISION_MODEL", "claude-haiku-4-5-20251001"),

		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		ScrapeTimeout:    getEnvDuration("SCRAPE_TIMEOUT", 10*time.Second),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", 8*time.Second),
		GeneratorTimeout: getEnvDuration("GENERATOR_TIMEOUT", 30*time.Second),

		Heuristics: DefaultHeuristics(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultHeuristics returns the tuned defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		TurnBudgets: map[domain.Step]int{
			domain.StepIdentity: 5,
			domain.StepServices: 5,
			domain.StepArea:     4,
			domain.StepProfile:  3,
			domain.StepPlan:     3,
		},
		MaxChainLength:   6,
		GapFallbackTurns: 2,

		RadiusKm:      20.0,
		MinRegionSize: 3,
		MaxCandidates: 5,
		MinIDDigits:   9,

		ScoreJPEG:        10,
		ScoreDimensions:  5,
		ScoreScaled:      5,
		ScoreWidthAttr:   5,
		ScoreGalleryPath: 5,
		ScoreGalleryTag:  3,
		MinDimensionPx:   400,
		MinWidthAttr:     400,

		CandidateCap:     8,
		FallbackCap:      4,
		MinPhotoBytes:    20_000,
		MinDownloadBytes: 5_000,
		MaxDownloadBytes: 2_000_000,
		MaxPhotos:        6,
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ResourcesDir == "" {
		return fmt.Errorf("RESOURCES_DIR cannot be empty")
	}
	h := c.Heuristics
	if h.MaxChainLength <= 0 {
		return fmt.Errorf("max chain length must be > 0")
	}
	for step, budget := range h.TurnBudgets {
		if budget <= 0 {
			return fmt.Errorf("turn budget for %s must be > 0", step)
		}
	}
	if h.CandidateCap <= 0 || h.FallbackCap <= 0 {
		return fmt.Errorf("asset candidate caps must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
		return d
	}
	return fallback
}
