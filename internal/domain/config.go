package domain

import (
	"fmt"
	"time"
)

// Config holds the complete claimguard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used
	Tier Tier `json:"tier"`

	// Scoring policy knobs
	Detection DetectionConfig `json:"detection"`

	// Who may review claims
	Identity IdentityConfig `json:"identity"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// IdentityConfig holds caller resolution settings.
type IdentityConfig struct {
	// CallerHeader carries the verified caller email from the auth gateway.
	CallerHeader string `json:"callerHeader"`

	// Reviewers are the emails granted the hr role.
	Reviewers []string `json:"reviewers"`
}

// DetectionConfig groups the heuristic thresholds. The defaults are policy
// values, not derived from data.
type DetectionConfig struct {
	Amount    AmountThresholds `json:"amount"`
	Date      DateThresholds   `json:"date"`
	Duplicate DuplicateConfig  `json:"duplicate"`
	Weights   SeverityWeights  `json:"weights"`
}

// AmountThresholds configures the amount detector.
type AmountThresholds struct {
	RoundUnit             float64 `json:"roundUnit"`    // multiple considered "round"
	RoundMinimum          float64 `json:"roundMinimum"` // round amounts above this are suspicious
	RoundConfidence       float64 `json:"roundConfidence"`
	HighAmountCeiling     float64 `json:"highAmountCeiling"`
	HighAmountConfidence  float64 `json:"highAmountConfidence"`
	SmallAmountFloor      float64 `json:"smallAmountFloor"`
	SmallAmountConfidence float64 `json:"smallAmountConfidence"`
}

// DateThresholds configures the date detector.
type DateThresholds struct {
	FutureConfidence float64 `json:"futureConfidence"`
	MaxAgeDays       int     `json:"maxAgeDays"`
	StaleConfidence  float64 `json:"staleConfidence"`
}

// DuplicateConfig configures the duplicate finder.
type DuplicateConfig struct {
	WindowDays      float64       `json:"windowDays"`
	SimilarityScore float64       `json:"similarityScore"`
	Timeout         time.Duration `json:"timeout"`
}

// SeverityWeights are the per-severity penalty multipliers of the
// authenticity score.
type SeverityWeights struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Weight returns the multiplier for a severity. Unknown severities weigh 0.
func (w SeverityWeights) Weight(s Severity) float64 {
	switch s {
	case SeverityLow:
		return w.Low
	case SeverityMedium:
		return w.Medium
	case SeverityHigh:
		return w.High
	}
	return 0
}

// Validate rejects thresholds that would make a detector fire on every claim
// or never, and confidences or weights outside [0,1].
func (c DetectionConfig) Validate() error {
	v := &ValidationError{}

	positive := map[string]float64{
		"roundUnit":         c.Amount.RoundUnit,
		"highAmountCeiling": c.Amount.HighAmountCeiling,
		"smallAmountFloor":  c.Amount.SmallAmountFloor,
		"maxAgeDays":        float64(c.Date.MaxAgeDays),
	}
	for field, value := range positive {
		if value <= 0 {
			v.Add(field, fmt.Sprintf("%s must be positive", field))
		}
	}
	if c.Amount.RoundMinimum < 0 {
		v.Add("roundMinimum", "roundMinimum must not be negative")
	}
	if c.Duplicate.WindowDays < 0 {
		v.Add("windowDays", "windowDays must not be negative")
	}

	unit := map[string]float64{
		"roundConfidence":       c.Amount.RoundConfidence,
		"highAmountConfidence":  c.Amount.HighAmountConfidence,
		"smallAmountConfidence": c.Amount.SmallAmountConfidence,
		"futureConfidence":      c.Date.FutureConfidence,
		"staleConfidence":       c.Date.StaleConfidence,
		"similarityScore":       c.Duplicate.SimilarityScore,
		"weights.low":           c.Weights.Low,
		"weights.medium":        c.Weights.Medium,
		"weights.high":          c.Weights.High,
	}
	for field, value := range unit {
		if value < 0 || value > 1 {
			v.Add(field, fmt.Sprintf("%s must be between 0 and 1", field))
		}
	}

	if v.HasErrors() {
		return v
	}
	return nil
}

// DefaultDetectionConfig returns the stock heuristic thresholds.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Amount: AmountThresholds{
			RoundUnit:             1000,
			RoundMinimum:          1000,
			RoundConfidence:       0.7,
			HighAmountCeiling:     50000,
			HighAmountConfidence:  0.8,
			SmallAmountFloor:      100,
			SmallAmountConfidence: 0.5,
		},
		Date: DateThresholds{
			FutureConfidence: 0.9,
			MaxAgeDays:       365,
			StaleConfidence:  0.7,
		},
		Duplicate: DuplicateConfig{
			WindowDays:      7,
			SimilarityScore: 0.9,
			Timeout:         2 * time.Second,
		},
		Weights: SeverityWeights{
			Low:    0.1,
			Medium: 0.3,
			High:   0.5,
		},
	}
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process cache + channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:      TierCommunity,
		Detection: DefaultDetectionConfig(),
		Identity: IdentityConfig{
			CallerHeader: "X-Caller-ID",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./claimguard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			ClaimTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "claimguard",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "claimguard",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		ClaimTTL:       5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
