// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake case so that ADMIT_<KEY> maps onto them directly.
// - New() returns the defaults; Load layers file and environment on top.
package config

import (
	"fmt"
	"time"
)

// Store drivers accepted by store_driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string `koanf:"cors_origins"`
	// TracingEnabled installs the OpenTelemetry SDK provider.
	TracingEnabled bool `koanf:"tracing_enabled"`

	// StoreDriver selects the catalog backend: memory, sqlite, postgres, mongo.
	StoreDriver   string `koanf:"store_driver"`
	StoreDSN      string `koanf:"store_dsn"`
	StoreDatabase string `koanf:"store_database"`
	// CatalogFixture is a YAML catalog loaded into the memory store, or used
	// to seed an SQL store.
	CatalogFixture string `koanf:"catalog_fixture"`
	// CacheTTLSeconds is the catalog snapshot freshness window.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// FieldModel is bundle or prior.
	FieldModel     string `koanf:"field_model"`
	FieldModelPath string `koanf:"field_model_path"`
	// AdmissionModel is bundle or heuristic.
	AdmissionModel     string `koanf:"admission_model"`
	AdmissionModelPath string `koanf:"admission_model_path"`
	// StrictModels refuses to start without both oracles.
	StrictModels bool `koanf:"strict_models"`

	DefaultTopK          int     `koanf:"default_top_k"`
	MaxInstitutions      int     `koanf:"max_institutions"`
	SuitableInstitutions int     `koanf:"suitable_institutions"`
	SharpenGamma         float64 `koanf:"sharpen_gamma"`
	SafeThreshold        float64 `koanf:"safe_threshold"`
	ConsiderThreshold    float64 `koanf:"consider_threshold"`
	RecencyWeighting     bool    `koanf:"recency_weighting"`

	ResolverThreshold   float64  `koanf:"resolver_threshold"`
	ResolverMinTokenLen int      `koanf:"resolver_min_token_len"`
	QualifierPhrases    []string `koanf:"qualifier_phrases"`

	// Priority bonus tables; the summed bonus is capped at PriorityCap.
	PriorityCap float64            `koanf:"priority_cap"`
	AreaBonus   map[string]float64 `koanf:"area_bonus"`
	ObjectBonus map[string]float64 `koanf:"object_bonus"`

	BatchConcurrency int `koanf:"batch_concurrency"`
	BatchMaxItems    int `koanf:"batch_max_items"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		ShutdownTimeoutSeconds: 10,
		StoreDriver:            DriverMemory,
		StoreDatabase:          "admit",
		CacheTTLSeconds:        3600,
		FieldModel:             "prior",
		AdmissionModel:         "heuristic",
		DefaultTopK:            3,
		MaxInstitutions:        10,
		SuitableInstitutions:   5,
		SharpenGamma:           0.3,
		SafeThreshold:          2.0,
		ConsiderThreshold:      0.0,
		ResolverThreshold:      0.3,
		ResolverMinTokenLen:    3,
		PriorityCap:            4.0,
		AreaBonus: map[string]float64{
			"KV1":    0.75,
			"KV2-NT": 0.5,
			"KV2":    0.25,
			"KV3":    0,
		},
		ObjectBonus: map[string]float64{
			"UT1": 2.0,
			"UT2": 1.0,
		},
		BatchConcurrency: 8,
		BatchMaxItems:    100,
	}
}

// CacheTTL returns the cache window as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ShutdownTimeout returns the shutdown bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Validate checks the settings that would otherwise fail deep inside a
// request.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CacheTTLSeconds <= 0:
		return fmt.Errorf("%w: cache_ttl_seconds must be positive, got %d", ErrInvalidConfig, c.CacheTTLSeconds)
	case c.DefaultTopK < 1:
		return fmt.Errorf("%w: default_top_k must be at least 1, got %d", ErrInvalidConfig, c.DefaultTopK)
	case c.MaxInstitutions < 1 || c.SuitableInstitutions < 1:
		return fmt.Errorf("%w: institution limits must be at least 1", ErrInvalidConfig)
	case c.SafeThreshold < c.ConsiderThreshold:
		return fmt.Errorf("%w: safe_threshold %v is below consider_threshold %v", ErrInvalidConfig, c.SafeThreshold, c.ConsiderThreshold)
	case c.SharpenGamma <= 0:
		return fmt.Errorf("%w: sharpen_gamma must be positive", ErrInvalidConfig)
	case c.ResolverThreshold <= 0 || c.ResolverThreshold > 1:
		return fmt.Errorf("%w: resolver_threshold must be in (0,1]", ErrInvalidConfig)
	case c.ResolverMinTokenLen < 0:
		return fmt.Errorf("%w: resolver_min_token_len must not be negative", ErrInvalidConfig)
	case c.PriorityCap < 0:
		return fmt.Errorf("%w: priority_cap must not be negative", ErrInvalidConfig)
	case c.BatchConcurrency < 1 || c.BatchMaxItems < 1:
		return fmt.Errorf("%w: batch limits must be at least 1", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.StoreDriver == DriverMongo && c.StoreDSN == "" {
		return fmt.Errorf("%w: store_dsn is required for mongo", ErrInvalidConfig)
	}

	switch c.FieldModel {
	case "prior":
	case "bundle":
		if c.FieldModelPath == "" && c.StrictModels {
			return fmt.Errorf("%w: field_model_path is required for a bundle field model", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown field_model %q", ErrInvalidConfig, c.FieldModel)
	}
	switch c.AdmissionModel {
	case "heuristic":
	case "bundle":
		if c.AdmissionModelPath == "" && c.StrictModels {
			return fmt.Errorf("%w: admission_model_path is required for a bundle admission model", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown admission_model %q", ErrInvalidConfig, c.AdmissionModel)
	}
	return nil
}
