// File: internal/config/config.go
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Catalog() CatalogConfig
	Cache() CacheConfig
	Database() DatabaseConfig

	// Engine setters, used by CLI flags.
	SetEngineWorkers(int)
	SetEngineUnitTimeout(time.Duration)
}

// Config holds the entire application configuration. Private fields enforce
// access through the Interface getters; decoding goes through the exported
// sections shadow struct because mapstructure cannot set unexported fields.
type Config struct {
	logger   LoggerConfig
	engine   EngineConfig
	catalog  CatalogConfig
	cache    CacheConfig
	database DatabaseConfig
}

// sections mirrors Config with exported fields so viper can unmarshal into
// it. decode copies the result into the access-controlled Config.
type sections struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

func decode(v *viper.Viper) (*Config, error) {
	var s sections
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &Config{
		logger:   s.Logger,
		engine:   s.Engine,
		catalog:  s.Catalog,
		cache:    s.Cache,
		database: s.Database,
	}, nil
}

// --- Interface Method Implementations ---

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Engine() EngineConfig     { return c.engine }
func (c *Config) Catalog() CatalogConfig   { return c.catalog }
func (c *Config) Cache() CacheConfig       { return c.cache }
func (c *Config) Database() DatabaseConfig { return c.database }

func (c *Config) SetEngineWorkers(n int)               { c.engine.Workers = n }
func (c *Config) SetEngineUnitTimeout(d time.Duration) { c.engine.UnitTimeout = d }

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig configures the analysis engine: the worker pool, the per-unit
// time budget, and the fixed-point bounds.
type EngineConfig struct {
	// Workers bounds the number of units analyzed concurrently. Zero means
	// one worker per available CPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// UnitTimeout is the per-unit analysis budget. A unit exceeding it is
	// abandoned and reported as UNKNOWN, never blocking the batch.
	UnitTimeout time.Duration `mapstructure:"unit_timeout" yaml:"unit_timeout"`
	// LoopIterationCap bounds loop fixed-point iteration. Exceeding it
	// escalates still-changing bindings to POSSIBLY_TAINTED.
	LoopIterationCap int `mapstructure:"loop_iteration_cap" yaml:"loop_iteration_cap"`
	// ResolutionPasses bounds interprocedural re-analysis waves.
	ResolutionPasses int `mapstructure:"resolution_passes" yaml:"resolution_passes"`
	// Severity maps sink classes to base severities; see verifier docs.
	Severity SeverityConfig `mapstructure:"severity" yaml:"severity"`
}

// EffectiveWorkers resolves the worker count, defaulting to the hardware
// parallelism of the host.
func (e EngineConfig) EffectiveWorkers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}

// SeverityConfig makes the taint-level to severity escalation tunable rather
// than hard-coded. Each field names the severity an issue gets when a
// DEFINITELY_TAINTED value reaches a sink of that class; POSSIBLY_TAINTED
// lands one step below.
type SeverityConfig struct {
	Query      string `mapstructure:"query" yaml:"query"`
	Execution  string `mapstructure:"execution" yaml:"execution"`
	Markup     string `mapstructure:"markup" yaml:"markup"`
	Navigation string `mapstructure:"navigation" yaml:"navigation"`
	Logging    string `mapstructure:"logging" yaml:"logging"`
}

// PatternConfig is one user-supplied catalog entry. Mode selects the matcher
// variant: "exact", "prefix", or "last".
type PatternConfig struct {
	Kind     string `mapstructure:"kind" yaml:"kind"`
	Pattern  string `mapstructure:"pattern" yaml:"pattern"`
	Mode     string `mapstructure:"mode" yaml:"mode"`
	Class    string `mapstructure:"class" yaml:"class"`
	ArgIndex *int   `mapstructure:"arg_index" yaml:"arg_index"`
}

// CatalogConfig extends the built-in source/sink/sanitizer catalog. Entries
// are registered ahead of the defaults, so they win on conflicts.
type CatalogConfig struct {
	Entries       []PatternConfig `mapstructure:"entries" yaml:"entries"`
	TaintedParams []string        `mapstructure:"tainted_params" yaml:"tainted_params"`
}

// CacheConfig controls the opaque cross-run summary cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DatabaseConfig holds the optional findings-store connection details.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.workers", 0) // 0 = hardware parallelism
	v.SetDefault("engine.unit_timeout", "5s")
	v.SetDefault("engine.loop_iteration_cap", 10)
	v.SetDefault("engine.resolution_passes", 3)
	v.SetDefault("engine.severity.query", "critical")
	v.SetDefault("engine.severity.execution", "critical")
	v.SetDefault("engine.severity.markup", "high")
	v.SetDefault("engine.severity.navigation", "high")
	v.SetDefault("engine.severity.logging", "medium")

	// -- Catalog --
	v.SetDefault("catalog.entries", []PatternConfig{})
	v.SetDefault("catalog.tainted_params", []string{})

	// -- Cache --
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "lancet-cache.db")

	// -- Database --
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0, got %d", c.engine.Workers)
	}
	if c.engine.UnitTimeout <= 0 {
		return fmt.Errorf("engine.unit_timeout must be positive, got %s", c.engine.UnitTimeout)
	}
	if c.engine.LoopIterationCap < 1 {
		return fmt.Errorf("engine.loop_iteration_cap must be >= 1, got %d", c.engine.LoopIterationCap)
	}
	if c.engine.ResolutionPasses < 1 {
		return fmt.Errorf("engine.resolution_passes must be >= 1, got %d", c.engine.ResolutionPasses)
	}
	for _, e := range c.catalog.Entries {
		switch e.Kind {
		case "source", "sanitizer", "sink":
		default:
			return fmt.Errorf("catalog entry %q has invalid kind %q", e.Pattern, e.Kind)
		}
		switch e.Mode {
		case "", "exact", "prefix", "last":
		default:
			return fmt.Errorf("catalog entry %q has invalid mode %q", e.Pattern, e.Mode)
		}
	}
	if c.database.Enabled && c.database.URL == "" {
		return fmt.Errorf("database.enabled requires database.url")
	}
	return nil
}
