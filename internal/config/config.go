// Package config loads and validates BenchmarkConfig, modeled on the
// donor's viper-based Load/validateConfig pair.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Mode selects the worker scheduling model.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// BinType selects the value payload generated for writes.
type BinType string

const (
	BinInt   BinType = "int"
	BinStr   BinType = "str"
	BinBytes BinType = "bytes"
)

// BenchmarkConfig is the immutable, once-built configuration record the
// orchestrator consumes. Field ranges are enforced by Validate.
type BenchmarkConfig struct {
	Hosts          []string `mapstructure:"hosts"`
	Namespace      string   `mapstructure:"namespace"`
	Set            string   `mapstructure:"set"`
	Mode           Mode     `mapstructure:"mode"`
	WorkerCount    int      `mapstructure:"worker_count" validate:"min=1"`
	InFlightMax    int      `mapstructure:"in_flight_max" validate:"min=0"`
	TargetTPS      int64    `mapstructure:"target_tps" validate:"min=0"`
	TxBudget       int64    `mapstructure:"tx_budget" validate:"min=0"`
	Records        int64    `mapstructure:"records" validate:"min=1"`
	InitPct        int      `mapstructure:"init_pct" validate:"min=0,max=100"`
	ReadPct        int      `mapstructure:"read_pct" validate:"min=0,max=100"`
	BatchSize      int      `mapstructure:"batch_size" validate:"min=1"`
	BinType        BinType  `mapstructure:"bin_type"`
	BinSize        int      `mapstructure:"bin_size" validate:"min=0"`
	FixedValue     bool     `mapstructure:"fixed_value"`
	LatencyEnabled bool     `mapstructure:"latency_enabled"`
	LatencyColumns int      `mapstructure:"latency_columns" validate:"min=2,max=10"`
	LatencyShift   int      `mapstructure:"latency_shift" validate:"min=1,max=5"`
	AltHistogram   bool     `mapstructure:"alt_histogram"`
	Debug          bool     `mapstructure:"debug"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig describes the reference Postgres-backed DbClient
// connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Name     string `mapstructure:"name"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LogConfig describes logger construction.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Output      string `mapstructure:"output"`
	Development bool   `mapstructure:"development"`
}

// ConfigInvalid is returned when a field falls outside its allowed range.
// It fails fast at construction, naming the offending field and range.
type ConfigInvalid struct {
	Field string
	Value any
	Range string
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("config: field %q = %v is outside allowed range %s", e.Field, e.Value, e.Range)
}

var validate = validator.New()

// Default returns a BenchmarkConfig populated with sensible defaults; Load
// and CLI overrides both start from this.
func Default() BenchmarkConfig {
	return BenchmarkConfig{
		Namespace:      "bench",
		Set:            "bench",
		Mode:           ModeSync,
		WorkerCount:    4,
		InFlightMax:    32,
		Records:        100_000,
		InitPct:        0,
		ReadPct:        80,
		BatchSize:      1,
		BinType:        BinInt,
		BinSize:        32,
		LatencyEnabled: true,
		LatencyColumns: 7,
		LatencyShift:   1,
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "bench",
			SSLMode: "disable",
		},
		Log: LogConfig{Level: "info", Format: "console", Output: "stdout"},
	}
}

// Load reads a YAML config file via viper and merges it onto Default().
func Load(path string) (*BenchmarkConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range fields with a clear diagnostic, per the
// ConfigInvalid contract: read_pct in [0,100], latency_columns in [2,10],
// latency_shift in [1,5], and the struct-level ranges validator enforces
// via the `validate` tags above.
func Validate(cfg *BenchmarkConfig) error {
	if cfg.ReadPct < 0 || cfg.ReadPct > 100 {
		return &ConfigInvalid{Field: "read_pct", Value: cfg.ReadPct, Range: "[0,100]"}
	}
	if cfg.LatencyEnabled {
		if cfg.LatencyColumns < 2 || cfg.LatencyColumns > 10 {
			return &ConfigInvalid{Field: "latency_columns", Value: cfg.LatencyColumns, Range: "[2,10]"}
		}
		if cfg.LatencyShift < 1 || cfg.LatencyShift > 5 {
			return &ConfigInvalid{Field: "latency_shift", Value: cfg.LatencyShift, Range: "[1,5]"}
		}
	}
	if cfg.Mode != ModeSync && cfg.Mode != ModeAsync {
		return &ConfigInvalid{Field: "mode", Value: cfg.Mode, Range: "{sync,async}"}
	}
	if cfg.Mode == ModeAsync && cfg.InFlightMax < 1 {
		return &ConfigInvalid{Field: "in_flight_max", Value: cfg.InFlightMax, Range: ">=1 when mode=async"}
	}
	switch cfg.BinType {
	case BinInt, BinStr, BinBytes:
	default:
		return &ConfigInvalid{Field: "bin_type", Value: cfg.BinType, Range: "{int,str,bytes}"}
	}
	if cfg.BatchSize < 1 {
		return &ConfigInvalid{Field: "batch_size", Value: cfg.BatchSize, Range: ">=1"}
	}
	if cfg.WorkerCount < 1 {
		return &ConfigInvalid{Field: "worker_count", Value: cfg.WorkerCount, Range: ">=1"}
	}
	if cfg.Records < 1 {
		return &ConfigInvalid{Field: "records", Value: cfg.Records, Range: ">=1"}
	}

	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "config: struct validation")
	}
	return nil
}
