// Package config describes the static, process-wide table and metric
// catalog the compiler resolves metrics against (spec §3). A Config is
// built once at process start and treated as an immutable value for the
// lifetime of the process — the same discipline the platform's own
// internal/config package applies to its environment-derived Config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnType enumerates the ClickHouse column types the compiler knows
// how to type parameters and casts against.
type ColumnType string

const (
	TypeFloat64     ColumnType = "Float64"
	TypeString      ColumnType = "String"
	TypeUInt8       ColumnType = "UInt8"
	TypeDate        ColumnType = "Date"
	TypeDateTime    ColumnType = "DateTime"
	TypeArrayString ColumnType = "Array(String)"
)

// Table describes one physical table in the analytical database.
type Table struct {
	Name                 string   `yaml:"name"`
	TimeColumn           string   `yaml:"time_column,omitempty"`
	PrimaryKeys          []string `yaml:"primary_keys"`
	AlwaysIncludeColumns []string `yaml:"always_include_columns,omitempty"`
	OtherColumns         []string `yaml:"other_columns,omitempty"`
}

// JoinStrategy names an optional non-default join strategy hint attached
// to a column mapping. The compiler's join inference always performs a
// single multi-way INNER join (spec §4.3); this hint is carried through
// unused by any operation SPEC_FULL.md names today, reserved for a future
// join planner.
type JoinStrategy string

// ColumnMapping resolves a metric name to a (table, column) pair.
type ColumnMapping struct {
	Table        string       `yaml:"table"`
	Column       string       `yaml:"column"`
	Type         ColumnType   `yaml:"type"`
	Timeseries   bool         `yaml:"timeseries,omitempty"`
	JoinStrategy JoinStrategy `yaml:"join_strategy,omitempty"`
}

// Config is the static table/metric catalog plus global limits.
type Config struct {
	Tables             map[string]Table         `yaml:"tables"`
	ColumnMappings     map[string]ColumnMapping `yaml:"column_mappings"`
	TimeFormat         string                   `yaml:"time_format"`
	MaxTimeseriesWindow int64                   `yaml:"max_timeseries_window"`
	MaxLimit           int                      `yaml:"max_limit"`
}

// ResolveMetric looks up a metric name and returns its table and column
// configuration, or false if the metric is unknown.
func (c *Config) ResolveMetric(metric string) (ColumnMapping, bool) {
	m, ok := c.ColumnMappings[metric]
	return m, ok
}

// Table returns the table config for name, or false if it is unknown.
func (c *Config) Table(name string) (Table, bool) {
	t, ok := c.Tables[name]
	return t, ok
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks internal consistency: every column mapping's table must
// exist, and the global limits must be positive. This is a config-loading
// concern (catching operator mistakes before the first compile call), not
// part of the compiler pipeline itself.
func (c *Config) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("config declares no tables")
	}
	for metric, mapping := range c.ColumnMappings {
		if _, ok := c.Tables[mapping.Table]; !ok {
			return fmt.Errorf("column mapping %q references unknown table %q", metric, mapping.Table)
		}
		if mapping.Column == "" {
			return fmt.Errorf("column mapping %q has empty column", metric)
		}
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be positive, got %d", c.MaxLimit)
	}
	if c.MaxTimeseriesWindow <= 0 {
		return fmt.Errorf("max_timeseries_window must be positive, got %d", c.MaxTimeseriesWindow)
	}
	return nil
}

// DefaultConfig returns the market-data domain default described in spec
// §6: tickers and daily_agg sharing primary key "ticker", with
// daily_agg.time_column = date and daily_agg's always-include columns set
// to [ticker, date].
func DefaultConfig() *Config {
	return &Config{
		Tables: map[string]Table{
			"tickers": {
				Name:        "tickers",
				PrimaryKeys: []string{"ticker"},
				OtherColumns: []string{
					"sector", "country", "active", "name", "exchange",
				},
			},
			"daily_agg": {
				Name:                 "daily_agg",
				TimeColumn:           "date",
				PrimaryKeys:          []string{"ticker"},
				AlwaysIncludeColumns: []string{"ticker", "date"},
				OtherColumns: []string{
					"open", "high", "low", "close", "volume", "vwap",
				},
			},
		},
		ColumnMappings: map[string]ColumnMapping{
			"ticker":   {Table: "tickers", Column: "ticker", Type: TypeString},
			"sector":   {Table: "tickers", Column: "sector", Type: TypeString},
			"country":  {Table: "tickers", Column: "country", Type: TypeString},
			"active":   {Table: "tickers", Column: "active", Type: TypeUInt8},
			"name":     {Table: "tickers", Column: "name", Type: TypeString},
			"exchange": {Table: "tickers", Column: "exchange", Type: TypeString},

			"date":   {Table: "daily_agg", Column: "date", Type: TypeDate},
			"open":   {Table: "daily_agg", Column: "open", Type: TypeFloat64, Timeseries: true},
			"high":   {Table: "daily_agg", Column: "high", Type: TypeFloat64, Timeseries: true},
			"low":    {Table: "daily_agg", Column: "low", Type: TypeFloat64, Timeseries: true},
			"close":  {Table: "daily_agg", Column: "close", Type: TypeFloat64, Timeseries: true},
			"volume": {Table: "daily_agg", Column: "volume", Type: TypeFloat64, Timeseries: true},
			"vwap":   {Table: "daily_agg", Column: "vwap", Type: TypeFloat64, Timeseries: true},
		},
		TimeFormat:          "2006-01-02",
		MaxTimeseriesWindow: 365 * 86400,
		MaxLimit:            10000,
	}
}
