// Package config provides configuration management for the stream analysis
// tools.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tool names. Each CLI has its own defaults.
const (
	ToolSuite      = "stream-analysis-suite"
	ToolQuality    = "stream-quality-analyzer"
	ToolLatency    = "stream-latency-analyzer"
	ToolAdaptation = "stream-adaptation-analyzer"
)

// Config holds all configuration options for one tool invocation.
type Config struct {
	Tool string `json:"-" yaml:"-"`

	// Analysis
	ManifestURL     string        `json:"manifest_url" yaml:"manifest_url"`
	OutputDir       string        `json:"output_dir" yaml:"output_dir"`
	IntervalSeconds int           `json:"interval" yaml:"interval"`
	Duration        time.Duration `json:"duration" yaml:"duration"` // 0 = until signalled

	// Single-dimension modes (suite only)
	QualityOnly    bool `json:"quality_only" yaml:"quality_only"`
	LatencyOnly    bool `json:"latency_only" yaml:"latency_only"`
	AdaptationOnly bool `json:"adaptation_only" yaml:"adaptation_only"`

	// Windows
	HistorySize   int `json:"history_size" yaml:"history_size"`
	LatencyWindow int `json:"latency_window" yaml:"latency_window"`
	MaxLogEntries int `json:"max_log_entries" yaml:"max_log_entries"` // 0 = unlimited

	// External tools
	FFprobePath string        `json:"ffprobe_path" yaml:"ffprobe_path"`
	FFmpegPath  string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	ToolTimeout time.Duration `json:"tool_timeout" yaml:"tool_timeout"`

	// Network
	UserAgent string   `json:"user_agent" yaml:"user_agent"`
	NoCache   bool     `json:"no_cache" yaml:"no_cache"`
	Headers   []string `json:"headers" yaml:"headers"`

	// Observability
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"` // empty = disabled
	Verbose     bool   `json:"verbose" yaml:"verbose"`
	LogFormat   string `json:"log_format" yaml:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui" yaml:"tui"`

	// Diagnostics
	SkipPreflight bool   `json:"skip_preflight" yaml:"skip_preflight"`
	ConfigFile    string `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with the defaults of the given tool.
func DefaultConfig(tool string) *Config {
	cfg := &Config{
		Tool:            tool,
		OutputDir:       "./stream_analysis",
		IntervalSeconds: 30,

		HistorySize:   100,
		LatencyWindow: 50,

		FFprobePath: "ffprobe",
		FFmpegPath:  "ffmpeg",
		ToolTimeout: 30 * time.Second,

		UserAgent: "go-stream-analysis-suite/1.0",

		LogFormat: "json",
	}

	switch tool {
	case ToolLatency:
		cfg.OutputDir = "./latency_analysis"
		cfg.IntervalSeconds = 5
	case ToolAdaptation:
		cfg.OutputDir = "./adaptation_analysis"
		cfg.IntervalSeconds = 10
	}
	return cfg
}

// Interval returns the configured poll interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// IsSuite reports whether the config drives the multi-analyzer suite rather
// than a single analyzer.
func (c *Config) IsSuite() bool {
	return c.Tool == ToolSuite && !c.QualityOnly && !c.LatencyOnly && !c.AdaptationOnly
}

// HTTPHeaders returns the extra request headers, including the no-cache
// headers when NoCache is set.
func (c *Config) HTTPHeaders() []string {
	headers := append([]string(nil), c.Headers...)
	if c.NoCache {
		headers = append(headers, "Cache-Control: no-cache", "Pragma: no-cache")
	}
	return headers
}

// LoadFile overlays the YAML file at path onto cfg. Fields absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
