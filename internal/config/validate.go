package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError names the offending field of a rejected Config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// problems collects every ValidationError found in one pass.
type problems []error

func (p *problems) add(field, format string, args ...any) {
	*p = append(*p, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate reports all configuration problems at once, joined with
// errors.Join. Use errors.As to recover individual ValidationErrors.
func Validate(cfg *Config) error {
	var p problems
	p.target(cfg)
	p.timing(cfg)
	p.mode(cfg)
	p.windows(cfg)
	p.output(cfg)
	return errors.Join(p...)
}

func (p *problems) target(cfg *Config) {
	if cfg.ManifestURL == "" {
		p.add("manifest_url", "DASH/HLS manifest URL is required")
	} else if err := checkManifestURL(cfg.ManifestURL); err != nil {
		p.add("manifest_url", "%v", err)
	}
	for _, h := range cfg.Headers {
		name, _, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			p.add("headers", "must be 'Name: value' (got %q)", h)
		}
	}
}

func (p *problems) timing(cfg *Config) {
	if cfg.IntervalSeconds < 1 {
		p.add("interval", "must be at least 1 second (got %d)", cfg.IntervalSeconds)
	}
	if cfg.Duration < 0 {
		p.add("duration", "must not be negative")
	}
	if cfg.ToolTimeout <= 0 {
		p.add("tool_timeout", "must be positive (got %s)", cfg.ToolTimeout)
	}
}

func (p *problems) mode(cfg *Config) {
	var enabled []string
	for flag, on := range map[string]bool{
		"-quality-only":    cfg.QualityOnly,
		"-latency-only":    cfg.LatencyOnly,
		"-adaptation-only": cfg.AdaptationOnly,
	} {
		if on {
			enabled = append(enabled, flag)
		}
	}
	switch {
	case len(enabled) > 1:
		p.add("mode", "-quality-only, -latency-only and -adaptation-only are mutually exclusive")
	case len(enabled) == 1 && cfg.Tool != ToolSuite:
		p.add("mode", "%s is only available in %s", enabled[0], ToolSuite)
	}
}

func (p *problems) windows(cfg *Config) {
	if cfg.HistorySize < 1 {
		p.add("history_size", "must be at least 1 (got %d)", cfg.HistorySize)
	}
	if cfg.LatencyWindow < 1 {
		p.add("latency_window", "must be at least 1 (got %d)", cfg.LatencyWindow)
	}
	if cfg.MaxLogEntries < 0 {
		p.add("max_log_entries", "must not be negative (0 = unlimited)")
	}
}

func (p *problems) output(cfg *Config) {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		p.add("output_dir", "must not be empty")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		p.add("log_format", "must be 'json' or 'text' (got %q)", cfg.LogFormat)
	}
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			p.add("metrics_addr", "must be host:port (got %q)", cfg.MetricsAddr)
		}
	}
}

func checkManifestURL(raw string) error {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return fmt.Errorf("invalid URL: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("scheme must be http or https (got %q)", u.Scheme)
	case u.Host == "":
		return errors.New("URL must have a host")
	}
	return nil
}
