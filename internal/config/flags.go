package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

// headerList is a custom flag type for repeatable -header flags.
type headerList []string

func (h *headerList) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerList) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// ErrHelp is returned by ParseFlags when -h or -help was requested.
var ErrHelp = flag.ErrHelp

var toolDescriptions = map[string]string{
	ToolSuite:      "complete DASH/HLS stream analysis (quality, latency, adaptation)",
	ToolQuality:    "segment bitrate and visual similarity analysis",
	ToolLatency:    "manifest and segment latency analysis",
	ToolAdaptation: "bitrate adaptation and switching analysis",
}

// ParseFlags parses args (without the program name) for tool and returns
// the resulting Config. A -config file is loaded first; flags given on the
// command line override it. Flags may appear before or after the manifest URL.
func ParseFlags(tool string, args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig(tool)

	if path := findConfigFlag(args); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	fs := newFlagSet(tool, cfg, output)

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	if len(positional) > 1 {
		return nil, fmt.Errorf("expected one manifest URL, got %d arguments", len(positional))
	}
	if len(positional) == 1 {
		cfg.ManifestURL = positional[0]
	}
	return cfg, nil
}

func newFlagSet(tool string, cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(tool, flag.ContinueOnError)
	fs.SetOutput(output)

	headers := (*headerList)(&cfg.Headers)

	// Custom usage message
	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, `%s - %s

Usage:
  %s [flags] <MANIFEST_URL>

Analysis Flags:
`, tool, toolDescriptions[tool], tool)
		printFlagCategory(fs, []string{"o", "i", "duration", "config"})

		if tool == ToolSuite {
			fmt.Fprintf(w, "\nSingle-Dimension Modes:\n")
			printFlagCategory(fs, []string{"quality-only", "latency-only", "adaptation-only"})
		}

		fmt.Fprintf(w, "\nWindows:\n")
		printFlagCategory(fs, []string{"history", "latency-window", "max-log-entries"})

		fmt.Fprintf(w, "\nExternal Tools:\n")
		printFlagCategory(fs, []string{"ffprobe", "ffmpeg", "tool-timeout", "skip-preflight"})

		fmt.Fprintf(w, "\nNetwork:\n")
		printFlagCategory(fs, []string{"user-agent", "no-cache", "header"})

		fmt.Fprintf(w, "\nObservability:\n")
		printFlagCategory(fs, []string{"metrics", "v", "log-format", "tui"})

		fmt.Fprintf(w, `
Examples:
  # Analyze a live DASH stream every 30 seconds
  %[1]s https://cdn.example.com/live/manifest.mpd

  # Custom output directory, faster polling, Prometheus on :17092
  %[1]s -o ./out -i 10 -metrics 127.0.0.1:17092 https://cdn.example.com/hls/master.m3u8

`, tool)
	}

	// Analysis
	fs.StringVar(&cfg.OutputDir, "o", cfg.OutputDir, "Output directory")
	fs.IntVar(&cfg.IntervalSeconds, "i", cfg.IntervalSeconds, "Analysis interval in seconds")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = until interrupted)")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (command-line flags take precedence)")

	if tool == ToolSuite {
		fs.BoolVar(&cfg.QualityOnly, "quality-only", cfg.QualityOnly, "Run only the quality analyzer")
		fs.BoolVar(&cfg.LatencyOnly, "latency-only", cfg.LatencyOnly, "Run only the latency analyzer")
		fs.BoolVar(&cfg.AdaptationOnly, "adaptation-only", cfg.AdaptationOnly, "Run only the adaptation analyzer")
	}

	// Windows
	fs.IntVar(&cfg.HistorySize, "history", cfg.HistorySize, "Bitrate history entries kept for adaptation metrics")
	fs.IntVar(&cfg.LatencyWindow, "latency-window", cfg.LatencyWindow, "Measurements kept per latency window")
	fs.IntVar(&cfg.MaxLogEntries, "max-log-entries", cfg.MaxLogEntries, "Samples kept in each output log (0 = unlimited)")

	// External tools
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "Path to ffprobe binary")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to ffmpeg binary (frame similarity)")
	fs.DurationVar(&cfg.ToolTimeout, "tool-timeout", cfg.ToolTimeout, "Timeout per ffprobe/ffmpeg invocation")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Network
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent header")
	fs.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, "Add no-cache headers (bypass CDN cache)")
	fs.Var(headers, "header", "Add custom HTTP header (can repeat)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	return fs
}

// findConfigFlag returns the value of -config/--config in args, if any.
func findConfigFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			return ""
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	w := fs.Output()
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return "string"
	}
	switch getter.Get().(type) {
	case bool:
		return ""
	case time.Duration:
		return "duration"
	case int, int64, uint, uint64:
		return "int"
	case float64:
		return "float"
	default:
		return "string"
	}
}

// IsHelp reports whether err came from a -h/-help request.
func IsHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
