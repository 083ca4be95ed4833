package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/logging"
)

var toolTaglines = map[string]string{
	config.ToolSuite:      "Quality, Latency and Adaptation Stream Health Monitoring",
	config.ToolQuality:    "Segment Bitrate and Visual Similarity Analysis",
	config.ToolLatency:    "Manifest and Segment Latency Monitoring",
	config.ToolAdaptation: "Bitrate Ladder and Switching Analysis",
}

// Main is the shared entry point of the command-line tools. It returns the
// process exit code.
func Main(tool string, args []string, version string) int {
	// Handle version flag early (before flag parsing)
	if len(args) > 0 {
		arg := args[0]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("%s %s\n", tool, version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags(tool, args, os.Stderr)
	if config.IsHelp(err) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 2
	}

	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.New(logging.Options{
			Format:  cfg.LogFormat,
			Level:   "info",
			Verbose: cfg.Verbose,
			Tool:    tool,
		})
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	orch, err := New(cfg, logger, version)
	if err != nil {
		logger.Error("setup_failed", "error", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"manifest_url", cfg.ManifestURL,
		"output_dir", cfg.OutputDir,
		"interval", cfg.Interval().String(),
		"analyzers", orch.Plan().Analyzers(),
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(os.Stdout, cfg, orch.Plan())
	}

	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		return 1
	}
	return 0
}

// printBanner prints the startup banner.
func printBanner(w io.Writer, cfg *config.Config, plan Plan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║%-67s║\n", centered(cfg.Tool, 67))
	fmt.Fprintf(w, "║%-67s║\n", centered(toolTaglines[cfg.Tool], 67))
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Manifest:    %s\n", cfg.ManifestURL)
	fmt.Fprintf(w, "  Output:      %s\n", cfg.OutputDir)
	fmt.Fprintf(w, "  Analyzers:   %v\n", plan.Analyzers())
	if plan.Quality {
		fmt.Fprintf(w, "  Quality:     every %s\n", plan.QualityInterval)
	}
	if plan.Latency {
		fmt.Fprintf(w, "  Latency:     every %s\n", plan.LatencyInterval)
	}
	if plan.Adaptation {
		fmt.Fprintf(w, "  Adaptation:  every %s\n", plan.AdaptationInterval)
	}
	if !plan.Standalone {
		fmt.Fprintf(w, "  Aggregation: every %s\n", plan.Interval)
	}
	if cfg.Duration > 0 {
		fmt.Fprintf(w, "  Duration:    %s\n", cfg.Duration)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.NoCache {
		fmt.Fprintln(w, "  Cache:       BYPASS (no-cache headers)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
