// Package orchestrator wires configuration into a running analysis session:
// it builds the analyzers and the suite coordinator, exposes metrics, and
// drives the session until a signal, the configured duration or the TUI ends
// it.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/adaptation"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/config"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/latency"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/metrics"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/preflight"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/probe"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/process"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/quality"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/suite"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/tui"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/worker"
)

// ShutdownTimeout bounds the metrics server shutdown.
const ShutdownTimeout = 10 * time.Second

// Plan is the set of analyzers a run enables and their poll intervals.
type Plan struct {
	Quality    bool
	Latency    bool
	Adaptation bool

	// Standalone runs without the aggregation worker.
	Standalone bool

	Interval           time.Duration
	QualityInterval    time.Duration
	LatencyInterval    time.Duration
	AdaptationInterval time.Duration
}

// PlanFor derives the run plan from the tool and its single-dimension flags.
// Standalone tools poll at the configured interval; single-dimension suite
// modes keep the interval the analyzer would have under the full suite.
func PlanFor(cfg *config.Config) Plan {
	iv := cfg.Interval()
	p := Plan{Interval: iv}

	switch {
	case cfg.Tool == config.ToolQuality:
		p.Quality, p.Standalone, p.QualityInterval = true, true, iv
	case cfg.Tool == config.ToolLatency:
		p.Latency, p.Standalone, p.LatencyInterval = true, true, iv
	case cfg.Tool == config.ToolAdaptation:
		p.Adaptation, p.Standalone, p.AdaptationInterval = true, true, iv
	case cfg.QualityOnly:
		p.Quality, p.Standalone, p.QualityInterval = true, true, iv
	case cfg.LatencyOnly:
		p.Latency, p.Standalone, p.LatencyInterval = true, true, suite.LatencyInterval(iv)
	case cfg.AdaptationOnly:
		p.Adaptation, p.Standalone, p.AdaptationInterval = true, true, suite.AdaptationInterval(iv)
	default:
		p.Quality, p.Latency, p.Adaptation = true, true, true
		p.QualityInterval = iv
		p.LatencyInterval = suite.LatencyInterval(iv)
		p.AdaptationInterval = suite.AdaptationInterval(iv)
	}
	return p
}

// Analyzers returns the names of the enabled analyzers.
func (p Plan) Analyzers() []string {
	var out []string
	if p.Quality {
		out = append(out, quality.Name)
	}
	if p.Latency {
		out = append(out, latency.Name)
	}
	if p.Adaptation {
		out = append(out, adaptation.Name)
	}
	return out
}

// needsTools reports whether quality analysis is the only thing the run does,
// in which case missing media tools make the run pointless.
func (p Plan) needsTools() bool {
	return p.Quality && !p.Latency && !p.Adaptation
}

// Orchestrator coordinates all components for one analysis session.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string
	plan    Plan
	out     io.Writer

	client        *http.Client
	coordinator   *suite.Coordinator
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		version:  version,
		plan:     PlanFor(cfg),
		out:      os.Stdout,
		client:   probe.NewClient(cfg.HTTPHeaders()),
		registry: prometheus.NewRegistry(),
	}

	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:     version,
		ManifestURL: cfg.ManifestURL,
	}, o.registry)

	reader := manifest.NewHTTPReader(manifest.ReaderConfig{
		Client:    o.client,
		Timeout:   probe.ManifestTimeout,
		UserAgent: cfg.UserAgent,
	})

	scfg := suite.Config{
		ManifestURL:        cfg.ManifestURL,
		OutputDir:          cfg.OutputDir,
		Interval:           o.plan.Interval,
		QualityInterval:    o.plan.QualityInterval,
		LatencyInterval:    o.plan.LatencyInterval,
		AdaptationInterval: o.plan.AdaptationInterval,
		Standalone:         o.plan.Standalone,
		MaxLogEntries:      cfg.MaxLogEntries,
		Logger:             logger,
		Observer:           o.metrics,
		OnSnapshot:         o.onSnapshot,
		OnWorkerState:      o.onWorkerState,
	}

	if o.plan.Quality {
		scfg.Quality = quality.New(quality.Config{
			ManifestURL: cfg.ManifestURL,
			Reader:      reader,
			Prober: &process.Tools{
				FFprobePath: cfg.FFprobePath,
				FFmpegPath:  cfg.FFmpegPath,
				Runner:      process.ExecRunner{Logger: logger, Verbose: cfg.Verbose},
				Client:      o.client,
				UserAgent:   cfg.UserAgent,
				Timeout:     cfg.ToolTimeout,
			},
			Logger: logger,
		})
	}
	if o.plan.Latency {
		scfg.Latency = latency.New(latency.Config{
			ManifestURL:    cfg.ManifestURL,
			Reader:         reader,
			ManifestProber: o.newProber(http.MethodGet, probe.ManifestTimeout),
			SegmentProber:  o.newProber(http.MethodGet, probe.SegmentTimeout),
			WindowSize:     cfg.LatencyWindow,
			Logger:         logger,
		})
	}
	if o.plan.Adaptation {
		scfg.Adaptation = adaptation.New(adaptation.Config{
			ManifestURL: cfg.ManifestURL,
			Reader:      reader,
			HeadProber:  o.newProber(http.MethodHead, probe.HeadTimeout),
			HistorySize: cfg.HistorySize,
			Logger:      logger,
			OnSwitch: func(ev adaptation.SwitchingEvent) {
				o.metrics.RecordSwitch(string(ev.Direction))
			},
		})
	}

	coordinator, err := suite.New(scfg)
	if err != nil {
		return nil, fmt.Errorf("create suite: %w", err)
	}
	o.coordinator = coordinator

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, func() any {
			return o.coordinator.Dashboard()
		}, logger)
	}
	return o, nil
}

func (o *Orchestrator) newProber(method string, timeout time.Duration) *probe.HTTPProber {
	p := probe.NewHTTPProber(method, timeout, o.config.UserAgent)
	p.Client = o.client
	return p
}

// Run executes the analysis session. It blocks until completion or signal.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			OutputDir:   o.config.OutputDir,
			FFprobePath: o.config.FFprobePath,
			FFmpegPath:  o.config.FFmpegPath,
			NeedTools:   o.plan.needsTools(),
			Runner:      process.ExecRunner{Logger: o.logger},
		})
		if !o.config.TUIEnabled {
			preflight.PrintResults(o.out, result)
		}
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	// Analyzer I/O is cancelled only after the coordinator's bounded join.
	ioCtx, ioCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer ioCancel()

	if err := o.coordinator.Start(ioCtx); err != nil {
		o.shutdownServer()
		return fmt.Errorf("start suite: %w", err)
	}
	o.logger.Info("session_started",
		"session_id", o.coordinator.SessionID(),
		"analyzers", o.plan.Analyzers(),
		"standalone", o.plan.Standalone,
		"interval", o.plan.Interval.String(),
	)

	// Setup duration timer if configured
	var durationTimer <-chan time.Time
	if o.config.Duration > 0 {
		durationTimer = time.After(o.config.Duration)
	}

	var program *tea.Program
	var tuiDone chan error
	if o.config.TUIEnabled {
		program = tea.NewProgram(tui.New(tui.Config{
			Tool:        o.config.Tool,
			ManifestURL: o.config.ManifestURL,
			OutputDir:   o.config.OutputDir,
			MetricsAddr: o.config.MetricsAddr,
			Source:      o.coordinator,
		}), tea.WithAltScreen())
		tuiDone = make(chan error, 1)
		go func() {
			_, err := program.Run()
			tuiDone <- err
		}()
	}

	// Wait for completion signal
	tuiExited := false
	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-durationTimer:
		o.logger.Info("duration_elapsed", "duration", o.config.Duration.String())
	case err := <-tuiDone:
		tuiExited = true
		if err != nil {
			o.logger.Warn("tui_failed", "error", err)
		}
		o.logger.Info("tui_closed")
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}

	// Restore the terminal before printing anything.
	if program != nil && !tuiExited {
		tui.SendQuit(program)
		<-tuiDone
	}

	if err := o.coordinator.Stop(); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}
	ioCancel()

	o.shutdownServer()

	// Print exit summary
	o.printExitSummary()

	return nil
}

func (o *Orchestrator) shutdownServer() {
	if o.metricsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// Callback handlers

func (o *Orchestrator) onSnapshot(s suite.AggregateSnapshot) {
	o.metrics.RecordScores(scoreUpdate(s))
}

func (o *Orchestrator) onWorkerState(name string, oldState, newState worker.State) {
	if o.config.Verbose {
		o.logger.Debug("worker_state_change",
			"worker", name,
			"old", oldState.String(),
			"new", newState.String(),
		)
	}
}

// scoreUpdate converts an aggregate snapshot into the collector's input.
func scoreUpdate(s suite.AggregateSnapshot) metrics.ScoreUpdate {
	return metrics.ScoreUpdate{
		Health:            s.HealthScore,
		Quality:           metrics.DimensionUpdate{Score: s.Quality.Score, Available: s.Quality.Available},
		Latency:           metrics.DimensionUpdate{Score: s.Latency.Score, Available: s.Latency.Available},
		Adaptation:        metrics.DimensionUpdate{Score: s.Adaptation.Score, Available: s.Adaptation.Available},
		ManifestLatencyMs: s.Details.AvgLatencyMs,
		StabilityScore:    s.Details.StabilityScore,
	}
}

// printExitSummary prints a summary of the session.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()
	w := o.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "%s\n", centered(o.config.Tool+" Exit Summary", 67))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Session ID:             %s\n", o.coordinator.SessionID())
	fmt.Fprintf(w, "Run Duration:           %s\n", stats.FormatDuration(summary.Duration))
	fmt.Fprintf(w, "Manifest:               %s\n", o.config.ManifestURL)
	fmt.Fprintf(w, "Output Directory:       %s\n", o.config.OutputDir)
	fmt.Fprintln(w)

	if snap, ok := o.coordinator.Snapshot(); ok {
		fmt.Fprintln(w, "Last Scores:")
		fmt.Fprintf(w, "  Stream Health:        %.3f\n", snap.HealthScore)
		fmt.Fprintf(w, "  Quality:              %s\n", formatDimension(snap.Quality))
		fmt.Fprintf(w, "  Latency:              %s\n", formatDimension(snap.Latency))
		fmt.Fprintf(w, "  Adaptation:           %s\n", formatDimension(snap.Adaptation))
		fmt.Fprintln(w)
		if len(snap.Recommendations) > 0 {
			fmt.Fprintln(w, "Recommendations:")
			for _, r := range snap.Recommendations {
				fmt.Fprintf(w, "  - %s\n", r)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "Polls:")
	for _, name := range slices.Sorted(maps.Keys(summary.Samples)) {
		byStatus := summary.Samples[name]
		var total int64
		parts := make([]string, 0, len(byStatus))
		for _, status := range slices.Sorted(maps.Keys(byStatus)) {
			total += byStatus[status]
			parts = append(parts, fmt.Sprintf("%s %d", status, byStatus[status]))
		}
		fmt.Fprintf(w, "  %-12s %6d  (%s)\n", name, total, strings.Join(parts, ", "))
	}
	fmt.Fprintln(w)

	if len(summary.SwitchingEvents) > 0 {
		fmt.Fprintln(w, "Switching Events:")
		for _, dir := range slices.Sorted(maps.Keys(summary.SwitchingEvents)) {
			fmt.Fprintf(w, "  %-12s %6d\n", dir, summary.SwitchingEvents[dir])
		}
		fmt.Fprintln(w)
	}

	if len(summary.PersistErrors) > 0 {
		fmt.Fprintln(w, "Persist Errors:")
		for _, name := range slices.Sorted(maps.Keys(summary.PersistErrors)) {
			fmt.Fprintf(w, "  %-12s %6d\n", name, summary.PersistErrors[name])
		}
		fmt.Fprintln(w)
	}

	if o.metricsServer != nil {
		fmt.Fprintf(w, "Metrics endpoint was: http://%s/metrics\n", o.metricsServer.Addr())
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

func formatDimension(d suite.DimensionScore) string {
	if !d.Available {
		return fmt.Sprintf("%.3f (unavailable)", d.Score)
	}
	return fmt.Sprintf("%.3f", d.Score)
}

func centered(s string, width int) string {
	pad := max((width-len(s))/2, 0)
	return strings.Repeat(" ", pad) + s
}

// Coordinator returns the suite coordinator for external access.
func (o *Orchestrator) Coordinator() *suite.Coordinator {
	return o.coordinator
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Plan returns the run plan.
func (o *Orchestrator) Plan() Plan {
	return o.plan
}
