// Package suite runs the quality, latency and adaptation analyzers side by
// side and periodically fuses their newest results into a stream health
// score.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/adaptation"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/latency"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/quality"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/worker"
)

const (
	// Name identifies the aggregation worker.
	Name = "suite"

	DefaultInterval      = 30 * time.Second
	DefaultMaxStartDelay = time.Second
	DefaultJoinTimeout   = 5 * time.Second

	JSONFile   = "analysis_suite.json"
	CSVFile    = "analysis_suite.csv"
	ReportFile = "comprehensive_report.txt"
)

// ErrNoAnalyzers is returned by New when no analyzer is configured.
var ErrNoAnalyzers = errors.New("no analyzers enabled")

// LatencyInterval derives the latency poll interval from the suite interval.
func LatencyInterval(suite time.Duration) time.Duration {
	return max(time.Second, (suite / 6).Truncate(time.Second))
}

// AdaptationInterval derives the adaptation poll interval from the suite
// interval.
func AdaptationInterval(suite time.Duration) time.Duration {
	return max(time.Second, (suite / 3).Truncate(time.Second))
}

// Config configures a Coordinator. Nil analyzers are disabled.
type Config struct {
	ManifestURL string
	OutputDir   string

	// Interval drives aggregation and, unless overridden, quality polling.
	Interval time.Duration

	// Per-analyzer intervals. Zero values are derived from Interval.
	QualityInterval    time.Duration
	LatencyInterval    time.Duration
	AdaptationInterval time.Duration

	Quality    *quality.Analyzer
	Latency    *latency.Analyzer
	Adaptation *adaptation.Analyzer

	// Standalone runs the enabled analyzers without the aggregation worker,
	// writing their files directly into OutputDir.
	Standalone bool

	MaxLogEntries int
	MaxStartDelay time.Duration
	JitterSeed    int64
	JoinTimeout   time.Duration

	Logger   *slog.Logger
	Clock    timeseries.Clock
	Observer worker.Observer

	// OnSnapshot is called after every aggregation cycle has been persisted.
	OnSnapshot func(AggregateSnapshot)

	// OnWorkerState is called on every worker state change.
	OnWorkerState func(name string, oldState, newState worker.State)
}

// runner is the untyped view of a worker the coordinator drives.
type runner interface {
	Run(ctx context.Context)
	Stop()
	Wait(timeout time.Duration) bool
	Name() string
	State() worker.State
	Polls() int64
	Count() int
}

// Coordinator owns one analysis session.
type Coordinator struct {
	cfg       Config
	logger    *slog.Logger
	clock     timeseries.Clock
	sessionID string
	started   time.Time

	mu    sync.Mutex
	state State

	quality    *worker.Worker[quality.Result]
	latency    *worker.Worker[latency.Result]
	adaptation *worker.Worker[adaptation.Result]
	aggregator *worker.Worker[AggregateSnapshot]
	runners    []runner
	dirs       []string

	files  *persist.Files[AggregateSnapshot]
	gauges *dashboardGauges
}

// New builds the workers for every configured analyzer.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Quality == nil && cfg.Latency == nil && cfg.Adaptation == nil {
		return nil, ErrNoAnalyzers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.QualityInterval <= 0 {
		cfg.QualityInterval = cfg.Interval
	}
	if cfg.LatencyInterval <= 0 {
		cfg.LatencyInterval = LatencyInterval(cfg.Interval)
	}
	if cfg.AdaptationInterval <= 0 {
		cfg.AdaptationInterval = AdaptationInterval(cfg.Interval)
	}
	if cfg.MaxStartDelay < 0 {
		cfg.MaxStartDelay = 0
	} else if cfg.MaxStartDelay == 0 {
		cfg.MaxStartDelay = DefaultMaxStartDelay
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeseries.SystemClock{}
	}

	c := &Coordinator{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", Name),
		clock:     cfg.Clock,
		sessionID: uuid.NewString(),
		started:   cfg.Clock.Now(),
		state:     StateIdle,
		gauges:    newDashboardGauges(),
	}
	jitter := worker.NewJitterSource(cfg.JitterSeed)

	if a := cfg.Quality; a != nil {
		dir := c.analyzerDir(quality.Name)
		c.quality = newWorker(c, jitter, quality.Name, cfg.QualityInterval, a.Poll, a.Files(dir).Write)
		c.add(c.quality, dir)
	}
	if a := cfg.Latency; a != nil {
		dir := c.analyzerDir(latency.Name)
		c.latency = newWorker(c, jitter, latency.Name, cfg.LatencyInterval, a.Poll, a.Files(dir).Write)
		c.add(c.latency, dir)
	}
	if a := cfg.Adaptation; a != nil {
		dir := c.analyzerDir(adaptation.Name)
		c.adaptation = newWorker(c, jitter, adaptation.Name, cfg.AdaptationInterval, a.Poll, a.Files(dir).Write)
		c.add(c.adaptation, dir)
	}

	if !cfg.Standalone {
		c.files = persist.NewFiles(cfg.OutputDir, JSONFile, CSVFile, ReportFile, c.Report)
		c.aggregator = worker.New(worker.Config[AggregateSnapshot]{
			Name:          Name,
			Interval:      cfg.Interval,
			StartDelay:    cfg.Interval,
			Poll:          c.aggregate,
			Sink:          c.persist,
			MaxLogEntries: cfg.MaxLogEntries,
			Logger:        cfg.Logger,
			Clock:         cfg.Clock,
			Observer:      cfg.Observer,
			Callbacks: worker.Callbacks[AggregateSnapshot]{
				OnStateChange: cfg.OnWorkerState,
			},
		})
		c.add(c.aggregator, cfg.OutputDir)
	}
	return c, nil
}

func newWorker[T any](c *Coordinator, jitter *worker.JitterSource, name string, interval time.Duration,
	poll worker.PollFunc[T], sink worker.SinkFunc[T]) *worker.Worker[T] {
	return worker.New(worker.Config[T]{
		Name:          name,
		Interval:      interval,
		StartDelay:    jitter.StartDelay(name, c.cfg.MaxStartDelay),
		Poll:          poll,
		Sink:          sink,
		MaxLogEntries: c.cfg.MaxLogEntries,
		Logger:        c.cfg.Logger,
		Clock:         c.cfg.Clock,
		Observer:      c.cfg.Observer,
		Callbacks: worker.Callbacks[T]{
			OnStateChange: c.cfg.OnWorkerState,
		},
	})
}

func (c *Coordinator) analyzerDir(name string) string {
	if c.cfg.Standalone {
		return c.cfg.OutputDir
	}
	return filepath.Join(c.cfg.OutputDir, name)
}

func (c *Coordinator) add(r runner, dir string) {
	c.runners = append(c.runners, r)
	c.dirs = append(c.dirs, dir)
}

// Start creates the output directories and launches every worker.
// ctx is handed to the workers and bounds their in-flight I/O.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(c.state, StateRunning); err != nil {
		return err
	}
	for _, dir := range c.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &persist.PersistenceError{Path: dir, Err: err}
		}
	}

	c.state = StateRunning
	c.logger.Info("suite_starting",
		"session_id", c.sessionID,
		"manifest_url", c.cfg.ManifestURL,
		"output_dir", c.cfg.OutputDir,
		"workers", len(c.runners),
		"standalone", c.cfg.Standalone,
	)
	for _, r := range c.runners {
		go r.Run(ctx)
	}
	return nil
}

// Stop asks every worker to exit and waits up to JoinTimeout for each.
// Workers still running after their wait are reported and abandoned.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if err := checkTransition(c.state, StateStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StateStopping
	c.mu.Unlock()

	for _, r := range c.runners {
		r.Stop()
	}
	var timedOut []string
	for _, r := range c.runners {
		if !r.Wait(c.cfg.JoinTimeout) {
			c.logger.Warn("analyzer_stop_timeout", "analyzer", r.Name(), "timeout", c.cfg.JoinTimeout.String())
			timedOut = append(timedOut, r.Name())
		}
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	c.logger.Info("suite_stopped", "session_id", c.sessionID, "timed_out", timedOut)
	if len(timedOut) > 0 {
		return fmt.Errorf("%d worker(s) did not stop within %s: %v", len(timedOut), c.cfg.JoinTimeout, timedOut)
	}
	return nil
}

// State returns the coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session identifier.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// Elapsed returns the session duration so far.
func (c *Coordinator) Elapsed() time.Duration {
	return c.clock.Now().Sub(c.started)
}

// aggregate is the aggregation worker's poll.
func (c *Coordinator) aggregate(context.Context) (sample.Sample[AggregateSnapshot], error) {
	now := c.clock.Now()
	snap := Aggregate(now, c.sessionID, c.started, c.inputs())
	c.logger.Info("aggregate_cycle",
		"health", snap.HealthScore,
		"quality", snap.Quality.Score,
		"latency", snap.Latency.Score,
		"adaptation", snap.Adaptation.Score,
		"unavailable", snap.Unavailable(),
		"recommendations", len(snap.Recommendations),
	)
	return sample.Success(now, snap), nil
}

func (c *Coordinator) inputs() Inputs {
	var in Inputs
	if c.quality != nil {
		in.Quality, _ = c.quality.Latest()
		in.Analyses.Quality = c.quality.Count()
	}
	if c.latency != nil {
		in.Latency, _ = c.latency.Latest()
		in.Analyses.Latency = c.latency.Count()
	}
	if c.adaptation != nil {
		in.Adaptation, _ = c.adaptation.Latest()
		in.Analyses.Adaptation = c.adaptation.Count()
	}
	return in
}

// persist is the aggregation worker's sink.
func (c *Coordinator) persist(log []sample.Sample[AggregateSnapshot]) error {
	err := c.files.Write(log)
	if len(log) == 0 {
		return err
	}
	latest, ok := log[len(log)-1].Value()
	if !ok {
		return err
	}
	dash := NewDashboard(latest)
	err = errors.Join(err, c.gauges.write(
		filepath.Join(c.cfg.OutputDir, DashboardFile),
		filepath.Join(c.cfg.OutputDir, DashboardPromFile),
		dash,
	))
	if c.cfg.OnSnapshot != nil {
		c.cfg.OnSnapshot(latest)
	}
	return err
}

// Snapshot returns the newest aggregate snapshot.
func (c *Coordinator) Snapshot() (AggregateSnapshot, bool) {
	if c.aggregator == nil {
		return AggregateSnapshot{}, false
	}
	s, ok := c.aggregator.Latest()
	if !ok {
		return AggregateSnapshot{}, false
	}
	return s.Value()
}

// Dashboard returns the newest dashboard view, computing one on demand when
// no aggregation cycle has completed yet.
func (c *Coordinator) Dashboard() Dashboard {
	if s, ok := c.Snapshot(); ok {
		return NewDashboard(s)
	}
	return NewDashboard(Aggregate(c.clock.Now(), c.sessionID, c.started, c.inputs()))
}

// QualitySamples returns the quality sample log, or nil when disabled.
func (c *Coordinator) QualitySamples() []sample.Sample[quality.Result] {
	if c.quality == nil {
		return nil
	}
	return c.quality.Samples()
}

// LatencySamples returns the latency sample log, or nil when disabled.
func (c *Coordinator) LatencySamples() []sample.Sample[latency.Result] {
	if c.latency == nil {
		return nil
	}
	return c.latency.Samples()
}

// AdaptationSamples returns the adaptation sample log, or nil when disabled.
func (c *Coordinator) AdaptationSamples() []sample.Sample[adaptation.Result] {
	if c.adaptation == nil {
		return nil
	}
	return c.adaptation.Samples()
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	Name    string
	State   worker.State
	Polls   int64
	Samples int
}

// Workers reports the status of every worker in start order.
func (c *Coordinator) Workers() []WorkerStatus {
	out := make([]WorkerStatus, len(c.runners))
	for i, r := range c.runners {
		out[i] = WorkerStatus{Name: r.Name(), State: r.State(), Polls: r.Polls(), Samples: r.Count()}
	}
	return out
}
