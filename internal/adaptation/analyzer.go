// Package adaptation tracks which video representations are currently
// served, detects bitrate switching events, and scores bitrate stability.
package adaptation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/probe"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

const (
	// Name identifies the analyzer in logs, metrics and the suite.
	Name = "adaptation"

	// DefaultInterval is the standalone poll interval.
	DefaultInterval = 10 * time.Second

	// DefaultHistorySize bounds the bitrate history.
	DefaultHistorySize = 100

	// DefaultConcurrency bounds simultaneous HEAD probes.
	DefaultConcurrency = 4

	JSONFile   = "adaptation_analysis.json"
	CSVFile    = "adaptation_analysis.csv"
	ReportFile = "adaptation_report.txt"
)

// ErrNoActive is the failure detail when no representation answered and
// there is no bitrate history to report on yet.
var ErrNoActive = errors.New("no active representations")

// ActiveSegment is a representation whose latest segment answered a probe.
type ActiveSegment struct {
	RepresentationID string   `json:"representation_id"`
	Bandwidth        int64    `json:"bandwidth"`
	Resolution       string   `json:"resolution,omitempty"`
	SegmentNumber    int64    `json:"segment_number"`
	URL              string   `json:"url"`
	LatencyMs        *float64 `json:"latency_ms,omitempty"`
}

// RepresentationMetrics describes the ladder advertised and served this poll.
type RepresentationMetrics struct {
	AvailableBitrates []int64  `json:"available_bitrates"`
	ActiveBitrates    []int64  `json:"active_bitrates"`
	MinBitrate        int64    `json:"min_bitrate"`
	MaxBitrate        int64    `json:"max_bitrate"`
	BitrateRange      int64    `json:"bitrate_range"`
	BitrateLevels     int      `json:"bitrate_levels"`
	CurrentBitrate    int64    `json:"current_bitrate"`
	Resolutions       []string `json:"resolutions"`
}

// AggregateMetrics is recomputed over the whole bitrate history every poll.
type AggregateMetrics struct {
	AvgBitrate           float64 `json:"avg_bitrate"`
	BitrateVariance      float64 `json:"bitrate_variance"`
	TotalSwitchingEvents int     `json:"total_switching_events"`
	UpgradeEvents        int     `json:"upgrade_events"`
	DowngradeEvents      int     `json:"downgrade_events"`
	MixedEvents          int     `json:"mixed_events"`
	SwitchingFrequency   float64 `json:"switching_frequency"`
	StabilityScore       float64 `json:"stability_score"`
	HistorySize          int     `json:"history_size"`
}

// Result is the payload of a successful adaptation sample.
type Result struct {
	Manifest        manifest.Info         `json:"manifest_info"`
	ActiveSegments  []ActiveSegment       `json:"active_segments"`
	Metrics         RepresentationMetrics `json:"representation_metrics"`
	SwitchingEvents []SwitchingEvent      `json:"switching_events"`
	Aggregate       AggregateMetrics      `json:"aggregate_metrics"`
	SessionDuration float64               `json:"session_duration"`
}

// bitrateEntry is one point of the bitrate history.
type bitrateEntry struct {
	Timestamp time.Time
	Active    []int64
	Current   int64
}

// Config holds the collaborators of an Analyzer.
type Config struct {
	ManifestURL string
	Reader      manifest.Reader

	// HeadProber checks whether a representation's latest segment exists.
	HeadProber probe.LatencyProber

	HistorySize int
	Concurrency int
	Clock       timeseries.Clock
	Logger      *slog.Logger

	// OnSwitch is called for every detected switching event.
	OnSwitch func(SwitchingEvent)
}

// Analyzer is one adaptation session. It is owned by a single worker.
type Analyzer struct {
	cfg     Config
	logger  *slog.Logger
	clock   timeseries.Clock
	started time.Time

	history  *timeseries.History[bitrateEntry]
	switches *timeseries.History[SwitchingEvent]
}

// New creates an Analyzer. A nil HeadProber defaults to HTTP HEAD with the
// standard probe timeout.
func New(cfg Config) *Analyzer {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = timeseries.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HeadProber == nil {
		cfg.HeadProber = probe.NewHTTPProber("HEAD", probe.HeadTimeout, "")
	}
	return &Analyzer{
		cfg:      cfg,
		logger:   cfg.Logger.With("analyzer", Name),
		clock:    cfg.Clock,
		started:  cfg.Clock.Now(),
		history:  timeseries.NewHistory[bitrateEntry](cfg.HistorySize),
		switches: timeseries.NewHistory[SwitchingEvent](0),
	}
}

// Poll fetches the manifest, probes each video representation's latest
// segment, and updates the bitrate history and switching log.
func (a *Analyzer) Poll(ctx context.Context) (sample.Sample[Result], error) {
	now := a.clock.Now()

	snap, err := a.cfg.Reader.Fetch(ctx, a.cfg.ManifestURL)
	if err != nil {
		return sample.Sample[Result]{}, fmt.Errorf("fetch manifest: %w", err)
	}

	reps := snap.VideoRepresentations()
	if len(reps) == 0 {
		return sample.FailureWithStatus[Result](now, sample.StatusError, errors.New("no video representations")), nil
	}

	active := a.probeActive(ctx, snap, reps, now)
	if len(active) == 0 && a.history.Len() == 0 {
		return sample.FailureWithStatus[Result](now, sample.StatusError, ErrNoActive), nil
	}

	res := Result{
		Manifest:        snap.Info(),
		ActiveSegments:  active,
		Metrics:         representationMetrics(reps, active),
		SwitchingEvents: []SwitchingEvent{},
	}

	// No answering representation: the history and its aggregate stand, but
	// this poll contributes no bitrate point and no switch.
	if len(active) == 0 {
		a.logger.Warn("no_active_representations", "representations", len(reps))
		res.Aggregate = a.Aggregate()
		res.SessionDuration = a.clock.Now().Sub(a.started).Seconds()
		return sample.Success(now, res), nil
	}

	entry := bitrateEntry{Timestamp: now, Active: res.Metrics.ActiveBitrates, Current: res.Metrics.CurrentBitrate}
	prev, hadPrev := a.history.Latest()
	a.history.Append(entry)

	if hadPrev {
		if ev, ok := DetectSwitch(prev.Active, entry.Active, now); ok {
			a.switches.Append(ev)
			res.SwitchingEvents = append(res.SwitchingEvents, ev)
			a.logger.Info("switching_event",
				"direction", string(ev.Direction),
				"previous", ev.PreviousBitrates,
				"current", ev.CurrentBitrates,
			)
			if a.cfg.OnSwitch != nil {
				a.cfg.OnSwitch(ev)
			}
		}
	}

	res.Aggregate = a.Aggregate()
	res.SessionDuration = a.clock.Now().Sub(a.started).Seconds()
	return sample.Success(now, res), nil
}

// probeActive HEAD-probes the latest segment of every representation.
// The result keeps ascending bandwidth order.
func (a *Analyzer) probeActive(ctx context.Context, snap *manifest.Snapshot, reps []manifest.Representation, now time.Time) []ActiveSegment {
	found := make([]*ActiveSegment, len(reps))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, rep := range reps {
		ref, ok := snap.LatestSegment(rep, now)
		if !ok {
			continue
		}
		g.Go(func() error {
			m := a.cfg.HeadProber.ProbeLatency(ctx, ref.MediaURL)
			if !m.OK() {
				a.logger.Debug("representation_inactive",
					"representation", rep.ID,
					"bandwidth", rep.Bandwidth,
					"status", string(m.Status),
					"error", m.Error,
				)
				return nil
			}
			found[i] = &ActiveSegment{
				RepresentationID: rep.ID,
				Bandwidth:        rep.Bandwidth,
				Resolution:       rep.Resolution(),
				SegmentNumber:    ref.Number,
				URL:              ref.MediaURL,
				LatencyMs:        m.LatencyMs,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ActiveSegment, 0, len(reps))
	for _, f := range found {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

func representationMetrics(reps []manifest.Representation, active []ActiveSegment) RepresentationMetrics {
	m := RepresentationMetrics{
		AvailableBitrates: make([]int64, 0, len(reps)),
		ActiveBitrates:    make([]int64, 0, len(active)),
		Resolutions:       []string{},
	}
	for _, rep := range reps {
		m.AvailableBitrates = append(m.AvailableBitrates, rep.Bandwidth)
		if res := rep.Resolution(); res != "" {
			m.Resolutions = append(m.Resolutions, res)
		}
	}
	for _, as := range active {
		m.ActiveBitrates = append(m.ActiveBitrates, as.Bandwidth)
	}
	slices.Sort(m.ActiveBitrates)

	m.MinBitrate = slices.Min(m.AvailableBitrates)
	m.MaxBitrate = slices.Max(m.AvailableBitrates)
	m.BitrateRange = m.MaxBitrate - m.MinBitrate
	m.BitrateLevels = len(slices.Compact(slices.Clone(m.AvailableBitrates)))
	if len(m.ActiveBitrates) > 0 {
		m.CurrentBitrate = m.ActiveBitrates[0]
	}
	return m
}

// Aggregate computes stability metrics over the bitrate history. The
// switching frequency counts only events between retained history entries.
func (a *Analyzer) Aggregate() AggregateMetrics {
	entries := a.history.Snapshot()
	events := a.switches.Snapshot()

	agg := AggregateMetrics{
		TotalSwitchingEvents: len(events),
		HistorySize:          len(entries),
	}
	for _, ev := range events {
		switch ev.Direction {
		case DirectionUpgrade:
			agg.UpgradeEvents++
		case DirectionDowngrade:
			agg.DowngradeEvents++
		default:
			agg.MixedEvents++
		}
	}
	if len(entries) == 0 {
		return agg
	}

	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = float64(e.Current)
	}
	agg.AvgBitrate, agg.BitrateVariance = stats.MeanVariance(values)
	agg.StabilityScore = stats.StabilityScore(agg.AvgBitrate, agg.BitrateVariance)

	windowStart := entries[0].Timestamp
	inWindow := 0
	for _, ev := range events {
		if ev.Timestamp.After(windowStart) {
			inWindow++
		}
	}
	agg.SwitchingFrequency = float64(inWindow) / float64(len(entries))
	return agg
}

// RecentSwitches returns the newest n switching events.
func (a *Analyzer) RecentSwitches(n int) []SwitchingEvent {
	return a.switches.Last(n)
}

// Files returns the persistence sink for this analyzer rooted at dir.
func (a *Analyzer) Files(dir string) *persist.Files[Result] {
	return persist.NewFiles(dir, JSONFile, CSVFile, ReportFile, a.Report)
}
