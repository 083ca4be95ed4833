package suite

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/adaptation"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/latency"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/probe"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/quality"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func qualitySample(similarity float64) sample.Sample[quality.Result] {
	return sample.Success(t0, quality.Result{Aggregate: quality.Aggregate{
		AvgBitrate:       ptr(2_500_000.0),
		Similarity:       ptr(similarity),
		SegmentsAnalyzed: 5,
	}})
}

func latencySample(avgMs float64) sample.Sample[latency.Result] {
	return sample.Success(t0, latency.Result{ManifestMetrics: &stats.WindowMetrics{AvgLatencyMs: ptr(avgMs)}})
}

func adaptationSample(stability float64, switches int) sample.Sample[adaptation.Result] {
	return sample.Success(t0, adaptation.Result{Aggregate: adaptation.AggregateMetrics{
		StabilityScore:       stability,
		TotalSwitchingEvents: switches,
	}})
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateRunning, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateIdle, StateStopping, false},
		{StateRunning, StateRunning, false},
		{StateStopped, StateRunning, false},
		{StateStopped, StateStopping, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := checkTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidState) {
				t.Errorf("err = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateStopping.String() != "stopping" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

func TestAggregate_AllHealthy(t *testing.T) {
	snap := Aggregate(t0.Add(90*time.Second), "sess", t0, Inputs{
		Quality:    qualitySample(0.9),
		Latency:    latencySample(100),
		Adaptation: adaptationSample(0.9, 2),
		Analyses:   Analyses{Quality: 3, Latency: 18, Adaptation: 9},
	})

	if math.Abs(snap.HealthScore-0.9) > 1e-9 {
		t.Errorf("HealthScore = %v, want 0.9", snap.HealthScore)
	}
	if len(snap.Recommendations) != 0 {
		t.Errorf("Recommendations = %v, want none", snap.Recommendations)
	}
	if snap.SessionDuration != 90 {
		t.Errorf("SessionDuration = %v", snap.SessionDuration)
	}
	if snap.Details.SwitchingEvents == nil || *snap.Details.SwitchingEvents != 2 {
		t.Errorf("Details = %+v", snap.Details)
	}
	if len(snap.Unavailable()) != 0 {
		t.Errorf("Unavailable = %v", snap.Unavailable())
	}
}

func TestAggregate_UnavailableDimensionCountsAsZero(t *testing.T) {
	snap := Aggregate(t0, "sess", t0, Inputs{
		Quality:    sample.Failure[quality.Result](t0, quality.ErrNoSegments),
		Latency:    latencySample(0),
		Adaptation: adaptationSample(1, 0),
	})
	if snap.Quality.Available || snap.Quality.Score != 0 {
		t.Errorf("Quality = %+v, want unavailable 0", snap.Quality)
	}
	if got := stats.Round(snap.HealthScore, 3); got != 0.667 {
		t.Errorf("HealthScore = %v, want 0.667", got)
	}
	if !slices.Equal(snap.Recommendations, []string{RecommendQuality}) {
		t.Errorf("Recommendations = %v", snap.Recommendations)
	}
	if !slices.Equal(snap.Unavailable(), []string{DimensionQuality}) {
		t.Errorf("Unavailable = %v", snap.Unavailable())
	}
	if snap.Details.Similarity != nil {
		t.Error("failed quality sample must not contribute details")
	}
}

// queuedProber hands out measurements in order, then repeats the last one.
type queuedProber struct {
	queue []probe.Measurement
}

func (p *queuedProber) ProbeLatency(_ context.Context, url string) probe.Measurement {
	m := p.queue[0]
	if len(p.queue) > 1 {
		p.queue = p.queue[1:]
	}
	m.URL = url
	return m
}

func TestAggregate_LatencyTimeoutKeepsDimension(t *testing.T) {
	okMs := 100.0
	queue := make([]probe.Measurement, 0, 50)
	for range 49 {
		queue = append(queue, probe.Measurement{Status: sample.StatusSuccess, LatencyMs: &okMs, HTTPStatus: 200})
	}
	queue = append(queue, probe.Measurement{Status: sample.StatusTimeout, Error: "context deadline exceeded"})

	a := latency.New(latency.Config{
		ManifestURL:    "http://cdn.test/live.mpd",
		Reader:         downReader{},
		ManifestProber: &queuedProber{queue: queue},
		SegmentProber:  constProber{ms: 100},
		Logger:         discard(),
	})
	var last sample.Sample[latency.Result]
	for range queue {
		last, _ = a.Poll(context.Background())
	}

	snap := Aggregate(t0, "sess", t0, Inputs{
		Quality:    qualitySample(0.9),
		Latency:    last,
		Adaptation: adaptationSample(0.9, 0),
	})
	if !snap.Latency.Available {
		t.Fatalf("Latency = %+v, one timeout must not drop the dimension", snap.Latency)
	}
	if got := stats.Round(snap.Latency.Score, 3); got != 0.9 {
		t.Errorf("Latency.Score = %v, want 0.9", got)
	}
	if slices.Contains(snap.Recommendations, RecommendLatency) {
		t.Errorf("Recommendations = %v", snap.Recommendations)
	}
	if snap.Details.AvgLatencyMs == nil || *snap.Details.AvgLatencyMs != 100 {
		t.Errorf("Details.AvgLatencyMs = %v", snap.Details.AvgLatencyMs)
	}
}

func TestAggregateLog_RoundTrip(t *testing.T) {
	inputs := []Inputs{
		{
			Quality:    qualitySample(0.95),
			Latency:    latencySample(120),
			Adaptation: adaptationSample(0.8, 3),
			Analyses:   Analyses{Quality: 1, Latency: 6, Adaptation: 3},
		},
		{
			Quality:    sample.Failure[quality.Result](t0, quality.ErrNoSegments),
			Latency:    latencySample(0),
			Adaptation: adaptationSample(1, 0),
			Analyses:   Analyses{Quality: 2, Latency: 12, Adaptation: 6},
		},
		{
			Quality: sample.Success(t0, quality.Result{Aggregate: quality.Aggregate{AvgBitrate: ptr(1_800_000.5), SegmentsAnalyzed: 1}}),
			Latency: sample.Success(t0, latency.Result{}),
		},
		{},
	}

	var written []sample.Sample[AggregateSnapshot]
	for i, in := range inputs {
		now := t0.Add(time.Duration(i+1) * 30 * time.Second)
		written = append(written, sample.Success(now, Aggregate(now, "sess-1", t0, in)))
	}
	if recs := written[0].Result.Recommendations; len(recs) != 0 {
		t.Fatalf("first snapshot should have no recommendations, got %v", recs)
	}

	dir := t.TempDir()
	files := persist.NewFiles[AggregateSnapshot](dir, JSONFile, CSVFile, "", nil)
	if err := files.Write(written); err != nil {
		t.Fatalf("Write: %v", err)
	}
	read, err := persist.ReadJSONLog[sample.Sample[AggregateSnapshot]](filepath.Join(dir, JSONFile))
	if err != nil {
		t.Fatalf("ReadJSONLog: %v", err)
	}
	if len(read) != len(written) {
		t.Fatalf("read %d samples, wrote %d", len(read), len(written))
	}

	for i := range written {
		want, got := written[i], read[i]
		if !got.Timestamp.Equal(want.Timestamp) || got.Status != want.Status || got.Error != want.Error {
			t.Errorf("sample %d envelope = %+v, want %+v", i, got, want)
			continue
		}
		if got.Result == nil {
			t.Errorf("sample %d lost its snapshot", i)
			continue
		}
		w, g := *want.Result, *got.Result
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("sample %d snapshot timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
		w.Timestamp, g.Timestamp = time.Time{}, time.Time{}
		if !reflect.DeepEqual(g, w) {
			t.Errorf("sample %d snapshot mismatch:\n got %+v\nwant %+v", i, g, w)
		}
	}
}

func TestAggregate_NoSamples(t *testing.T) {
	snap := Aggregate(t0, "sess", t0, Inputs{})
	if snap.HealthScore != 0 || len(snap.Unavailable()) != 3 || len(snap.Recommendations) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDimensionScores(t *testing.T) {
	tests := []struct {
		name string
		got  DimensionScore
		want DimensionScore
	}{
		{"similarity clamped high", QualityScore(&quality.Result{Aggregate: quality.Aggregate{Similarity: ptr(1.3)}}), DimensionScore{1, true}},
		{"similarity absent", QualityScore(&quality.Result{}), DimensionScore{}},
		{"latency 250ms", LatencyScore(&latency.Result{ManifestMetrics: &stats.WindowMetrics{AvgLatencyMs: ptr(250.0)}}), DimensionScore{0.75, true}},
		{"latency floor", LatencyScore(&latency.Result{ManifestMetrics: &stats.WindowMetrics{AvgLatencyMs: ptr(2500.0)}}), DimensionScore{0, true}},
		{"latency no values", LatencyScore(&latency.Result{ManifestMetrics: &stats.WindowMetrics{TimeoutRate: 1}}), DimensionScore{}},
		{"adaptation nil", AdaptationScore(nil), DimensionScore{}},
		{"adaptation stability", AdaptationScore(&adaptation.Result{Aggregate: adaptation.AggregateMetrics{StabilityScore: 0.4}}), DimensionScore{0.4, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %+v, want %+v", tt.got, tt.want)
			}
		})
	}
}

func TestRecommendationThresholds(t *testing.T) {
	tests := []struct {
		name    string
		q, l, a float64
		want    []string
	}{
		{"at thresholds", 0.7, 0.8, 0.6, []string{}},
		{"all below", 0.69, 0.79, 0.59, []string{RecommendQuality, RecommendLatency, RecommendAdaptation}},
		{"latency only", 1, 0.5, 1, []string{RecommendLatency}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommendations(available(tt.q), available(tt.l), available(tt.a))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDashboardJSON(t *testing.T) {
	snap := Aggregate(t0, "sess-1", t0, Inputs{
		Latency:    latencySample(200),
		Adaptation: adaptationSample(0.8, 0),
	})
	data, err := json.Marshal(NewDashboard(snap))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"timestamp", "overall_health", "quality_score", "latency_score", "adaptation_score",
		"recommendations", "session_duration", "session_id", "unavailable", "avg_latency_ms", "stability_score", "switching_events"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	for _, key := range []string{"avg_bitrate", "avg_ssim"} {
		if _, ok := m[key]; ok {
			t.Errorf("absent quality detail %q should be omitted", key)
		}
	}
	// zero switching events is present, not omitted
	if m["switching_events"] != 0.0 {
		t.Errorf("switching_events = %v", m["switching_events"])
	}

	var back Dashboard
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Timestamp.Equal(t0) || back.SessionID != "sess-1" || *back.AvgLatencyMs != 200 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestIntervals(t *testing.T) {
	tests := []struct {
		suite, latency, adaptation time.Duration
	}{
		{30 * time.Second, 5 * time.Second, 10 * time.Second},
		{60 * time.Second, 10 * time.Second, 20 * time.Second},
		{5 * time.Second, time.Second, time.Second},
		{10 * time.Second, time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.suite.String(), func(t *testing.T) {
			if got := LatencyInterval(tt.suite); got != tt.latency {
				t.Errorf("LatencyInterval = %v, want %v", got, tt.latency)
			}
			if got := AdaptationInterval(tt.suite); got != tt.adaptation {
				t.Errorf("AdaptationInterval = %v, want %v", got, tt.adaptation)
			}
		})
	}
}

type constProber struct{ ms float64 }

func (p constProber) ProbeLatency(_ context.Context, url string) probe.Measurement {
	v := p.ms
	return probe.Measurement{URL: url, Status: sample.StatusSuccess, LatencyMs: &v, HTTPStatus: 200}
}

type downReader struct{}

func (downReader) Fetch(context.Context, string) (*manifest.Snapshot, error) {
	return nil, errors.New("down")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newLatencyAnalyzer() *latency.Analyzer {
	return latency.New(latency.Config{
		ManifestURL:    "http://cdn.test/live.mpd",
		Reader:         downReader{},
		ManifestProber: constProber{ms: 100},
		SegmentProber:  constProber{ms: 100},
		Logger:         discard(),
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_NoAnalyzers(t *testing.T) {
	if _, err := New(Config{OutputDir: t.TempDir()}); !errors.Is(err, ErrNoAnalyzers) {
		t.Errorf("err = %v, want ErrNoAnalyzers", err)
	}
}

func TestCoordinator_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	var snapshots []AggregateSnapshot
	c, err := New(Config{
		ManifestURL:     "http://cdn.test/live.mpd",
		OutputDir:       dir,
		Interval:        20 * time.Millisecond,
		LatencyInterval: 10 * time.Millisecond,
		Latency:         newLatencyAnalyzer(),
		MaxStartDelay:   -1,
		Logger:          discard(),
		OnSnapshot:      func(s AggregateSnapshot) { snapshots = append(snapshots, s) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Stop before Start = %v, want ErrInvalidState", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start = %v, want ErrInvalidState", err)
	}

	dashPath := filepath.Join(dir, DashboardFile)
	waitFor(t, "dashboard", func() bool {
		_, err := os.Stat(dashPath)
		return err == nil
	})
	waitFor(t, "latency result in snapshot", func() bool {
		s, ok := c.Snapshot()
		return ok && s.Latency.Available
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("State = %v, want stopped", c.State())
	}
	if err := c.Start(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start after Stop = %v, want ErrInvalidState", err)
	}
	for _, w := range c.Workers() {
		if !w.State.IsTerminal() {
			t.Errorf("worker %s state = %v", w.Name, w.State)
		}
	}

	for _, name := range []string{JSONFile, CSVFile, ReportFile, DashboardPromFile,
		filepath.Join(latency.Name, latency.JSONFile), filepath.Join(latency.Name, latency.ReportFile)} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	var dash Dashboard
	data, _ := os.ReadFile(dashPath)
	if err := json.Unmarshal(data, &dash); err != nil {
		t.Fatal(err)
	}
	if dash.SessionID != c.SessionID() {
		t.Errorf("dashboard session = %q, want %q", dash.SessionID, c.SessionID())
	}
	if !slices.Contains(dash.Unavailable, DimensionQuality) || !slices.Contains(dash.Unavailable, DimensionAdaptation) {
		t.Errorf("Unavailable = %v", dash.Unavailable)
	}

	prom, _ := os.ReadFile(filepath.Join(dir, DashboardPromFile))
	if !strings.Contains(string(prom), "stream_dashboard_health_score") {
		t.Errorf("textfile missing health gauge:\n%s", prom)
	}

	report, _ := os.ReadFile(filepath.Join(dir, ReportFile))
	if !strings.Contains(string(report), "COMPREHENSIVE STREAM REPORT") || !strings.Contains(string(report), c.SessionID()) {
		t.Errorf("report:\n%s", report)
	}

	log, err := persist.ReadJSONLog[sample.Sample[AggregateSnapshot]](filepath.Join(dir, JSONFile))
	if err != nil || len(log) == 0 {
		t.Fatalf("suite log = %d entries, err %v", len(log), err)
	}
	if len(snapshots) == 0 {
		t.Error("OnSnapshot never called")
	}
}

func TestCoordinator_Standalone(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Config{
		OutputDir:       dir,
		LatencyInterval: 10 * time.Millisecond,
		Latency:         newLatencyAnalyzer(),
		Standalone:      true,
		MaxStartDelay:   -1,
		Logger:          discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "latency file", func() bool {
		_, err := os.Stat(filepath.Join(dir, latency.JSONFile))
		return err == nil
	})
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}

	if len(c.Workers()) != 1 {
		t.Errorf("workers = %+v, want latency only", c.Workers())
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("standalone mode has no aggregate snapshots")
	}
	if _, err := os.Stat(filepath.Join(dir, DashboardFile)); !os.IsNotExist(err) {
		t.Errorf("dashboard should not be written in standalone mode: %v", err)
	}
	if len(c.LatencySamples()) == 0 || c.QualitySamples() != nil {
		t.Error("unexpected sample accessors")
	}
}
