package suite

import (
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/adaptation"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/latency"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/quality"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
)

// Dimension names used in snapshots, metrics labels and the dashboard.
const (
	DimensionQuality    = "quality"
	DimensionLatency    = "latency"
	DimensionAdaptation = "adaptation"
)

// Analyses counts the samples each analyzer has logged.
type Analyses struct {
	Quality    int `json:"quality"`
	Latency    int `json:"latency"`
	Adaptation int `json:"adaptation"`
}

// Details echoes the raw figures behind the scores. Absent fields were not
// available from the newest results.
type Details struct {
	AvgBitrate      *float64 `json:"avg_bitrate,omitempty"`
	Similarity      *float64 `json:"avg_ssim,omitempty"`
	AvgLatencyMs    *float64 `json:"avg_latency_ms,omitempty"`
	StabilityScore  *float64 `json:"stability_score,omitempty"`
	SwitchingEvents *int     `json:"switching_events,omitempty"`
}

// AggregateSnapshot is one aggregation cycle.
type AggregateSnapshot struct {
	Timestamp       time.Time      `json:"timestamp"`
	SessionID       string         `json:"session_id"`
	SessionDuration float64        `json:"session_duration"`
	Quality         DimensionScore `json:"quality_score"`
	Latency         DimensionScore `json:"latency_score"`
	Adaptation      DimensionScore `json:"adaptation_score"`
	HealthScore     float64        `json:"stream_health_score"`
	Recommendations []string       `json:"recommendations"`
	Analyses        Analyses       `json:"total_analyses"`
	Details         Details        `json:"details"`
}

// Unavailable lists the dimensions that had no usable result.
func (s AggregateSnapshot) Unavailable() []string {
	out := []string{}
	if !s.Quality.Available {
		out = append(out, DimensionQuality)
	}
	if !s.Latency.Available {
		out = append(out, DimensionLatency)
	}
	if !s.Adaptation.Available {
		out = append(out, DimensionAdaptation)
	}
	return out
}

// Inputs are the newest samples of each analyzer. A zero sample with
// Status "" counts as missing.
type Inputs struct {
	Quality    sample.Sample[quality.Result]
	Latency    sample.Sample[latency.Result]
	Adaptation sample.Sample[adaptation.Result]
	Analyses   Analyses
}

// Aggregate fuses the newest analyzer samples into a snapshot. Non-success
// samples make their dimension unavailable.
func Aggregate(now time.Time, sessionID string, started time.Time, in Inputs) AggregateSnapshot {
	q, l, a := in.Quality.Result, in.Latency.Result, in.Adaptation.Result
	if !in.Quality.OK() {
		q = nil
	}
	if !in.Latency.OK() {
		l = nil
	}
	if !in.Adaptation.OK() {
		a = nil
	}

	s := AggregateSnapshot{
		Timestamp:       now,
		SessionID:       sessionID,
		SessionDuration: now.Sub(started).Seconds(),
		Quality:         QualityScore(q),
		Latency:         LatencyScore(l),
		Adaptation:      AdaptationScore(a),
		Analyses:        in.Analyses,
	}
	s.HealthScore = HealthScore(s.Quality, s.Latency, s.Adaptation)
	s.Recommendations = Recommendations(s.Quality, s.Latency, s.Adaptation)

	if q != nil {
		s.Details.AvgBitrate = q.Aggregate.AvgBitrate
		s.Details.Similarity = q.Aggregate.Similarity
	}
	if l != nil && l.ManifestMetrics != nil {
		s.Details.AvgLatencyMs = l.ManifestMetrics.AvgLatencyMs
	}
	if a != nil {
		stability := a.Aggregate.StabilityScore
		switches := a.Aggregate.TotalSwitchingEvents
		s.Details.StabilityScore = &stability
		s.Details.SwitchingEvents = &switches
	}
	return s
}
