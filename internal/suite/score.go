package suite

import (
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/adaptation"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/latency"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/quality"
)

// Recommendation thresholds per dimension.
const (
	QualityThreshold    = 0.7
	LatencyThreshold    = 0.8
	AdaptationThreshold = 0.6
)

// Recommendation texts.
const (
	RecommendQuality    = "Low video quality: review the encoding configuration"
	RecommendLatency    = "High latency: optimize the network path or origin server"
	RecommendAdaptation = "Unstable bitrate adaptation: review the bitrate ladder configuration"
)

// DimensionScore is one component of the health score. An unavailable
// dimension scores 0.
type DimensionScore struct {
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
}

func available(score float64) DimensionScore {
	return DimensionScore{Score: score, Available: true}
}

// QualityScore is the frame similarity of the newest quality result,
// clamped to [0, 1].
func QualityScore(r *quality.Result) DimensionScore {
	if r == nil || r.Aggregate.Similarity == nil {
		return DimensionScore{}
	}
	return available(min(1, max(0, *r.Aggregate.Similarity)))
}

// LatencyScore maps the manifest window's mean latency onto [0, 1], with
// one second or more scoring 0.
func LatencyScore(r *latency.Result) DimensionScore {
	if r == nil || r.ManifestMetrics == nil || r.ManifestMetrics.AvgLatencyMs == nil {
		return DimensionScore{}
	}
	return available(max(0, 1-*r.ManifestMetrics.AvgLatencyMs/1000))
}

// AdaptationScore is the bitrate stability score of the newest adaptation
// result.
func AdaptationScore(r *adaptation.Result) DimensionScore {
	if r == nil {
		return DimensionScore{}
	}
	return available(r.Aggregate.StabilityScore)
}

// HealthScore is the mean of the three dimension scores. Unavailable
// dimensions contribute their 0.
func HealthScore(q, l, a DimensionScore) float64 {
	return (q.Score + l.Score + a.Score) / 3
}

// Recommendations lists advice for every dimension below its threshold.
func Recommendations(q, l, a DimensionScore) []string {
	out := []string{}
	if q.Score < QualityThreshold {
		out = append(out, RecommendQuality)
	}
	if l.Score < LatencyThreshold {
		out = append(out, RecommendLatency)
	}
	if a.Score < AdaptationThreshold {
		out = append(out, RecommendAdaptation)
	}
	return out
}
