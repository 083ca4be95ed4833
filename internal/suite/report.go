package suite

import (
	"fmt"
	"strconv"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
)

// Report renders comprehensive_report.txt from the aggregate log.
func (c *Coordinator) Report(log []sample.Sample[AggregateSnapshot]) string {
	r := persist.NewReport("COMPREHENSIVE STREAM REPORT", c.clock.Now())

	r.Section("Session")
	r.KeyValue("Manifest URL", c.cfg.ManifestURL)
	r.KeyValue("Session ID", c.sessionID)
	r.KeyValue("Session duration", stats.FormatDuration(c.Elapsed()))
	r.KeyValue("Total aggregations", len(log))

	var latest AggregateSnapshot
	var ok bool
	for i := len(log) - 1; i >= 0 && !ok; i-- {
		latest, ok = log[i].Value()
	}
	if !ok {
		r.Line("No aggregation cycles yet")
		return r.String()
	}

	r.Section("Scores")
	r.KeyValue("Health score", fmt.Sprintf("%.3f", latest.HealthScore))
	_ = r.Table([]string{"Dimension", "Score", "Available"}, [][]string{
		scoreRow(DimensionQuality, latest.Quality),
		scoreRow(DimensionLatency, latest.Latency),
		scoreRow(DimensionAdaptation, latest.Adaptation),
	})

	r.Section("Recommendations")
	if len(latest.Recommendations) == 0 {
		r.Line("All dimensions within thresholds")
	}
	for _, rec := range latest.Recommendations {
		r.Line("- %s", rec)
	}

	r.Section("Analysis summary")
	r.KeyValue("Quality analyses", latest.Analyses.Quality)
	r.KeyValue("Latency analyses", latest.Analyses.Latency)
	r.KeyValue("Adaptation analyses", latest.Analyses.Adaptation)

	r.Section("Details")
	d := latest.Details
	if d.AvgBitrate != nil {
		r.KeyValue("Average bitrate", stats.FormatBitrate(*d.AvgBitrate))
	}
	r.KeyValue("Similarity", stats.FormatOptional(d.Similarity, 3))
	r.KeyValue("Manifest latency", stats.FormatMillis(d.AvgLatencyMs))
	r.KeyValue("Stability score", stats.FormatOptional(d.StabilityScore, 3))
	if d.SwitchingEvents != nil {
		r.KeyValue("Switching events", *d.SwitchingEvents)
	}

	r.Section("Recent health")
	recent := log
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	rows := make([][]string, 0, len(recent))
	for _, s := range recent {
		v, ok := s.Value()
		if !ok {
			continue
		}
		rows = append(rows, []string{
			v.Timestamp.Format("15:04:05"),
			fmt.Sprintf("%.3f", v.HealthScore),
			fmt.Sprintf("%.3f", v.Quality.Score),
			fmt.Sprintf("%.3f", v.Latency.Score),
			fmt.Sprintf("%.3f", v.Adaptation.Score),
		})
	}
	_ = r.Table([]string{"Time", "Health", "Quality", "Latency", "Adaptation"}, rows)

	return r.String()
}

func scoreRow(name string, d DimensionScore) []string {
	return []string{name, fmt.Sprintf("%.3f", d.Score), strconv.FormatBool(d.Available)}
}
