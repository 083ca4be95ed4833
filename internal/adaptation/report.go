package adaptation

import (
	"fmt"
	"strings"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
)

// Recommendation thresholds.
const (
	StabilityWarn          = 0.5
	SwitchingFrequencyWarn = 0.5
)

// Recommendations derives operator advice from aggregate metrics.
func Recommendations(agg AggregateMetrics) []string {
	var out []string
	if agg.HistorySize > 0 && agg.StabilityScore < StabilityWarn {
		out = append(out, "Low bitrate stability; review the encoding ladder and segment availability")
	}
	if agg.SwitchingFrequency > SwitchingFrequencyWarn {
		out = append(out, "Frequent bitrate switching; consider fewer or more widely spaced renditions")
	}
	if agg.DowngradeEvents > agg.UpgradeEvents {
		out = append(out, "More downgrades than upgrades; check origin and CDN capacity")
	}
	return out
}

// Report renders adaptation_report.txt from the sample log.
func (a *Analyzer) Report(log []sample.Sample[Result]) string {
	r := persist.NewReport("BITRATE ADAPTATION ANALYSIS REPORT", a.clock.Now())

	r.Section("Session")
	r.KeyValue("Manifest URL", a.cfg.ManifestURL)
	r.KeyValue("Total analyses", len(log))
	r.KeyValue("Session duration", stats.FormatDuration(a.clock.Now().Sub(a.started)))

	if latest, ok := latestSuccess(log); ok {
		m := latest.Metrics
		r.Section("Adaptation info")
		r.KeyValue("Available bitrates", formatBitrates(m.AvailableBitrates))
		r.KeyValue("Active bitrates", formatBitrates(m.ActiveBitrates))
		r.KeyValue("Current bitrate", stats.FormatBitrate(float64(m.CurrentBitrate)))
		r.KeyValue("Bitrate range", stats.FormatBitrate(float64(m.MinBitrate))+" - "+stats.FormatBitrate(float64(m.MaxBitrate)))
		r.KeyValue("Bitrate levels", m.BitrateLevels)
		r.KeyValue("Resolutions", strings.Join(m.Resolutions, ", "))
	}

	agg := a.Aggregate()
	r.Section("Aggregate metrics")
	r.KeyValue("History size", agg.HistorySize)
	r.KeyValue("Average bitrate", stats.FormatBitrate(agg.AvgBitrate))
	r.KeyValue("Bitrate variance", fmt.Sprintf("%.2f", agg.BitrateVariance))
	r.KeyValue("Stability score", fmt.Sprintf("%.3f", agg.StabilityScore))
	r.KeyValue("Switching events", agg.TotalSwitchingEvents)
	r.KeyValue("Upgrades / Downgrades", fmt.Sprintf("%d / %d", agg.UpgradeEvents, agg.DowngradeEvents))
	r.KeyValue("Switching frequency", fmt.Sprintf("%.3f", agg.SwitchingFrequency))

	r.Section("Recommendations")
	recs := Recommendations(agg)
	if len(recs) == 0 {
		r.Line("Adaptation behaviour looks healthy")
	}
	for _, rec := range recs {
		r.Line("- %s", rec)
	}

	r.Section("Switching history")
	recent := a.RecentSwitches(10)
	rows := make([][]string, 0, len(recent))
	for _, ev := range recent {
		rows = append(rows, []string{
			ev.Timestamp.Format("15:04:05"),
			string(ev.Direction),
			formatBitrates(ev.PreviousBitrates),
			formatBitrates(ev.CurrentBitrates),
		})
	}
	_ = r.Table([]string{"Time", "Direction", "Previous", "Current"}, rows)

	return r.String()
}

func latestSuccess(log []sample.Sample[Result]) (Result, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if v, ok := log[i].Value(); ok {
			return v, true
		}
	}
	return Result{}, false
}

func formatBitrates(bitrates []int64) string {
	parts := make([]string, len(bitrates))
	for i, b := range bitrates {
		parts[i] = stats.FormatBitrate(float64(b))
	}
	return strings.Join(parts, ", ")
}
