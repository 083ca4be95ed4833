package latency

import (
	"strconv"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
)

// Report thresholds.
const (
	ManifestLatencyWarnMs = 1000.0
	SegmentLatencyWarnMs  = 5000.0
	TimeoutRateWarn       = 0.1
)

// Report renders latency_report.txt from the sample log.
func (a *Analyzer) Report(log []sample.Sample[Result]) string {
	r := persist.NewReport("STREAM LATENCY ANALYSIS REPORT", a.clock.Now())

	r.Section("Session")
	r.KeyValue("Manifest URL", a.cfg.ManifestURL)
	r.KeyValue("Total analyses", len(log))
	r.KeyValue("Session duration", stats.FormatDuration(a.clock.Now().Sub(a.started)))

	manifestMetrics := a.ManifestMetrics()
	segmentMetrics := a.SegmentMetrics()

	r.Section("Manifest latency")
	writeWindow(r, manifestMetrics)

	r.Section("Segment latency")
	writeWindow(r, segmentMetrics)
	if latest, ok := latestSuccess(log); ok && latest.SegmentInfo != nil {
		r.KeyValue("Segment duration", strconv.FormatFloat(latest.SegmentInfo.SegmentDurationSeconds, 'f', 2, 64)+" s")
		r.KeyValue("Timescale", latest.SegmentInfo.Timescale)
		r.KeyValue("Start number", latest.SegmentInfo.StartNumber)
	}

	r.Section("Warnings")
	warnings := Warnings(manifestMetrics, segmentMetrics)
	if len(warnings) == 0 {
		r.Line("No latency issues detected")
	}
	for _, w := range warnings {
		r.Line("- %s", w)
	}

	r.Section("Recent manifest latencies")
	recent := a.RecentManifestMeasurements(10)
	rows := make([][]string, 0, len(recent))
	for _, m := range recent {
		rows = append(rows, []string{string(m.Status), stats.FormatMillis(m.LatencyMs), strconv.Itoa(m.HTTPStatus), m.Error})
	}
	_ = r.Table([]string{"Status", "Latency", "HTTP", "Error"}, rows)

	return r.String()
}

// Warnings lists threshold violations for the two windows.
func Warnings(manifestMetrics, segmentMetrics *stats.WindowMetrics) []string {
	var out []string
	if manifestMetrics != nil {
		if manifestMetrics.AvgLatencyMs != nil && *manifestMetrics.AvgLatencyMs > ManifestLatencyWarnMs {
			out = append(out, "High manifest latency: "+stats.FormatMillis(manifestMetrics.AvgLatencyMs)+" average")
		}
		if manifestMetrics.TimeoutRate > TimeoutRateWarn {
			out = append(out, "High manifest timeout rate: "+stats.FormatPercent(manifestMetrics.TimeoutRate))
		}
	}
	if segmentMetrics != nil {
		if segmentMetrics.AvgLatencyMs != nil && *segmentMetrics.AvgLatencyMs > SegmentLatencyWarnMs {
			out = append(out, "High segment latency: "+stats.FormatMillis(segmentMetrics.AvgLatencyMs)+" average")
		}
		if segmentMetrics.TimeoutRate > TimeoutRateWarn {
			out = append(out, "High segment timeout rate: "+stats.FormatPercent(segmentMetrics.TimeoutRate))
		}
	}
	return out
}

func writeWindow(r *persist.Report, m *stats.WindowMetrics) {
	if m == nil {
		r.Line("No measurements yet")
		return
	}
	r.KeyValue("Average", stats.FormatMillis(m.AvgLatencyMs))
	r.KeyValue("Min / Max", stats.FormatMillis(m.MinLatencyMs)+" / "+stats.FormatMillis(m.MaxLatencyMs))
	r.KeyValue("P50 / P95", stats.FormatMillis(m.P50LatencyMs)+" / "+stats.FormatMillis(m.P95LatencyMs))
	r.KeyValue("Variance", stats.FormatOptional(m.LatencyVariance, 2))
	r.KeyValue("Timeout rate", stats.FormatPercent(m.TimeoutRate))
	r.KeyValue("Error rate", stats.FormatPercent(m.ErrorRate))
	r.KeyValue("Measurements", strconv.Itoa(m.SuccessfulMeasurements)+"/"+strconv.Itoa(m.TotalMeasurements)+" successful")
}

func latestSuccess(log []sample.Sample[Result]) (Result, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if v, ok := log[i].Value(); ok {
			return v, true
		}
	}
	return Result{}, false
}
