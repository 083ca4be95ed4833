package quality

import (
	"strconv"
	"strings"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
)

// SimilarityWarn is the similarity below which the report flags the stream.
const SimilarityWarn = 0.7

// Report renders quality_report.txt from the sample log.
func (a *Analyzer) Report(log []sample.Sample[Result]) string {
	r := persist.NewReport("STREAM QUALITY ANALYSIS REPORT", a.clock.Now())

	r.Section("Session")
	r.KeyValue("Manifest URL", a.cfg.ManifestURL)
	r.KeyValue("Total analyses", len(log))
	r.KeyValue("Successful analyses", countSuccess(log))
	r.KeyValue("Session duration", stats.FormatDuration(a.clock.Now().Sub(a.started)))

	latest, ok := latestSuccess(log)
	if !ok {
		r.Section("Quality metrics")
		r.Line("No successful analyses yet")
		return r.String()
	}

	info := latest.Manifest
	r.Section("Manifest info")
	r.KeyValue("Kind", info.Kind)
	r.KeyValue("Type", info.Type)
	if info.Profiles != "" {
		r.KeyValue("Profiles", info.Profiles)
	}
	r.KeyValue("Adaptation sets", info.AdaptationSets)
	r.KeyValue("Video representations", info.VideoRepresentations)
	r.KeyValue("Audio representations", info.AudioRepresentations)
	r.KeyValue("Text representations", info.TextRepresentations)
	r.KeyValue("Bitrates", formatBitrates(info.Bitrates))
	r.KeyValue("Resolutions", strings.Join(info.Resolutions, ", "))
	r.KeyValue("Codecs", strings.Join(info.Codecs, ", "))

	r.Section("Quality metrics")
	r.KeyValue("Representation", latest.RepresentationID)
	r.KeyValue("Segments analyzed", latest.Aggregate.SegmentsAnalyzed)
	if latest.Aggregate.AvgBitrate != nil {
		r.KeyValue("Average bitrate", stats.FormatBitrate(*latest.Aggregate.AvgBitrate))
	}
	r.KeyValue("Similarity (SSIM)", stats.FormatOptional(latest.Aggregate.Similarity, 4))
	if s := latest.Aggregate.Similarity; s != nil && *s < SimilarityWarn {
		r.Line("- Low inter-segment similarity; check encoder settings")
	}

	segRows := make([][]string, 0, len(latest.Segments))
	for _, s := range latest.Segments {
		segRows = append(segRows, []string{
			strconv.FormatInt(s.Number, 10),
			s.Codec,
			resolution(s.Width, s.Height),
			stats.FormatBitrate(float64(s.Bitrate)),
			strconv.FormatFloat(s.FPS, 'f', 2, 64),
			strconv.FormatInt(s.FrameCount, 10),
		})
	}
	_ = r.Table([]string{"Segment", "Codec", "Resolution", "Bitrate", "FPS", "Frames"}, segRows)

	r.Section("Recent analyses")
	start := len(log) - 10
	if start < 0 {
		start = 0
	}
	rows := make([][]string, 0, len(log)-start)
	for _, s := range log[start:] {
		row := []string{s.Timestamp.Format("15:04:05"), string(s.Status), "N/A", "N/A", s.Error}
		if v, ok := s.Value(); ok {
			if v.Aggregate.AvgBitrate != nil {
				row[2] = stats.FormatBitrate(*v.Aggregate.AvgBitrate)
			}
			row[3] = stats.FormatOptional(v.Aggregate.Similarity, 4)
		}
		rows = append(rows, row)
	}
	_ = r.Table([]string{"Time", "Status", "Avg bitrate", "SSIM", "Error"}, rows)

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

func countSuccess(log []sample.Sample[Result]) int {
	n := 0
	for _, s := range log {
		if s.OK() {
			n++
		}
	}
	return n
}

func formatBitrates(bitrates []int64) string {
	parts := make([]string, len(bitrates))
	for i, b := range bitrates {
		parts[i] = stats.FormatBitrate(float64(b))
	}
	return strings.Join(parts, ", ")
}

func resolution(w, h int) string {
	if w <= 0 || h <= 0 {
		return "N/A"
	}
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}
