package suite

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
)

// Dashboard file names.
const (
	DashboardFile     = "dashboard_data.json"
	DashboardPromFile = "dashboard_data.prom"
)

// Dashboard is the flat snapshot read by external dashboards.
type Dashboard struct {
	Timestamp       time.Time `json:"timestamp"`
	OverallHealth   float64   `json:"overall_health"`
	QualityScore    float64   `json:"quality_score"`
	LatencyScore    float64   `json:"latency_score"`
	AdaptationScore float64   `json:"adaptation_score"`
	Recommendations []string  `json:"recommendations"`
	SessionDuration float64   `json:"session_duration"`
	SessionID       string    `json:"session_id"`
	Unavailable     []string  `json:"unavailable"`

	AvgBitrate      *float64 `json:"avg_bitrate,omitempty"`
	AvgSSIM         *float64 `json:"avg_ssim,omitempty"`
	AvgLatencyMs    *float64 `json:"avg_latency_ms,omitempty"`
	StabilityScore  *float64 `json:"stability_score,omitempty"`
	SwitchingEvents *int     `json:"switching_events,omitempty"`
}

// NewDashboard flattens an aggregate snapshot.
func NewDashboard(s AggregateSnapshot) Dashboard {
	recs := s.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return Dashboard{
		Timestamp:       s.Timestamp,
		OverallHealth:   s.HealthScore,
		QualityScore:    s.Quality.Score,
		LatencyScore:    s.Latency.Score,
		AdaptationScore: s.Adaptation.Score,
		Recommendations: recs,
		SessionDuration: s.SessionDuration,
		SessionID:       s.SessionID,
		Unavailable:     s.Unavailable(),
		AvgBitrate:      s.Details.AvgBitrate,
		AvgSSIM:         s.Details.Similarity,
		AvgLatencyMs:    s.Details.AvgLatencyMs,
		StabilityScore:  s.Details.StabilityScore,
		SwitchingEvents: s.Details.SwitchingEvents,
	}
}

// dashboardGauges mirrors the dashboard as Prometheus gauges in a private
// registry, exported as a node_exporter textfile.
type dashboardGauges struct {
	registry  *prometheus.Registry
	health    prometheus.Gauge
	score     *prometheus.GaugeVec
	available *prometheus.GaugeVec
	bitrate   prometheus.Gauge
	ssim      prometheus.Gauge
	latency   prometheus.Gauge
	stability prometheus.Gauge
	switches  prometheus.Gauge
	duration  prometheus.Gauge
}

func newDashboardGauges() *dashboardGauges {
	g := &dashboardGauges{
		registry: prometheus.NewRegistry(),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_health_score",
			Help: "Overall stream health score (0-1)",
		}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_dashboard_dimension_score",
			Help: "Score per analysis dimension (0-1)",
		}, []string{"dimension"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_dashboard_dimension_available",
			Help: "1 if the dimension had a usable result",
		}, []string{"dimension"}),
		bitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_avg_bitrate_bps",
			Help: "Average probed segment bitrate",
		}),
		ssim: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_avg_ssim",
			Help: "Frame similarity between the first and last probed segments",
		}),
		latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_manifest_latency_ms",
			Help: "Mean manifest latency over the latency window",
		}),
		stability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_stability_score",
			Help: "Bitrate stability score (0-1)",
		}),
		switches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_switching_events",
			Help: "Bitrate switching events observed this session",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_dashboard_session_duration_seconds",
			Help: "Seconds since the session started",
		}),
	}
	g.registry.MustRegister(g.health, g.score, g.available, g.bitrate, g.ssim,
		g.latency, g.stability, g.switches, g.duration)
	return g
}

func (g *dashboardGauges) update(d Dashboard) {
	g.health.Set(d.OverallHealth)
	g.duration.Set(d.SessionDuration)

	scores := map[string]float64{
		DimensionQuality:    d.QualityScore,
		DimensionLatency:    d.LatencyScore,
		DimensionAdaptation: d.AdaptationScore,
	}
	for dim, v := range scores {
		g.score.WithLabelValues(dim).Set(v)
		g.available.WithLabelValues(dim).Set(1)
	}
	for _, dim := range d.Unavailable {
		g.available.WithLabelValues(dim).Set(0)
	}

	setOptional(g.bitrate, d.AvgBitrate)
	setOptional(g.ssim, d.AvgSSIM)
	setOptional(g.latency, d.AvgLatencyMs)
	setOptional(g.stability, d.StabilityScore)
	if d.SwitchingEvents != nil {
		g.switches.Set(float64(*d.SwitchingEvents))
	}
}

// setOptional leaves the gauge at its previous value when v is absent.
func setOptional(g prometheus.Gauge, v *float64) {
	if v != nil {
		g.Set(*v)
	}
}

// writeDashboard writes dashboard_data.json and dashboard_data.prom.
func (g *dashboardGauges) write(jsonPath, promPath string, d Dashboard) error {
	if err := persist.WriteJSON(jsonPath, d); err != nil {
		return err
	}
	g.update(d)
	return persist.WritePromTextfile(promPath, g.registry)
}
