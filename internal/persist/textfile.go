package persist

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// WritePromTextfile replaces path with the families gathered from g in the
// Prometheus text exposition format, for node_exporter's textfile collector.
func WritePromTextfile(path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return err
			}
		}
		return nil
	})
}
