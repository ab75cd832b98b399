// Package metrics records probe outcomes for the node_exporter
// textfile collector. The binary is a cron-style one-shot, so instead
// of serving /metrics it writes the registry to a .prom file at the
// end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	reg *prometheus.Registry

	probes      *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	linkStatus  *prometheus.GaugeVec
	runDuration prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}
	r.probes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playlistkeeper_probe_total",
		Help: "Link probes by final status and deciding stage.",
	}, []string{"status", "via"})
	r.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playlistkeeper_probe_duration_seconds",
		Help:    "Wall-clock duration of the deciding probe stage.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60, 150},
	}, []string{"via"})
	r.linkStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playlistkeeper_links",
		Help: "Links in the catalog by status after the run.",
	}, []string{"status"})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playlistkeeper_run_duration_seconds",
		Help: "Duration of the whole check run.",
	})
	r.reg.MustRegister(r.probes, r.durations, r.linkStatus, r.runDuration)
	return r
}

// ObserveProbe counts one finished link pipeline. via identifies the
// stage that decided (head_fail, ffmpeg, mpv, whitelist, excluded,
// missing); d may be zero for unprobed links.
func (r *Recorder) ObserveProbe(status, via string, d time.Duration) {
	r.probes.WithLabelValues(status, via).Inc()
	if d > 0 {
		r.durations.WithLabelValues(via).Observe(d.Seconds())
	}
}

// SetLinkCount records the post-run status tally.
func (r *Recorder) SetLinkCount(status string, n int) {
	r.linkStatus.WithLabelValues(status).Set(float64(n))
}

// SetRunDuration records the total run time.
func (r *Recorder) SetRunDuration(d time.Duration) {
	r.runDuration.Set(d.Seconds())
}

// WriteTextfile dumps the registry in exposition format for the
// node_exporter textfile collector. No-op when path is empty.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
