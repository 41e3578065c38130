package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	rowsTotal     *prometheus.CounterVec
	rowDuration   prometheus.Histogram
	chunksTotal   prometheus.Counter
	fetchedBytes  prometheus.Counter
	spansPerImage prometheus.Histogram
}

// New registers the collectors on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on the given registry
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paramextract_rows_total",
			Help: "Rows processed, labeled by terminal outcome.",
		}, []string{"outcome"}),
		rowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paramextract_row_duration_seconds",
			Help:    "Wall time of one row's pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
		chunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "paramextract_chunks_total",
			Help: "Dataset chunks drained.",
		}),
		fetchedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "paramextract_image_fetch_bytes_total",
			Help: "Bytes of image data fetched.",
		}),
		spansPerImage: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paramextract_spans_per_image",
			Help:    "Fused text spans recognized per image.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

// ObserveRow records one finished row
func (m *Metrics) ObserveRow(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues(outcome).Inc()
	m.rowDuration.Observe(seconds)
}

// ObserveSpans records the fused span count of one image
func (m *Metrics) ObserveSpans(n int) {
	if m == nil {
		return
	}
	m.spansPerImage.Observe(float64(n))
}

// AddFetchedBytes records fetched image bytes
func (m *Metrics) AddFetchedBytes(n int) {
	if m == nil {
		return
	}
	m.fetchedBytes.Add(float64(n))
}

// IncChunks records one drained chunk
func (m *Metrics) IncChunks() {
	if m == nil {
		return
	}
	m.chunksTotal.Inc()
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
