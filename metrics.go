package assetcompress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds prometheus collectors for asset compression.
type Metrics struct {
	// AssetsTotal counts processed assets.
	// Labels: phase, result (compressed, skipped, failed)
	AssetsTotal *prometheus.CounterVec

	// SkipsTotal counts skipped assets by reason.
	// Labels: phase, reason
	SkipsTotal *prometheus.CounterVec

	// BytesInTotal and BytesOutTotal count content sizes of compressed assets.
	// Labels: algorithm
	BytesInTotal  *prometheus.CounterVec
	BytesOutTotal *prometheus.CounterVec

	// CompressionSeconds tracks codec time per asset.
	// Labels: algorithm
	CompressionSeconds *prometheus.HistogramVec

	// PhaseSeconds tracks the duration of a whole phase.
	// Labels: phase
	PhaseSeconds *prometheus.HistogramVec

	// DeletionsTotal counts removals of original files.
	// Labels: result (deleted, missing, failed)
	DeletionsTotal *prometheus.CounterVec
}

// NewMetrics creates asset compression metrics registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AssetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetcompress",
				Name:      "assets_total",
				Help:      "Assets processed by a compression phase.",
			},
			[]string{"phase", "result"},
		),
		SkipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetcompress",
				Name:      "skips_total",
				Help:      "Assets left uncompressed, by reason.",
			},
			[]string{"phase", "reason"},
		),
		BytesInTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetcompress",
				Name:      "bytes_in_total",
				Help:      "Original bytes of compressed assets.",
			},
			[]string{"algorithm"},
		),
		BytesOutTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetcompress",
				Name:      "bytes_out_total",
				Help:      "Compressed bytes written.",
			},
			[]string{"algorithm"},
		),
		CompressionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "assetcompress",
				Name:      "compression_seconds",
				Help:      "Codec time per asset in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"algorithm"},
		),
		PhaseSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "assetcompress",
				Name:      "phase_seconds",
				Help:      "Duration of a compression phase in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		DeletionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetcompress",
				Name:      "deletions_total",
				Help:      "Original files removed after the build.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) recordAsset(phase Phase, algo string, r Result, seconds float64) {
	if m == nil {
		return
	}
	switch {
	case r.Skipped != SkipNone:
		m.AssetsTotal.WithLabelValues(string(phase), "skipped").Inc()
		m.SkipsTotal.WithLabelValues(string(phase), string(r.Skipped)).Inc()
	default:
		m.AssetsTotal.WithLabelValues(string(phase), "compressed").Inc()
		m.BytesInTotal.WithLabelValues(algo).Add(float64(r.OriginalSize))
		m.BytesOutTotal.WithLabelValues(algo).Add(float64(r.CompressedSize))
	}
	if seconds > 0 {
		m.CompressionSeconds.WithLabelValues(algo).Observe(seconds)
	}
}

func (m *Metrics) recordFailure(phase Phase) {
	if m == nil {
		return
	}
	m.AssetsTotal.WithLabelValues(string(phase), "failed").Inc()
}

func (m *Metrics) recordPhase(phase Phase, seconds float64) {
	if m == nil {
		return
	}
	m.PhaseSeconds.WithLabelValues(string(phase)).Observe(seconds)
}

func (m *Metrics) recordDeletion(result string) {
	if m == nil {
		return
	}
	m.DeletionsTotal.WithLabelValues(result).Inc()
}
