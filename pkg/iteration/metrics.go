package iteration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ishanwen-byte/songevolve-go/internal/types"
)

// Metrics are the cycle counters exported by a worker
type Metrics struct {
	Cycles        *prometheus.CounterVec
	Children      prometheus.Counter
	Migrations    prometheus.Counter
	SkippedSlots  prometheus.Counter
	Overproduced  prometheus.Counter
	Generation    prometheus.Gauge
	CycleDuration prometheus.Histogram
}

// NewMetrics registers the worker metrics on reg. A nil reg uses a private
// registry so several workers can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Reproduction cycles by outcome",
		}, []string{"status"}),
		Children: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "children_total",
			Help:      "Children committed to the next generation",
		}),
		Migrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "migrations_total",
			Help:      "Reproduction slots sourced from another node",
		}),
		SkippedSlots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "skipped_slots_total",
			Help:      "Reproduction slots skipped because the source node was empty",
		}),
		Overproduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "overproduced_total",
			Help:      "Children placed beyond a node's capacity",
		}),
		Generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "songevolve",
			Name:      "generation",
			Help:      "Latest committed generation",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "songevolve",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of a reproduction cycle including the commit",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) observe(stats types.CycleStats) {
	m.Cycles.WithLabelValues("success").Inc()
	m.Children.Add(float64(stats.ChildrenProduced))
	m.Migrations.Add(float64(stats.Migrations))
	m.SkippedSlots.Add(float64(stats.SkippedSlots))
	m.Overproduced.Add(float64(stats.Overproduced))
	m.Generation.Set(float64(stats.ToGeneration))
	m.CycleDuration.Observe(stats.Duration.Seconds())
}
