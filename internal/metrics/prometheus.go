package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Gauges exposes the collector snapshot to Prometheus.
type Gauges struct {
	runsByStatus *prometheus.GaugeVec
	avgDuration  *prometheus.GaugeVec
	frequency    *prometheus.GaugeVec
	runsTotal    prometheus.Gauge
}

// MustNewGauges constructs the collectors with the provided registerer. Any
// registration error other than a duplicate panics, mirroring promauto.
func MustNewGauges(reg prometheus.Registerer) *Gauges {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runsByStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "potok",
			Subsystem: "scheduler",
			Name:      "task_runs",
			Help:      "Number of task runs currently in each status.",
		},
		[]string{"status"},
	)
	avgDuration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "potok",
			Subsystem: "scheduler",
			Name:      "status_avg_duration_seconds",
			Help:      "Average time runs spend in a status over the window.",
		},
		[]string{"status"},
	)
	frequency := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "potok",
			Subsystem: "scheduler",
			Name:      "outcome_frequency",
			Help:      "Outcome records per second over the collection period.",
		},
		[]string{"kind"},
	)
	runsTotal := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "potok",
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Total number of task runs known to the scheduler.",
		},
	)

	collectors := []prometheus.Collector{runsByStatus, avgDuration, frequency, runsTotal}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case runsByStatus:
					runsByStatus = already.ExistingCollector.(*prometheus.GaugeVec)
				case avgDuration:
					avgDuration = already.ExistingCollector.(*prometheus.GaugeVec)
				case frequency:
					frequency = already.ExistingCollector.(*prometheus.GaugeVec)
				case runsTotal:
					runsTotal = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Gauges{
		runsByStatus: runsByStatus,
		avgDuration:  avgDuration,
		frequency:    frequency,
		runsTotal:    runsTotal,
	}
}

// Record publishes one snapshot.
func (g *Gauges) Record(s Snapshot) {
	if g == nil {
		return
	}
	g.runsByStatus.WithLabelValues("queued").Set(float64(s.QueuedCount))
	g.runsByStatus.WithLabelValues("execution").Set(float64(s.ExecutionCount))
	g.runsByStatus.WithLabelValues("waiting").Set(float64(s.WaitingCount))
	g.runsByStatus.WithLabelValues("completed").Set(float64(s.CompletedCount))
	g.avgDuration.WithLabelValues("queued").Set(s.QueuedAvgDuration)
	g.avgDuration.WithLabelValues("execution").Set(s.ExecutionAvgDuration)
	g.frequency.WithLabelValues("succeed").Set(s.SucceedFrequency)
	g.frequency.WithLabelValues("return").Set(s.ReturnFrequency)
	g.runsTotal.Set(float64(s.TotalCount))
}
