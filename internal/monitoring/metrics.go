package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satisfacao",
			Name:      "store_operations_total",
			Help:      "Store operations by name and outcome.",
		},
		[]string{"op", "result"},
	)

	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "satisfacao",
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of store operations.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)

	SurveySessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satisfacao",
			Name:      "survey_sessions_total",
			Help:      "Survey session transitions by mode and event (started, completed, failed).",
		},
		[]string{"mode", "event"},
	)

	SurveyAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satisfacao",
			Name:      "survey_answers_total",
			Help:      "Submitted answers by question type and outcome (accepted, rejected, skipped).",
		},
		[]string{"type", "result"},
	)
)

// Register adds every collector to reg. Collectors are updated whether or not they are
// registered, so packages can record unconditionally.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{StoreOperations, StoreDuration, SurveySessions, SurveyAnswers} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveStore records one store call. Use as: defer monitoring.ObserveStore("op", time.Now(), &err).
func ObserveStore(op string, start time.Time, errp *error) {
	result := "ok"
	if errp != nil && *errp != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(op, result).Inc()
	StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the gathered metrics in text format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
