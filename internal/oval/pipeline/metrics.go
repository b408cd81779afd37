package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
)

// Event stages used as metric labels and in storage.
const (
	StageRaw   = "raw"
	StageClean = "clean"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	Epochs        *prometheus.CounterVec
	Events        *prometheus.CounterVec
	EpochDuration prometheus.Histogram
}

// NewMetrics registers the pipeline metrics against reg, defaulting to the
// global registry when nil. Registering twice against one registry reuses
// the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	epochs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oval_epochs_total",
		Help: "Processed epochs, labeled by boundary relation.",
	}, []string{"relation"}), "oval_epochs_total")
	if err != nil {
		return nil, err
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oval_crossing_events_total",
		Help: "Crossing events, labeled by stage (raw or clean) and event type.",
	}, []string{"stage", "type"}), "oval_crossing_events_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oval_epoch_duration_seconds",
		Help:    "Time spent computing one epoch's boundary region.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector oval_epoch_duration_seconds already registered with incompatible type")
		}
		duration = existing
	}

	return &Metrics{Epochs: epochs, Events: events, EpochDuration: duration}, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func (m *Metrics) observeEpoch(r EpochResult) {
	if m == nil {
		return
	}
	m.Epochs.WithLabelValues(r.Kind().String()).Inc()
	m.EpochDuration.Observe(r.Duration.Seconds())
}

func (m *Metrics) observeEvents(stage string, events []l6crossings.Event) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.Events.WithLabelValues(stage, e.Type.String()).Inc()
	}
}
