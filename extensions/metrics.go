package extensions

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	mvi "github.com/pumped-fn/pumped-mvi"
)

// =============================================================================
// Prometheus Metrics for State Containers
// =============================================================================

// MetricsExtension exports container activity as prometheus metrics.
//
// Metrics are registered on the registerer passed to NewMetricsExtension, so
// several stores can be observed side by side:
//
//	reg := prometheus.NewRegistry()
//	store := mvi.NewStore(mvi.WithExtension(extensions.NewMetricsExtension(reg, "counter")))
type MetricsExtension struct {
	mvi.BaseExtension

	// intentions counts intentions by operation (dispatch, broadcast).
	// Labels: container, op
	intentions *prometheus.CounterVec

	// reductions counts outcomes folded into state.
	// Labels: container, outcome
	reductions *prometheus.CounterVec

	// reduceDuration measures time spent in reducers.
	// Labels: container
	reduceDuration *prometheus.HistogramVec

	// effects counts effect outcomes forwarded to views.
	// Labels: container, effect
	effects *prometheus.CounterVec

	// failures counts feature and reduce failures.
	// Labels: container, source (feature, reduce, cleanup)
	failures *prometheus.CounterVec

	// stateChanges counts published state transitions.
	// Labels: container
	stateChanges *prometheus.CounterVec

	// activeContainers tracks live containers.
	activeContainers prometheus.Gauge
}

// NewMetricsExtension registers the container metrics on reg under namespace.
func NewMetricsExtension(reg prometheus.Registerer, namespace string) *MetricsExtension {
	factory := promauto.With(reg)

	return &MetricsExtension{
		BaseExtension: mvi.NewBaseExtension("metrics"),
		intentions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "intentions_total",
			Help:      "Total intentions dispatched or broadcast",
		}, []string{"container", "op"}),
		reductions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "reductions_total",
			Help:      "Total outcomes folded into state",
		}, []string{"container", "outcome"}),
		reduceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "reduce_duration_seconds",
			Help:      "Time spent reducing one outcome",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"container"}),
		effects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "effects_total",
			Help:      "Total effect outcomes forwarded",
		}, []string{"container", "effect"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "failures_total",
			Help:      "Total feature, reduce and cleanup failures",
		}, []string{"container", "source"}),
		stateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "state_changes_total",
			Help:      "Total published state transitions",
		}, []string{"container"}),
		activeContainers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "active",
			Help:      "Number of live containers",
		}),
	}
}

func (e *MetricsExtension) Wrap(ctx context.Context, next func() (any, error), op *mvi.Operation) (any, error) {
	switch op.Kind {
	case mvi.OpDispatch:
		e.intentions.WithLabelValues(op.Container.Name, string(op.Kind)).Inc()
		return next()
	case mvi.OpBroadcast:
		e.intentions.WithLabelValues("", string(op.Kind)).Inc()
		return next()
	case mvi.OpReduce:
		start := time.Now()
		result, err := next()
		e.reduceDuration.WithLabelValues(op.Container.Name).Observe(time.Since(start).Seconds())
		if err == nil {
			e.reductions.WithLabelValues(op.Container.Name, fmt.Sprintf("%T", op.Outcome)).Inc()
		}
		return result, err
	default:
		return next()
	}
}

func (e *MetricsExtension) OnFeatureError(container mvi.ContainerInfo, err *mvi.FeatureError) {
	e.failures.WithLabelValues(container.Name, "feature").Inc()
}

func (e *MetricsExtension) OnReduceError(container mvi.ContainerInfo, err *mvi.ReduceError) {
	e.failures.WithLabelValues(container.Name, "reduce").Inc()
}

func (e *MetricsExtension) OnCleanupError(err *mvi.CleanupError) {
	e.failures.WithLabelValues(err.Owner, "cleanup").Inc()
}

func (e *MetricsExtension) OnStateChange(container mvi.ContainerInfo, prev, next any) {
	e.stateChanges.WithLabelValues(container.Name).Inc()
}

func (e *MetricsExtension) OnEffect(container mvi.ContainerInfo, effect any) {
	e.effects.WithLabelValues(container.Name, fmt.Sprintf("%T", effect)).Inc()
}

func (e *MetricsExtension) OnContainerOpen(container mvi.ContainerInfo) {
	e.activeContainers.Inc()
}

func (e *MetricsExtension) OnContainerClose(container mvi.ContainerInfo, err error) {
	e.activeContainers.Dec()
}
