package iter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// failure kinds used as the "kind" label of the failures counter.
const (
	KindTransform = "transform"
	KindUpstream  = "upstream"
	KindClose     = "close"
	KindProtocol  = "protocol"
)

// Metrics counts what mapping iterators do. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Mapped                  prometheus.Counter
	Failures                *prometheus.CounterVec
	SuppressedCloseFailures prometheus.Counter
}

// NewMetrics creates the collectors under namespace and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Mapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapped_values_total",
			Help:      "Number of values produced by mapping iterators.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Number of failures seen by mapping iterators, suppressed close failures included.",
		}, []string{"kind"}),
		SuppressedCloseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_close_failures_total",
			Help:      "Number of source close failures discarded during abrupt close.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Mapped, err = register(reg, m.Mapped); err != nil {
		return nil, err
	}
	if m.Failures, err = register(reg, m.Failures); err != nil {
		return nil, err
	}
	if m.SuppressedCloseFailures, err = register(reg, m.SuppressedCloseFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the collector registered before under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, eris.Wrap(err, "register metrics")
}

func (m *Metrics) mapped() {
	if m == nil {
		return
	}
	m.Mapped.Inc()
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) closeSuppressed() {
	if m == nil {
		return
	}
	m.SuppressedCloseFailures.Inc()
	m.Failures.WithLabelValues(KindClose).Inc()
}
