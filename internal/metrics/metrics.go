package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer exports pipeline and cache metrics. A nil *Observer records nothing.
type Observer struct {
	stageDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	dropped       prometheus.Counter
	analyses      *prometheus.CounterVec
}

// New registers the metrics on reg (the default registerer when nil). Registering
// twice on the same registerer reuses the existing collectors.
func New(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "validert"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stage := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of analysis pipeline stages.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Analysis cache lookups by result.",
	}, []string{"result"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deductions_deduplicated_total",
		Help:      "Deductions dropped because their dedup key was already seen.",
	})
	analyses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Completed analyses by outcome.",
	}, []string{"outcome"})

	o := &Observer{}
	var ok bool
	c, err := register(reg, stage)
	if err != nil {
		return nil, err
	}
	if o.stageDuration, ok = c.(*prometheus.HistogramVec); !ok {
		return nil, fmt.Errorf("register metrics: unexpected collector for stage_duration_seconds")
	}
	if c, err = register(reg, lookups); err != nil {
		return nil, err
	}
	if o.cacheLookups, ok = c.(*prometheus.CounterVec); !ok {
		return nil, fmt.Errorf("register metrics: unexpected collector for cache_lookups_total")
	}
	if c, err = register(reg, dropped); err != nil {
		return nil, err
	}
	if o.dropped, ok = c.(prometheus.Counter); !ok {
		return nil, fmt.Errorf("register metrics: unexpected collector for deductions_deduplicated_total")
	}
	if c, err = register(reg, analyses); err != nil {
		return nil, err
	}
	if o.analyses, ok = c.(*prometheus.CounterVec); !ok {
		return nil, fmt.Errorf("register metrics: unexpected collector for analyses_total")
	}
	return o, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (o *Observer) ObserveStage(stage string, d time.Duration) {
	if o == nil {
		return
	}
	o.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (o *Observer) CacheLookup(hit bool, err error) {
	if o == nil {
		return
	}
	switch {
	case err != nil:
		o.cacheLookups.WithLabelValues("error").Inc()
	case hit:
		o.cacheLookups.WithLabelValues("hit").Inc()
	default:
		o.cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (o *Observer) DeductionsDropped(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.dropped.Add(float64(n))
}

func (o *Observer) Analysis(outcome string) {
	if o == nil {
		return
	}
	o.analyses.WithLabelValues(outcome).Inc()
}
