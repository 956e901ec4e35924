package analytics

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option configures the analytics application services
type Option func(*options)

type options struct {
	clock      clockwork.Clock
	metrics    Metrics
	jobTimeout time.Duration
}

// WithClock sets the clock used for run ids and "today"
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithJobTimeout bounds a shared aggregation run. Callers that stop waiting
// earlier do not end the run.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) {
		o.jobTimeout = d
	}
}

func applyOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock(), metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
