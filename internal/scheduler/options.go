package scheduler

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// DefaultFlushInterval is how long a request may wait in a partially filled
// batch before the shard forces it through.
const DefaultFlushInterval = 500 * time.Microsecond

type options struct {
	cpus          int
	flushInterval time.Duration
	maxJobs       int
	backend       cbcmb.BackendFactory
	logger        zerolog.Logger
	meter         metric.Meter
	now           func() time.Time
}

func defaultOptions() options {
	return options{
		cpus:          runtime.GOMAXPROCS(0),
		flushInterval: DefaultFlushInterval,
		maxJobs:       cbcmb.DefaultMaxJobs,
		backend:       cbcmb.NewSoftBackend,
		logger:        zerolog.Nop(),
		meter:         noop.NewMeterProvider().Meter(meterName),
		now:           time.Now,
	}
}

// Option configures an Engine.
type Option func(*options) error

// WithCPUs sets the number of shards. Defaults to GOMAXPROCS.
func WithCPUs(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("%w: cpus must be positive, got %d", ErrInvalidArgument, n)
		}

		o.cpus = n

		return nil
	}
}

// WithFlushInterval sets how long a request waits before its batch is flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("%w: flush interval must be positive, got %s", ErrInvalidArgument, d)
		}

		o.flushInterval = d

		return nil
	}
}

// WithMaxJobs sets the job pool capacity of every manager.
func WithMaxJobs(n int) Option {
	return func(o *options) error {
		if n < cbcmb.Lanes {
			return fmt.Errorf("%w: max jobs must be at least %d, got %d", ErrInvalidArgument, cbcmb.Lanes, n)
		}

		o.maxJobs = n

		return nil
	}
}

// WithBackend sets the factory the managers build their backends with.
func WithBackend(factory cbcmb.BackendFactory) Option {
	return func(o *options) error {
		if factory == nil {
			return fmt.Errorf("%w: nil backend factory", ErrInvalidArgument)
		}

		o.backend = factory

		return nil
	}
}

// WithLogger sets the logger. Shards add a "cpu" field.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = l

		return nil
	}
}

// WithMeter sets the meter the scheduler instruments are created on.
func WithMeter(m metric.Meter) Option {
	return func(o *options) error {
		if m != nil {
			o.meter = m
		}

		return nil
	}
}

// WithClock replaces time.Now for request tagging and deadline checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now != nil {
			o.now = now
		}

		return nil
	}
}
