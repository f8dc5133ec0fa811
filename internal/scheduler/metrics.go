package scheduler

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// meterName is the instrumentation scope name for scheduler metrics.
const meterName = "github.com/idelchi/mbcbc/internal/scheduler"

// Flush triggers, recorded on mbcbc.flushes.
const (
	triggerTimer    = "timer"
	triggerChain    = "chain"
	triggerShutdown = "shutdown"
)

// metrics holds the scheduler instruments:
//   - mbcbc.jobs.submitted (Int64Counter): jobs handed to a manager, by key_size
//   - mbcbc.jobs.completed (Int64Counter): jobs returned, by key_size and status
//   - mbcbc.flushes (Int64Counter): forced backend flushes, by trigger
//   - mbcbc.requests (Int64Counter): finished requests, by status
//   - mbcbc.request.duration (Float64Histogram): arrival to completion, seconds
type metrics struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	flushes   metric.Int64Counter
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
}

// newMetrics creates the instruments once. On error the OTel API hands back
// noop instruments, so failures are ignored.
func newMetrics(meter metric.Meter) *metrics {
	m := &metrics{}

	m.submitted, _ = meter.Int64Counter(
		"mbcbc.jobs.submitted",
		metric.WithDescription("Jobs submitted to a multi-buffer manager"),
		metric.WithUnit("{job}"),
	)
	m.completed, _ = meter.Int64Counter(
		"mbcbc.jobs.completed",
		metric.WithDescription("Jobs returned by a multi-buffer manager"),
		metric.WithUnit("{job}"),
	)
	m.flushes, _ = meter.Int64Counter(
		"mbcbc.flushes",
		metric.WithDescription("Forced flushes of partially filled batches"),
		metric.WithUnit("{flush}"),
	)
	m.requests, _ = meter.Int64Counter(
		"mbcbc.requests",
		metric.WithDescription("Finished encryption requests"),
		metric.WithUnit("{request}"),
	)
	m.duration, _ = meter.Float64Histogram(
		"mbcbc.request.duration",
		metric.WithDescription("Time from request arrival to completion in seconds"),
		metric.WithUnit("s"),
	)

	return m
}

func (m *metrics) jobSubmitted(size cbcmb.KeySize) {
	m.submitted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("key_size", size.String())))
}

func (m *metrics) jobCompleted(size cbcmb.KeySize, status cbcmb.Status) {
	m.completed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("key_size", size.String()),
		attribute.String("status", status.String()),
	))
}

func (m *metrics) flushed(trigger string) {
	m.flushes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *metrics) requestFinished(err error, elapsed time.Duration) {
	status := "ok"

	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidArgument):
		status = "invalid"
	default:
		status = "error"
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	m.requests.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), elapsed.Seconds(), attrs)
}
