// Package dispatch fans planned search tasks out to workers with bounded
// concurrency, per-task timeouts, and one retry for transient failures.
// Individual failures never abort the batch; each task reports its own
// outcome and the aggregator works with whatever arrived.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tripweaver/tripweaver/internal/telemetry"
	"github.com/tripweaver/tripweaver/internal/travel"
	"github.com/tripweaver/tripweaver/internal/worker"
)

// Reason classifies why a task failed.
type Reason string

const (
	ReasonTransientAfterRetry Reason = "transient_after_retry"
	ReasonBlocked             Reason = "blocked"
	ReasonTimeout             Reason = "timeout"
	ReasonInvalidResponse     Reason = "invalid_response"
	ReasonCancelled           Reason = "cancelled"
)

// Failure describes a terminal task failure.
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Result is the outcome of one dispatched task.
type Result struct {
	Domain      travel.Domain `json:"domain"`
	Fingerprint string        `json:"fingerprint"`
	Items       []travel.Item `json:"items,omitempty"`
	Failure     *Failure      `json:"failure,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

// OK reports whether the task produced usable results.
func (r Result) OK() bool {
	return r.Failure == nil
}

const (
	defaultConcurrency = 4
	defaultTaskTimeout = 8 * time.Second
	defaultRetryWait   = 500 * time.Millisecond
)

// Dispatcher runs task batches against a worker registry.
type Dispatcher struct {
	registry    *worker.Registry
	concurrency int
	taskTimeout time.Duration
	retryWait   time.Duration
	logger      *slog.Logger
	metrics     *telemetry.Metrics

	// inflight dedupes concurrent identical searches across sessions;
	// the fingerprint is the key.
	inflight singleflight.Group
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds how many tasks run at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithTaskTimeout sets the per-attempt deadline.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.taskTimeout = timeout
		}
	}
}

// WithRetryWait sets the pause before the single transient retry.
func WithRetryWait(wait time.Duration) Option {
	return func(d *Dispatcher) {
		if wait >= 0 {
			d.retryWait = wait
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *worker.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		concurrency: defaultConcurrency,
		taskTimeout: defaultTaskTimeout,
		retryWait:   defaultRetryWait,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches all tasks and waits for every one to finish or fail.
// Results come back in task order.
func (d *Dispatcher) Run(ctx context.Context, tasks []travel.Task) []Result {
	results := make([]Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = d.runTask(gctx, task)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		status := "ok"
		if res.Failure != nil {
			status = string(res.Failure.Reason)
		}
		if d.metrics != nil {
			d.metrics.RecordTask(string(res.Domain), status, res.Duration)
		}
	}
	return results
}

func (d *Dispatcher) runTask(ctx context.Context, task travel.Task) Result {
	result := Result{Domain: task.Domain, Fingerprint: task.Fingerprint}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	w, err := d.registry.Lookup(task.Domain)
	if err != nil {
		result.Failure = &Failure{Reason: ReasonInvalidResponse, Message: err.Error()}
		return result
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		result.Attempts = attempt

		items, err := d.searchOnce(ctx, w, task)
		if err == nil {
			result.Items = items
			return result
		}
		lastErr = err

		if ctx.Err() != nil {
			result.Failure = &Failure{Reason: ReasonCancelled, Message: ctx.Err().Error()}
			return result
		}
		if errors.Is(err, worker.ErrBlocked) {
			result.Failure = &Failure{Reason: ReasonBlocked, Message: err.Error()}
			return result
		}
		if errors.Is(err, worker.ErrInvalidResponse) {
			result.Failure = &Failure{Reason: ReasonInvalidResponse, Message: err.Error()}
			return result
		}

		if attempt == 1 {
			d.logger.Warn("search attempt failed, retrying",
				"domain", task.Domain, "error", err)
			select {
			case <-time.After(d.retryWait):
			case <-ctx.Done():
				result.Failure = &Failure{Reason: ReasonCancelled, Message: ctx.Err().Error()}
				return result
			}
		}
	}

	reason := ReasonTransientAfterRetry
	if errors.Is(lastErr, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	result.Failure = &Failure{Reason: reason, Message: lastErr.Error()}
	d.logger.Error("search failed", "domain", task.Domain,
		"reason", reason, "error", lastErr)
	return result
}

// searchOnce runs one attempt under the per-task deadline. Identical
// fingerprints share a single in-flight call.
func (d *Dispatcher) searchOnce(ctx context.Context, w worker.Worker, task travel.Task) ([]travel.Item, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	v, err, _ := d.inflight.Do(task.Fingerprint, func() (interface{}, error) {
		return w.Search(attemptCtx, task)
	})
	if err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	// Sharers each get their own slice; results may be sorted downstream.
	return append([]travel.Item(nil), v.([]travel.Item)...), nil
}
