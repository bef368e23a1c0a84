package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tripweaver/tripweaver/internal/travel"
	"github.com/tripweaver/tripweaver/internal/worker"
)

func okWorker(items ...travel.Item) worker.Worker {
	return worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		return items, nil
	})
}

func task(domain travel.Domain, fingerprint string) travel.Task {
	return travel.Task{
		Domain:      domain,
		Fingerprint: fingerprint,
		Params:      map[string]interface{}{"destination": "Seattle"},
	}
}

func TestRunReturnsResultsInTaskOrder(t *testing.T) {
	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, okWorker(travel.Item{ID: "f1"}))
	reg.Register(travel.DomainHotels, okWorker(travel.Item{ID: "h1"}))

	d := NewDispatcher(reg)
	results := d.Run(context.Background(), []travel.Task{
		task(travel.DomainFlights, "fp-f"),
		task(travel.DomainHotels, "fp-h"),
	})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Domain != travel.DomainFlights || results[1].Domain != travel.DomainHotels {
		t.Errorf("result order = %s, %s; want flights, hotels",
			results[0].Domain, results[1].Domain)
	}
	for _, res := range results {
		if !res.OK() {
			t.Errorf("%s failed unexpectedly: %+v", res.Domain, res.Failure)
		}
	}
}

func TestPartialFailureKeepsOtherResults(t *testing.T) {
	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, okWorker(travel.Item{ID: "f1"}))

	var hotelCalls int32
	reg.Register(travel.DomainHotels, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		atomic.AddInt32(&hotelCalls, 1)
		return nil, fmt.Errorf("connection reset")
	}))

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{
		task(travel.DomainFlights, "fp-f"),
		task(travel.DomainHotels, "fp-h"),
	})

	if !results[0].OK() {
		t.Errorf("flights failed: %+v", results[0].Failure)
	}
	if results[1].OK() {
		t.Fatal("hotels succeeded, want transient failure")
	}
	if results[1].Failure.Reason != ReasonTransientAfterRetry {
		t.Errorf("hotels reason = %s, want %s", results[1].Failure.Reason, ReasonTransientAfterRetry)
	}
	if got := atomic.LoadInt32(&hotelCalls); got != 2 {
		t.Errorf("hotel worker called %d times, want 2 (one retry)", got)
	}
	if results[1].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", results[1].Attempts)
	}
}

func TestTransientThenSuccessOnRetry(t *testing.T) {
	var calls int32
	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, fmt.Errorf("flaky network")
		}
		return []travel.Item{{ID: "f1"}}, nil
	}))

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{task(travel.DomainFlights, "fp-1")})

	if !results[0].OK() {
		t.Fatalf("retry did not recover: %+v", results[0].Failure)
	}
	if results[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", results[0].Attempts)
	}
}

func TestBlockedIsTerminalWithoutRetry(t *testing.T) {
	var calls int32
	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		atomic.AddInt32(&calls, 1)
		return nil, fmt.Errorf("captcha wall: %w", worker.ErrBlocked)
	}))

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{task(travel.DomainFlights, "fp-1")})

	if results[0].Failure == nil || results[0].Failure.Reason != ReasonBlocked {
		t.Fatalf("result = %+v, want blocked failure", results[0])
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("worker called %d times, want 1 (no retry when blocked)", got)
	}
}

func TestInvalidResponseIsTerminal(t *testing.T) {
	reg := worker.NewRegistry()
	reg.Register(travel.DomainHotels, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		return nil, fmt.Errorf("garbage output: %w", worker.ErrInvalidResponse)
	}))

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{task(travel.DomainHotels, "fp-1")})

	if results[0].Failure == nil || results[0].Failure.Reason != ReasonInvalidResponse {
		t.Fatalf("result = %+v, want invalid_response failure", results[0])
	}
}

func TestTimeoutReason(t *testing.T) {
	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, worker.Func(func(ctx context.Context, _ travel.Task) ([]travel.Item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	d := NewDispatcher(reg, WithTaskTimeout(20*time.Millisecond), WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{task(travel.DomainFlights, "fp-1")})

	if results[0].Failure == nil || results[0].Failure.Reason != ReasonTimeout {
		t.Fatalf("result = %+v, want timeout failure", results[0])
	}
}

func TestCancelledParentContext(t *testing.T) {
	reg := worker.NewRegistry()
	started := make(chan struct{})
	reg.Register(travel.DomainFlights, worker.Func(func(ctx context.Context, _ travel.Task) ([]travel.Item, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(ctx, []travel.Task{task(travel.DomainFlights, "fp-1")})

	if results[0].Failure == nil || results[0].Failure.Reason != ReasonCancelled {
		t.Fatalf("result = %+v, want cancelled failure", results[0])
	}
}

func TestConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0

	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	}))

	d := NewDispatcher(reg, WithConcurrency(2))
	tasks := make([]travel.Task, 6)
	for i := range tasks {
		tasks[i] = task(travel.DomainFlights, fmt.Sprintf("fp-%d", i))
	}
	d.Run(context.Background(), tasks)

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestIdenticalFingerprintsShareOneSearch(t *testing.T) {
	var calls int32
	block := make(chan struct{})

	reg := worker.NewRegistry()
	reg.Register(travel.DomainFlights, worker.Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		atomic.AddInt32(&calls, 1)
		<-block
		return []travel.Item{{ID: "f1"}}, nil
	}))

	d := NewDispatcher(reg, WithConcurrency(4))

	var wg sync.WaitGroup
	results := make([][]Result, 3)
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Run(context.Background(), []travel.Task{task(travel.DomainFlights, "same-fp")})
		}()
	}

	time.Sleep(50 * time.Millisecond) // let all three reach the singleflight
	close(block)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("worker called %d times for identical fingerprints, want 1", got)
	}
	for i, res := range results {
		if len(res) != 1 || !res[0].OK() || len(res[0].Items) != 1 {
			t.Errorf("caller %d result = %+v, want shared success", i, res)
		}
	}
}

func TestErrorsNeverPanicTheBatch(t *testing.T) {
	reg := worker.NewRegistry()
	// hotels registered, experiences not
	reg.Register(travel.DomainHotels, okWorker())

	d := NewDispatcher(reg, WithRetryWait(0))
	results := d.Run(context.Background(), []travel.Task{
		task(travel.DomainHotels, "fp-h"),
		task(travel.DomainExperiences, "fp-e"),
	})

	if !results[0].OK() {
		t.Errorf("hotels failed: %+v", results[0].Failure)
	}
	if results[1].OK() {
		t.Error("unregistered domain reported success")
	}
}
