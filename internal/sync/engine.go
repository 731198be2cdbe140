// Package sync implements the delta synchronization protocol client.
// Each exchange pushes viable pending changes plus the last known server
// version, pulls new server-side changes and conflict reports, and hands
// the outcome to the reconciler. The whole exchange runs under the sync
// mutex, so no two exchanges ever overlap.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/sync/lock"
	"github.com/cadenza-app/cadenza/internal/sync/queue"
	"github.com/cadenza-app/cadenza/internal/sync/reconcile"
	"github.com/cadenza-app/cadenza/internal/sync/transport"
)

// ErrAlreadyInProgress is the fast-fail message returned when Sync is
// called while another exchange holds the mutex.
const ErrAlreadyInProgress = "Sync already in progress"

// Result is the structured outcome of one sync call. Failures are
// returned here, not as Go errors, so call sites can render status
// without exception plumbing.
type Result struct {
	Success        bool   `json:"success"`
	ChangesPushed  int    `json:"changesPushed"`
	ChangesApplied int    `json:"changesApplied"`
	Conflicts      int    `json:"conflicts"`
	Error          string `json:"error,omitempty"`
}

// Engine executes delta sync exchanges.
type Engine struct {
	queue      *queue.ChangeQueue
	reconciler *reconcile.Reconciler
	exchanger  transport.Exchanger
	mutex      *lock.Mutex
	timeout    time.Duration
	now        func() time.Time

	mu          gosync.RWMutex
	lastSuccess time.Time
	lastResult  *Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a protocol client over the given queue, entity
// stores, and network port.
func NewEngine(q *queue.ChangeQueue, stores *store.Registry, exchanger transport.Exchanger, opts ...Option) *Engine {
	e := &Engine{
		queue:      q,
		reconciler: reconcile.New(q, stores),
		exchanger:  exchanger,
		mutex:      lock.New(),
		timeout:    transport.DefaultTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mutex exposes the sync mutex for observability.
func (e *Engine) Mutex() *lock.Mutex {
	return e.mutex
}

// LastSuccess returns the time of the last successful exchange, zero if
// none has completed yet.
func (e *Engine) LastSuccess() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSuccess
}

// LastResult returns the most recent sync result, nil before the first
// exchange.
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastResult
}

// Sync performs one exchange. It refuses re-entrance: if another
// exchange is running it returns immediately with a typed failure
// instead of queuing, giving callers fast non-blocking feedback.
func (e *Engine) Sync(ctx context.Context) *Result {
	var result *Result
	acquired, _ := e.mutex.TryExclusive("delta-sync", func() error {
		result = e.doSync(ctx)
		return nil
	})
	if !acquired {
		return &Result{Success: false, Error: ErrAlreadyInProgress}
	}
	return result
}

// SyncQueued performs one exchange, waiting FIFO behind any running
// exchange instead of fast-failing. minInterval is re-checked against
// the last successful sync after the mutex is acquired, so two triggers
// that both passed an earlier check cannot serialize into back-to-back
// exchanges. Returns skipped=true when the debounce window suppressed
// the exchange.
func (e *Engine) SyncQueued(ctx context.Context, label string, minInterval time.Duration) (result *Result, skipped bool) {
	err := e.mutex.RunExclusive(ctx, label, func() error {
		e.mu.RLock()
		last := e.lastSuccess
		e.mu.RUnlock()
		if !last.IsZero() && e.now().Sub(last) < minInterval {
			skipped = true
			return nil
		}
		result = e.doSync(ctx)
		return nil
	})
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, false
	}
	if skipped {
		return nil, true
	}
	return result, false
}

// doSync runs the nine-step exchange. Any transport failure aborts
// before queue or checkpoint mutation, so a failed sync is always
// safely retryable; retry counts move only on explicit per-change
// conflict.
func (e *Engine) doSync(ctx context.Context) *Result {
	meta := e.queue.Checkpoint()

	// Snapshot pending changes once; later enqueues belong to the next
	// exchange. Changes at the retry ceiling never reach the payload.
	viable := e.queue.ListViable()

	logging.Debug("Starting sync exchange",
		map[string]interface{}{
			"last_known_version": meta.LastKnownServerVersion,
			"changes":            len(viable),
		})

	exchangeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.exchanger.Exchange(exchangeCtx, meta.DeviceID, &transport.ExchangeRequest{
		LastKnownServerVersion: meta.LastKnownServerVersion,
		Changes:                viable,
	})
	if err != nil {
		logging.Warn("Sync exchange failed",
			map[string]interface{}{"error": err.Error()})
		return e.record(&Result{Success: false, Error: err.Error()})
	}

	accepted, conflicted := e.reconciler.Partition(viable, resp.Conflicts)

	if err := e.reconciler.Commit(accepted, conflicted, resp.NewChanges, resp.LatestServerVersion, e.now().UnixMilli()); err != nil {
		logging.Error("Failed to commit exchange outcome", err)
		return e.record(&Result{Success: false, Error: err.Error()})
	}

	result := &Result{
		Success:        true,
		ChangesPushed:  len(accepted),
		ChangesApplied: len(resp.NewChanges),
		Conflicts:      len(resp.Conflicts),
	}

	e.mu.Lock()
	e.lastSuccess = e.now()
	e.mu.Unlock()

	logging.Info("Sync exchange completed",
		map[string]interface{}{
			"pushed":    result.ChangesPushed,
			"applied":   result.ChangesApplied,
			"conflicts": result.Conflicts,
			"version":   resp.LatestServerVersion,
		})

	return e.record(result)
}

func (e *Engine) record(r *Result) *Result {
	e.mu.Lock()
	e.lastResult = r
	e.mu.Unlock()
	return r
}
