// Package trigger coalesces sync-worthy events into single debounced
// sync invocations. Visibility changes, window focus, connectivity
// restoration, route navigation, a periodic timer, and manual requests
// all funnel into one queue; a processor drains it one event at a time
// through the mutex-guarded sync engine, so a burst of triggers becomes
// at most one exchange.
package trigger

import (
	"context"
	gosync "sync"
	"time"

	"github.com/cadenza-app/cadenza/internal/logging"
	syncengine "github.com/cadenza-app/cadenza/internal/sync"
)

// Kind labels the source of a sync trigger.
type Kind string

const (
	KindVisibility Kind = "visibility"
	KindFocus      Kind = "focus"
	KindOnline     Kind = "online"
	KindInterval   Kind = "interval"
	KindRoute      Kind = "route"
	KindManual     Kind = "manual"
)

// Event is one queued trigger.
type Event struct {
	Kind Kind
	At   time.Time
}

// Runner is the sync operation the coalescer drives. The engine
// satisfies it.
type Runner interface {
	// SyncQueued waits FIFO for the sync mutex and re-checks
	// minInterval against the last successful sync after acquiring it.
	SyncQueued(ctx context.Context, label string, minInterval time.Duration) (result *syncengine.Result, skipped bool)

	// LastSuccess returns the time of the last successful exchange.
	LastSuccess() time.Time
}

// Config holds the canonical trigger thresholds.
type Config struct {
	AutoDebounce     time.Duration // min gap after a successful sync for automatic triggers
	ManualDebounce   time.Duration // min gap for manual requests
	VisibilityHidden time.Duration // tab must have been hidden at least this long
	FocusSinceSync   time.Duration // focus triggers only this long after the last sync
	FocusGap         time.Duration // min gap between two focus events
	Interval         time.Duration // periodic timer
	FormFlagExpiry   time.Duration // auto-expiry of the form-submitting flag
	QueueDepth       int
}

// DefaultConfig returns the canonical threshold set.
func DefaultConfig() *Config {
	return &Config{
		AutoDebounce:     30 * time.Second,
		ManualDebounce:   1 * time.Second,
		VisibilityHidden: 60 * time.Second,
		FocusSinceSync:   120 * time.Second,
		FocusGap:         5 * time.Second,
		Interval:         5 * time.Minute,
		FormFlagExpiry:   15 * time.Second,
		QueueDepth:       64,
	}
}

// Coalescer owns the trigger queue, its processor, and the timer
// handles, so teardown can cancel everything it started.
type Coalescer struct {
	runner Runner
	cfg    *Config
	now    func() time.Time

	events chan Event
	stopCh chan struct{}
	wg     gosync.WaitGroup

	mu              gosync.Mutex
	running         bool
	lastFocus       time.Time
	formSubmitUntil time.Time
}

// New creates a Coalescer. A nil config uses DefaultConfig.
func New(runner Runner, cfg *Config) *Coalescer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Coalescer{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		events: make(chan Event, cfg.QueueDepth),
		stopCh: make(chan struct{}),
	}
}

// SetClock injects a clock, for tests. Must be called before Start.
func (c *Coalescer) SetClock(now func() time.Time) {
	c.now = now
}

// Start launches the processor and the periodic timer.
func (c *Coalescer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.processLoop(ctx)
	go c.intervalLoop(ctx)

	logging.Info("Trigger coalescer started",
		map[string]interface{}{"interval": c.cfg.Interval.String()})
}

// Stop cancels the timers and waits for the processor to drain its
// current event. Queued triggers are dropped.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	c.wg.Wait()
	c.Clear()

	logging.Info("Trigger coalescer stopped")
}

// QueueEvent enqueues a trigger. A full queue drops the event with a
// warning; the periodic timer guarantees a sync happens eventually.
func (c *Coalescer) QueueEvent(kind Kind) {
	select {
	case c.events <- Event{Kind: kind, At: c.now()}:
	default:
		logging.Warn("Trigger queue full, dropping event",
			map[string]interface{}{"kind": kind})
	}
}

// NotifyVisible reports that the tab became visible again after being
// hidden for hiddenFor. Short absences do not trigger a sync.
func (c *Coalescer) NotifyVisible(hiddenFor time.Duration) {
	if hiddenFor < c.cfg.VisibilityHidden {
		return
	}
	c.QueueEvent(KindVisibility)
}

// NotifyFocus reports a window focus event. Focus triggers are gated by
// the focus-to-focus minimum gap, the last-sync age, and the
// form-submitting flag.
func (c *Coalescer) NotifyFocus() {
	now := c.now()

	c.mu.Lock()
	suppressed := now.Before(c.formSubmitUntil)
	tooSoon := !c.lastFocus.IsZero() && now.Sub(c.lastFocus) < c.cfg.FocusGap
	c.lastFocus = now
	c.mu.Unlock()

	if suppressed {
		logging.Debug("Focus trigger suppressed by form submission")
		return
	}
	if tooSoon {
		return
	}
	if last := c.runner.LastSuccess(); !last.IsZero() && now.Sub(last) < c.cfg.FocusSinceSync {
		return
	}
	c.QueueEvent(KindFocus)
}

// NotifyOnline reports that network connectivity was restored.
func (c *Coalescer) NotifyOnline() {
	c.QueueEvent(KindOnline)
}

// NotifyRoute reports navigation into a data-heavy route.
func (c *Coalescer) NotifyRoute(route string) {
	logging.Debug("Route trigger", map[string]interface{}{"route": route})
	c.QueueEvent(KindRoute)
}

// RequestSync queues a manual sync request.
func (c *Coalescer) RequestSync() {
	c.QueueEvent(KindManual)
}

// SetFormSubmitting raises or lowers the flag that suppresses
// focus-triggered syncs during in-flight form submissions. The flag
// expires on its own so a missed clear cannot wedge focus syncs forever.
func (c *Coalescer) SetFormSubmitting(submitting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if submitting {
		c.formSubmitUntil = c.now().Add(c.cfg.FormFlagExpiry)
	} else {
		c.formSubmitUntil = time.Time{}
	}
}

// ForceProcess drains all queued triggers and runs a single sync with
// debouncing bypassed. For manual and test use.
func (c *Coalescer) ForceProcess(ctx context.Context) *syncengine.Result {
	c.Clear()
	result, _ := c.runner.SyncQueued(ctx, "trigger:force", 0)
	return result
}

// Clear drops all pending queued triggers. Used on teardown.
func (c *Coalescer) Clear() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

// Pending returns the number of queued triggers.
func (c *Coalescer) Pending() int {
	return len(c.events)
}

// processLoop drains the queue one event at a time. Individual failures
// are logged and swallowed so one bad trigger never blocks the next.
func (c *Coalescer) processLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.process(ctx, ev)
		}
	}
}

func (c *Coalescer) process(ctx context.Context, ev Event) {
	minInterval := c.cfg.AutoDebounce
	if ev.Kind == KindManual {
		minInterval = c.cfg.ManualDebounce
	}

	result, skipped := c.runner.SyncQueued(ctx, "trigger:"+string(ev.Kind), minInterval)
	if skipped {
		logging.Debug("Trigger sync skipped by debounce",
			map[string]interface{}{"kind": ev.Kind})
		return
	}
	if result != nil && !result.Success {
		logging.Warn("Trigger sync failed",
			map[string]interface{}{"kind": ev.Kind, "error": result.Error})
	}
}

// intervalLoop queues a periodic trigger.
func (c *Coalescer) intervalLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.QueueEvent(KindInterval)
		}
	}
}
