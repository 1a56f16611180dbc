// Package scan orchestrates the rescanning loop for one page: an initial
// full-tree pass, then debounced incremental passes over mutated subtrees,
// each gated by a fresh policy evaluation.
package scan

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shortsguard/internal/detector"
	"shortsguard/internal/dom"
	"shortsguard/internal/policy"
	"shortsguard/internal/rules"
	"shortsguard/internal/settings"
)

// DefaultDebounce coalesces mutation batches arriving within this window.
const DefaultDebounce = 100 * time.Millisecond

// BlockSink receives one event per blocked element. The bridge implements it
// as a fire-and-observe LOG_BLOCK message; errors are the sink's problem.
type BlockSink interface {
	LogBlock(platform settings.Platform, action, url string)
}

// Coordinator runs the per-page state machine: Idle until a detector
// resolves, then alternating Idle/Scanning driven by mutation batches. One
// worker goroutine drains a strict FIFO queue of pending subtree roots; no
// two batches ever overlap.
type Coordinator struct {
	doc      *dom.Document
	det      detector.Detector
	hostname string
	pageURL  string
	debounce time.Duration
	log      zerolog.Logger
	sink     BlockSink
	now      func() time.Time

	mu          sync.Mutex
	snap        *settings.Settings
	focusActive bool
	decision    *policy.Decision // nil means invalidated
	pending     []*dom.Element
	blocked     uint64

	kick      chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	cancelObs func()
	started   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithSink attaches a block event sink.
func WithSink(s BlockSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock overrides the time source for schedule evaluation.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New wires a coordinator for one page. The detector is resolved from the
// registry; when no platform matches the coordinator stays permanently idle
// and Start installs no observer.
func New(doc *dom.Document, reg *detector.Registry, hostname, pageURL string, snap *settings.Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		doc:      doc,
		det:      reg.ForHostname(hostname),
		hostname: hostname,
		pageURL:  pageURL,
		debounce: DefaultDebounce,
		log:      zerolog.Nop(),
		now:      time.Now,
		snap:     snap,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Supported reports whether a detector resolved for this page.
func (c *Coordinator) Supported() bool { return c.det != nil }

// Start performs the initial full-document scan and installs the mutation
// subscription. On unsupported hostnames it is a silent no-op.
func (c *Coordinator) Start() {
	if c.det == nil {
		c.log.Debug().Str("hostname", c.hostname).Msg("no detector for hostname, staying idle")
		return
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.det.SetSettings(c.snap)
	c.mu.Unlock()

	c.scanRoots([]*dom.Element{c.doc.Body()})

	c.cancelObs = c.doc.Observe(c.enqueue)
	c.wg.Add(1)
	go c.worker()
}

// enqueue appends added subtree roots to the FIFO queue and arms the
// debounce. Called from the document's mutation delivery; never blocks it.
func (c *Coordinator) enqueue(added []*dom.Element) {
	c.mu.Lock()
	c.pending = append(c.pending, added...)
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// worker drains the queue one batch at a time. The debounce window is fixed:
// arrivals during the window join the batch, they do not extend it.
func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case <-c.kick:
		}
		t := time.NewTimer(c.debounce)
	wait:
		for {
			select {
			case <-c.stop:
				t.Stop()
				return
			case <-c.kick:
				// absorbed into the current window
			case <-t.C:
				break wait
			}
		}
		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()
		if len(batch) > 0 {
			c.scanRoots(batch)
		}
	}
}

// scanRoots runs one batch. Policy is evaluated once per batch from the
// current snapshot; each subtree is isolated so a panic on one bad node is
// logged and the remaining roots and future batches still run.
func (c *Coordinator) scanRoots(roots []*dom.Element) {
	if c.det == nil {
		return
	}
	dec := c.evaluate()
	if !dec.Active {
		c.log.Debug().Str("reason", string(dec.Reason)).Msg("blocking inactive, batch skipped")
		return
	}
	for _, root := range roots {
		c.scanOne(root)
	}
}

func (c *Coordinator) scanOne(root *dom.Element) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("platform", string(c.det.Platform())).
				Msg("scan failed for subtree, continuing")
		}
	}()
	res := c.det.Scan(root, c.pageURL)
	if res.Blocked == 0 && len(res.Applied) == 0 {
		return
	}
	c.mu.Lock()
	c.blocked += uint64(res.Blocked)
	c.mu.Unlock()
	if c.sink != nil {
		for _, a := range res.Applied {
			if a.Action == rules.ActionSkip {
				continue
			}
			c.sink.LogBlock(c.det.Platform(), string(a.Action), c.pageURL)
		}
	}
	c.log.Debug().Int("blocked", res.Blocked).Str("platform", string(c.det.Platform())).Msg("scan pass done")
}

// evaluate returns the cached decision or recomputes it after invalidation.
// With a schedule enabled the decision is a function of the clock, so every
// batch re-evaluates; the cache only serves the time-independent cases.
func (c *Coordinator) evaluate() policy.Decision {
	c.mu.Lock()
	snap := c.snap
	focus := c.focusActive
	if c.decision != nil && (snap == nil || !snap.Schedule.Enabled) {
		d := *c.decision
		c.mu.Unlock()
		return d
	}
	c.mu.Unlock()

	channel := ""
	if cr, ok := c.det.(detector.ChannelResolver); ok {
		channel = cr.ChannelFromURL(c.pageURL)
	}
	d := policy.Evaluate(policy.Input{
		Settings:    snap,
		Platform:    c.det.Platform(),
		Hostname:    c.hostname,
		URL:         c.pageURL,
		Channel:     channel,
		Now:         c.now(),
		FocusActive: focus,
	})

	c.mu.Lock()
	c.decision = &d
	c.mu.Unlock()
	return d
}

// SetSettings installs a new snapshot and invalidates the cached decision;
// the next batch re-evaluates from scratch. The page may act on the old
// snapshot for at most one debounce window.
func (c *Coordinator) SetSettings(s *settings.Settings) {
	c.mu.Lock()
	c.snap = s
	c.decision = nil
	c.mu.Unlock()
	if c.det != nil {
		c.det.SetSettings(s)
	}
}

// SetFocusActive records the focus/pomodoro signal. Informational only.
func (c *Coordinator) SetFocusActive(active bool) {
	c.mu.Lock()
	c.focusActive = active
	c.decision = nil
	c.mu.Unlock()
}

// Invalidate drops the cached decision without changing the snapshot.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.decision = nil
	c.mu.Unlock()
}

// Blocked returns the number of elements blocked so far on this page.
func (c *Coordinator) Blocked() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// Flush synchronously drains whatever is queued right now, bypassing the
// debounce. Used on page teardown and by tests.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) > 0 {
		c.scanRoots(batch)
	}
}

// Close tears down the observer subscription, the pending queue and the
// worker. No background work survives it.
func (c *Coordinator) Close() {
	c.once.Do(func() {
		if c.cancelObs != nil {
			c.cancelObs()
		}
		close(c.stop)
		c.wg.Wait()
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	})
}
