package interceptor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Outcome is the per-event result of OnResponse.
type Outcome struct {
	RequestID  string
	URL        string
	Category   Category
	Resolution Resolution

	// Recorded is false when the accumulator was already sealed.
	Recorded bool
}

// Skipped reports whether the event contributed nothing to the totals.
func (o Outcome) Skipped() bool {
	return !o.Recorded || !o.Resolution.Resolved()
}

// Reason explains a skipped outcome. It is empty for counted events.
func (o Outcome) Reason() string {
	switch {
	case !o.Recorded:
		return "scan already finalized"
	case !o.Resolution.Resolved():
		if o.Resolution.Err != nil {
			return o.Resolution.Err.Error()
		}
		return "size unresolved"
	default:
		return ""
	}
}

// Engine turns response events into byte accounting. It holds no per-scan
// state and no timers; one Engine serves any number of concurrent scans.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// OnResponse resolves, classifies and records a single event into acc.
// It never panics and never returns an error: per-event failures are
// reported through the Outcome and contribute zero bytes.
func (e *Engine) OnResponse(ctx context.Context, ev ResponseEvent, acc *Accumulator) Outcome {
	o := e.resolve(ctx, ev)
	o.Recorded = acc.Record(o)
	e.logOutcome(o)
	return o
}

func (e *Engine) resolve(ctx context.Context, ev ResponseEvent) Outcome {
	return Outcome{
		RequestID:  ev.RequestID,
		URL:        ev.URL,
		Category:   Classify(ev.ResourceType),
		Resolution: ResolveSize(ctx, ev),
	}
}

func (e *Engine) logOutcome(o Outcome) {
	if !o.Skipped() {
		return
	}
	e.logger.Debug("resource not counted",
		"request_id", o.RequestID,
		"url", o.URL,
		"category", o.Category,
		"reason", o.Reason(),
	)
}

// Scan is one page load being observed. Create it with Engine.Begin and
// finish it with Finalize.
type Scan struct {
	engine *Engine
	url    string
	acc    *Accumulator

	ctx    context.Context
	cancel context.CancelFunc
	stop   func()

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	unsettled atomic.Bool

	once   sync.Once
	result Result
}

// Begin subscribes to src and returns a scan with a fresh accumulator.
// Call it before navigation starts so early responses are not missed.
//
// Each delivered event is resolved in its own goroutine, so a slow body
// read never holds up other events. ctx bounds those body reads.
func (e *Engine) Begin(ctx context.Context, url string, src Source) *Scan {
	scanCtx, cancel := context.WithCancel(ctx)
	s := &Scan{
		engine: e,
		url:    url,
		acc:    NewAccumulator(),
		ctx:    scanCtx,
		cancel: cancel,
	}
	s.stop = src.Subscribe(s.dispatch)
	if s.stop == nil {
		s.stop = func() {}
	}
	return s
}

// Accumulator exposes the live accumulator, mainly for progress reporting.
func (s *Scan) Accumulator() *Accumulator { return s.acc }

// URL returns the scanned URL.
func (s *Scan) URL() string { return s.url }

// MarkUnsettled records that the page never went idle before the hard
// timeout. The flag is reported as Result.Settled == false.
func (s *Scan) MarkUnsettled() { s.unsettled.Store(true) }

func (s *Scan) dispatch(ev ResponseEvent) {
	s.mu.Lock()
	if s.closed || !s.acc.track() {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		o := s.engine.resolve(s.ctx, ev)
		o.Recorded = s.acc.complete(o)
		s.engine.logOutcome(o)
	}()
}

// Finalize detaches the subscription, waits for in-flight size resolutions
// until ctx is done, then seals the accumulator and returns the snapshot.
// Resolutions still running at that point are cancelled and reported as
// abandoned. Finalize is idempotent: later calls return the same Result.
func (s *Scan) Finalize(ctx context.Context) Result {
	s.once.Do(func() {
		s.stop()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.engine.logger.Warn("finalizing scan with resolutions still in flight",
				"url", s.url,
				"error", ctx.Err(),
			)
		}

		totals := s.acc.seal()
		s.cancel()
		s.result = newResult(s.url, totals, !s.unsettled.Load())
	})
	return s.result
}
