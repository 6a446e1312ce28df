package interceptor

import "sync"

// Breakdown holds per-category byte totals. Every category is always
// present, so the JSON form has all four keys even when zero.
type Breakdown struct {
	Image      int64 `json:"image"`
	Script     int64 `json:"script"`
	Stylesheet int64 `json:"stylesheet"`
	Other      int64 `json:"other"`
}

// Get returns the total for c.
func (b Breakdown) Get(c Category) int64 {
	switch c {
	case CategoryImage:
		return b.Image
	case CategoryScript:
		return b.Script
	case CategoryStylesheet:
		return b.Stylesheet
	default:
		return b.Other
	}
}

// Sum returns the total across all categories.
func (b Breakdown) Sum() int64 {
	return b.Image + b.Script + b.Stylesheet + b.Other
}

func (b *Breakdown) add(c Category, n int64) {
	switch c {
	case CategoryImage:
		b.Image += n
	case CategoryScript:
		b.Script += n
	case CategoryStylesheet:
		b.Stylesheet += n
	default:
		b.Other += n
	}
}

// Totals is a point-in-time view of an Accumulator.
type Totals struct {
	TotalBytes int64
	Resources  Breakdown
	Resolved   int64
	Unresolved int64
	Abandoned  int64
}

// Accumulator collects byte totals for a single scan. It is safe for
// concurrent use; TotalBytes and the per-category totals are updated in the
// same critical section so TotalBytes == Resources.Sum() always holds.
type Accumulator struct {
	mu      sync.Mutex
	t       Totals
	pending int64
	sealed  bool
}

// NewAccumulator returns a zero-valued accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Record applies an outcome. Once the accumulator has been sealed it
// returns false and changes nothing.
func (a *Accumulator) Record(o Outcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record(o)
}

func (a *Accumulator) record(o Outcome) bool {
	if a.sealed {
		return false
	}
	if !o.Resolution.Resolved() {
		a.t.Unresolved++
		return true
	}
	if o.Resolution.Bytes > 0 {
		a.t.Resources.add(o.Category, o.Resolution.Bytes)
		a.t.TotalBytes += o.Resolution.Bytes
	}
	a.t.Resolved++
	return true
}

// track registers an event whose size is still being resolved.
func (a *Accumulator) track() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	a.pending++
	return true
}

// complete records the outcome of a tracked event.
func (a *Accumulator) complete(o Outcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	a.pending--
	return a.record(o)
}

// Snapshot returns the current totals without modifying them.
func (a *Accumulator) Snapshot() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

// seal stops further updates and returns the final totals. Tracked events
// that have not completed are reported as abandoned.
func (a *Accumulator) seal() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		a.sealed = true
		a.t.Abandoned = a.pending
	}
	return a.t
}

// Sealed reports whether the accumulator has been finalized.
func (a *Accumulator) Sealed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealed
}

// Result is the immutable snapshot produced when a scan is finalized. It
// contains only values, so copies never alias engine state.
type Result struct {
	URL             string    `json:"url"`
	TotalBytes      int64     `json:"total_bytes"`
	Resources       Breakdown `json:"resources"`
	ResourceCount   int64     `json:"resource_count"`
	UnresolvedCount int64     `json:"unresolved_count"`
	AbandonedCount  int64     `json:"abandoned_count"`
	Settled         bool      `json:"settled"`
}

func newResult(url string, t Totals, settled bool) Result {
	return Result{
		URL:             url,
		TotalBytes:      t.TotalBytes,
		Resources:       t.Resources,
		ResourceCount:   t.Resolved + t.Unresolved,
		UnresolvedCount: t.Unresolved,
		AbandonedCount:  t.Abandoned,
		Settled:         settled,
	}
}
