package scraper

import (
	"math"
	"sync"
	"time"
)

// Retirement thresholds for pooled pages. A page is replaced once any of
// them is reached.
const (
	maxErrScore = 3.0
	maxPageUses = 50
	maxPageAge  = 50 * time.Minute
)

type pageStats struct {
	errScore float64
	uses     int
	created  time.Time
}

// pageHealth scores pooled pages. Failures add 1, successes subtract 0.5,
// so a tab that keeps failing navigations gets recycled while occasional
// bad URLs do not churn the pool.
type pageHealth[K comparable] struct {
	mu    sync.Mutex
	pages map[K]*pageStats
	now   func() time.Time
}

func newPageHealth[K comparable]() *pageHealth[K] {
	return &pageHealth[K]{
		pages: make(map[K]*pageStats),
		now:   time.Now,
	}
}

// release records the outcome of one scan on page and reports whether the
// page should be closed instead of returned to the pool. Retired pages are
// forgotten.
func (h *pageHealth[K]) release(page K, ok bool) (retire bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, found := h.pages[page]
	if !found {
		st = &pageStats{created: h.now()}
		h.pages[page] = st
	}

	st.uses++
	if ok {
		st.errScore = math.Max(0, st.errScore-0.5)
	} else {
		st.errScore++
	}

	retire = st.errScore >= maxErrScore ||
		st.uses >= maxPageUses ||
		h.now().Sub(st.created) >= maxPageAge
	if retire {
		delete(h.pages, page)
	}
	return retire
}

func (h *pageHealth[K]) tracked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pages)
}
