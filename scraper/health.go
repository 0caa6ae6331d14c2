package scraper

import (
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Retirement thresholds for pooled pages.
const (
	maxErrScore = 3.0
	maxPageUses = 50
	maxPageAge  = 50 * time.Minute
)

// pageHealth scores one pooled page. A success lowers the score by 0.5
// (floor 0) and a failure raises it by 1.
type pageHealth struct {
	errScore float64
	uses     int
	created  time.Time
}

func (h *pageHealth) record(ok bool) {
	h.uses++
	if ok {
		h.errScore = math.Max(0, h.errScore-0.5)
	} else {
		h.errScore++
	}
}

func (h *pageHealth) shouldRetire(now time.Time) bool {
	return h.errScore >= maxErrScore ||
		h.uses >= maxPageUses ||
		now.Sub(h.created) >= maxPageAge
}

// healthBook tracks every page the pool has handed out.
type healthBook struct {
	mu    sync.Mutex
	pages map[proto.TargetTargetID]*pageHealth
	now   func() time.Time
}

func newHealthBook() *healthBook {
	return &healthBook{
		pages: make(map[proto.TargetTargetID]*pageHealth),
		now:   time.Now,
	}
}

// release records the outcome of one use and reports whether the page
// should be closed instead of returned to the pool. Retired pages are
// forgotten.
func (b *healthBook) release(id proto.TargetTargetID, ok bool) (retire bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, found := b.pages[id]
	if !found {
		h = &pageHealth{created: b.now()}
		b.pages[id] = h
	}
	h.record(ok)

	if h.shouldRetire(b.now()) {
		delete(b.pages, id)
		return true
	}
	return false
}
