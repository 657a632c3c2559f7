package host

import (
	"sync"
	"sync/atomic"
	"time"
)

// Latch is a one-shot flag that lives for the whole process. Create one at
// process start and hand the same Latch to every Ingestor so the launch
// query runs once no matter how many ingestors observe it.
type Latch struct {
	claimed atomic.Bool
}

// NewLatch returns an unclaimed latch.
func NewLatch() *Latch {
	return &Latch{}
}

// Claim reports whether the caller is the first to claim the latch.
// Every later call returns false.
func (l *Latch) Claim() bool {
	return l.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether the latch has been claimed.
func (l *Latch) Claimed() bool {
	return l.claimed.Load()
}

// DefaultDedupWindow is used when a Deduper is created with a non-positive window.
const DefaultDedupWindow = 10 * time.Second

// Deduper admits each key at most once per window.
type Deduper struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduper returns a Deduper with the given window.
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduper{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// Window returns the dedup window.
func (d *Deduper) Window() time.Duration {
	return d.window
}

// Admit records key and reports whether it was not already seen within the
// window.
func (d *Deduper) Admit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = now
	return true
}
