package engine

import (
	"sync"

	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/pipeline"
)

// Sink receives records from a strategy.
type Sink[T any] interface {
	// Add offers one record. It reports whether the record was accepted;
	// dropped, duplicate and over-cap records are refused.
	Add(rec T) bool
	// Len is the number of accepted records.
	Len() int
	// Full reports whether the result cap has been reached.
	Full() bool
}

// Collection is an ordered, deduplicated, capped sequence of records. It
// is append-only until frozen.
type Collection[T any] struct {
	mu          sync.Mutex
	items       []T
	max         int
	fingerprint func(T) string
	dedup       *Deduplicator
	pipeline    *pipeline.Pipeline[T]
	metrics     *observability.Metrics
	frozen      bool

	dropped    int
	duplicates int
}

// NewCollection creates a Collection holding at most max records; max <= 0
// means unlimited. p may be nil.
func NewCollection[T any](max int, fingerprint func(T) string, p *pipeline.Pipeline[T], metrics *observability.Metrics) *Collection[T] {
	return &Collection[T]{
		max:         max,
		fingerprint: fingerprint,
		dedup:       NewDeduplicator(64),
		pipeline:    p,
		metrics:     metrics,
	}
}

// Add normalizes rec, then appends it unless it is dropped, already
// present, or the collection is full or frozen.
func (c *Collection[T]) Add(rec T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen || c.fullLocked() {
		return false
	}
	if c.pipeline != nil {
		var ok bool
		if rec, ok = c.pipeline.Process(rec); !ok {
			c.dropped++
			if c.metrics != nil {
				c.metrics.RecordsDropped.Add(1)
			}
			return false
		}
	}
	if !c.dedup.Add(c.fingerprint(rec)) {
		c.duplicates++
		if c.metrics != nil {
			c.metrics.RecordsDuped.Add(1)
		}
		return false
	}
	c.items = append(c.items, rec)
	if c.metrics != nil {
		c.metrics.RecordsAccepted.Add(1)
	}
	return true
}

// Len returns the number of accepted records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Full reports whether the cap has been reached.
func (c *Collection[T]) Full() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullLocked()
}

func (c *Collection[T]) fullLocked() bool {
	return c.max > 0 && len(c.items) >= c.max
}

// Stats returns how many records were dropped by the pipeline and how
// many were rejected as duplicates.
func (c *Collection[T]) Stats() (dropped, duplicates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped, c.duplicates
}

// Freeze stops further additions and returns the records in order.
func (c *Collection[T]) Freeze() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
	return append([]T(nil), c.items...)
}

// Items returns a copy of the accepted records.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}
