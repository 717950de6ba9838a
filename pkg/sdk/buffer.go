package sdk

import (
	"sync"
	"time"
)

// Buffer accumulates entries in memory and hands them to a flush function
// in batches: asynchronously when the buffer reaches its maximum, and
// periodically from a background ticker. Entries leave the buffer through
// exactly one drain, in insertion order, and are never re-queued.
type Buffer struct {
	mu      sync.Mutex
	entries []*Entry

	max      int
	interval time.Duration
	flush    func([]*Entry)

	done     chan struct{}
	stopOnce sync.Once
}

// NewBuffer creates a buffer that invokes flush with drained batches. When
// interval is positive, a background ticker flushes pending entries every
// interval; Stop cancels it.
func NewBuffer(max int, interval time.Duration, flush func([]*Entry)) *Buffer {
	if max <= 0 {
		max = defaultBufferSize
	}
	b := &Buffer{
		max:      max,
		interval: interval,
		flush:    flush,
		done:     make(chan struct{}),
	}
	if interval > 0 {
		go b.tickerLoop()
	}
	return b
}

// Add appends the entry. If the buffer has reached its maximum, the whole
// contents are flushed asynchronously; Add never blocks on delivery.
func (b *Buffer) Add(entry *Entry) {
	b.mu.Lock()
	b.entries = append(b.entries, entry)
	full := len(b.entries) >= b.max
	b.mu.Unlock()

	if full {
		if batch := b.Drain(); len(batch) > 0 {
			go b.flush(batch)
		}
	}
}

// Drain atomically removes and returns all buffered entries in insertion
// order. Concurrent drains see disjoint batches.
func (b *Buffer) Drain() []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.entries
	b.entries = nil
	return entries
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Stop cancels the background ticker. It does not flush; callers that want
// the remaining entries delivered drain explicitly first.
func (b *Buffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}

// tickerLoop periodically flushes pending entries until Stop is called.
func (b *Buffer) tickerLoop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if batch := b.Drain(); len(batch) > 0 {
				b.flush(batch)
			}
		}
	}
}
