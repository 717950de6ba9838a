package sdk

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBufferFlushesWhenFull(t *testing.T) {
	batches := make(chan []*Entry, 1)
	b := NewBuffer(3, 0, func(batch []*Entry) {
		batches <- batch
	})
	defer b.Stop()

	for i := 0; i < 3; i++ {
		b.Add(&Entry{Prompt: fmt.Sprintf("p%d", i)})
	}

	select {
	case batch := <-batches:
		if len(batch) != 3 {
			t.Fatalf("expected batch of 3, got %d", len(batch))
		}
	case <-time.After(time.Second):
		t.Fatal("buffer never flushed after reaching max")
	}

	if got := b.Len(); got != 0 {
		t.Errorf("expected empty buffer after flush, got %d entries", got)
	}
}

func TestBufferDrainIsAtomic(t *testing.T) {
	b := NewBuffer(10, 0, func([]*Entry) {})
	defer b.Stop()

	b.Add(&Entry{Prompt: "a"})
	b.Add(&Entry{Prompt: "b"})

	first := b.Drain()
	if len(first) != 2 {
		t.Fatalf("expected 2 entries from first drain, got %d", len(first))
	}

	second := b.Drain()
	if len(second) != 0 {
		t.Errorf("expected second drain to be empty, got %d entries", len(second))
	}
}

func TestBufferTimerFlush(t *testing.T) {
	batches := make(chan []*Entry, 1)
	b := NewBuffer(100, 20*time.Millisecond, func(batch []*Entry) {
		batches <- batch
	})
	defer b.Stop()

	b.Add(&Entry{Prompt: "pending"})

	select {
	case batch := <-batches:
		if len(batch) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(batch))
		}
	case <-time.After(time.Second):
		t.Fatal("timer never flushed the pending entry")
	}
}

func TestBufferStopDoesNotFlush(t *testing.T) {
	batches := make(chan []*Entry, 1)
	b := NewBuffer(100, 10*time.Millisecond, func(batch []*Entry) {
		batches <- batch
	})

	b.Stop()
	b.Add(&Entry{Prompt: "kept"})

	select {
	case <-batches:
		t.Fatal("entry flushed after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	if got := b.Len(); got != 1 {
		t.Errorf("expected entry to remain buffered, got %d", got)
	}

	// Stop is idempotent.
	b.Stop()
}

func TestBufferPreservesOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("drain returns entries in insertion order", prop.ForAll(
		func(prompts []string) bool {
			b := NewBuffer(len(prompts)+1, 0, func([]*Entry) {})
			defer b.Stop()

			for _, p := range prompts {
				b.Add(&Entry{Prompt: p})
			}

			drained := b.Drain()
			if len(drained) != len(prompts) {
				return false
			}
			for i, entry := range drained {
				if entry.Prompt != prompts[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
