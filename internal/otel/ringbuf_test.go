package otel

import (
	"sync"
	"testing"
)

func TestRingLastOrder(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}

	got := r.Last(10)
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	for i, e := range got {
		if e.Count != i {
			t.Errorf("got[%d].Count=%d, want %d", i, e.Count, i)
		}
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 6; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}

	if r.Len() != 4 {
		t.Fatalf("Len()=%d, want 4", r.Len())
	}
	// Oldest two evicted.
	got := r.Last(4)
	for i, e := range got {
		if want := i + 2; e.Count != want {
			t.Errorf("got[%d].Count=%d, want %d", i, e.Count, want)
		}
	}

	last2 := r.Last(2)
	if len(last2) != 2 || last2[0].Count != 4 || last2[1].Count != 5 {
		t.Errorf("Last(2) = %+v", last2)
	}
}

func TestRingEmpty(t *testing.T) {
	r := NewRingBuffer(0)
	if got := r.Last(3); got != nil {
		t.Errorf("Last on empty ring = %v, want nil", got)
	}
	if len(r.buf) != DefaultRingSize {
		t.Errorf("zero size should fall back to %d, got %d", DefaultRingSize, len(r.buf))
	}
}

func TestRingCopiesExtra(t *testing.T) {
	r := NewRingBuffer(2)
	extra := map[string]any{"mode": "location"}
	r.Push(Event{Kind: KindViewport, Extra: extra})
	extra["mode"] = "time"

	if got := r.Last(1)[0].Extra["mode"]; got != "location" {
		t.Errorf("ring should hold a copy of Extra, got %v", got)
	}
}

func TestRingCounts(t *testing.T) {
	r := NewRingBuffer(16)
	r.Push(Event{Kind: KindFetchStart})
	r.Push(Event{Kind: KindFetchComplete})
	r.Push(Event{Kind: KindFetchStart})
	r.Push(Event{Kind: KindFetchDiscard})

	counts := r.Counts()
	if counts[KindFetchStart] != 2 || counts[KindFetchComplete] != 1 || counts[KindFetchDiscard] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestRingConcurrentPush(t *testing.T) {
	r := NewRingBuffer(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Push(Event{Kind: KindInvalidate})
				_ = r.Last(4)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 64 {
		t.Errorf("Len()=%d, want 64", r.Len())
	}
}
