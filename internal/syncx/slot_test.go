package syncx

import (
	"sync"
	"testing"
)

func TestSlotEmptyUntilStore(t *testing.T) {
	s := NewSlot(0)

	if _, _, ok := s.Load(); ok {
		t.Error("new slot should report empty")
	}

	seq := s.Store(42)
	v, got, ok := s.Load()
	if !ok || v != 42 || got != seq {
		t.Errorf("Load() = (%d, %d, %v), want (42, %d, true)", v, got, ok, seq)
	}
}

func TestSlotSequenceIncreases(t *testing.T) {
	s := NewSlot("")
	first := s.Store("a")
	second := s.Store("b")

	if second <= first {
		t.Errorf("sequence did not increase: %d then %d", first, second)
	}
}

func TestSlotSwap(t *testing.T) {
	s := NewSlot("hello")

	old := s.Swap("world")
	if old != "hello" {
		t.Errorf("Swap returned %q, want %q", old, "hello")
	}
	if got := s.Get(); got != "world" {
		t.Errorf("Get() after Swap = %q, want %q", got, "world")
	}
}

func TestSlotReset(t *testing.T) {
	s := NewSlot(1)
	s.Store(5)
	s.Reset(1)

	if v, _, ok := s.Load(); ok || v != 1 {
		t.Errorf("after Reset Load() = (%d, %v), want (1, false)", v, ok)
	}
}

func TestSlotSnapshotNeverTorn(t *testing.T) {
	type pair struct{ a, b int }
	s := NewSlot(pair{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			s.Store(pair{a: i, b: i})
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Read(func(p pair) {
					if p.a != p.b {
						t.Errorf("torn read: %+v", p)
					}
				})
			}
		}()
	}

	wg.Wait()
	if got := s.Get(); got.a != 1000 {
		t.Errorf("final value = %+v, want a=1000", got)
	}
}
