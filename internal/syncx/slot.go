// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Slot holds the latest complete value written by a single producer. Readers
// take a snapshot and never observe a partial write. Each Store bumps a
// sequence number so readers can tell whether the value changed.
type Slot[T any] struct {
	mu    sync.RWMutex
	value T
	seq   uint64
	set   bool
}

// NewSlot creates a slot holding initial. The slot reports empty until the
// first Store.
func NewSlot[T any](initial T) *Slot[T] {
	return &Slot[T]{value: initial}
}

// Store replaces the value and returns the new sequence number.
func (s *Slot[T]) Store(v T) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.seq++
	s.set = true
	return s.seq
}

// Load returns the current value, its sequence number and whether any value
// has been stored.
func (s *Slot[T]) Load() (T, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.seq, s.set
}

// Get returns the current value (T should be a value type or immutable).
func (s *Slot[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Swap replaces the value and returns the previous one.
func (s *Slot[T]) Swap(v T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.value
	s.value = v
	s.seq++
	s.set = true
	return old
}

// Read runs fn under the read lock, for callers that need several fields of
// a composite value at once without copying it.
func (s *Slot[T]) Read(fn func(T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.value)
}

// Reset empties the slot and restores initial.
func (s *Slot[T]) Reset(initial T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = initial
	s.set = false
}
