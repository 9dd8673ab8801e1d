package ledger

import (
	"sync"
	"time"
)

// #region sample

// Sample is one recorded outcome value.
type Sample struct {
	Value float64
	At    time.Time
}

// #endregion sample

// #region ledger

// Ledger retains the last N samples per key. It is safe for concurrent use.
type Ledger[K comparable] struct {
	mu       sync.RWMutex
	capacity int
	rings    map[K]*Ring[Sample]
	order    []K
	now      func() time.Time
}

// New creates a ledger retaining capacity samples per key.
func New[K comparable](capacity int) *Ledger[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger[K]{
		capacity: capacity,
		rings:    make(map[K]*Ring[Sample]),
		now:      time.Now,
	}
}

// Record appends value for key stamped with the current time.
func (l *Ledger[K]) Record(key K, value float64) {
	l.RecordAt(key, value, l.now())
}

// RecordAt appends value for key with an explicit timestamp.
func (l *Ledger[K]) RecordAt(key K, value float64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rings[key]
	if !ok {
		r = NewRing[Sample](l.capacity)
		l.rings[key] = r
		l.order = append(l.order, key)
	}
	r.Push(Sample{Value: value, At: at})
}

// Mean returns the unweighted mean of the retained samples for key.
// ok is false when key has no samples.
func (l *Ledger[K]) Mean(key K) (mean float64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, found := l.rings[key]
	if !found || r.Len() == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range r.Items() {
		sum += s.Value
	}
	return sum / float64(r.Len()), true
}

// Len returns the number of samples retained for key.
func (l *Ledger[K]) Len(key K) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.rings[key]; ok {
		return r.Len()
	}
	return 0
}

// Samples returns the retained samples for key, oldest first.
func (l *Ledger[K]) Samples(key K) []Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.rings[key]; ok {
		return r.Items()
	}
	return nil
}

// Keys returns every key ever recorded, in first-seen order.
func (l *Ledger[K]) Keys() []K {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]K(nil), l.order...)
}

// Capacity returns the per-key sample cap.
func (l *Ledger[K]) Capacity() int {
	return l.capacity
}

// Reset drops all samples.
func (l *Ledger[K]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rings = make(map[K]*Ring[Sample])
	l.order = nil
}

// #endregion ledger
