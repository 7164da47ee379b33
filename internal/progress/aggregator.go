package progress

import (
	"sync"
	"sync/atomic"
)

// Counter reports how many bytes have been written so far.
// partition.Set satisfies it.
type Counter interface {
	Downloaded() int64
}

// Aggregator turns byte counts into whole-percent updates. It is safe for
// concurrent use; Observe is called from every worker after each write.
type Aggregator struct {
	counter Counter
	total   int64
	emit    func(percent int, downloaded int64)

	mu   sync.Mutex // serializes emits
	last atomic.Int64
}

// NewAggregator returns an Aggregator over counter for a file of total bytes.
// emit is called at most once per percent value, in increasing order.
func NewAggregator(counter Counter, total int64, emit func(percent int, downloaded int64)) *Aggregator {
	a := &Aggregator{
		counter: counter,
		total:   total,
		emit:    emit,
	}
	a.last.Store(-1)
	return a
}

// Observe samples the counter and emits when the percentage is above the last
// emitted value. A sample taken before a newer one was emitted is dropped, so
// the emitted stream never goes backwards.
func (a *Aggregator) Observe() {
	downloaded := a.counter.Downloaded()

	percent := int64(0)
	if a.total > 0 {
		percent = downloaded * 100 / a.total
	}

	if percent <= a.last.Load() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if percent <= a.last.Load() {
		return
	}
	a.last.Store(percent)
	if a.emit != nil {
		a.emit(int(percent), downloaded)
	}
}

// Percent returns the last emitted percentage, or -1 before the first
// observation.
func (a *Aggregator) Percent() int {
	return int(a.last.Load())
}
