// Lock-free ring buffer carrying in-flight fragments between a publisher
// session and the consumer that polls it
package ringbuf

import (
	"fmt"
	"runtime"

	"streammux/internal/atomics"
)

// Creates a new ring
func New[T any](namespace []string, capacity uint64) (new *Ring[T], err error) {
	if (capacity & (capacity - 1)) != 0 {
		err = fmt.Errorf("capacity must be a power of two")
		return
	}
	if capacity < 2 {
		err = fmt.Errorf("capacity must be greater than or equal to 2")
		return
	}

	buf := make([]cell[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		buf[i].seq.Store(i)
	}

	new = &Ring[T]{
		Namespace: append(namespace, "ring"),
		Size:      int(capacity),
		mask:      capacity - 1,
		buf:       buf,
		Metrics:   &MetricStorage{},
	}
	return
}

// Attempts to write an element (non success = ring full).
// Safe to call from multiple producers.
func (ring *Ring[T]) Offer(value T) (success bool) {
	ring.Metrics.OfferAttempts.Add(1)

	var pos, seq uint64
	var cell *cell[T]

	for {
		pos = ring.tail.Load()
		cell = &ring.buf[pos&ring.mask]
		seq = cell.seq.Load()

		if seq == pos {
			if ring.tail.CompareAndSwap(pos, pos+1) {
				break
			}
			ring.Metrics.OfferCASRetries.Add(1)
		} else if seq < pos {
			ring.Metrics.OfferFull.Add(1)
			success = false // ring full
			return
		} else {
			runtime.Gosched() // another producer mid-write, yield then retry
		}
	}

	cell.data = value
	cell.seq.Store(pos + 1)

	ring.Metrics.Offers.Add(1)
	ring.Metrics.Depth.Add(1)
	success = true
	return
}

// Attempts to read an element without blocking. Single consumer only.
func (ring *Ring[T]) Poll() (out T, success bool) {
	out, success = ring.Peek()
	if success {
		ring.Commit()
	}
	return
}

// Reads the next element without consuming it. A later Commit consumes it;
// skipping Commit leaves it in place for redelivery. Single consumer only.
func (ring *Ring[T]) Peek() (out T, success bool) {
	pos := ring.head.Load()
	cell := &ring.buf[pos&ring.mask]

	if cell.seq.Load() != pos+1 {
		ring.Metrics.PollEmpty.Add(1)
		success = false // ring empty
		return
	}

	out = cell.data
	success = true
	return
}

// Consumes the element last returned by Peek
func (ring *Ring[T]) Commit() {
	pos := ring.head.Load()
	cell := &ring.buf[pos&ring.mask]

	var zero T
	cell.data = zero // release the payload before the slot goes back to producers
	cell.seq.Store(pos + ring.mask + 1)
	ring.head.Store(pos + 1)

	ring.Metrics.Polls.Add(1)
	ok := atomics.Subtract(&ring.Metrics.Depth, 1, 4) // max retries set at 4
	if !ok {
		// Metric only, data path is unaffected
		ring.Metrics.Depth.Store(0)
	}
}

// Elements currently buffered
func (ring *Ring[T]) Depth() (depth int) {
	depth = int(ring.Metrics.Depth.Load())
	return
}
