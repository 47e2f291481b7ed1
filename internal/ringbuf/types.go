package ringbuf

import "sync/atomic"

type cell[T any] struct {
	seq  atomic.Uint64
	data T
}

// Lock-free ring buffer with power-of-two capacity. Writes are safe from
// multiple producers; the read side (Poll/Peek/Commit) belongs to exactly
// one consumer at a time.
type Ring[T any] struct {
	Namespace []string
	Size      int
	mask      uint64
	buf       []cell[T]
	head      atomic.Uint64 // consumer position
	tail      atomic.Uint64 // producer position
	Metrics   *MetricStorage
}
