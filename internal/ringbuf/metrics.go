package ringbuf

import "sync/atomic"

// Counters for ring activity, written lock-free alongside the data path
type MetricStorage struct {
	Offers          atomic.Uint64 // successful writes
	OfferAttempts   atomic.Uint64
	OfferFull       atomic.Uint64 // writes rejected, ring full
	OfferCASRetries atomic.Uint64
	Polls           atomic.Uint64 // successful reads
	PollEmpty       atomic.Uint64 // reads finding nothing
	Depth           atomic.Uint64 // elements currently buffered
	Bytes           atomic.Uint64 // payload bytes currently buffered
}
