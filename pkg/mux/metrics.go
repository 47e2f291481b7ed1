package mux

import "sync/atomic"

// Atomic counters recording multiplexer activity. Safe for the consumer
// thread to write while metric collectors read.
type MetricStorage struct {
	Polls           atomic.Uint64 // poll-family calls made
	FragmentsRead   atomic.Uint64 // fragments delivered across all sources
	BytesConsumed   atomic.Uint64 // bytes delivered by block/raw polls
	SourcesAdded    atomic.Uint64
	SourcesRemoved  atomic.Uint64
	PostCloseAdds   atomic.Uint64 // adds routed straight to reclamation
	MaxSourcesSeen  atomic.Uint64
	ClosedLifetimes atomic.Uint64 // 1 once closed
}
