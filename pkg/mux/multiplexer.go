// Subscription-side message multiplexer. Aggregates a dynamically-changing
// set of inbound stream sources behind one fair polling surface.
//
// Exactly one consumer goroutine may drive the poll family at a time. The
// control path (add/remove/close) runs on the Coordinator's goroutine in
// parallel with the consumer; the two meet only through an atomically
// published immutable source set, never through shared mutable state.
package mux

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"streammux/internal/atomics"
)

type Multiplexer struct {
	channel        string
	streamID       int32
	registrationID int64
	coordinator    Coordinator

	// Current source set, replaced wholesale on every structural change.
	// Readers take one snapshot per operation and treat it as immutable.
	sources atomic.Pointer[sourceSet]

	Metrics *MetricStorage

	// Hot consumer-side fields isolated from their neighbors so control-path
	// writes cannot false-share a cache line with the poll path.
	_      cpu.CacheLinePad
	cursor int // round-robin start index, consumer goroutine only
	_      cpu.CacheLinePad
	closed atomic.Bool // monotonic, never reverts to false
	_      cpu.CacheLinePad
}

// Multiplexer constructor. Called by the Coordinator at subscription
// registration time.
func NewMultiplexer(coordinator Coordinator, channel string, streamID int32, registrationID int64) (new *Multiplexer) {
	new = &Multiplexer{
		channel:        channel,
		streamID:       streamID,
		registrationID: registrationID,
		coordinator:    coordinator,
		Metrics:        &MetricStorage{},
	}
	new.sources.Store(&emptySourceSet)
	return
}

// Media address for delivery to the channel
func (multiplexer *Multiplexer) Channel() (channel string) {
	channel = multiplexer.channel
	return
}

// Stream identity for scoping within the channel media address
func (multiplexer *Multiplexer) StreamID() (streamID int32) {
	streamID = multiplexer.streamID
	return
}

// Identifier correlating this multiplexer to its registration with the
// Coordinator
func (multiplexer *Multiplexer) RegistrationID() (registrationID int64) {
	registrationID = multiplexer.registrationID
	return
}

// Polls the sources for available message fragments, fairly.
//
// fragmentLimit caps the fragments delivered across the whole call. The
// starting source rotates by exactly one position per call regardless of how
// many fragments were delivered, so a noisy source cannot monopolize the
// consumer across calls.
func (multiplexer *Multiplexer) Poll(handler FragmentHandler, fragmentLimit int) (fragmentsRead int) {
	sources := *multiplexer.sources.Load()
	length := len(sources)

	multiplexer.Metrics.Polls.Add(1)

	start := multiplexer.cursor
	multiplexer.cursor++
	if start >= length {
		multiplexer.cursor = 0
		start = 0
	}

	for i := start; i < length && fragmentsRead < fragmentLimit; i++ {
		fragmentsRead += sources[i].Poll(handler, fragmentLimit-fragmentsRead)
	}
	for i := 0; i < start && fragmentsRead < fragmentLimit; i++ {
		fragmentsRead += sources[i].Poll(handler, fragmentLimit-fragmentsRead)
	}

	multiplexer.Metrics.FragmentsRead.Add(uint64(fragmentsRead))
	return
}

// Polls the sources for available message fragments in a controlled manner.
//
// Same traversal and fairness as Poll. Steering applies to fragments within
// one source: a handler returning ActionBreak or ActionAbort stops that
// source only, subsequent sources in the same call are still scanned so
// backpressure signaled on one source does not stall the others.
func (multiplexer *Multiplexer) ControlledPoll(handler ControlledFragmentHandler, fragmentLimit int) (fragmentsRead int) {
	sources := *multiplexer.sources.Load()
	length := len(sources)

	multiplexer.Metrics.Polls.Add(1)

	start := multiplexer.cursor
	multiplexer.cursor++
	if start >= length {
		multiplexer.cursor = 0
		start = 0
	}

	for i := start; i < length && fragmentsRead < fragmentLimit; i++ {
		fragmentsRead += sources[i].ControlledPoll(handler, fragmentLimit-fragmentsRead)
	}
	for i := 0; i < start && fragmentsRead < fragmentLimit; i++ {
		fragmentsRead += sources[i].ControlledPoll(handler, fragmentLimit-fragmentsRead)
	}

	multiplexer.Metrics.FragmentsRead.Add(uint64(fragmentsRead))
	return
}

// Polls the sources for available message payload in blocks.
//
// blockLengthLimit is a per-source byte budget applied independently to every
// source. Sources are visited in natural order with no rotation; this mode
// serves bulk consumers, not fairness-sensitive ones.
func (multiplexer *Multiplexer) BlockPoll(handler BlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	sources := *multiplexer.sources.Load()

	multiplexer.Metrics.Polls.Add(1)

	for _, source := range sources {
		bytesConsumed += source.BlockPoll(handler, blockLengthLimit)
	}

	multiplexer.Metrics.BytesConsumed.Add(uint64(bytesConsumed))
	return
}

// Polls the sources for available framed data in blocks, headers included.
// Useful for archiving a stream to file. Budget semantics match BlockPoll.
func (multiplexer *Multiplexer) RawPoll(handler RawBlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	sources := *multiplexer.sources.Load()

	multiplexer.Metrics.Polls.Add(1)

	for _, source := range sources {
		bytesConsumed += source.RawPoll(handler, blockLengthLimit)
	}

	multiplexer.Metrics.BytesConsumed.Add(uint64(bytesConsumed))
	return
}

// Count of sources currently attached
func (multiplexer *Multiplexer) SourceCount() (count int) {
	count = len(*multiplexer.sources.Load())
	return
}

// First source carrying the given session id, or nil
func (multiplexer *Multiplexer) SourceBySessionID(sessionID int32) (source Source) {
	source = multiplexer.sources.Load().bySessionID(sessionID)
	return
}

// Whether a source with the given correlation id is attached
func (multiplexer *Multiplexer) HasSource(correlationID int64) (present bool) {
	present = multiplexer.sources.Load().contains(correlationID)
	return
}

// Whether no sources are attached
func (multiplexer *Multiplexer) IsEmpty() (empty bool) {
	empty = len(*multiplexer.sources.Load()) == 0
	return
}

// Snapshot copy of the currently attached sources
func (multiplexer *Multiplexer) Sources() (sources []Source) {
	snapshot := *multiplexer.sources.Load()
	sources = make([]Source, len(snapshot))
	copy(sources, snapshot)
	return
}

// Visits each source in one snapshot. The snapshot is taken once at call
// start; mutations during iteration are not observed.
func (multiplexer *Multiplexer) ForEachSource(visit func(source Source)) {
	for _, source := range *multiplexer.sources.Load() {
		visit(source)
	}
}

// Attaches a source. Control path only; concurrent AddSource calls must be
// serialized by the Coordinator. An add arriving after close routes the
// source's resource straight to deferred reclamation so a live source never
// leaks into a subscription that can no longer poll it.
func (multiplexer *Multiplexer) AddSource(source Source) {
	if multiplexer.closed.Load() {
		multiplexer.Metrics.PostCloseAdds.Add(1)
		multiplexer.coordinator.DeferReclaim(source.Resource())
		return
	}

	newSet := multiplexer.sources.Load().add(source)
	multiplexer.sources.Store(&newSet)

	multiplexer.Metrics.SourcesAdded.Add(1)
	atomics.StoreMax(&multiplexer.Metrics.MaxSourcesSeen, uint64(len(newSet)))
}

// Detaches the source matching correlationID and hands its resource to
// deferred reclamation. Control path only. Removing a nonexistent id is a
// no-op, not an error.
func (multiplexer *Multiplexer) RemoveSource(correlationID int64) (removed Source) {
	newSet, removed := multiplexer.sources.Load().remove(correlationID)
	if removed == nil {
		return
	}

	multiplexer.sources.Store(&newSet)
	multiplexer.coordinator.DeferReclaim(removed.Resource())
	multiplexer.Metrics.SourcesRemoved.Add(1)
	return
}

// Closes the multiplexer so attached sources can be released. Idempotent.
//
// Serialized against concurrent add/remove through the Coordinator's main
// lock. Poll never takes this lock: the empty set is published before the
// closed flag so any consumer observing closed also observes emptiness.
func (multiplexer *Multiplexer) Close() {
	lock := multiplexer.coordinator.MainLock()
	lock.Lock()
	defer lock.Unlock()

	if multiplexer.closed.Load() {
		return
	}

	detached := *multiplexer.sources.Load()
	multiplexer.sources.Store(&emptySourceSet)
	multiplexer.closed.Store(true)
	multiplexer.Metrics.ClosedLifetimes.Store(1)

	multiplexer.coordinator.ReleaseMultiplexer(multiplexer)

	for _, source := range detached {
		multiplexer.coordinator.NotifySourceUnavailable(source)
		multiplexer.coordinator.DeferReclaim(source.Resource())
	}
}

// Whether Close has run. Once true the multiplexer is permanently empty and
// every consumer-facing operation degrades to a zero result.
func (multiplexer *Multiplexer) IsClosed() (closed bool) {
	closed = multiplexer.closed.Load()
	return
}
