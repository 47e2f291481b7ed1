package mux

import (
	"math"
	"sync"
)

// fakeSource is a scriptable source for multiplexer tests. Fragment payloads
// are single bytes; what matters here is counting and ordering, not content.
type fakeSource struct {
	sessionID     int32
	correlationID int64

	available int // fragments ready for delivery
	pollCalls int
	lastLimit int

	blockBytes     int64 // bytes handed out per block/raw poll call
	lastBlockLimit int

	resource *fakeResource
}

type fakeResource struct {
	disposed bool
}

func (resource *fakeResource) Dispose() {
	resource.disposed = true
}

func newFakeSource(sessionID int32, correlationID int64, available int) (source *fakeSource) {
	source = &fakeSource{
		sessionID:     sessionID,
		correlationID: correlationID,
		available:     available,
		resource:      &fakeResource{},
	}
	return
}

func unlimitedSource(sessionID int32, correlationID int64) (source *fakeSource) {
	source = newFakeSource(sessionID, correlationID, math.MaxInt)
	return
}

func (source *fakeSource) Poll(handler FragmentHandler, fragmentLimit int) (fragmentsRead int) {
	source.pollCalls++
	source.lastLimit = fragmentLimit

	for fragmentsRead < fragmentLimit && source.available > 0 {
		handler([]byte{0}, FragmentHeader{SessionID: source.sessionID, Flags: FlagUnfragmented})
		source.available--
		fragmentsRead++
	}
	return
}

func (source *fakeSource) ControlledPoll(handler ControlledFragmentHandler, fragmentLimit int) (fragmentsRead int) {
	source.pollCalls++
	source.lastLimit = fragmentLimit

	for fragmentsRead < fragmentLimit && source.available > 0 {
		action := handler([]byte{0}, FragmentHeader{SessionID: source.sessionID, Flags: FlagUnfragmented})
		if action == ActionAbort {
			return
		}

		source.available--
		fragmentsRead++

		if action == ActionBreak {
			return
		}
	}
	return
}

func (source *fakeSource) BlockPoll(handler BlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	source.pollCalls++
	source.lastBlockLimit = blockLengthLimit

	bytesConsumed = source.blockBytes
	if bytesConsumed > int64(blockLengthLimit) {
		bytesConsumed = int64(blockLengthLimit)
	}
	if bytesConsumed > 0 {
		handler(make([]byte, bytesConsumed), source.sessionID)
	}
	return
}

func (source *fakeSource) RawPoll(handler RawBlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	source.pollCalls++
	source.lastBlockLimit = blockLengthLimit

	bytesConsumed = source.blockBytes
	if bytesConsumed > int64(blockLengthLimit) {
		bytesConsumed = int64(blockLengthLimit)
	}
	if bytesConsumed > 0 {
		handler(make([]byte, bytesConsumed), source.sessionID)
	}
	return
}

func (source *fakeSource) SessionID() (sessionID int32) {
	sessionID = source.sessionID
	return
}

func (source *fakeSource) CorrelationID() (correlationID int64) {
	correlationID = source.correlationID
	return
}

func (source *fakeSource) Resource() (resource Disposable) {
	resource = source.resource
	return
}

// fakeCoordinator records control-plane interactions
type fakeCoordinator struct {
	lock        sync.Mutex
	released    []*Multiplexer
	unavailable []Source
	reclaimed   []Disposable
}

func (coordinator *fakeCoordinator) MainLock() (lock *sync.Mutex) {
	lock = &coordinator.lock
	return
}

func (coordinator *fakeCoordinator) ReleaseMultiplexer(multiplexer *Multiplexer) {
	coordinator.released = append(coordinator.released, multiplexer)
}

func (coordinator *fakeCoordinator) NotifySourceUnavailable(source Source) {
	coordinator.unavailable = append(coordinator.unavailable, source)
}

func (coordinator *fakeCoordinator) DeferReclaim(resource Disposable) {
	coordinator.reclaimed = append(coordinator.reclaimed, resource)
}
