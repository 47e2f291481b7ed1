package mux

import "sync"

// Disposable is an opaque teardown token. Ownership passes to the
// Coordinator's deferred reclamation when a source is detached, it is never
// disposed synchronously inside the multiplexer.
type Disposable interface {
	Dispose()
}

// Source is one inbound stream from one publisher session. Implementations
// own transport and reassembly; the multiplexer only drives their poll
// surface and routes their resource on detach.
type Source interface {
	// Delivers up to fragmentLimit fragments, returns the count delivered
	Poll(handler FragmentHandler, fragmentLimit int) (fragmentsRead int)

	// Like Poll but the handler steers consumption per fragment
	ControlledPoll(handler ControlledFragmentHandler, fragmentLimit int) (fragmentsRead int)

	// Delivers up to blockLengthLimit bytes of payload as one block
	BlockPoll(handler BlockHandler, blockLengthLimit int) (bytesConsumed int64)

	// Delivers up to blockLengthLimit bytes of framed data as one block
	RawPoll(handler RawBlockHandler, blockLengthLimit int) (bytesConsumed int64)

	// Identity of the publishing session, stable for the source's lifetime
	SessionID() (sessionID int32)

	// Registration-time identity, the sole key for removal
	CorrelationID() (correlationID int64)

	// Teardown token surrendered on detach
	Resource() (resource Disposable)
}

// Coordinator is the control-plane collaborator owning registration,
// locking and deferred reclamation.
type Coordinator interface {
	// Process-wide lock serializing structural mutation against close
	MainLock() (lock *sync.Mutex)

	// Subscription is being released (called once, from Close)
	ReleaseMultiplexer(multiplexer *Multiplexer)

	// A still-attached source became unavailable during Close
	NotifySourceUnavailable(source Source)

	// Hand a detached source's resource to deferred reclamation
	DeferReclaim(resource Disposable)
}
