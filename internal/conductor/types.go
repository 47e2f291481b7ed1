package conductor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"streammux/pkg/mux"
)

type Config struct {
	// How long a detached resource lingers before disposal. A reclaimed
	// resource must outlive any poll that captured a snapshot referencing
	// it, so this must exceed the longest plausible poll call.
	LingerTimeout time.Duration

	// How often the run loop sweeps the linger list
	ReclaimInterval time.Duration

	// Invoked for every still-attached source when its multiplexer closes
	OnSourceUnavailable func(source mux.Source)
}

// Conductor owns the control plane: registration identity, the process-wide
// main lock serializing structural mutation, and deferred resource
// reclamation. It implements mux.Coordinator.
type Conductor struct {
	clientID        uuid.UUID
	lingerTimeout   time.Duration
	reclaimInterval time.Duration
	onUnavailable   func(source mux.Source)

	// Serializes control-path structural mutation (notably close against
	// add/remove). Never touched by the poll path.
	mainLock sync.Mutex

	nextRegistrationID atomic.Int64
	nextCorrelationID  atomic.Int64

	activeMu sync.Mutex
	active   map[int64]*mux.Multiplexer

	lingerMu  sync.Mutex
	lingering []lingerEntry

	Metrics *MetricStorage
}

type lingerEntry struct {
	deadline time.Time
	resource mux.Disposable
}

// Counters for control-plane activity
type MetricStorage struct {
	Subscriptions  atomic.Uint64
	Releases       atomic.Uint64
	Unavailable    atomic.Uint64
	Deferred       atomic.Uint64 // resources handed to the linger list
	Reclaimed      atomic.Uint64 // resources actually disposed
	LingerDepth    atomic.Uint64 // resources currently lingering
	MaxLingerDepth atomic.Uint64
}
