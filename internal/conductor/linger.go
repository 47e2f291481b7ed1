package conductor

import (
	"time"

	"streammux/internal/atomics"
	"streammux/pkg/mux"
)

// Accepts ownership of a detached resource. Disposal is deferred for the
// linger timeout so a poll that captured a snapshot before the detach can
// finish with the resource intact.
//
// Called with the main lock held (from close) and without it (from remove),
// so only the linger list's own lock is taken here.
func (conductor *Conductor) DeferReclaim(resource mux.Disposable) {
	entry := lingerEntry{
		deadline: time.Now().Add(conductor.lingerTimeout),
		resource: resource,
	}

	conductor.lingerMu.Lock()
	conductor.lingering = append(conductor.lingering, entry)
	depth := uint64(len(conductor.lingering))
	conductor.lingerMu.Unlock()

	conductor.Metrics.Deferred.Add(1)
	conductor.Metrics.LingerDepth.Store(depth)
	atomics.StoreMax(&conductor.Metrics.MaxLingerDepth, depth)
}

// Resources currently awaiting disposal
func (conductor *Conductor) LingerCount() (count int) {
	conductor.lingerMu.Lock()
	count = len(conductor.lingering)
	conductor.lingerMu.Unlock()
	return
}

// Disposes entries whose deadline has passed. Entries are appended in
// deadline order, so the expired prefix is exactly what to cut.
func (conductor *Conductor) reclaimExpired(now time.Time) (disposed int) {
	conductor.lingerMu.Lock()

	cut := 0
	for cut < len(conductor.lingering) && !conductor.lingering[cut].deadline.After(now) {
		cut++
	}
	expired := conductor.lingering[:cut]
	conductor.lingering = conductor.lingering[cut:]
	depth := uint64(len(conductor.lingering))

	conductor.lingerMu.Unlock()

	// Dispose outside the lock, disposal may drain buffers
	for _, entry := range expired {
		entry.resource.Dispose()
	}

	disposed = len(expired)
	conductor.Metrics.Reclaimed.Add(uint64(disposed))
	conductor.Metrics.LingerDepth.Store(depth)
	return
}

func (conductor *Conductor) drainLinger() {
	conductor.lingerMu.Lock()
	expired := conductor.lingering
	conductor.lingering = nil
	conductor.lingerMu.Unlock()

	for _, entry := range expired {
		entry.resource.Dispose()
	}

	conductor.Metrics.Reclaimed.Add(uint64(len(expired)))
	conductor.Metrics.LingerDepth.Store(0)
}
