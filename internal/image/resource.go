package image

import (
	"streammux/internal/atomics"
	"streammux/internal/ringbuf"
)

// Dispose drains any fragments still buffered and marks the resource
// reclaimed. Idempotent; invoked by the coordinator's reclamation pass, never
// synchronously from detach.
func (resource *ringResource) Dispose() {
	if !resource.disposed.CompareAndSwap(false, true) {
		return
	}

	for {
		frame, ok := resource.ring.Poll()
		if !ok {
			return
		}
		ringMetricsSubtract(resource.ring, uint64(len(frame.Payload)))
	}
}

// Whether the image's resource has been reclaimed
func (image *Image) IsReclaimed() (reclaimed bool) {
	reclaimed = image.resource.disposed.Load()
	return
}

func ringMetricsSubtract(ring *ringbuf.Ring[Frame], payloadBytes uint64) {
	ok := atomics.Subtract(&ring.Metrics.Bytes, payloadBytes, 4) // max retries set at 4
	if !ok {
		ring.Metrics.Bytes.Store(0)
	}
}
