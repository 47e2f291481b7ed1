package image

import (
	"sync/atomic"

	"streammux/internal/ringbuf"
	"streammux/pkg/mux"
)

// One fragment in flight between a publisher session and the consumer
type Frame struct {
	Flags   mux.Flags
	Payload []byte
}

// In-memory inbound stream from one publisher session, backed by a
// lock-free fragment ring. Implements mux.Source.
type Image struct {
	sessionID     int32
	streamID      int32
	correlationID int64
	ring          *ringbuf.Ring[Frame]
	position      atomic.Int64 // stream position in bytes, consumer side
	resource      *ringResource
}

// Teardown token for an image. Disposal drains the ring so buffered
// fragments do not pin their payloads.
type ringResource struct {
	ring     *ringbuf.Ring[Frame]
	disposed atomic.Bool
}
