// In-memory source implementation. Stands in for a network transport and
// exercises the full poll surface of the multiplexer.
package image

import (
	"context"
	"encoding/binary"
	"runtime"
	"time"

	"streammux/internal/ringbuf"
	"streammux/pkg/mux"
)

// Per-frame overhead counted by RawPoll: 4 byte payload length, 1 byte
// flags, 3 bytes reserved
const FrameHeaderLength = 8

var _ mux.Source = (*Image)(nil)

// Image constructor. capacity is the fragment ring size, power of two.
func New(namespace []string, sessionID, streamID int32, correlationID int64, capacity uint64) (new *Image, err error) {
	ring, err := ringbuf.New[Frame](namespace, capacity)
	if err != nil {
		return
	}

	new = &Image{
		sessionID:     sessionID,
		streamID:      streamID,
		correlationID: correlationID,
		ring:          ring,
		resource:      &ringResource{ring: ring},
	}
	return
}

func (image *Image) SessionID() (sessionID int32) {
	sessionID = image.sessionID
	return
}

func (image *Image) CorrelationID() (correlationID int64) {
	correlationID = image.correlationID
	return
}

func (image *Image) Resource() (resource mux.Disposable) {
	resource = image.resource
	return
}

// Stream position in consumed bytes, framing overhead included
func (image *Image) Position() (position int64) {
	position = image.position.Load()
	return
}

// Fragments currently buffered and not yet polled
func (image *Image) Buffered() (depth int) {
	depth = image.ring.Depth()
	return
}

// Ring metrics for exposition
func (image *Image) RingMetrics() (metrics *ringbuf.MetricStorage) {
	metrics = image.ring.Metrics
	return
}

// Publisher side: offers one pre-sliced fragment. Non success = ring full.
func (image *Image) Offer(frame Frame) (success bool) {
	success = image.ring.Offer(frame)
	if success {
		image.ring.Metrics.Bytes.Add(uint64(len(frame.Payload)))
	}
	return
}

// Publisher side: slices a whole message into fragments no larger than
// maxFragmentLength and offers them in order, spinning while the ring is
// full. Returns early with the context error on cancellation.
func (image *Image) OfferMessage(ctx context.Context, message []byte, maxFragmentLength int) (err error) {
	if maxFragmentLength <= 0 {
		maxFragmentLength = len(message)
	}

	remaining := message
	first := true

	for len(remaining) > 0 || first {
		sliceLength := len(remaining)
		if sliceLength > maxFragmentLength {
			sliceLength = maxFragmentLength
		}

		var flags mux.Flags
		if first {
			flags |= mux.FlagBegin
		}
		if sliceLength == len(remaining) {
			flags |= mux.FlagEnd
		}

		frame := Frame{Flags: flags, Payload: remaining[:sliceLength]}
		for !image.Offer(frame) {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				return
			default:
			}
			runtime.Gosched()
			time.Sleep(10 * time.Microsecond)
		}

		remaining = remaining[sliceLength:]
		first = false
	}
	return
}

// Delivers up to fragmentLimit buffered fragments to the handler
func (image *Image) Poll(handler mux.FragmentHandler, fragmentLimit int) (fragmentsRead int) {
	for fragmentsRead < fragmentLimit {
		frame, ok := image.ring.Peek()
		if !ok {
			return
		}

		handler(frame.Payload, image.header(frame))
		image.consume(frame)
		fragmentsRead++
	}
	return
}

// Delivers buffered fragments with handler steering.
// ActionBreak consumes the current fragment then stops; ActionAbort stops
// with the current fragment left in place for redelivery.
func (image *Image) ControlledPoll(handler mux.ControlledFragmentHandler, fragmentLimit int) (fragmentsRead int) {
	for fragmentsRead < fragmentLimit {
		frame, ok := image.ring.Peek()
		if !ok {
			return
		}

		action := handler(frame.Payload, image.header(frame))
		if action == mux.ActionAbort {
			return
		}

		image.consume(frame)
		fragmentsRead++

		if action == mux.ActionBreak {
			return
		}
	}
	return
}

// Delivers up to blockLengthLimit bytes of whole-fragment payload as one
// contiguous block
func (image *Image) BlockPoll(handler mux.BlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	var block []byte

	for {
		frame, ok := image.ring.Peek()
		if !ok {
			break
		}
		if int64(len(frame.Payload))+bytesConsumed > int64(blockLengthLimit) {
			break
		}

		block = append(block, frame.Payload...)
		bytesConsumed += int64(len(frame.Payload))
		image.consume(frame)
	}

	if bytesConsumed > 0 {
		handler(block, image.sessionID)
	}
	return
}

// Delivers up to blockLengthLimit bytes of framed fragments, headers
// included, as one contiguous block
func (image *Image) RawPoll(handler mux.RawBlockHandler, blockLengthLimit int) (bytesConsumed int64) {
	var frames []byte

	for {
		frame, ok := image.ring.Peek()
		if !ok {
			break
		}
		framedLength := int64(FrameHeaderLength + len(frame.Payload))
		if framedLength+bytesConsumed > int64(blockLengthLimit) {
			break
		}

		var header [FrameHeaderLength]byte
		binary.BigEndian.PutUint32(header[0:4], uint32(len(frame.Payload)))
		header[4] = byte(frame.Flags)

		frames = append(frames, header[:]...)
		frames = append(frames, frame.Payload...)
		bytesConsumed += framedLength
		image.consume(frame)
	}

	if bytesConsumed > 0 {
		handler(frames, image.sessionID)
	}
	return
}

func (image *Image) header(frame Frame) (header mux.FragmentHeader) {
	header = mux.FragmentHeader{
		SessionID: image.sessionID,
		StreamID:  image.streamID,
		Flags:     frame.Flags,
		Position:  image.position.Load() + int64(FrameHeaderLength+len(frame.Payload)),
	}
	return
}

func (image *Image) consume(frame Frame) {
	image.ring.Commit()
	image.position.Add(int64(FrameHeaderLength + len(frame.Payload)))
	ringMetricsSubtract(image.ring, uint64(len(frame.Payload)))
}
