package mux

// Flags describe how a fragment relates to the message it was sliced from.
type Flags uint8

const (
	FlagBegin Flags = 0x80 // first fragment of a fragmented message
	FlagEnd   Flags = 0x40 // last fragment of a fragmented message

	// Whole message carried in a single fragment
	FlagUnfragmented Flags = FlagBegin | FlagEnd
)

// Per-fragment delivery metadata handed to fragment handlers
type FragmentHeader struct {
	SessionID int32
	StreamID  int32
	Flags     Flags
	Position  int64 // source stream position after this fragment
}

// Callback for handling each message fragment as it is read
type FragmentHandler func(data []byte, header FragmentHeader)

// Action returned by a controlled fragment handler to steer the poll
type ControlledAction int

const (
	// Continue processing the current source
	ActionContinue ControlledAction = iota
	// Stop processing this source for the rest of the call, move to the next
	// source in the round
	ActionBreak
	// Stop processing this source immediately, leaving the current fragment
	// unconsumed. Subsequent sources in the same call are still scanned.
	ActionAbort
)

// Callback for handling each message fragment with flow control
type ControlledFragmentHandler func(data []byte, header FragmentHeader) ControlledAction

// Callback receiving a block of message payload bytes from one source
type BlockHandler func(block []byte, sessionID int32)

// Callback receiving a block of framed bytes (headers included) from one source
type RawBlockHandler func(frames []byte, sessionID int32)
