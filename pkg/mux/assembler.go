package mux

import "bytes"

// Assembler reassembles fragmented messages before delivery so the wrapped
// handler only ever sees whole messages. Fragments of a message arrive
// ordered within a session; sessions interleave freely, so one reassembly
// buffer is kept per session.
//
// Unfragmented messages pass straight through without copying.
type Assembler struct {
	delegate FragmentHandler
	buffers  map[int32]*bytes.Buffer
}

// Assembler constructor wrapping the whole-message handler
func NewAssembler(delegate FragmentHandler) (new *Assembler) {
	new = &Assembler{
		delegate: delegate,
		buffers:  make(map[int32]*bytes.Buffer),
	}
	return
}

// OnFragment is the FragmentHandler to hand to Multiplexer.Poll
func (assembler *Assembler) OnFragment(data []byte, header FragmentHeader) {
	if header.Flags&FlagUnfragmented == FlagUnfragmented {
		assembler.delegate(data, header)
		return
	}

	buffer := assembler.sessionBuffer(header.SessionID)

	if header.Flags&FlagBegin != 0 {
		buffer.Reset()
	}
	buffer.Write(data)

	if header.Flags&FlagEnd != 0 {
		whole := header
		whole.Flags = FlagUnfragmented
		assembler.delegate(buffer.Bytes(), whole)
		buffer.Reset()
	}
}

// Releases the reassembly buffer held for a session. Call when the session's
// source becomes unavailable, any partial message is discarded.
func (assembler *Assembler) FreeSession(sessionID int32) {
	delete(assembler.buffers, sessionID)
}

func (assembler *Assembler) sessionBuffer(sessionID int32) (buffer *bytes.Buffer) {
	buffer, ok := assembler.buffers[sessionID]
	if !ok {
		buffer = &bytes.Buffer{}
		assembler.buffers[sessionID] = buffer
	}
	return
}

// ControlledAssembler is the Assembler equivalent for controlled polling.
// Buffered begin/middle fragments answer ActionContinue; the wrapped
// handler's action is surfaced only when a whole message is deliverable.
type ControlledAssembler struct {
	delegate ControlledFragmentHandler
	buffers  map[int32]*bytes.Buffer
}

// ControlledAssembler constructor wrapping the whole-message handler
func NewControlledAssembler(delegate ControlledFragmentHandler) (new *ControlledAssembler) {
	new = &ControlledAssembler{
		delegate: delegate,
		buffers:  make(map[int32]*bytes.Buffer),
	}
	return
}

// OnFragment is the ControlledFragmentHandler to hand to ControlledPoll
func (assembler *ControlledAssembler) OnFragment(data []byte, header FragmentHeader) (action ControlledAction) {
	if header.Flags&FlagUnfragmented == FlagUnfragmented {
		action = assembler.delegate(data, header)
		return
	}

	buffer, ok := assembler.buffers[header.SessionID]
	if !ok {
		buffer = &bytes.Buffer{}
		assembler.buffers[header.SessionID] = buffer
	}

	if header.Flags&FlagBegin != 0 {
		buffer.Reset()
	}

	priorLength := buffer.Len()
	buffer.Write(data)
	action = ActionContinue

	if header.Flags&FlagEnd != 0 {
		whole := header
		whole.Flags = FlagUnfragmented
		action = assembler.delegate(buffer.Bytes(), whole)

		if action == ActionAbort {
			// The end fragment stays unconsumed at the source and will be
			// redelivered, so drop it from the buffer to avoid doubling.
			buffer.Truncate(priorLength)
		} else {
			buffer.Reset()
		}
	}
	return
}

// Releases the reassembly buffer held for a session
func (assembler *ControlledAssembler) FreeSession(sessionID int32) {
	delete(assembler.buffers, sessionID)
}
