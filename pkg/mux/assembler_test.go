package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragmentHeader(sessionID int32, flags Flags) (header FragmentHeader) {
	header = FragmentHeader{SessionID: sessionID, StreamID: 1, Flags: flags}
	return
}

func TestAssembler_UnfragmentedPassthrough(t *testing.T) {
	var messages []string
	assembler := NewAssembler(func(data []byte, _ FragmentHeader) {
		messages = append(messages, string(data))
	})

	assembler.OnFragment([]byte("whole"), fragmentHeader(1, FlagUnfragmented))
	assert.Equal(t, []string{"whole"}, messages)
}

func TestAssembler_ReassemblesInOrder(t *testing.T) {
	var messages []string
	var flags []Flags
	assembler := NewAssembler(func(data []byte, header FragmentHeader) {
		messages = append(messages, string(data))
		flags = append(flags, header.Flags)
	})

	assembler.OnFragment([]byte("abc"), fragmentHeader(1, FlagBegin))
	assert.Empty(t, messages, "nothing delivered before the end fragment")
	assembler.OnFragment([]byte("def"), fragmentHeader(1, 0))
	assembler.OnFragment([]byte("ghi"), fragmentHeader(1, FlagEnd))

	require.Equal(t, []string{"abcdefghi"}, messages)
	assert.Equal(t, []Flags{FlagUnfragmented}, flags, "assembled delivery is marked whole")
}

func TestAssembler_SessionsIsolated(t *testing.T) {
	var messages []string
	assembler := NewAssembler(func(data []byte, header FragmentHeader) {
		messages = append(messages, string(data))
	})

	// Two sessions interleave their fragments
	assembler.OnFragment([]byte("A1"), fragmentHeader(1, FlagBegin))
	assembler.OnFragment([]byte("B1"), fragmentHeader(2, FlagBegin))
	assembler.OnFragment([]byte("A2"), fragmentHeader(1, FlagEnd))
	assembler.OnFragment([]byte("B2"), fragmentHeader(2, FlagEnd))

	assert.Equal(t, []string{"A1A2", "B1B2"}, messages)
}

func TestAssembler_BeginRestartsPartial(t *testing.T) {
	var messages []string
	assembler := NewAssembler(func(data []byte, _ FragmentHeader) {
		messages = append(messages, string(data))
	})

	// A new begin fragment abandons the unfinished message
	assembler.OnFragment([]byte("stale"), fragmentHeader(1, FlagBegin))
	assembler.OnFragment([]byte("fresh"), fragmentHeader(1, FlagBegin))
	assembler.OnFragment([]byte("-end"), fragmentHeader(1, FlagEnd))

	assert.Equal(t, []string{"fresh-end"}, messages)
}

func TestAssembler_FreeSessionDiscardsPartial(t *testing.T) {
	var messages []string
	assembler := NewAssembler(func(data []byte, _ FragmentHeader) {
		messages = append(messages, string(data))
	})

	assembler.OnFragment([]byte("partial"), fragmentHeader(1, FlagBegin))
	assembler.FreeSession(1)

	// Without the begin fragment context the next end stands alone
	assembler.OnFragment([]byte("next"), fragmentHeader(1, FlagBegin))
	assembler.OnFragment([]byte(""), fragmentHeader(1, FlagEnd))
	assert.Equal(t, []string{"next"}, messages)
}

func TestControlledAssembler_SurfacesDelegateAction(t *testing.T) {
	assembler := NewControlledAssembler(func([]byte, FragmentHeader) ControlledAction {
		return ActionBreak
	})

	action := assembler.OnFragment([]byte("begin"), fragmentHeader(1, FlagBegin))
	assert.Equal(t, ActionContinue, action, "buffered fragments always continue")

	action = assembler.OnFragment([]byte("end"), fragmentHeader(1, FlagEnd))
	assert.Equal(t, ActionBreak, action, "delegate action surfaces on whole delivery")
}

func TestControlledAssembler_AbortKeepsPartialForRedelivery(t *testing.T) {
	var delivered []string
	action := ActionAbort
	assembler := NewControlledAssembler(func(data []byte, _ FragmentHeader) ControlledAction {
		delivered = append(delivered, string(data))
		return action
	})

	assembler.OnFragment([]byte("head"), fragmentHeader(1, FlagBegin))
	got := assembler.OnFragment([]byte("tail"), fragmentHeader(1, FlagEnd))
	require.Equal(t, ActionAbort, got)
	require.Equal(t, []string{"headtail"}, delivered)

	// The aborted end fragment is redelivered by the source; accepting it
	// this time must not double the tail
	action = ActionContinue
	got = assembler.OnFragment([]byte("tail"), fragmentHeader(1, FlagEnd))
	assert.Equal(t, ActionContinue, got)
	assert.Equal(t, []string{"headtail", "headtail"}, delivered)
}
