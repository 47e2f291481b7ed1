package atomics

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitUntilZero_AlreadyZero(t *testing.T) {
	var value atomic.Uint64

	reachedZero, lastValue := WaitUntilZero(&value, 2*time.Second)
	if !reachedZero {
		t.Fatalf("expected to reach zero immediately, last value %d", lastValue)
	}
}

func TestWaitUntilZero_Timeout(t *testing.T) {
	var value atomic.Uint64
	value.Store(7)

	reachedZero, lastValue := WaitUntilZero(&value, 150*time.Millisecond)
	if reachedZero {
		t.Fatalf("expected timeout, value never decremented")
	}
	if lastValue != 7 {
		t.Errorf("last observed value = %d, want 7", lastValue)
	}
}

func TestWaitUntilZero_DrainsLate(t *testing.T) {
	var value atomic.Uint64
	value.Store(3)

	go func() {
		time.Sleep(100 * time.Millisecond)
		value.Store(0)
	}()

	reachedZero, _ := WaitUntilZero(&value, 5*time.Second)
	if !reachedZero {
		t.Fatalf("expected value to drain to zero")
	}
}
