// Helper functions that deal with atomic variables and their values
package atomics

import (
	"sync/atomic"
	"time"
)

// Tries to subtract value from the atomic source without going below zero.
// Success if the source is already 0. Retries up to maxRetries times if the
// CAS fails due to contention, with exponential backoff.
func Subtract(source *atomic.Uint64, value uint64, maxRetries int) (success bool) {
	retryInterval := time.Microsecond * 10

	for i := 0; i < maxRetries; i++ {
		current := source.Load()

		if current == 0 {
			success = true
			return
		}

		var newValue uint64
		if value >= current {
			newValue = 0
		} else {
			newValue = current - value
		}

		// CAS only succeeds if the value has not changed since the load above
		if source.CompareAndSwap(current, newValue) {
			success = true
			return
		}

		time.Sleep(retryInterval)
		retryInterval = retryInterval * 2
	}

	success = false // gave up after max attempts
	return
}

// Stores value into the atomic destination only if larger than the current
// value. Used for high-watermark metrics written from multiple goroutines.
func StoreMax(destination *atomic.Uint64, value uint64) {
	for {
		current := destination.Load()
		if value <= current {
			return
		}
		if destination.CompareAndSwap(current, value) {
			return
		}
	}
}
