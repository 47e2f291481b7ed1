package ringbuf

import (
	"runtime"
	"testing"
)

func BenchmarkRing_OfferPoll(b *testing.B) {
	ring, err := New[int]([]string{"bench"}, 1024)
	if err != nil {
		b.Fatalf("expected no error in creating ring, but got '%v'", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for !ring.Offer(i) {
			runtime.Gosched()
		}
		if _, ok := ring.Poll(); !ok {
			b.Fatalf("poll failed after successful offer")
		}
	}
}

func BenchmarkRing_ContendedOffer(b *testing.B) {
	ring, err := New[int]([]string{"bench"}, 4096)
	if err != nil {
		b.Fatalf("expected no error in creating ring, but got '%v'", err)
	}

	done := make(chan struct{})
	go func() {
		// Drain continuously so producers rarely see a full ring
		for {
			select {
			case <-done:
				return
			default:
				if _, ok := ring.Poll(); !ok {
					runtime.Gosched()
				}
			}
		}
	}()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for !ring.Offer(1) {
				runtime.Gosched()
			}
		}
	})
	close(done)
}
