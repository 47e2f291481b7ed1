package mux

import "testing"

func BenchmarkMultiplexer_PollSingleSource(b *testing.B) {
	coordinator := &fakeCoordinator{}
	multiplexer := NewMultiplexer(coordinator, "mem:bench", 1, 1)
	multiplexer.AddSource(unlimitedSource(1, 101))

	handler := func([]byte, FragmentHeader) {}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		multiplexer.Poll(handler, 10)
	}
}

func BenchmarkMultiplexer_PollEightSources(b *testing.B) {
	coordinator := &fakeCoordinator{}
	multiplexer := NewMultiplexer(coordinator, "mem:bench", 1, 1)
	for i := int32(1); i <= 8; i++ {
		multiplexer.AddSource(unlimitedSource(i, int64(100+i)))
	}

	handler := func([]byte, FragmentHeader) {}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		multiplexer.Poll(handler, 10)
	}
}

func BenchmarkMultiplexer_PollEmpty(b *testing.B) {
	coordinator := &fakeCoordinator{}
	multiplexer := NewMultiplexer(coordinator, "mem:bench", 1, 1)

	handler := func([]byte, FragmentHeader) {}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		multiplexer.Poll(handler, 10)
	}
}
