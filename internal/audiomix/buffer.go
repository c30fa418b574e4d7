package audiomix

// Buffer is a decoded PCM sample buffer: interleaved float32 samples in
// [-1, 1] at a fixed rate and channel count.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// FrameCount returns the number of sample frames (one per channel set).
func (b *Buffer) FrameCount() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// FrameAt returns the sample frame at position i with linear
// interpolation handled by the caller; out-of-range reads yield silence.
func (b *Buffer) FrameAt(i int, ch int) float32 {
	if i < 0 || i >= b.FrameCount() {
		return 0
	}
	if ch >= b.Channels {
		// Mono upmix: reuse the last available channel.
		ch = b.Channels - 1
	}
	return b.Samples[i*b.Channels+ch]
}
