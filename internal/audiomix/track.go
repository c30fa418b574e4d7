package audiomix

// Track is the shared mix destination all scheduled sources feed. It is a
// fixed-length PCM canvas covering the export duration; Schedule mixes
// segments additively at sample positions derived from the shared clock.
type Track struct {
	rate     int
	channels int
	samples  []float32
}

// NewTrack allocates a silent track of the given length.
func NewTrack(rate, channels int, duration float64) *Track {
	frames := int(duration * float64(rate))
	return &Track{
		rate:     rate,
		channels: channels,
		samples:  make([]float32, frames*channels),
	}
}

// Schedule mixes a source buffer into the track starting at startAt
// seconds, reading the source from sourceOffset for duration seconds.
// Sources at a different sample rate are linearly resampled; segments
// running past the track end are truncated.
func (t *Track) Schedule(startAt float64, buf *Buffer, sourceOffset, duration float64) error {
	if buf == nil || buf.SampleRate <= 0 || duration <= 0 {
		return nil
	}

	startFrame := int(startAt * float64(t.rate))
	frames := int(duration * float64(t.rate))
	trackFrames := len(t.samples) / t.channels

	for i := 0; i < frames; i++ {
		dst := startFrame + i
		if dst < 0 {
			continue
		}
		if dst >= trackFrames {
			break
		}

		srcPos := (sourceOffset + float64(i)/float64(t.rate)) * float64(buf.SampleRate)
		srcFrame := int(srcPos)
		frac := float32(srcPos - float64(srcFrame))

		for ch := 0; ch < t.channels; ch++ {
			a := buf.FrameAt(srcFrame, ch)
			b := buf.FrameAt(srcFrame+1, ch)
			t.samples[dst*t.channels+ch] += a + (b-a)*frac
		}
	}
	return nil
}

// Buffer returns the mixed track as a PCM buffer. Samples are clamped to
// [-1, 1] on encode, not here.
func (t *Track) Buffer() *Buffer {
	return &Buffer{
		SampleRate: t.rate,
		Channels:   t.channels,
		Samples:    t.samples,
	}
}
