package audiomix

import (
	"math"
	"testing"
)

func TestDecodeWAV_RoundTrip16Bit(t *testing.T) {
	src := &Buffer{
		SampleRate: 48000,
		Channels:   2,
		Samples:    []float32{0, 0.5, -0.5, 1, -1, 0.25},
	}

	decoded, err := DecodeWAV(EncodeWAV(src))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}

	if decoded.SampleRate != 48000 || decoded.Channels != 2 {
		t.Fatalf("header = rate %d channels %d, want 48000/2", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Samples) != len(src.Samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded.Samples), len(src.Samples))
	}
	for i := range src.Samples {
		if math.Abs(float64(decoded.Samples[i]-src.Samples[i])) > 1.0/32000 {
			t.Fatalf("sample %d = %v, want ~%v", i, decoded.Samples[i], src.Samples[i])
		}
	}
}

func TestDecodeWAV_NotWave(t *testing.T) {
	if _, err := DecodeWAV([]byte("OggS this is not a wav")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestDecodeWAV_MissingData(t *testing.T) {
	src := &Buffer{SampleRate: 8000, Channels: 1, Samples: []float32{0}}
	wav := EncodeWAV(src)
	// Corrupt the data chunk tag so only fmt survives.
	copy(wav[36:40], "junk")

	if _, err := DecodeWAV(wav); err == nil {
		t.Fatal("expected error for missing data chunk")
	}
}

func TestBuffer_Duration(t *testing.T) {
	b := silentBuffer(44100, 2, 2.5)
	if got := b.Duration(); math.Abs(got-2.5) > 1e-4 {
		t.Fatalf("Duration() = %v, want 2.5", got)
	}
	if got := b.FrameCount(); got != int(44100*2.5) {
		t.Fatalf("FrameCount() = %d, want %d", got, int(44100*2.5))
	}
}
