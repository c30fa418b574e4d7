package audiomix

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// DecodeWAV parses a RIFF/WAVE byte stream into a float32 PCM buffer.
// Supported encodings: 8/16/24-bit integer PCM and 32-bit IEEE float.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		pcm        []byte
		haveFmt    bool
	)

	// Chunk walk; unknown chunks are skipped.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav fmt chunk too short: %d bytes", size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("wav stream missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("wav stream missing data chunk")
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav header: channels=%d rate=%d", channels, sampleRate)
	}

	samples, err := decodeSamples(format, bitDepth, pcm)
	if err != nil {
		return nil, err
	}

	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}

func decodeSamples(format uint16, bitDepth int, pcm []byte) ([]float32, error) {
	switch {
	case format == wavFormatPCM && bitDepth == 16:
		out := make([]float32, len(pcm)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			out[i] = float32(v) / 32768
		}
		return out, nil

	case format == wavFormatPCM && bitDepth == 8:
		out := make([]float32, len(pcm))
		for i, v := range pcm {
			out[i] = (float32(v) - 128) / 128
		}
		return out, nil

	case format == wavFormatPCM && bitDepth == 24:
		out := make([]float32, len(pcm)/3)
		for i := range out {
			b := pcm[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v -= 0x1000000
			}
			out[i] = float32(v) / 8388608
		}
		return out, nil

	case format == wavFormatIEEEFloat && bitDepth == 32:
		out := make([]float32, len(pcm)/4)
		for i := range out {
			bits := binary.LittleEndian.Uint32(pcm[i*4 : i*4+4])
			out[i] = math.Float32frombits(bits)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported wav encoding: format=%d bit_depth=%d", format, bitDepth)
	}
}

// EncodeWAV serializes a buffer as 16-bit PCM RIFF/WAVE, the form the
// encoder's mux pass consumes.
func EncodeWAV(b *Buffer) []byte {
	dataLen := len(b.Samples) * 2
	out := make([]byte, 44+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(b.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(b.SampleRate))
	byteRate := b.SampleRate * b.Channels * 2
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(b.Channels*2))
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))

	for i, s := range b.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[44+i*2:46+i*2], uint16(v))
	}
	return out
}
