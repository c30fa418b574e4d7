package audiomix

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/altobi/storyboard-exporter/internal/preload"
)

// The ffmpeg fallback decodes every source to the shared mix shape so
// scheduled segments need no further conversion.
const (
	decodeRate     = 48000
	decodeChannels = 2
)

// FetchDecoder fetches a clip source and decodes it to PCM. RIFF/WAV
// sources are decoded in-process; every other container or codec is
// handed to ffmpeg.
type FetchDecoder struct {
	fetch      preload.Fetcher
	ffmpegPath string
}

// NewFetchDecoder builds a decoder; a nil fetcher defaults to the
// network/file SourceFetcher, an empty path to "ffmpeg" on PATH.
func NewFetchDecoder(fetch preload.Fetcher, ffmpegPath string) *FetchDecoder {
	if fetch == nil {
		fetch = preload.NewSourceFetcher()
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FetchDecoder{fetch: fetch, ffmpegPath: ffmpegPath}
}

func (d *FetchDecoder) Decode(ctx context.Context, url string) (*Buffer, error) {
	data, err := d.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if buf, err := DecodeWAV(data); err == nil {
		return buf, nil
	}

	buf, err := d.decodeFFmpeg(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return buf, nil
}

// decodeFFmpeg converts arbitrary audio to raw float32 PCM at the mix
// rate. The source goes through a temp file because seekable containers
// cannot be demuxed from a pipe.
func (d *FetchDecoder) decodeFFmpeg(ctx context.Context, data []byte) (*Buffer, error) {
	tmp, err := os.CreateTemp("", "storyboard-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create decode scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write decode scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close decode scratch file: %w", err)
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-nostdin",
		"-i", tmp.Name(),
		"-vn",
		"-f", "f32le",
		"-ac", fmt.Sprintf("%d", decodeChannels),
		"-ar", fmt.Sprintf("%d", decodeRate),
		"pipe:1",
	)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w (%s)", err, lastLine(&errOut))
	}

	return pcmBuffer(out.Bytes()), nil
}

// pcmBuffer wraps raw little-endian f32le bytes in a Buffer at the mix
// shape. Trailing partial samples are dropped.
func pcmBuffer(raw []byte) *Buffer {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return &Buffer{
		SampleRate: decodeRate,
		Channels:   decodeChannels,
		Samples:    samples,
	}
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
