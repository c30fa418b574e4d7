package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/altobi/storyboard-exporter/internal/audiomix"
	"github.com/altobi/storyboard-exporter/internal/render"
)

const (
	// MixRate is the sample rate of the shared mix destination.
	MixRate = 48000
	// MixChannels is the channel count of the shared mix destination.
	MixChannels = 2
)

// encoderNames maps negotiated codecs to ffmpeg encoder names.
var encoderNames = map[string]string{
	CodecH264Baseline: "libx264",
	CodecH264Main:     "libx264",
	CodecVP9:          "libvpx-vp9",
	CodecVP8:          "libvpx",
}

// h264Profiles maps H.264 codec strings to x264 profile flags.
var h264Profiles = map[string]string{
	CodecH264Baseline: "baseline",
	CodecH264Main:     "main",
}

// SessionConfig describes one ffmpeg-backed encoding session.
type SessionConfig struct {
	FFmpegPath string
	Negotiated Negotiated
	Settings   render.Settings
	Logger     *slog.Logger
}

// FFmpegSession encodes raw RGBA frames piped to an ffmpeg child process
// and muxes the shared audio track in on Stop. It implements the
// scheduler's Session and the mixer's Sink.
type FFmpegSession struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool

	tempDir   string
	videoPath string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    bytes.Buffer
	track     *audiomix.Track
}

// NewFFmpegSession builds a session; encoding begins on Start.
func NewFFmpegSession(cfg SessionConfig) *FFmpegSession {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpegSession{
		cfg:    cfg,
		logger: cfg.Logger,
		track:  audiomix.NewTrack(MixRate, MixChannels, cfg.Settings.Duration()),
	}
}

// Start spawns the video encoder process and begins accepting media.
func (s *FFmpegSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("encoding session already started")
	}

	tempDir, err := os.MkdirTemp("", "storyboard-export-*")
	if err != nil {
		return fmt.Errorf("create encode workspace: %w", err)
	}
	s.tempDir = tempDir
	s.videoPath = filepath.Join(tempDir, "video."+s.cfg.Negotiated.Extension())

	args := buildVideoArgs(s.cfg.Negotiated, s.cfg.Settings, s.videoPath)
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	cmd.Stderr = &s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("open encoder pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("start encoder: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.started = true

	s.logger.Info("encoding session started",
		"container", s.cfg.Negotiated.Container,
		"codec", s.cfg.Negotiated.Codec,
		"bitrate", Bitrate(s.cfg.Settings.Quality, s.cfg.Settings.Width, s.cfg.Settings.Height, s.cfg.Negotiated.Container),
	)
	return nil
}

// WriteFrame streams one composited RGBA frame to the encoder.
func (s *FFmpegSession) WriteFrame(ctx context.Context, frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return errors.New("encoding session is not accepting frames")
	}

	if _, err := s.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("write frame: %w (%s)", err, lastStderrLine(&s.stderr))
	}
	return nil
}

// Schedule mixes an audio segment into the session's shared track.
// Scheduling is only legal once the session accepts media.
func (s *FFmpegSession) Schedule(startAt float64, buf *audiomix.Buffer, sourceOffset, duration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return errors.New("encoding session is not accepting audio")
	}
	return s.track.Schedule(startAt, buf, sourceOffset, duration)
}

// Stop drains the video encoder, muxes the audio track, and returns the
// finished container bytes.
func (s *FFmpegSession) Stop(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return nil, errors.New("encoding session is not running")
	}
	s.stopped = true
	defer s.cleanup()

	if err := s.stdin.Close(); err != nil {
		return nil, fmt.Errorf("close encoder pipe: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("video encode failed: %w (%s)", err, lastStderrLine(&s.stderr))
	}

	audioPath := filepath.Join(s.tempDir, "audio.wav")
	if err := os.WriteFile(audioPath, audiomix.EncodeWAV(s.track.Buffer()), 0o644); err != nil {
		return nil, fmt.Errorf("write audio track: %w", err)
	}

	outPath := filepath.Join(s.tempDir, "out."+s.cfg.Negotiated.Extension())
	muxArgs := buildMuxArgs(s.cfg.Negotiated, s.cfg.Settings, s.videoPath, audioPath, outPath)

	var muxErr bytes.Buffer
	mux := exec.CommandContext(ctx, s.cfg.FFmpegPath, muxArgs...)
	mux.Stderr = &muxErr
	if err := mux.Run(); err != nil {
		return nil, fmt.Errorf("mux failed: %w (%s)", err, lastStderrLine(&muxErr))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return out, nil
}

// Close aborts the session without producing output. Safe to call at any
// point; used on failure paths.
func (s *FFmpegSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || !s.started {
		s.cleanup()
		return nil
	}
	s.stopped = true

	s.stdin.Close()
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cleanup()
	return nil
}

func (s *FFmpegSession) cleanup() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

// buildVideoArgs builds the streaming video-only encode command: raw RGBA
// frames on stdin, an intermediate container on disk.
func buildVideoArgs(n Negotiated, settings render.Settings, outPath string) []string {
	bitrate := Bitrate(settings.Quality, settings.Width, settings.Height, n.Container)

	out := []string{
		"-hide_banner",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", settings.Width, settings.Height),
		"-r", fmt.Sprintf("%d", settings.FPS),
		"-i", "-",
		"-c:v", encoderNames[n.Codec],
		"-b:v", fmt.Sprintf("%d", bitrate),
		"-pix_fmt", "yuv420p",
	}
	if profile, ok := h264Profiles[n.Codec]; ok {
		out = append(out, "-profile:v", profile)
	}
	out = append(out, outPath)
	return out
}

// buildMuxArgs builds the final pass combining the intermediate video
// with the mixed audio track, bounded to the exact export duration.
func buildMuxArgs(n Negotiated, settings render.Settings, videoPath, audioPath, outPath string) []string {
	audioCodec := "aac"
	if n.Container == render.FormatWebM {
		audioCodec = "libopus"
	}

	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-t", fmt.Sprintf("%.3f", settings.Duration()),
		outPath,
	}
}

func lastStderrLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// FFmpegCapabilities probes the local ffmpeg binary's encoder list once
// and answers negotiation queries from it.
type FFmpegCapabilities struct {
	encoders map[string]bool
}

// ProbeCapabilities runs `ffmpeg -encoders` and indexes the result.
func ProbeCapabilities(ctx context.Context, ffmpegPath string) (*FFmpegCapabilities, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("probe ffmpeg encoders: %w", err)
	}

	return ParseEncoderList(out.String()), nil
}

// ParseEncoderList extracts encoder names from `ffmpeg -encoders` output.
func ParseEncoderList(listing string) *FFmpegCapabilities {
	caps := &FFmpegCapabilities{encoders: make(map[string]bool)}
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		// Encoder lines look like " V....D libx264  H.264 ...".
		if len(fields) >= 2 && len(fields[0]) == 6 && fields[1] != "=" &&
			(fields[0][0] == 'V' || fields[0][0] == 'A') {
			caps.encoders[fields[1]] = true
		}
	}
	return caps
}

// Supports reports whether the probed ffmpeg can encode the pair.
func (c *FFmpegCapabilities) Supports(container render.Format, codec string) bool {
	name, ok := encoderNames[codec]
	if !ok {
		return false
	}
	return c.encoders[name]
}
