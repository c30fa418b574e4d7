package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format is the requested output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Quality selects the bitrate tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// MaxDimension caps each side of the output resolution.
const MaxDimension = 1920

// Settings describes one export request: output shape plus the export
// region [StartTime, EndTime) on the timeline.
type Settings struct {
	Format  Format  `json:"format"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	FPS     int     `json:"fps"`
	Quality Quality `json:"quality"`

	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// ParseResolution parses a "<width>x<height>" string into positive
// integers, each bounded by MaxDimension.
func ParseResolution(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(strings.ToLower(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q: expected <width>x<height>", s)
	}

	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width %q", parts[0])
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height %q", parts[1])
	}

	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("resolution sides must be positive, got %dx%d", w, h)
	}
	if w > MaxDimension || h > MaxDimension {
		return 0, 0, fmt.Errorf("resolution %dx%d exceeds maximum %d per side", w, h, MaxDimension)
	}

	return w, h, nil
}

// Validate checks the settings against the timeline duration before any
// resource is allocated.
func (s Settings) Validate(timelineDuration float64) error {
	switch s.Format {
	case FormatMP4, FormatWebM:
	default:
		return fmt.Errorf("unsupported format %q", s.Format)
	}

	if s.Width <= 0 || s.Height <= 0 || s.Width > MaxDimension || s.Height > MaxDimension {
		return fmt.Errorf("invalid resolution %dx%d", s.Width, s.Height)
	}

	switch s.FPS {
	case 24, 30, 60:
	default:
		return fmt.Errorf("unsupported frame rate %d, expected 24, 30 or 60", s.FPS)
	}

	switch s.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("unsupported quality %q", s.Quality)
	}

	if s.StartTime < 0 {
		return fmt.Errorf("start time %.3f must not be negative", s.StartTime)
	}
	if s.EndTime <= s.StartTime {
		return fmt.Errorf("end time %.3f must be greater than start time %.3f", s.EndTime, s.StartTime)
	}
	if s.EndTime > timelineDuration {
		return fmt.Errorf("end time %.3f exceeds timeline duration %.3f", s.EndTime, timelineDuration)
	}

	return nil
}

// Duration returns the export region length in seconds.
func (s Settings) Duration() float64 {
	return s.EndTime - s.StartTime
}

// TotalFrames returns the number of frames the scheduler will render.
func (s Settings) TotalFrames() int {
	return int(math.Ceil(s.Duration() * float64(s.FPS)))
}

// FrameInterval returns the timeline advance per rendered frame.
func (s Settings) FrameInterval() float64 {
	return 1.0 / float64(s.FPS)
}
