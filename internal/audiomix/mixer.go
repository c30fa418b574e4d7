// Package audiomix decodes audio clips into PCM buffers and schedules
// them against a single shared clock so playback offsets inside each clip
// and clip positions on the timeline survive into the export.
package audiomix

import (
	"context"
	"log/slog"

	"github.com/altobi/storyboard-exporter/internal/timeline"
)

// Decoder resolves a clip source reference to a PCM buffer.
type Decoder interface {
	Decode(ctx context.Context, url string) (*Buffer, error)
}

// Sink accepts scheduled PCM segments. The zero of startAt is the shared
// recording clock captured when the encoding session began.
type Sink interface {
	Schedule(startAt float64, buf *Buffer, sourceOffset, duration float64) error
}

// Placement is the export-relative schedule for one audio clip.
type Placement struct {
	ClipID        string
	StartInExport float64
	SourceOffset  float64
	Duration      float64
}

// PlacementFor computes where a clip's audio lands inside the export
// region. ok is false when the computed playable duration is not
// positive.
func PlacementFor(clip timeline.Clip, exportStart, exportDuration float64) (Placement, bool) {
	startInExport := clip.StartTime - exportStart
	if startInExport < 0 {
		startInExport = 0
	}

	endInExport := clip.EndTime - exportStart
	if endInExport > exportDuration {
		endInExport = exportDuration
	}

	duration := endInExport - startInExport
	if duration <= 0 {
		return Placement{}, false
	}

	// The read position inside the clip's own source is its configured
	// offset, independent of where the region cuts the clip.
	return Placement{
		ClipID:        clip.ID,
		StartInExport: startInExport,
		SourceOffset:  clip.AudioStartOffset,
		Duration:      duration,
	}, true
}

// BufferCache holds decoded buffers for one export run, keyed by clip ID.
// Built during preparation, read-only afterwards, torn down at run end.
type BufferCache struct {
	buffers map[string]*Buffer
}

// Get returns the decoded buffer for a clip.
func (c *BufferCache) Get(clipID string) (*Buffer, bool) {
	b, ok := c.buffers[clipID]
	return b, ok
}

// Len returns the number of decoded clips.
func (c *BufferCache) Len() int {
	return len(c.buffers)
}

// Release drops all decoded sample data.
func (c *BufferCache) Release() {
	c.buffers = nil
}

// Mixer prepares and schedules the audio side of an export.
type Mixer struct {
	dec    Decoder
	logger *slog.Logger
}

// NewMixer builds a mixer around the given decoder.
func NewMixer(dec Decoder, logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mixer{dec: dec, logger: logger}
}

// Prepare decodes every audio clip intersecting the export region. A clip
// that fails to decode is logged and skipped, never fatal.
func (m *Mixer) Prepare(ctx context.Context, clips []timeline.Clip) *BufferCache {
	cache := &BufferCache{buffers: make(map[string]*Buffer, len(clips))}

	for _, clip := range clips {
		url := audioSourceURL(clip)
		if url == "" {
			m.logger.Warn("audio clip has no source, skipping", "clip_id", clip.ID)
			continue
		}

		buf, err := m.dec.Decode(ctx, url)
		if err != nil {
			m.logger.Warn("audio decode failed, skipping clip",
				"clip_id", clip.ID, "source", url, "error", err)
			continue
		}
		cache.buffers[clip.ID] = buf
	}

	return cache
}

// Schedule places every decoded clip on the sink at a single scheduling
// instant. All placements reference the same recording clock zero, so
// relative inter-clip timing is exact regardless of when each decode
// finished. Must only be called once the encoding session accepts media.
func (m *Mixer) Schedule(clips []timeline.Clip, cache *BufferCache, exportStart, exportDuration float64, sink Sink) error {
	for _, clip := range clips {
		buf, ok := cache.Get(clip.ID)
		if !ok {
			continue
		}

		placement, ok := PlacementFor(clip, exportStart, exportDuration)
		if !ok {
			continue
		}

		if err := sink.Schedule(placement.StartInExport, buf, placement.SourceOffset, placement.Duration); err != nil {
			return err
		}

		m.logger.Debug("audio clip scheduled",
			"clip_id", clip.ID,
			"start_in_export", placement.StartInExport,
			"source_offset", placement.SourceOffset,
			"duration", placement.Duration,
		)
	}
	return nil
}

func audioSourceURL(clip timeline.Clip) string {
	switch {
	case clip.FileURL != "":
		return clip.FileURL
	case clip.URL != "":
		return clip.URL
	default:
		return ""
	}
}
