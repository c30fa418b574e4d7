package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyTimeline is returned when a snapshot is built from zero clips.
var ErrEmptyTimeline = errors.New("timeline is empty")

// Snapshot is an immutable copy of the timeline taken at export start.
// The export pipeline never re-queries the live timeline mid-run.
//
// Visual clips are indexed by start time so the per-frame active-clip
// lookup is a binary search instead of a linear scan. When several visual
// clips cover the same instant, the one earliest in timeline order wins;
// overlapping clips are never blended.
type Snapshot struct {
	clips    []Clip
	duration float64

	// visual holds indices into clips, sorted by StartTime with timeline
	// order as tie-break.
	visual []int
}

// NewSnapshot validates and indexes the given clips. Clip order is
// preserved as timeline order.
func NewSnapshot(clips []Clip) (*Snapshot, error) {
	if len(clips) == 0 {
		return nil, ErrEmptyTimeline
	}

	s := &Snapshot{clips: make([]Clip, len(clips))}
	copy(s.clips, clips)

	for i, c := range s.clips {
		if c.EndTime <= c.StartTime {
			return nil, fmt.Errorf("clip %q: end_time %.3f must be greater than start_time %.3f", c.ID, c.EndTime, c.StartTime)
		}
		if c.EndTime > s.duration {
			s.duration = c.EndTime
		}
		if c.IsVisual() {
			s.visual = append(s.visual, i)
		}
	}

	sort.SliceStable(s.visual, func(a, b int) bool {
		return s.clips[s.visual[a]].StartTime < s.clips[s.visual[b]].StartTime
	})

	return s, nil
}

// Len returns the number of clips in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.clips)
}

// Duration returns the timeline duration: the maximum clip end time.
func (s *Snapshot) Duration() float64 {
	return s.duration
}

// ActiveVisualAt returns the visual clip covering timeline time t, chosen
// as the earliest clip in timeline order satisfying start <= t < end.
func (s *Snapshot) ActiveVisualAt(t float64) (Clip, bool) {
	// All candidates have StartTime <= t; binary search bounds the scan.
	n := sort.Search(len(s.visual), func(i int) bool {
		return s.clips[s.visual[i]].StartTime > t
	})

	best := -1
	for _, idx := range s.visual[:n] {
		if s.clips[idx].EndTime > t && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return Clip{}, false
	}
	return s.clips[best], true
}

// VisualClipsIn returns, in timeline order, the visual clips intersecting
// the export region [start, end).
func (s *Snapshot) VisualClipsIn(start, end float64) []Clip {
	var out []Clip
	for _, c := range s.clips {
		if c.IsVisual() && c.Intersects(start, end) {
			out = append(out, c)
		}
	}
	return out
}

// AudioClipsIn returns, in timeline order, the audio clips intersecting
// the export region [start, end).
func (s *Snapshot) AudioClipsIn(start, end float64) []Clip {
	var out []Clip
	for _, c := range s.clips {
		if c.IsAudio() && c.Intersects(start, end) {
			out = append(out, c)
		}
	}
	return out
}
