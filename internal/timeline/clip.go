package timeline

// FileType classifies a timeline clip's source media.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeExternal FileType = "external"
)

// Clip is a single timeline entry. Times are timeline-relative seconds.
// Storyboard-derived clips carry an image ID or a scene/shot/frame triple
// that resolves against the project image list.
type Clip struct {
	ID       string   `json:"id"`
	FileType FileType `json:"file_type,omitempty"`

	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`

	ImageURL     string `json:"image_url,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	URL          string `json:"url,omitempty"`

	// AudioStartOffset is the read position in seconds inside the clip's
	// own source, not on the timeline.
	AudioStartOffset float64 `json:"audio_start_offset,omitempty"`

	ImageID     string `json:"image_id,omitempty"`
	SceneNumber int    `json:"scene_number,omitempty"`
	ShotNumber  int    `json:"shot_number,omitempty"`
	FrameNumber int    `json:"frame_number,omitempty"`
}

// IsVisual reports whether the clip contributes pixels to rendered frames.
// Untyped clips are treated as visual unless explicitly external.
func (c Clip) IsVisual() bool {
	switch c.FileType {
	case FileTypeImage, FileTypeVideo:
		return true
	case FileTypeAudio, FileTypeExternal:
		return false
	default:
		return true
	}
}

// IsAudio reports whether the clip contributes to the mixed audio track.
func (c Clip) IsAudio() bool {
	return c.FileType == FileTypeAudio
}

// Intersects reports whether the clip's interval overlaps [start, end).
func (c Clip) Intersects(start, end float64) bool {
	return c.StartTime < end && c.EndTime > start
}
