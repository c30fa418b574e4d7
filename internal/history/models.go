// Package history persists export run records so the agent's export
// history survives restarts.
package history

import (
	"time"

	"github.com/altobi/storyboard-exporter/internal/render"
)

// Record is one export run as stored in the database.
type Record struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"project_name"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	Format      string    `json:"format"`
	Codec       string    `json:"codec,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FPS         int       `json:"fps"`
	Quality     string    `json:"quality"`
	RegionStart float64   `json:"region_start"`
	RegionEnd   float64   `json:"region_end"`
	OutputPath  string    `json:"output_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRecord builds the initial record for a run about to start.
func NewRecord(id, projectName string, settings render.Settings) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:          id,
		ProjectName: projectName,
		Status:      string(render.StateIdle),
		Format:      string(settings.Format),
		Width:       settings.Width,
		Height:      settings.Height,
		FPS:         settings.FPS,
		Quality:     string(settings.Quality),
		RegionStart: settings.StartTime,
		RegionEnd:   settings.EndTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
