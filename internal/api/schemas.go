package api

import (
	"time"

	"github.com/altobi/storyboard-exporter/internal/history"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State     string          `json:"state"`
	Progress  float64         `json:"progress"`
	LastError string          `json:"last_error,omitempty"`
	Active    *ExportResponse `json:"active,omitempty"`
}

type ExportResponse struct {
	ID          string  `json:"id"`
	ProjectName string  `json:"project_name"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Format      string  `json:"format"`
	Codec       string  `json:"codec,omitempty"`
	MimeType    string  `json:"mime_type,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         int     `json:"fps"`
	Quality     string  `json:"quality"`
	RegionStart float64 `json:"region_start"`
	RegionEnd   float64 `json:"region_end"`
	OutputPath  string  `json:"output_path,omitempty"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type ExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ExportToResponse(rec *history.Record) ExportResponse {
	return ExportResponse{
		ID:          rec.ID,
		ProjectName: rec.ProjectName,
		Status:      rec.Status,
		Progress:    rec.Progress,
		Format:      rec.Format,
		Codec:       rec.Codec,
		MimeType:    rec.MimeType,
		Width:       rec.Width,
		Height:      rec.Height,
		FPS:         rec.FPS,
		Quality:     rec.Quality,
		RegionStart: rec.RegionStart,
		RegionEnd:   rec.RegionEnd,
		OutputPath:  rec.OutputPath,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   rec.UpdatedAt.Format(time.RFC3339),
	}
}
