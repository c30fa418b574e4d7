// Package exporter orchestrates a full export run: timeline validation,
// codec negotiation, preloading, frame rendering, audio scheduling, and
// persistence of the run's history record.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altobi/storyboard-exporter/internal/audiomix"
	"github.com/altobi/storyboard-exporter/internal/compose"
	"github.com/altobi/storyboard-exporter/internal/encode"
	"github.com/altobi/storyboard-exporter/internal/history"
	"github.com/altobi/storyboard-exporter/internal/metrics"
	"github.com/altobi/storyboard-exporter/internal/preload"
	"github.com/altobi/storyboard-exporter/internal/render"
	"github.com/altobi/storyboard-exporter/internal/timeline"
)

// Session is an encoding session that accepts both frames and scheduled
// audio segments.
type Session interface {
	render.Session
	audiomix.Sink
}

// SessionFactory builds the encoding session for one negotiated run.
type SessionFactory func(n encode.Negotiated, settings render.Settings, logger *slog.Logger) Session

// ExportRequest is one export submission from the API.
type ExportRequest struct {
	ProjectName string                 `json:"project_name"`
	Format      string                 `json:"format"`
	Resolution  string                 `json:"resolution"`
	FPS         int                    `json:"fps"`
	Quality     string                 `json:"quality"`
	StartTime   float64                `json:"start_time"`
	EndTime     float64                `json:"end_time"`
	Clips       []timeline.Clip        `json:"clips"`
	Images      []preload.ProjectImage `json:"images,omitempty"`
}

// Config wires the service's collaborators.
type Config struct {
	ExportsDir string
	FFmpegPath string

	Caps     encode.Capabilities
	Fetcher  preload.Fetcher
	Repo     history.Repository
	Bus      *EventBus
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Sessions SessionFactory

	// Scheduler pacing overrides, zero means scheduler defaults.
	Settle time.Duration
	Grace  time.Duration
	Pace   time.Duration
	Sleep  func(time.Duration)
}

// Service runs at most one export at a time.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *render.Run
}

// NewService builds the export service, defaulting the fetcher and the
// ffmpeg-backed session factory.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = preload.NewSourceFetcher()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus(0)
	}
	if cfg.Sessions == nil {
		ffmpegPath := cfg.FFmpegPath
		cfg.Sessions = func(n encode.Negotiated, settings render.Settings, logger *slog.Logger) Session {
			return encode.NewFFmpegSession(encode.SessionConfig{
				FFmpegPath: ffmpegPath,
				Negotiated: n,
				Settings:   settings,
				Logger:     logger,
			})
		}
	}
	return &Service{cfg: cfg, logger: cfg.Logger}
}

// Events returns the service's event bus for subscribers.
func (s *Service) Events() *EventBus {
	return s.cfg.Bus
}

// Active returns the current run, which may be done, or nil when no
// export has been started yet.
func (s *Service) Active() *render.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Start validates a request, negotiates the output codec, and launches
// the export in the background. It returns the persisted history record
// for the new run, or ErrExportInProgress while a run is in flight.
func (s *Service) Start(ctx context.Context, req ExportRequest) (*history.Record, error) {
	snap, settings, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	negotiated, err := encode.Negotiate(settings.Format, s.cfg.Caps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current != nil && !s.current.Done() {
		s.mu.Unlock()
		return nil, render.ErrExportInProgress
	}
	run := render.NewRun(uuid.NewString(), req.ProjectName, settings)
	s.current = run
	s.mu.Unlock()

	rec := history.NewRecord(run.ID, req.ProjectName, settings)
	if err := s.cfg.Repo.CreateExport(ctx, rec); err != nil {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("persist export record: %w", err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncExportsStarted()
		s.cfg.Metrics.SetActiveExports(1)
	}
	s.cfg.Bus.Publish(Event{
		ExportID: run.ID,
		Type:     EventTypeState,
		State:    run.State(),
	})

	s.logger.Info("export started",
		"export_id", run.ID,
		"project", req.ProjectName,
		"container", negotiated.Container,
		"codec", negotiated.Codec,
		"frames", settings.TotalFrames(),
	)

	go s.runExport(run, snap, req.Images, negotiated)

	return rec, nil
}

// resolve applies request defaults and validates the request against the
// timeline before any resource is allocated.
func (s *Service) resolve(req ExportRequest) (*timeline.Snapshot, render.Settings, error) {
	snap, err := timeline.NewSnapshot(req.Clips)
	if err != nil {
		return nil, render.Settings{}, err
	}

	if req.Format == "" {
		req.Format = string(render.FormatMP4)
	}
	if req.Resolution == "" {
		req.Resolution = "1920x1080"
	}
	if req.FPS == 0 {
		req.FPS = 30
	}
	if req.Quality == "" {
		req.Quality = string(render.QualityMedium)
	}
	if req.EndTime == 0 && req.StartTime == 0 {
		req.EndTime = snap.Duration()
	}

	width, height, err := render.ParseResolution(req.Resolution)
	if err != nil {
		return nil, render.Settings{}, err
	}

	settings := render.Settings{
		Format:    render.Format(req.Format),
		Width:     width,
		Height:    height,
		FPS:       req.FPS,
		Quality:   render.Quality(req.Quality),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := settings.Validate(snap.Duration()); err != nil {
		return nil, render.Settings{}, err
	}

	return snap, settings, nil
}

func (s *Service) runExport(run *render.Run, snap *timeline.Snapshot, images []preload.ProjectImage, negotiated encode.Negotiated) {
	ctx := context.Background()
	settings := run.Settings
	logger := s.logger.With("export_id", run.ID)

	session := s.cfg.Sessions(negotiated, settings, logger)
	preloader := preload.NewPreloader(s.cfg.Fetcher, logger)
	mixer := audiomix.NewMixer(audiomix.NewFetchDecoder(s.cfg.Fetcher, s.cfg.FFmpegPath), logger)

	imageCache := preload.NewImageCache()
	compositor := compose.New(snap, imageCache, settings.Width, settings.Height)

	visualClips := snap.VisualClipsIn(settings.StartTime, settings.EndTime)
	audioClips := snap.AudioClipsIn(settings.StartTime, settings.EndTime)

	var audioCache *audiomix.BufferCache

	scheduler := render.NewScheduler(render.Config{
		Run:        run,
		Compositor: compositor,
		Session:    session,
		Preload: func(ctx context.Context, progress func(float64)) error {
			preloader.LoadInto(ctx, imageCache, visualClips, images, progress)
			return nil
		},
		ScheduleAudio: func(ctx context.Context) error {
			audioCache = mixer.Prepare(ctx, audioClips)
			return mixer.Schedule(audioClips, audioCache, settings.StartTime, settings.Duration(), session)
		},
		Teardown: func() {
			imageCache.Release()
			if audioCache != nil {
				audioCache.Release()
			}
		},
		Progress: s.progressFunc(ctx, run),
		Logger:   logger,
		Settle:   s.cfg.Settle,
		Grace:    s.cfg.Grace,
		Pace:     s.cfg.Pace,
		Sleep:    s.cfg.Sleep,
	})

	out, err := scheduler.Render(ctx)
	if err != nil {
		s.finishFailed(ctx, run, err)
		return
	}
	s.finishComplete(ctx, run, negotiated, out)
}

// progressFunc publishes every progress report and persists it to the
// history record on whole-percent advances.
func (s *Service) progressFunc(ctx context.Context, run *render.Run) func(float64) {
	var mu sync.Mutex
	lastPersisted := -1.0
	lastState := render.StateIdle

	return func(pct float64) {
		state := run.State()

		s.cfg.Bus.Publish(Event{
			ExportID: run.ID,
			Type:     EventTypeProgress,
			State:    state,
			Progress: pct,
		})

		mu.Lock()
		defer mu.Unlock()

		if state != lastState {
			lastState = state
			s.cfg.Bus.Publish(Event{ExportID: run.ID, Type: EventTypeState, State: state})
			if err := s.cfg.Repo.UpdateExportStatus(ctx, run.ID, string(state), ""); err != nil {
				s.logger.Warn("persist export status failed", "export_id", run.ID, "error", err)
			}
		}
		if pct-lastPersisted >= 1 || pct >= 100 {
			lastPersisted = pct
			if err := s.cfg.Repo.UpdateExportProgress(ctx, run.ID, pct); err != nil {
				s.logger.Warn("persist export progress failed", "export_id", run.ID, "error", err)
			}
		}
	}
}

func (s *Service) finishComplete(ctx context.Context, run *render.Run, negotiated encode.Negotiated, out []byte) {
	path, err := s.writeOutput(run.ProjectName, negotiated, out)
	if err != nil {
		run.Fail(err)
		s.finishFailed(ctx, run, err)
		return
	}

	if err := s.cfg.Repo.UpdateExportOutput(ctx, run.ID, negotiated.Codec, negotiated.MimeType(), path); err != nil {
		s.logger.Warn("persist export output failed", "export_id", run.ID, "error", err)
	}
	if err := s.cfg.Repo.UpdateExportStatus(ctx, run.ID, string(render.StateComplete), ""); err != nil {
		s.logger.Warn("persist export status failed", "export_id", run.ID, "error", err)
	}
	if err := s.cfg.Repo.UpdateExportProgress(ctx, run.ID, 100); err != nil {
		s.logger.Warn("persist export progress failed", "export_id", run.ID, "error", err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncExportsCompleted()
		s.cfg.Metrics.AddFramesRendered(run.Settings.TotalFrames())
		s.cfg.Metrics.SetActiveExports(0)
	}
	s.cfg.Bus.Publish(Event{
		ExportID:   run.ID,
		Type:       EventTypeComplete,
		State:      render.StateComplete,
		Progress:   100,
		OutputPath: path,
		MimeType:   negotiated.MimeType(),
	})

	s.logger.Info("export complete",
		"export_id", run.ID,
		"output", path,
		"bytes", len(out),
	)
}

func (s *Service) finishFailed(ctx context.Context, run *render.Run, cause error) {
	if err := s.cfg.Repo.UpdateExportStatus(ctx, run.ID, string(render.StateFailed), cause.Error()); err != nil {
		s.logger.Warn("persist export status failed", "export_id", run.ID, "error", err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncExportsFailed()
		s.cfg.Metrics.SetActiveExports(0)
	}
	s.cfg.Bus.Publish(Event{
		ExportID: run.ID,
		Type:     EventTypeError,
		State:    render.StateFailed,
		Message:  cause.Error(),
	})

	s.logger.Error("export failed", "export_id", run.ID, "error", cause)
}

func (s *Service) writeOutput(projectName string, negotiated encode.Negotiated, out []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.ExportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create exports dir: %w", err)
	}

	name := fmt.Sprintf("%s_export.%s", SanitizeName(projectName, 80), negotiated.Extension())
	path := filepath.Join(s.cfg.ExportsDir, name)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, nil
}
