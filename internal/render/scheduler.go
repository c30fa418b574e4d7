package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// Compositor draws the frame for a timeline instant into a reusable
// buffer. The buffer is owned by the compositor and read by the session
// between Draw calls.
type Compositor interface {
	Draw(timelineTime float64)
	Frame() *image.RGBA
}

// Session is one negotiated encoding session. WriteFrame is only valid
// between Start and Stop. Close releases encoder resources without
// producing output and is safe after a failed Start.
type Session interface {
	Start(ctx context.Context) error
	WriteFrame(ctx context.Context, frame *image.RGBA) error
	Stop(ctx context.Context) ([]byte, error)
	Close() error
}

// Config wires one export run's collaborators into the scheduler.
type Config struct {
	Run        *Run
	Compositor Compositor
	Session    Session

	// Preload loads every visual resource in the export region, reporting
	// progress in [0, 50]. It must not fail for individual resources.
	Preload func(ctx context.Context, progress func(float64)) error

	// ScheduleAudio places all audio clips against the session's clock.
	// Called exactly once, after the session has started accepting media.
	ScheduleAudio func(ctx context.Context) error

	// Teardown releases audio and image resources. Called on every exit
	// path, success or failure.
	Teardown func()

	// Progress receives monotonically non-decreasing percentages in
	// [0, 100]; 100 is reported only on successful completion.
	Progress func(pct float64)

	Logger *slog.Logger

	// Settle is the delay between starting the session and scheduling
	// audio; Grace is the drain delay before stopping the session; Pace
	// is the per-frame delay in the render loop.
	Settle time.Duration
	Grace  time.Duration
	Pace   time.Duration

	// Sleep is injectable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

const (
	defaultSettle = 100 * time.Millisecond
	defaultGrace  = 200 * time.Millisecond
)

// Scheduler drives the frame pump for a single export run: preload,
// first frame, recording loop, drain, stop.
type Scheduler struct {
	cfg Config
}

// NewScheduler applies defaults and returns a scheduler for one run.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Settle == 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.Grace == 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{cfg: cfg}
}

// Render executes the run to completion and returns the encoded output.
// On any failure the session is closed, resources are torn down, and the
// run is moved to the failed state with the cause recorded.
func (s *Scheduler) Render(ctx context.Context) ([]byte, error) {
	out, err := s.render(ctx)
	if err != nil {
		s.cfg.Run.Fail(err)
		return nil, err
	}
	return out, nil
}

func (s *Scheduler) render(ctx context.Context) ([]byte, error) {
	run := s.cfg.Run
	settings := run.Settings

	if s.cfg.Teardown != nil {
		defer s.cfg.Teardown()
	}

	if err := run.Transition(StatePreloading); err != nil {
		return nil, err
	}

	if err := s.cfg.Preload(ctx, s.report); err != nil {
		return nil, fmt.Errorf("preload failed: %w", err)
	}

	// Draw the region's first frame before the session starts capturing
	// so the initial encoded frame is never blank by race.
	s.cfg.Compositor.Draw(settings.StartTime)
	if err := run.Transition(StateFirstFrameDrawn); err != nil {
		return nil, err
	}

	if err := s.cfg.Session.Start(ctx); err != nil {
		return nil, err
	}

	s.cfg.Sleep(s.cfg.Settle)

	if s.cfg.ScheduleAudio != nil {
		if err := s.cfg.ScheduleAudio(ctx); err != nil {
			s.closeSession()
			return nil, fmt.Errorf("audio scheduling failed: %w", err)
		}
	}

	if err := run.Transition(StateRecording); err != nil {
		s.closeSession()
		return nil, err
	}

	total := settings.TotalFrames()
	interval := settings.FrameInterval()
	current := 0.0

	for frame := 0; frame < total; frame++ {
		if err := ctx.Err(); err != nil {
			s.closeSession()
			return nil, err
		}

		s.cfg.Compositor.Draw(settings.StartTime + current)
		if err := s.cfg.Session.WriteFrame(ctx, s.cfg.Compositor.Frame()); err != nil {
			s.closeSession()
			return nil, fmt.Errorf("encoder error at frame %d: %w", frame, err)
		}

		s.report(50 + float64(frame+1)/float64(total)*50)
		current += interval

		if s.cfg.Pace > 0 {
			s.cfg.Sleep(s.cfg.Pace)
		}
	}

	if err := run.Transition(StateDraining); err != nil {
		s.closeSession()
		return nil, err
	}

	// Let the encoder flush the final frame before stopping.
	s.cfg.Sleep(s.cfg.Grace)

	out, err := s.cfg.Session.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("encoder stop failed: %w", err)
	}

	if err := run.Transition(StateComplete); err != nil {
		return nil, err
	}
	if s.cfg.Progress != nil {
		s.cfg.Progress(run.Progress())
	}

	s.cfg.Logger.Info("render complete",
		"run_id", run.ID,
		"frames", total,
		"duration_s", settings.Duration(),
	)
	return out, nil
}

func (s *Scheduler) report(pct float64) {
	s.cfg.Run.SetProgress(pct)
	if s.cfg.Progress != nil {
		s.cfg.Progress(s.cfg.Run.Progress())
	}
}

func (s *Scheduler) closeSession() {
	if err := s.cfg.Session.Close(); err != nil {
		s.cfg.Logger.Warn("session close failed", "error", err)
	}
}
