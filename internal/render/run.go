package render

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State identifies where an export run is in its lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StatePreloading      State = "preloading"
	StateFirstFrameDrawn State = "first_frame_drawn"
	StateRecording       State = "recording"
	StateDraining        State = "draining"
	StateComplete        State = "complete"
	StateFailed          State = "failed"
)

// ErrExportInProgress is returned when a second export is started while
// one is already running.
var ErrExportInProgress = errors.New("an export is already in progress")

// Run is one in-flight export. It owns the state machine that replaces an
// ad hoc "exporting" boolean: illegal transitions are rejected, progress
// is monotonic, and terminal states are reached exactly once.
type Run struct {
	ID          string
	ProjectName string
	Settings    Settings

	mu        sync.RWMutex
	state     State
	progress  float64
	err       error
	startedAt time.Time
}

// NewRun creates an idle run for the given settings.
func NewRun(id, projectName string, settings Settings) *Run {
	return &Run{
		ID:          id,
		ProjectName: projectName,
		Settings:    settings,
		state:       StateIdle,
		startedAt:   time.Now().UTC(),
	}
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Progress returns the current progress percentage in [0, 100].
func (r *Run) Progress() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Err returns the failure reason for a failed run.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// StartedAt returns the run creation time.
func (r *Run) StartedAt() time.Time {
	return r.startedAt
}

// Done reports whether the run reached a terminal state.
func (r *Run) Done() bool {
	switch r.State() {
	case StateComplete, StateFailed:
		return true
	default:
		return false
	}
}

// Transition moves the run to the next state, validating the edge.
func (r *Run) Transition(next State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !validTransition(r.state, next) {
		return fmt.Errorf("invalid export state transition: %s -> %s", r.state, next)
	}
	r.state = next

	if next == StateComplete {
		r.progress = 100
	}
	return nil
}

// Fail moves the run to the failed state from anywhere and records the
// first failure reason.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateComplete || r.state == StateFailed {
		return
	}
	r.state = StateFailed
	r.err = err
}

// SetProgress records a progress report. Reports are clamped to [0, 100)
// and never move backwards; 100 is reserved for successful completion.
func (r *Run) SetProgress(pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pct < 0 {
		pct = 0
	}
	if pct > 99.9 && r.state != StateComplete {
		pct = 99.9
	}
	if pct > r.progress {
		r.progress = pct
	}
}

func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StatePreloading
	case StatePreloading:
		return to == StateFirstFrameDrawn
	case StateFirstFrameDrawn:
		return to == StateRecording
	case StateRecording:
		return to == StateDraining
	case StateDraining:
		return to == StateComplete
	default:
		return false
	}
}
