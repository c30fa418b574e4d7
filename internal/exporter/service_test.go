package exporter

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/altobi/storyboard-exporter/internal/audiomix"
	"github.com/altobi/storyboard-exporter/internal/encode"
	"github.com/altobi/storyboard-exporter/internal/history"
	"github.com/altobi/storyboard-exporter/internal/render"
	"github.com/altobi/storyboard-exporter/internal/timeline"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]*history.Record
	config  map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*history.Record), config: make(map[string]string)}
}

func (m *memRepo) CreateExport(ctx context.Context, rec *history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memRepo) GetExport(ctx context.Context, id string) (*history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) ListExports(ctx context.Context, limit int) ([]*history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*history.Record, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Status = status
		rec.Error = errorMsg
	}
	return nil
}

func (m *memRepo) UpdateExportProgress(ctx context.Context, id string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Progress = progress
	}
	return nil
}

func (m *memRepo) UpdateExportOutput(ctx context.Context, id, codec, mimeType, outputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Codec = codec
		rec.MimeType = mimeType
		rec.OutputPath = outputPath
	}
	return nil
}

func (m *memRepo) GetConfig(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config[key], nil
}

func (m *memRepo) SetConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

type allCaps struct{}

func (allCaps) Supports(container render.Format, codec string) bool { return true }

type noCaps struct{}

func (noCaps) Supports(container render.Format, codec string) bool { return false }

// memFetcher serves PNG bytes for visual sources and WAV bytes for
// audio sources, keyed by URL prefix.
type memFetcher struct{}

func (memFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "mem://a") {
		return audiomix.EncodeWAV(&audiomix.Buffer{
			SampleRate: 8000,
			Channels:   1,
			Samples:    make([]float32, 2*8000),
		}), nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type recordingSession struct {
	mu        sync.Mutex
	started   bool
	frames    int
	scheduled int
	output    []byte
	startErr  error
	blockCh   chan struct{}
}

func (s *recordingSession) Start(ctx context.Context) error {
	if s.blockCh != nil {
		<-s.blockCh
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *recordingSession) WriteFrame(ctx context.Context, frame *image.RGBA) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *recordingSession) Schedule(startAt float64, buf *audiomix.Buffer, sourceOffset, duration float64) error {
	s.mu.Lock()
	s.scheduled++
	s.mu.Unlock()
	return nil
}

func (s *recordingSession) Stop(ctx context.Context) ([]byte, error) {
	return s.output, nil
}

func (s *recordingSession) Close() error { return nil }

func testService(t *testing.T, session Session, caps encode.Capabilities) (*Service, *memRepo) {
	t.Helper()

	repo := newMemRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(Config{
		ExportsDir: t.TempDir(),
		Caps:       caps,
		Fetcher:    memFetcher{},
		Repo:       repo,
		Logger:     logger,
		Sessions: func(encode.Negotiated, render.Settings, *slog.Logger) Session {
			return session
		},
		Sleep: func(time.Duration) {},
	})
	return svc, repo
}

func testRequest() ExportRequest {
	return ExportRequest{
		ProjectName: "Demo Project",
		Format:      "mp4",
		Resolution:  "160x90",
		FPS:         24,
		Quality:     "low",
		StartTime:   0,
		EndTime:     1,
		Clips: []timeline.Clip{
			{ID: "v1", StartTime: 0, EndTime: 2, ImageURL: "mem://v1"},
			{ID: "a1", FileType: "audio", StartTime: 0, EndTime: 2, FileURL: "mem://a1"},
		},
	}
}

func waitDone(t *testing.T, svc *Service) *render.Run {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run := svc.Active()
		if run != nil && run.Done() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("export did not finish in time")
	return nil
}

func TestStart_CompletesAndWritesOutput(t *testing.T) {
	session := &recordingSession{output: []byte("encoded-media")}
	svc, repo := testService(t, session, allCaps{})

	rec, err := svc.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	run := waitDone(t, svc)
	if run.State() != render.StateComplete {
		t.Fatalf("run state = %s, want complete (err: %v)", run.State(), run.Err())
	}
	if run.Progress() != 100 {
		t.Errorf("progress = %v, want 100", run.Progress())
	}
	if session.frames != 24 {
		t.Errorf("encoded frames = %d, want 24", session.frames)
	}

	final, err := repo.GetExport(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if final.Status != "complete" || final.Progress != 100 {
		t.Fatalf("persisted record = %+v, want complete at 100", final)
	}
	if final.Codec != encode.CodecH264Baseline || final.MimeType != "video/mp4" {
		t.Errorf("codec/mime = %s/%s", final.Codec, final.MimeType)
	}

	wantPath := filepath.Join(filepath.Dir(final.OutputPath), "Demo Project_export.mp4")
	if final.OutputPath != wantPath {
		t.Errorf("output path = %q, want %q", final.OutputPath, wantPath)
	}

	data, err := os.ReadFile(final.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(data, []byte("encoded-media")) {
		t.Errorf("output bytes = %q", data)
	}
}

func TestStart_AudioReachesSession(t *testing.T) {
	session := &recordingSession{output: []byte("x")}
	svc, _ := testService(t, session, allCaps{})

	if _, err := svc.Start(context.Background(), testRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, svc)

	if session.scheduled == 0 {
		t.Error("no audio segments were scheduled on the session")
	}
}

func TestStart_RejectsInvalidSettings(t *testing.T) {
	svc, _ := testService(t, &recordingSession{}, allCaps{})

	req := testRequest()
	req.FPS = 23
	if _, err := svc.Start(context.Background(), req); err == nil {
		t.Fatal("expected error for unsupported frame rate")
	}

	req = testRequest()
	req.Clips = nil
	if _, err := svc.Start(context.Background(), req); err == nil {
		t.Fatal("expected error for empty timeline")
	}
}

func TestStart_NegotiationFailure(t *testing.T) {
	svc, repo := testService(t, &recordingSession{}, noCaps{})

	_, err := svc.Start(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected negotiation error")
	}

	records, _ := repo.ListExports(context.Background(), 10)
	if len(records) != 0 {
		t.Errorf("no record should be persisted for a rejected request, got %d", len(records))
	}
}

func TestStart_SecondExportRejectedWhileRunning(t *testing.T) {
	block := make(chan struct{})
	session := &recordingSession{blockCh: block, startErr: errors.New("aborted")}
	svc, _ := testService(t, session, allCaps{})

	if _, err := svc.Start(context.Background(), testRequest()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err := svc.Start(context.Background(), testRequest())
	if !errors.Is(err, render.ErrExportInProgress) {
		t.Fatalf("second Start err = %v, want ErrExportInProgress", err)
	}

	close(block)
	run := waitDone(t, svc)
	if run.State() != render.StateFailed {
		t.Fatalf("run state = %s, want failed", run.State())
	}

	// Once the run is terminal, a new export may start.
	if _, err := svc.Start(context.Background(), testRequest()); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	waitDone(t, svc)
}

func TestStart_FailurePersistedAndPublished(t *testing.T) {
	session := &recordingSession{startErr: errors.New("encoder unavailable")}
	svc, repo := testService(t, session, allCaps{})

	rec, err := svc.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	run := waitDone(t, svc)
	if run.State() != render.StateFailed {
		t.Fatalf("run state = %s, want failed", run.State())
	}

	final, _ := repo.GetExport(context.Background(), rec.ID)
	if final.Status != "failed" || final.Error == "" {
		t.Fatalf("persisted record = %+v, want failed with error", final)
	}

	var sawError bool
	for _, event := range svc.Events().Since(0) {
		if event.Type == EventTypeError && event.ExportID == rec.ID {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no error event was published")
	}
}

func TestStart_PublishesCompleteEvent(t *testing.T) {
	session := &recordingSession{output: []byte("x")}
	svc, _ := testService(t, session, allCaps{})

	rec, err := svc.Start(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, svc)

	var complete *Event
	for _, event := range svc.Events().Since(0) {
		if event.Type == EventTypeComplete && event.ExportID == rec.ID {
			e := event
			complete = &e
		}
	}
	if complete == nil {
		t.Fatal("no complete event was published")
	}
	if complete.Progress != 100 || complete.OutputPath == "" || complete.MimeType != "video/mp4" {
		t.Fatalf("complete event = %+v", complete)
	}
}
