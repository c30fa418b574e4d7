package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/altobi/storyboard-exporter/internal/db"
	"github.com/altobi/storyboard-exporter/internal/render"
)

func setupRepo(t *testing.T) Repository {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewRepository(database.Conn())
}

func sampleSettings() render.Settings {
	return render.Settings{
		Format: render.FormatMP4, Width: 1280, Height: 720,
		FPS: 30, Quality: render.QualityMedium, StartTime: 1, EndTime: 11,
	}
}

func TestCreateAndGetExport(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	rec := NewRecord("exp-1", "My Project", sampleSettings())
	if err := repo.CreateExport(ctx, rec); err != nil {
		t.Fatalf("CreateExport: %v", err)
	}

	got, err := repo.GetExport(ctx, "exp-1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if got == nil {
		t.Fatal("GetExport returned nil for existing record")
	}
	if got.ProjectName != "My Project" || got.Format != "mp4" || got.RegionEnd != 11 {
		t.Fatalf("round-tripped record mismatch: %+v", got)
	}
}

func TestGetExport_Missing(t *testing.T) {
	repo := setupRepo(t)

	got, err := repo.GetExport(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if got != nil {
		t.Fatalf("GetExport(missing) = %+v, want nil", got)
	}
}

func TestUpdateExportLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	rec := NewRecord("exp-1", "P", sampleSettings())
	if err := repo.CreateExport(ctx, rec); err != nil {
		t.Fatalf("CreateExport: %v", err)
	}

	if err := repo.UpdateExportStatus(ctx, "exp-1", string(render.StateRecording), ""); err != nil {
		t.Fatalf("UpdateExportStatus: %v", err)
	}
	if err := repo.UpdateExportProgress(ctx, "exp-1", 62.5); err != nil {
		t.Fatalf("UpdateExportProgress: %v", err)
	}
	if err := repo.UpdateExportOutput(ctx, "exp-1", "avc1.42E01E", "video/mp4", "/out/P_export.mp4"); err != nil {
		t.Fatalf("UpdateExportOutput: %v", err)
	}

	got, err := repo.GetExport(ctx, "exp-1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if got.Status != "recording" || got.Progress != 62.5 {
		t.Fatalf("status/progress = %s/%v, want recording/62.5", got.Status, got.Progress)
	}
	if got.MimeType != "video/mp4" || got.OutputPath != "/out/P_export.mp4" {
		t.Fatalf("output fields mismatch: %+v", got)
	}
}

func TestListExports_OrderAndLimit(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		rec := NewRecord(id, "P", sampleSettings())
		if err := repo.CreateExport(ctx, rec); err != nil {
			t.Fatalf("CreateExport(%s): %v", id, err)
		}
	}

	got, err := repo.ListExports(ctx, 2)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListExports returned %d records, want 2", len(got))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if v, err := repo.GetConfig(ctx, "auth_token"); err != nil || v != "" {
		t.Fatalf("GetConfig(unset) = %q, %v", v, err)
	}

	if err := repo.SetConfig(ctx, "auth_token", "secret"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "rotated"); err != nil {
		t.Fatalf("SetConfig(update): %v", err)
	}

	v, err := repo.GetConfig(ctx, "auth_token")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if v != "rotated" {
		t.Fatalf("GetConfig = %q, want rotated", v)
	}
}
