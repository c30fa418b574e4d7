package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateExport(ctx context.Context, rec *Record) error
	GetExport(ctx context.Context, id string) (*Record, error)
	ListExports(ctx context.Context, limit int) ([]*Record, error)
	UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateExportProgress(ctx context.Context, id string, progress float64) error
	UpdateExportOutput(ctx context.Context, id, codec, mimeType, outputPath string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const exportColumns = `id, project_name, status, progress, format, codec, mime_type,
	width, height, fps, quality, region_start, region_end, output_path, error, created_at, updated_at`

func (r *SQLiteRepository) CreateExport(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (`+exportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ProjectName, rec.Status, rec.Progress, rec.Format,
		nullString(rec.Codec), nullString(rec.MimeType),
		rec.Width, rec.Height, rec.FPS, rec.Quality,
		rec.RegionStart, rec.RegionEnd,
		nullString(rec.OutputPath), nullString(rec.Error),
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+exportColumns+` FROM exports WHERE id = ?
	`, id)
	return scanExport(row)
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+exportColumns+` FROM exports ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanExportRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateExportProgress(ctx context.Context, id string, progress float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateExportOutput(ctx context.Context, id, codec, mimeType, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET codec = ?, mime_type = ?, output_path = ?, updated_at = ? WHERE id = ?
	`, codec, mimeType, outputPath, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row *sql.Row) (*Record, error) {
	rec, err := scanFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func scanExportRow(rows *sql.Rows) (*Record, error) {
	return scanFrom(rows)
}

func scanFrom(s rowScanner) (*Record, error) {
	var rec Record
	var codec, mimeType, outputPath, errorMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&rec.ID, &rec.ProjectName, &rec.Status, &rec.Progress, &rec.Format,
		&codec, &mimeType, &rec.Width, &rec.Height, &rec.FPS, &rec.Quality,
		&rec.RegionStart, &rec.RegionEnd, &outputPath, &errorMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Codec = codec.String
	rec.MimeType = mimeType.String
	rec.OutputPath = outputPath.String
	rec.Error = errorMsg.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
