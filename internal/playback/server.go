// Package playback serves finished export files over HTTP with Range
// support, so a client can scrub a rendered export without downloading
// the whole container.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// FileService serves one export output file, honoring Range requests.
type FileService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeFile streams an export output file. An unsatisfiable Range gets a
// 416 with the total size; a missing file gets a 404 rather than an
// error, since completed records can outlive a manually deleted output.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open export file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat export file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	reqRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil && err != ErrInvalidRange {
		return err
	}

	// A malformed Range header degrades to a full response.
	if reqRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", reqRange.ContentLength()))
	w.Header().Set("Content-Range", reqRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(reqRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek export file: %w", err)
	}
	io.CopyN(w, file, reqRange.ContentLength())
	return nil
}
