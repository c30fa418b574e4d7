package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher retrieves raw bytes for a clip source reference.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const maxResourceBytes = 64 << 20 // 64MB per resource

// SourceFetcher resolves http(s) URLs over the network and everything
// else as a local file path.
type SourceFetcher struct {
	client *http.Client
}

// NewSourceFetcher returns a fetcher with a bounded request timeout.
func NewSourceFetcher() *SourceFetcher {
	return &SourceFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *SourceFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return f.fetchHTTP(ctx, url)
	}
	return f.fetchFile(url)
}

func (f *SourceFetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > maxResourceBytes {
		return nil, fmt.Errorf("resource %s exceeds %d bytes", url, maxResourceBytes)
	}
	return body, nil
}

func (f *SourceFetcher) fetchFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxResourceBytes {
		return nil, fmt.Errorf("resource %s exceeds %d bytes", path, maxResourceBytes)
	}
	return os.ReadFile(path)
}
