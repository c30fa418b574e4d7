package preload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/altobi/storyboard-exporter/internal/timeline"
)

type fakeFetcher struct {
	mu      sync.Mutex
	data    map[string][]byte
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	if d, ok := f.data[url]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("not found: %s", url)
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoad_DecodesAllSources(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{
		"a.png": pngBytes(t, 8, 8, color.White),
		"b.png": pngBytes(t, 16, 8, color.Black),
	}}

	clips := []timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 1, ImageURL: "a.png"},
		{ID: "b", FileType: timeline.FileTypeImage, StartTime: 1, EndTime: 2, FileURL: "b.png"},
	}

	cache := NewPreloader(fetch, testLogger()).Load(context.Background(), clips, nil, nil)

	if cache.Len() != 2 {
		t.Fatalf("cache has %d entries, want 2", cache.Len())
	}
	img, ok := cache.Get("b")
	if !ok {
		t.Fatal("clip b missing from cache")
	}
	if img.Bounds().Dx() != 16 {
		t.Fatalf("clip b width = %d, want 16", img.Bounds().Dx())
	}
}

func TestLoad_PlaceholderOnFailure(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{}}
	clips := []timeline.Clip{
		{ID: "missing", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 1, ImageURL: "nope.png"},
	}

	cache := NewPreloader(fetch, testLogger()).Load(context.Background(), clips, nil, nil)

	img, ok := cache.Get("missing")
	if !ok {
		t.Fatal("failed clip must still be cached as a placeholder")
	}
	b := img.Bounds()
	if b.Dx() != placeholderWidth || b.Dy() != placeholderHeight {
		t.Fatalf("placeholder size = %dx%d, want %dx%d", b.Dx(), b.Dy(), placeholderWidth, placeholderHeight)
	}

	// Corner pixels stay the neutral fill; the label only touches the center.
	r, g, bl, _ := img.At(0, 0).RGBA()
	if r>>8 != 0x80 || g>>8 != 0x80 || bl>>8 != 0x80 {
		t.Fatalf("placeholder corner color = %v, want neutral gray", img.At(0, 0))
	}
}

func TestLoad_ResolutionChainOrder(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{
		"generic.png": pngBytes(t, 4, 4, color.White),
	}}

	clips := []timeline.Clip{{
		ID:        "c",
		StartTime: 0, EndTime: 1,
		ImageURL:     "img.png",
		FileURL:      "file.png",
		ThumbnailURL: "thumb.png",
		URL:          "generic.png",
	}}

	cache := NewPreloader(fetch, testLogger()).Load(context.Background(), clips, nil, nil)

	if _, ok := cache.Get("c"); !ok {
		t.Fatal("clip not cached")
	}
	want := []string{"img.png", "file.png", "thumb.png", "generic.png"}
	if len(fetch.fetched) != len(want) {
		t.Fatalf("fetched %v, want %v", fetch.fetched, want)
	}
	for i := range want {
		if fetch.fetched[i] != want[i] {
			t.Fatalf("fetch order[%d] = %q, want %q", i, fetch.fetched[i], want[i])
		}
	}
}

func TestLoad_ProjectImageLookup(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{
		"by-id.png":     pngBytes(t, 4, 4, color.White),
		"by-triple.png": pngBytes(t, 4, 4, color.Black),
	}}

	images := []ProjectImage{
		{ID: "img-1", URL: "by-id.png"},
		{SceneNumber: 2, ShotNumber: 3, FrameNumber: 1, URL: "by-triple.png"},
	}

	clips := []timeline.Clip{
		{ID: "a", StartTime: 0, EndTime: 1, ImageID: "img-1"},
		{ID: "b", StartTime: 1, EndTime: 2, SceneNumber: 2, ShotNumber: 3, FrameNumber: 1},
	}

	cache := NewPreloader(fetch, testLogger()).Load(context.Background(), clips, images, nil)

	if _, ok := cache.Get("a"); !ok {
		t.Fatal("image-id lookup failed")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Fatal("scene/shot/frame lookup failed")
	}
}

func TestLoad_ProgressReachesFifty(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{
		"a.png": pngBytes(t, 4, 4, color.White),
	}}
	clips := []timeline.Clip{
		{ID: "a", StartTime: 0, EndTime: 1, URL: "a.png"},
		{ID: "b", StartTime: 1, EndTime: 2, URL: "b.png"}, // placeholder path
	}

	var (
		mu      sync.Mutex
		reports []float64
	)
	NewPreloader(fetch, testLogger()).Load(context.Background(), clips, nil, func(pct float64) {
		mu.Lock()
		reports = append(reports, pct)
		mu.Unlock()
	})

	if len(reports) != 2 {
		t.Fatalf("got %d progress reports, want one per clip", len(reports))
	}
	max := 0.0
	for _, p := range reports {
		if p > max {
			max = p
		}
	}
	if max != 50 {
		t.Fatalf("loading progress peaked at %v, want 50", max)
	}
}
