package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/altobi/storyboard-exporter/internal/preload"
	"github.com/altobi/storyboard-exporter/internal/timeline"
)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	red   = color.RGBA{R: 0xFF, A: 0xFF}
	white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

func pixel(t *testing.T, frame *image.RGBA, x, y int) color.RGBA {
	t.Helper()
	return frame.RGBAAt(x, y)
}

func isBlack(c color.RGBA) bool {
	return c.R == 0 && c.G == 0 && c.B == 0 && c.A == 0xFF
}

func TestDraw_NoActiveClipIsBlack(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 5, EndTime: 6},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	c := New(snap, preload.NewImageCache(), 8, 8)
	c.Draw(0)

	for _, p := range []image.Point{{0, 0}, {4, 4}, {7, 7}} {
		if got := pixel(t, c.Frame(), p.X, p.Y); !isBlack(got) {
			t.Fatalf("pixel %v = %v, want opaque black", p, got)
		}
	}
}

func TestDraw_MissingBitmapIsBlack(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	c := New(snap, preload.NewImageCache(), 8, 8)
	c.Draw(1)

	if got := pixel(t, c.Frame(), 4, 4); !isBlack(got) {
		t.Fatalf("center pixel = %v, want black for missing bitmap", got)
	}
}

func TestDraw_MatchingAspectFillsFrame(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	cache := preload.NewImageCache()
	cache.Put("a", solidImage(32, 18, red))

	c := New(snap, cache, 64, 36)
	c.Draw(0)

	for _, p := range []image.Point{{0, 0}, {63, 0}, {0, 35}, {63, 35}, {32, 18}} {
		got := pixel(t, c.Frame(), p.X, p.Y)
		if got.R < 0xF0 || got.G > 0x10 || got.B > 0x10 {
			t.Fatalf("pixel %v = %v, want red fill with no letterbox", p, got)
		}
	}
}

func TestDraw_WideSourceLetterboxesTopBottom(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	cache := preload.NewImageCache()
	cache.Put("a", solidImage(100, 25, white)) // 4:1 into a 2:1 target

	c := New(snap, cache, 80, 40)
	c.Draw(0)

	// 4:1 into 80 wide gives a 20px-high band centered at y in [10, 30).
	if got := pixel(t, c.Frame(), 40, 20); got.R != 0xFF {
		t.Fatalf("center pixel = %v, want white source", got)
	}
	if got := pixel(t, c.Frame(), 40, 4); !isBlack(got) {
		t.Fatalf("top bar pixel = %v, want black", got)
	}
	if got := pixel(t, c.Frame(), 40, 36); !isBlack(got) {
		t.Fatalf("bottom bar pixel = %v, want black", got)
	}
	// No side bars on width-fit.
	if got := pixel(t, c.Frame(), 0, 20); got.R != 0xFF {
		t.Fatalf("left edge pixel = %v, want white source", got)
	}
}

func TestDraw_TallSourceLetterboxesLeftRight(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "a", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	cache := preload.NewImageCache()
	cache.Put("a", solidImage(25, 100, white)) // 1:4 into a 2:1 target

	c := New(snap, cache, 80, 40)
	c.Draw(0)

	// Height-fit gives a 10px-wide band centered at x in [35, 45).
	if got := pixel(t, c.Frame(), 40, 20); got.R != 0xFF {
		t.Fatalf("center pixel = %v, want white source", got)
	}
	if got := pixel(t, c.Frame(), 10, 20); !isBlack(got) {
		t.Fatalf("left bar pixel = %v, want black", got)
	}
	if got := pixel(t, c.Frame(), 70, 20); !isBlack(got) {
		t.Fatalf("right bar pixel = %v, want black", got)
	}
}

func TestDraw_OverlapUsesTimelineOrder(t *testing.T) {
	snap, err := timeline.NewSnapshot([]timeline.Clip{
		{ID: "top", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
		{ID: "under", FileType: timeline.FileTypeImage, StartTime: 0, EndTime: 10},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	cache := preload.NewImageCache()
	cache.Put("top", solidImage(8, 8, red))
	cache.Put("under", solidImage(8, 8, white))

	c := New(snap, cache, 8, 8)
	c.Draw(5)

	got := pixel(t, c.Frame(), 4, 4)
	if got.R < 0xF0 || got.G > 0x10 {
		t.Fatalf("overlap pixel = %v, want first clip's red, never a blend", got)
	}
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		want                   image.Rectangle
	}{
		{name: "same aspect", srcW: 16, srcH: 9, dstW: 32, dstH: 18, want: image.Rect(0, 0, 32, 18)},
		{name: "wider fits width", srcW: 40, srcH: 10, dstW: 20, dstH: 10, want: image.Rect(0, 2, 20, 7)},
		{name: "taller fits height", srcW: 10, srcH: 40, dstW: 20, dstH: 10, want: image.Rect(8, 0, 11, 10)},
		{name: "degenerate source", srcW: 0, srcH: 10, dstW: 20, dstH: 10, want: image.Rect(0, 0, 20, 10)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fitRect(tc.srcW, tc.srcH, tc.dstW, tc.dstH)
			if got != tc.want {
				t.Fatalf("fitRect(%d,%d,%d,%d) = %v, want %v", tc.srcW, tc.srcH, tc.dstW, tc.dstH, got, tc.want)
			}
		})
	}
}
