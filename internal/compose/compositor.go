// Package compose selects the active visual clip for a timeline instant
// and draws it, letterboxed, into a fixed-resolution frame buffer.
package compose

import (
	"image"
	"image/color"
	idraw "image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/altobi/storyboard-exporter/internal/preload"
	"github.com/altobi/storyboard-exporter/internal/timeline"
)

var black = image.NewUniform(color.RGBA{A: 0xFF})

// Compositor owns the shared frame buffer. Only Draw mutates it; the
// encoding session reads it between draws.
type Compositor struct {
	snap   *timeline.Snapshot
	cache  *preload.ImageCache
	frame  *image.RGBA
	scaler xdraw.Scaler
}

// New creates a compositor rendering into a width x height buffer.
func New(snap *timeline.Snapshot, cache *preload.ImageCache, width, height int) *Compositor {
	return &Compositor{
		snap:   snap,
		cache:  cache,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
		scaler: xdraw.ApproxBiLinear,
	}
}

// Frame returns the shared frame buffer.
func (c *Compositor) Frame() *image.RGBA {
	return c.frame
}

// Draw overwrites the frame buffer with the visual state at timelineTime:
// solid black when no clip is active or its bitmap is missing, otherwise
// the clip's bitmap scaled to fit with letterbox bars on the
// complementary axis. Output is fully opaque and never cropped.
func (c *Compositor) Draw(timelineTime float64) {
	idraw.Draw(c.frame, c.frame.Bounds(), black, image.Point{}, idraw.Src)

	clip, ok := c.snap.ActiveVisualAt(timelineTime)
	if !ok {
		return
	}
	bitmap, ok := c.cache.Get(clip.ID)
	if !ok {
		return
	}

	dst := fitRect(bitmap.Bounds().Dx(), bitmap.Bounds().Dy(), c.frame.Bounds().Dx(), c.frame.Bounds().Dy())
	c.scaler.Scale(c.frame, dst, bitmap, bitmap.Bounds(), xdraw.Src, nil)
}

// fitRect computes the centered destination rectangle that preserves the
// source aspect ratio inside dstW x dstH. Wider-than-target sources fit
// the width (bars top/bottom); taller sources fit the height (bars
// left/right).
func fitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, dstW, dstH)
	}

	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	w, h := dstW, dstH
	if srcAspect > dstAspect {
		h = int(float64(dstW)/srcAspect + 0.5)
	} else {
		w = int(float64(dstH)*srcAspect + 0.5)
	}

	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
