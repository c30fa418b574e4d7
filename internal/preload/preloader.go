// Package preload resolves every visual clip in an export region to a
// decoded in-memory bitmap before rendering starts. Sources that fail to
// load are substituted with a placeholder instead of aborting the run.
package preload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/altobi/storyboard-exporter/internal/timeline"
)

// ProjectImage is one entry of the external project's image list, used to
// resolve storyboard-derived clips that carry no direct URL.
type ProjectImage struct {
	ID          string `json:"id"`
	SceneNumber int    `json:"scene_number"`
	ShotNumber  int    `json:"shot_number"`
	FrameNumber int    `json:"frame_number"`
	URL         string `json:"url"`
}

// ImageCache maps clip IDs to decoded bitmaps. It is written once during
// preloading and read-only afterwards, so readers need no locking.
type ImageCache struct {
	mu     sync.Mutex
	images map[string]image.Image
}

// NewImageCache returns an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]image.Image)}
}

// Get returns the decoded bitmap for a clip, if present.
func (c *ImageCache) Get(clipID string) (image.Image, bool) {
	img, ok := c.images[clipID]
	return img, ok
}

// Len returns the number of cached bitmaps.
func (c *ImageCache) Len() int {
	return len(c.images)
}

// Release drops all cached bitmaps. The cache is owned by a single export
// run and discarded when the run ends.
func (c *ImageCache) Release() {
	c.images = nil
}

// Put stores a bitmap for a clip. Only the preloading phase writes.
func (c *ImageCache) Put(clipID string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[clipID] = img
}

// Preloader loads clip bitmaps concurrently through a Fetcher.
type Preloader struct {
	fetch  Fetcher
	logger *slog.Logger
}

// NewPreloader builds a preloader; a nil fetcher defaults to the
// network/file SourceFetcher.
func NewPreloader(fetch Fetcher, logger *slog.Logger) *Preloader {
	if fetch == nil {
		fetch = NewSourceFetcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preloader{fetch: fetch, logger: logger}
}

// Load resolves every given visual clip to a bitmap, reporting progress
// as (loaded/total)*50 after each resolution. All loads are issued
// together; Load returns only once every clip has either decoded or been
// replaced by a placeholder. Individual failures are never fatal.
func (p *Preloader) Load(ctx context.Context, clips []timeline.Clip, images []ProjectImage, progress func(float64)) *ImageCache {
	cache := NewImageCache()
	p.LoadInto(ctx, cache, clips, images, progress)
	return cache
}

// LoadInto is Load writing into a caller-owned cache, for callers that
// hand the cache to a consumer before preloading begins.
func (p *Preloader) LoadInto(ctx context.Context, cache *ImageCache, clips []timeline.Clip, images []ProjectImage, progress func(float64)) {
	total := len(clips)
	if total == 0 {
		if progress != nil {
			progress(50)
		}
		return
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		loaded int
	)

	for _, clip := range clips {
		wg.Add(1)
		go func(clip timeline.Clip) {
			defer wg.Done()

			img, err := p.loadClip(ctx, clip, images)
			if err != nil {
				p.logger.Warn("clip source unavailable, substituting placeholder",
					"clip_id", clip.ID, "error", err)
				img = newPlaceholder(clip.ID)
			}
			cache.Put(clip.ID, img)

			mu.Lock()
			loaded++
			pct := float64(loaded) / float64(total) * 50
			mu.Unlock()
			if progress != nil {
				progress(pct)
			}
		}(clip)
	}

	wg.Wait()
}

// loadClip tries each candidate source in resolution order and decodes
// the first one that fetches.
func (p *Preloader) loadClip(ctx context.Context, clip timeline.Clip, images []ProjectImage) (image.Image, error) {
	urls := candidateURLs(clip, images)
	if len(urls) == 0 {
		return nil, fmt.Errorf("clip %q has no resolvable source", clip.ID)
	}

	var lastErr error
	for _, url := range urls {
		data, err := p.fetch.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			lastErr = fmt.Errorf("decode %s: %w", url, err)
			continue
		}
		return img, nil
	}
	return nil, lastErr
}

// candidateURLs returns the source resolution chain for a clip: explicit
// image URL, file URL, thumbnail, generic URL, then project image lookup
// by ID or scene/shot/frame triple.
func candidateURLs(clip timeline.Clip, images []ProjectImage) []string {
	var urls []string
	add := func(u string) {
		if u != "" {
			urls = append(urls, u)
		}
	}

	add(clip.ImageURL)
	add(clip.FileURL)
	add(clip.ThumbnailURL)
	add(clip.URL)

	if clip.ImageID != "" {
		for _, img := range images {
			if img.ID == clip.ImageID {
				add(img.URL)
				break
			}
		}
	}
	if clip.SceneNumber > 0 || clip.ShotNumber > 0 || clip.FrameNumber > 0 {
		for _, img := range images {
			if img.SceneNumber == clip.SceneNumber &&
				img.ShotNumber == clip.ShotNumber &&
				img.FrameNumber == clip.FrameNumber {
				add(img.URL)
				break
			}
		}
	}

	return urls
}
