package encode

import "github.com/altobi/storyboard-exporter/internal/render"

// Base video bitrates in bits per second for a 1920x1080 reference frame.
var baseBitrate = map[render.Quality]float64{
	render.QualityLow:    1_000_000,
	render.QualityMedium: 2_500_000,
	render.QualityHigh:   8_000_000,
}

const referencePixels = 1920.0 * 1080.0

// Bitrate computes the video bitrate for an export: the quality tier's
// base rate scaled linearly by the pixel-count ratio against 1080p. H.264
// encoding below the high tier is reduced 40% to bound encode latency.
func Bitrate(quality render.Quality, width, height int, container render.Format) int {
	base, ok := baseBitrate[quality]
	if !ok {
		base = baseBitrate[render.QualityMedium]
	}

	rate := base * float64(width*height) / referencePixels

	if container == render.FormatMP4 && quality != render.QualityHigh {
		rate *= 0.6
	}

	return int(rate)
}
