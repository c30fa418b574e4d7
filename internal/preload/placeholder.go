package preload

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 640
	placeholderHeight = 360
)

var (
	placeholderFill  = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	placeholderLabel = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
)

// newPlaceholder synthesizes the substitute bitmap used when a clip's
// source cannot be loaded: a neutral-gray frame with a centered
// "unavailable" label.
func newPlaceholder(clipID string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderFill), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	label := "unavailable"
	if clipID != "" {
		label = clipID + " unavailable"
	}

	width := font.MeasureString(face, label).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderLabel),
		Face: face,
		Dot: fixed.P(
			(placeholderWidth-width)/2,
			placeholderHeight/2+face.Metrics().Ascent.Ceil()/2,
		),
	}
	d.DrawString(label)

	return img
}
