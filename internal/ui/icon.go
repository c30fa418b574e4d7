package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// iconBytes is the tray icon, rendered once at startup: a film-frame
// glyph on a dark square.
var iconBytes = renderIcon()

func renderIcon() []byte {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	bg := color.RGBA{R: 0x2b, G: 0x2b, B: 0x2e, A: 0xff}
	fg := color.RGBA{R: 0xe8, G: 0xe8, B: 0xec, A: 0xff}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	// Sprocket holes along top and bottom.
	for _, y := range []int{2, 13} {
		for x := 3; x < size-2; x += 4 {
			img.SetRGBA(x, y, fg)
			img.SetRGBA(x+1, y, fg)
		}
	}

	// Frame area.
	for y := 5; y < 11; y++ {
		for x := 3; x < 13; x++ {
			img.SetRGBA(x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
