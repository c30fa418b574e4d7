// Package encode negotiates an output container/codec pair for an export
// and owns the encoding session that turns composited frames and the
// mixed audio track into a finished media file.
package encode

import (
	"fmt"

	"github.com/altobi/storyboard-exporter/internal/render"
)

// Codec identifiers, in the profile notation container negotiation uses.
const (
	CodecH264Baseline = "avc1.42E01E"
	CodecH264Main     = "avc1.4D401E"
	CodecVP9          = "vp9"
	CodecVP8          = "vp8"
)

// Negotiated is a container/codec pair the runtime can actually encode.
type Negotiated struct {
	Container render.Format
	Codec     string
}

// MimeType returns the MIME type of the negotiated output, which reflects
// the fallback container when the requested one was unsupported.
func (n Negotiated) MimeType() string {
	if n.Container == render.FormatWebM {
		return "video/webm"
	}
	return "video/mp4"
}

// Extension returns the output filename extension.
func (n Negotiated) Extension() string {
	return string(n.Container)
}

// Capabilities answers whether the host runtime can encode a given
// container/codec pair.
type Capabilities interface {
	Supports(container render.Format, codec string) bool
}

// Negotiate resolves the requested format to a working pair, degrading
// gracefully: mp4 tries both H.264 profile variants before falling back
// to webm/VP8; webm tries VP9 before VP8. No workable pair is fatal.
func Negotiate(format render.Format, caps Capabilities) (Negotiated, error) {
	switch format {
	case render.FormatMP4:
		for _, codec := range []string{CodecH264Baseline, CodecH264Main} {
			if caps.Supports(render.FormatMP4, codec) {
				return Negotiated{Container: render.FormatMP4, Codec: codec}, nil
			}
		}
		if caps.Supports(render.FormatWebM, CodecVP8) {
			return Negotiated{Container: render.FormatWebM, Codec: CodecVP8}, nil
		}
		return Negotiated{}, fmt.Errorf("no supported codec: mp4/H.264 unavailable and webm/VP8 fallback unsupported")

	case render.FormatWebM:
		if caps.Supports(render.FormatWebM, CodecVP9) {
			return Negotiated{Container: render.FormatWebM, Codec: CodecVP9}, nil
		}
		if caps.Supports(render.FormatWebM, CodecVP8) {
			return Negotiated{Container: render.FormatWebM, Codec: CodecVP8}, nil
		}
		return Negotiated{}, fmt.Errorf("no supported codec: webm requires VP9 or VP8")

	default:
		return Negotiated{}, fmt.Errorf("unsupported format %q", format)
	}
}
