package encode

import (
	"testing"

	"github.com/altobi/storyboard-exporter/internal/render"
)

func TestBitrate(t *testing.T) {
	tests := []struct {
		name      string
		quality   render.Quality
		w, h      int
		container render.Format
		want      int
	}{
		{name: "high 1080p webm", quality: render.QualityHigh, w: 1920, h: 1080, container: render.FormatWebM, want: 8_000_000},
		{name: "medium 1080p webm", quality: render.QualityMedium, w: 1920, h: 1080, container: render.FormatWebM, want: 2_500_000},
		{name: "medium 720p webm scales by pixels", quality: render.QualityMedium, w: 1280, h: 720, container: render.FormatWebM, want: 1_111_111},
		{name: "medium 1080p mp4 reduced 40 percent", quality: render.QualityMedium, w: 1920, h: 1080, container: render.FormatMP4, want: 1_500_000},
		{name: "low 1080p mp4 reduced 40 percent", quality: render.QualityLow, w: 1920, h: 1080, container: render.FormatMP4, want: 600_000},
		{name: "high mp4 keeps full rate", quality: render.QualityHigh, w: 1920, h: 1080, container: render.FormatMP4, want: 8_000_000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Bitrate(tc.quality, tc.w, tc.h, tc.container)
			if got != tc.want {
				t.Fatalf("Bitrate(%s, %dx%d, %s) = %d, want %d", tc.quality, tc.w, tc.h, tc.container, got, tc.want)
			}
		})
	}
}

func TestBuildVideoArgs(t *testing.T) {
	settings := render.Settings{
		Format: render.FormatMP4, Width: 1280, Height: 720,
		FPS: 30, Quality: render.QualityHigh, StartTime: 0, EndTime: 10,
	}
	n := Negotiated{Container: render.FormatMP4, Codec: CodecH264Baseline}

	args := buildVideoArgs(n, settings, "/tmp/video.mp4")

	assertArgPair(t, args, "-s", "1280x720")
	assertArgPair(t, args, "-r", "30")
	assertArgPair(t, args, "-c:v", "libx264")
	assertArgPair(t, args, "-profile:v", "baseline")
	assertArgPair(t, args, "-pix_fmt", "rgba")
	if args[len(args)-1] != "/tmp/video.mp4" {
		t.Fatalf("output path not last arg: %v", args)
	}
}

func TestBuildVideoArgs_VP9HasNoProfile(t *testing.T) {
	settings := render.Settings{
		Format: render.FormatWebM, Width: 640, Height: 360,
		FPS: 24, Quality: render.QualityLow, StartTime: 0, EndTime: 5,
	}
	n := Negotiated{Container: render.FormatWebM, Codec: CodecVP9}

	args := buildVideoArgs(n, settings, "/tmp/video.webm")
	for _, a := range args {
		if a == "-profile:v" {
			t.Fatalf("vp9 args should not carry an h264 profile: %v", args)
		}
	}
	assertArgPair(t, args, "-c:v", "libvpx-vp9")
}

func TestBuildMuxArgs(t *testing.T) {
	settings := render.Settings{
		Format: render.FormatWebM, Width: 640, Height: 360,
		FPS: 24, Quality: render.QualityLow, StartTime: 2, EndTime: 7.5,
	}

	args := buildMuxArgs(Negotiated{Container: render.FormatWebM, Codec: CodecVP8}, settings, "v.webm", "a.wav", "out.webm")
	assertArgPair(t, args, "-c:a", "libopus")
	assertArgPair(t, args, "-t", "5.500")

	args = buildMuxArgs(Negotiated{Container: render.FormatMP4, Codec: CodecH264Main}, settings, "v.mp4", "a.wav", "out.mp4")
	assertArgPair(t, args, "-c:a", "aac")
	assertArgPair(t, args, "-c:v", "copy")
}

func assertArgPair(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			if args[i+1] != value {
				t.Fatalf("%s = %q, want %q (args %v)", flag, args[i+1], value, args)
			}
			return
		}
	}
	t.Fatalf("flag %s missing from args %v", flag, args)
}
