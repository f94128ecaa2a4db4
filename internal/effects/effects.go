package effects

import (
	"fmt"
	"math"

	"github.com/ivlev/concept2video/internal/director"
)

// Params describe the published video the filter is built for.
type Params struct {
	Width, Height int
	FPS           int
	Frames        int
	FadeSeconds   float64
	Debug         bool
}

// Effect builds an ffmpeg video filter chain applied when publishing.
type Effect interface {
	GenerateFilter(p Params) string
}

// New returns the effect by name. The timeline effect needs the job's timeline.
func New(name string, tl *director.Timeline) (Effect, error) {
	switch name {
	case "", "none":
		return &DefaultEffect{}, nil
	case "fade":
		return &FadeEffect{}, nil
	case "timeline":
		if tl == nil {
			return nil, fmt.Errorf("timeline effect requires a timeline")
		}
		return NewTimelineEffect(tl), nil
	default:
		return nil, fmt.Errorf("unknown effect: %s", name)
	}
}

// DefaultEffect letterboxes the render into the output frame.
type DefaultEffect struct{}

func (e *DefaultEffect) GenerateFilter(p Params) string {
	return fit(p)
}

// FadeEffect adds a fade from and to black of FadeSeconds.
type FadeEffect struct{}

func (e *FadeEffect) GenerateFilter(p Params) string {
	n := fadeFrames(p, p.FadeSeconds)
	if n == 0 {
		return fit(p)
	}
	return fmt.Sprintf("%s,%s", fit(p), fades(p, n, n))
}

func fit(p Params) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		p.Width, p.Height, p.Width, p.Height,
	)
}

// fadeFrames converts seconds to whole frames, at most half the video.
func fadeFrames(p Params, seconds float64) int {
	n := int(math.Round(seconds * float64(p.FPS)))
	if n > p.Frames/2 {
		n = p.Frames / 2
	}
	if n < 0 {
		n = 0
	}
	return n
}

func fades(p Params, in, out int) string {
	s := fmt.Sprintf("fade=t=in:s=0:n=%d", in)
	if out > 0 {
		s += fmt.Sprintf(",fade=t=out:s=%d:n=%d", p.Frames-out, out)
	}
	return s
}
