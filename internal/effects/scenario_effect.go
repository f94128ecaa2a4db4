package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/concept2video/internal/director"
)

// TimelineEffect fades in over the timeline's camera intro and, in debug
// mode, stamps the active phase name on each frame.
type TimelineEffect struct {
	Timeline *director.Timeline
}

// NewTimelineEffect creates a new TimelineEffect
func NewTimelineEffect(tl *director.Timeline) *TimelineEffect {
	return &TimelineEffect{Timeline: tl}
}

// GenerateFilter generates the FFmpeg filter for the timeline's video
func (e *TimelineEffect) GenerateFilter(p Params) string {
	if e.Timeline == nil || len(e.Timeline.Phases) == 0 {
		return fit(p)
	}

	// timeline frames are 1-based, ffmpeg's n is 0-based
	intro := e.Timeline.Phases[0]
	in := int(intro.EndFrame-intro.StartFrame) / 2
	if in > p.Frames/2 {
		in = p.Frames / 2
	}

	parts := []string{fit(p)}
	if in > 0 {
		parts = append(parts, fades(p, in, fadeFrames(p, p.FadeSeconds)))
	}

	if p.Debug {
		for _, ph := range e.Timeline.Phases {
			parts = append(parts, fmt.Sprintf(
				"drawtext=text='%s':x=10:y=10:fontsize=24:fontcolor=yellow:box=1:boxcolor=black@0.5:enable='between(n,%d,%d)'",
				ph.Name, int(ph.StartFrame)-1, int(ph.EndFrame)-1))
		}
	}

	return strings.Join(parts, ",")
}
