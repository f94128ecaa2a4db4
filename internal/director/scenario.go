package director

import (
	"math"

	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/renderer"
)

// Style selects the phase layout of a timeline.
type Style string

const (
	StyleStandard  Style = "standard"
	StyleFlowchart Style = "flowchart"
	StyleNetwork   Style = "network"
)

// ParseStyle validates a style name. Empty means standard.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "":
		return StyleStandard, nil
	case StyleStandard, StyleFlowchart, StyleNetwork:
		return Style(s), nil
	}
	return "", domain.Validation("style", "unknown animation style %q", s)
}

// Phase names.
const (
	PhaseCameraIntro     = "camera_intro"
	PhaseNodeIntro       = "node_intro"
	PhaseConnectorGrowth = "connector_growth"
	PhaseLabelFadeIn     = "label_fade_in"
	PhaseFlowHighlight   = "flow_highlight"
	PhaseNetworkActivity = "network_activity"
)

// Animated properties.
const (
	PropLocation = "location"
	PropScale    = "scale"
	PropReveal   = "reveal"
	PropOpacity  = "opacity"
	PropEmission = "emission"
)

// CameraRef is the object reference of the scene camera.
const CameraRef = "camera"

// Timeline is the complete set of phased keyframe tracks for a scene.
type Timeline struct {
	Version     string  `yaml:"version" json:"version"`
	Style       Style   `yaml:"style" json:"style"`
	TotalFrames int     `yaml:"total_frames" json:"total_frames"`
	Phases      []Phase `yaml:"phases" json:"phases"`
}

// Phase is a contiguous slice of the timeline.
type Phase struct {
	Name       string  `yaml:"name" json:"name"`
	Fraction   float64 `yaml:"fraction" json:"fraction"`
	StartFrame float64 `yaml:"start_frame" json:"start_frame"`
	EndFrame   float64 `yaml:"end_frame" json:"end_frame"`
	Tracks     []Track `yaml:"tracks" json:"tracks"`
}

// Track animates one property of one object.
type Track struct {
	ObjectRef string     `yaml:"object" json:"object"`
	Property  string     `yaml:"property" json:"property"`
	Keyframes []Keyframe `yaml:"keyframes" json:"keyframes"`
}

// Keyframe sets a property value at a frame. Easing shapes the segment
// that starts here.
type Keyframe struct {
	Frame  float64   `yaml:"frame" json:"frame"`
	Value  []float64 `yaml:"value,flow" json:"value"`
	Easing string    `yaml:"easing" json:"easing"`
}

// Sample evaluates the track at frame.
func (t Track) Sample(frame float64) []float64 {
	kfs := make([]renderer.Keyframe, len(t.Keyframes))
	for i, k := range t.Keyframes {
		kfs[i] = renderer.Keyframe{Frame: k.Frame, Value: k.Value, Easing: k.Easing}
	}
	return renderer.Evaluate(kfs, frame)
}

// Keyframes returns the number of keyframes across all phases.
func (tl *Timeline) Keyframes() int {
	n := 0
	for _, p := range tl.Phases {
		for _, tr := range p.Tracks {
			n += len(tr.Keyframes)
		}
	}
	return n
}

// Validate checks the timeline invariants: fractions sum to one, phases are
// ordered and every keyframe lies inside [1, TotalFrames].
func (tl *Timeline) Validate() error {
	if tl.TotalFrames <= 0 {
		return domain.Validation("timeline", "total_frames must be positive, got %d", tl.TotalFrames)
	}

	sum := 0.0
	prev := 1.0
	last := float64(tl.TotalFrames)
	for _, p := range tl.Phases {
		sum += p.Fraction
		if p.StartFrame < prev-frameEpsilon || p.EndFrame < p.StartFrame || p.EndFrame > last {
			return domain.Validation("timeline", "phase %s spans [%g, %g]", p.Name, p.StartFrame, p.EndFrame)
		}
		prev = p.EndFrame
		for _, tr := range p.Tracks {
			for _, k := range tr.Keyframes {
				if k.Frame < 1 || k.Frame > last {
					return domain.Validation("timeline", "%s.%s keyframe at frame %g outside [1, %d]",
						tr.ObjectRef, tr.Property, k.Frame, tl.TotalFrames)
				}
			}
		}
	}
	if len(tl.Phases) > 0 && math.Abs(sum-1) > 1e-6 {
		return domain.Validation("timeline", "phase fractions sum to %g", sum)
	}
	return nil
}

const frameEpsilon = 1e-3
