package director

import (
	"math"
	"sort"

	"github.com/ivlev/concept2video/internal/analyzer"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/renderer"
	"github.com/ivlev/concept2video/internal/scene"
)

// Director composes animation timelines from classified scene objects
type Director struct {
	SpanWidth  float64 // canvas width in scene units
	SpanHeight float64 // canvas height in scene units
	Tuning     Tuning
}

// NewDirector creates a Director for a canvas of the given scene-unit span
// with default tuning
func NewDirector(spanWidth, spanHeight float64) *Director {
	return &Director{
		SpanWidth:  spanWidth,
		SpanHeight: spanHeight,
		Tuning:     DefaultTuning(),
	}
}

// ForScene creates a Director framed on doc's canvas.
func ForScene(doc *scene.Document, tuning Tuning) *Director {
	w, h := doc.Span()
	return &Director{SpanWidth: w, SpanHeight: h, Tuning: tuning}
}

// Compose builds the phased timeline for objects over totalFrames frames.
// Roles with no objects leave their phase empty.
func (d *Director) Compose(objects []analyzer.Classified, totalFrames int, style Style) (*Timeline, error) {
	if totalFrames <= 0 {
		return nil, domain.Validation("compose", "duration_frames must be positive, got %d", totalFrames)
	}
	style, err := ParseStyle(string(style))
	if err != nil {
		return nil, err
	}

	c := composer{
		tuning: d.Tuning.withDefaults(),
		style:  style,
		total:  float64(totalFrames),
		span:   math.Max(d.SpanWidth, d.SpanHeight),
		nodes:  analyzer.Select(objects, analyzer.RoleNode),
		conns:  analyzer.Select(objects, analyzer.RoleConnector),
		labels: analyzer.Select(objects, analyzer.RoleLabel),
	}
	if c.span <= 0 {
		c.span = defaultSpan
	}

	tl := &Timeline{
		Version:     "1.0",
		Style:       style,
		TotalFrames: totalFrames,
	}

	names := phasesFor(style)
	fractions := c.tuning.fractions(style)
	cum := 0.0
	for i, name := range names {
		start := c.frameAt(cum)
		cum += fractions[i]
		end := c.frameAt(cum)
		if i == len(names)-1 {
			end = c.total
		}

		p := Phase{
			Name:       name,
			Fraction:   fractions[i],
			StartFrame: c.clamp(start),
			EndFrame:   c.clamp(end),
			Tracks:     []Track{},
		}
		p.Tracks = append(p.Tracks, c.tracks(name, p.StartFrame, p.EndFrame)...)
		tl.Phases = append(tl.Phases, p)
	}

	return tl, nil
}

// defaultSpan frames an 800 px canvas at the default scale.
const defaultSpan = 8.0

type composer struct {
	tuning Tuning
	style  Style
	total  float64
	span   float64

	nodes, conns, labels []analyzer.Classified
}

// frameAt maps a duration fraction onto the 1-based frame axis.
func (c *composer) frameAt(f float64) float64 {
	return 1 + f*(c.total-1)
}

// clamp rounds to 1e-3 and keeps the frame inside [1, total].
func (c *composer) clamp(frame float64) float64 {
	frame = math.Round(frame*1000) / 1000
	if frame < 1 {
		return 1
	}
	if frame > c.total {
		return c.total
	}
	return frame
}

func (c *composer) key(frame float64, easing string, v ...float64) Keyframe {
	return Keyframe{Frame: c.clamp(frame), Value: v, Easing: easing}
}

func (c *composer) tracks(phase string, start, end float64) []Track {
	switch phase {
	case PhaseCameraIntro:
		return c.cameraIntro(start, end)
	case PhaseNodeIntro:
		return c.nodeIntro(start, end)
	case PhaseConnectorGrowth:
		return c.connectorGrowth(start, end)
	case PhaseLabelFadeIn:
		return c.labelFade(start, end)
	case PhaseFlowHighlight:
		return c.flowHighlight(start, end)
	case PhaseNetworkActivity:
		return c.networkActivity(start, end)
	}
	return nil
}

// windows splits [start, end] into n object windows of step dur/(n+1).
func windows(start, end float64, n int) [][2]float64 {
	if n == 0 {
		return nil
	}
	step := (end - start) / float64(n+1)
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{start + float64(i)*step, start + float64(i+1)*step}
	}
	return out
}

func (c *composer) cameraIntro(start, end float64) []Track {
	wide := c.span * c.tuning.CameraWide
	closeUp := c.span * c.tuning.CameraClose
	return []Track{{
		ObjectRef: CameraRef,
		Property:  PropLocation,
		Keyframes: []Keyframe{
			c.key(start, renderer.EaseInOut, 0, -wide*0.5, wide),
			c.key(end, renderer.EaseInOut, 0, 0, closeUp),
		},
	}}
}

func (c *composer) nodeIntro(start, end float64) []Track {
	var out []Track
	for i, w := range windows(start, end, len(c.nodes)) {
		obj := c.nodes[i].Object
		sc := obj.Transform.Scale
		pos := obj.Transform.Position
		a, b := w[0], w[1]

		if c.style != StyleNetwork {
			out = append(out, Track{
				ObjectRef: obj.ID,
				Property:  PropScale,
				Keyframes: []Keyframe{
					c.key(a, renderer.EaseOut, 0, 0, 0),
					c.key(b, renderer.EaseInOut, sc.X, sc.Y, sc.Z),
				},
			})
			continue
		}

		peak := a + 0.6*(b-a)
		o := c.tuning.Overshoot
		out = append(out,
			Track{
				ObjectRef: obj.ID,
				Property:  PropScale,
				Keyframes: []Keyframe{
					c.key(a, renderer.EaseOut, 0, 0, 0),
					c.key(peak, renderer.EaseInOut, sc.X*o, sc.Y*o, sc.Z*o),
					c.key(b, renderer.EaseInOut, sc.X, sc.Y, sc.Z),
				},
			},
			Track{
				ObjectRef: obj.ID,
				Property:  PropLocation,
				Keyframes: []Keyframe{
					c.key(a, renderer.EaseOut, pos.X, pos.Y, pos.Z),
					c.key(peak, renderer.EaseInOut, pos.X, pos.Y, pos.Z+c.tuning.BounceHeight),
					c.key(b, renderer.EaseInOut, pos.X, pos.Y, pos.Z),
				},
			},
		)
	}
	return out
}

func (c *composer) connectorGrowth(start, end float64) []Track {
	var out []Track
	for i, w := range windows(start, end, len(c.conns)) {
		ref := c.conns[i].Object.ID
		a, b := w[0], w[1]

		if c.style != StyleNetwork {
			out = append(out, Track{
				ObjectRef: ref,
				Property:  PropReveal,
				Keyframes: []Keyframe{
					c.key(a, renderer.EaseInOut, 0),
					c.key(b, renderer.EaseInOut, 1),
				},
			})
			continue
		}

		grown := a + c.tuning.GrowthShare*(b-a)
		out = append(out,
			Track{
				ObjectRef: ref,
				Property:  PropReveal,
				Keyframes: []Keyframe{
					c.key(a, renderer.EaseInOut, 0),
					c.key(grown, renderer.EaseInOut, 1),
				},
			},
			Track{
				ObjectRef: ref,
				Property:  PropEmission,
				Keyframes: c.pulse(grown, b, c.tuning.PulsePeak),
			},
		)
	}
	return out
}

func (c *composer) labelFade(start, end float64) []Track {
	var out []Track
	for i, w := range windows(start, end, len(c.labels)) {
		out = append(out, Track{
			ObjectRef: c.labels[i].Object.ID,
			Property:  PropOpacity,
			Keyframes: []Keyframe{
				c.key(w[0], renderer.EaseInOut, 0),
				c.key(w[1], renderer.EaseInOut, 1),
			},
		})
	}
	return out
}

func (c *composer) flowHighlight(start, end float64) []Track {
	nodes := c.nodes
	if c.style == StyleFlowchart {
		nodes = readingOrder(nodes, c.tuning.RowTolerance)
	}

	var out []Track
	for i, w := range windows(start, end, len(nodes)) {
		a, b := w[0], w[1]
		var kfs []Keyframe
		if c.style == StyleFlowchart {
			width := b - a
			rise := a + width*(1-c.tuning.DwellShare)/2
			hold := rise + width*c.tuning.DwellShare
			kfs = []Keyframe{
				c.key(a, renderer.EaseOut, 0),
				c.key(rise, renderer.EaseInOut, c.tuning.HighlightPeak),
				c.key(hold, renderer.EaseIn, c.tuning.HighlightPeak),
				c.key(b, renderer.EaseInOut, 0),
			}
		} else {
			kfs = c.pulse(a, b, c.tuning.HighlightPeak)
		}
		out = append(out, Track{
			ObjectRef: nodes[i].Object.ID,
			Property:  PropEmission,
			Keyframes: kfs,
		})
	}
	return out
}

// networkActivity fires PulseCount pulses per connector. Pulse j of
// connector i starts inside period j, offset by i/n of half a period, so
// neighbouring connectors flicker out of phase.
func (c *composer) networkActivity(start, end float64) []Track {
	n := len(c.conns)
	if n == 0 {
		return nil
	}
	count := c.tuning.PulseCount
	period := (end - start) / float64(count)
	width := period / 2

	out := make([]Track, 0, n)
	for i, conn := range c.conns {
		offset := float64(i) / float64(n) * width
		var kfs []Keyframe
		for j := 0; j < count; j++ {
			p0 := start + float64(j)*period + offset
			kfs = append(kfs, c.pulse(p0, p0+width, c.tuning.PulsePeak)...)
		}
		out = append(out, Track{
			ObjectRef: conn.Object.ID,
			Property:  PropEmission,
			Keyframes: kfs,
		})
	}
	return out
}

// pulse is an emission rise to peak and back over [a, b].
func (c *composer) pulse(a, b, peak float64) []Keyframe {
	return []Keyframe{
		c.key(a, renderer.EaseOut, 0),
		c.key((a+b)/2, renderer.EaseIn, peak),
		c.key(b, renderer.EaseInOut, 0),
	}
}

// readingOrder sorts nodes top-to-bottom, then left-to-right. Scene y grows
// upward, so higher y comes first.
func readingOrder(nodes []analyzer.Classified, tolerance float64) []analyzer.Classified {
	sorted := make([]analyzer.Classified, len(nodes))
	copy(sorted, nodes)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Object.Transform.Position, sorted[j].Object.Transform.Position
		if math.Abs(pi.Y-pj.Y) > tolerance {
			return pi.Y > pj.Y
		}
		if pi.X != pj.X {
			return pi.X < pj.X
		}
		return sorted[i].Object.SourceIndex < sorted[j].Object.SourceIndex
	})
	return sorted
}
