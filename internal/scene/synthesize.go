package scene

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/source"
)

// Options tunes synthesis. The zero value uses DefaultScale.
type Options struct {
	Scale  float64
	Logger *slog.Logger
}

// Synthesize maps every supported element of doc onto one scene object.
// Degenerate lines are dropped with a warning.
func Synthesize(doc *source.Document, opts Options) (*Document, error) {
	if doc == nil {
		return nil, domain.Validation("synthesize", "nil document")
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, domain.Validation("synthesize", "canvas %vx%v must be positive", doc.Width, doc.Height)
	}

	s := opts.Scale
	if s <= 0 {
		s = DefaultScale
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	m := mapper{w: doc.Width, h: doc.Height, s: s}
	out := &Document{
		CanvasWidth:  doc.Width,
		CanvasHeight: doc.Height,
		Scale:        s,
		Objects:      make([]Object, 0, len(doc.Elements)),
	}

	for _, el := range doc.Elements {
		obj, ok := m.object(el)
		if !ok {
			log.Warn("dropping degenerate element", "element", el.Kind, "index", el.Index)
			continue
		}
		obj.ID = fmt.Sprintf("obj_%03d", el.Index)
		obj.Source = el.Kind
		obj.SourceIndex = el.Index
		obj.Material = Material{Color: materialColor(el), Opacity: 1}
		out.Objects = append(out.Objects, obj)
	}

	log.Debug("scene synthesized",
		"elements", len(doc.Elements),
		"objects", len(out.Objects),
		"canvas", fmt.Sprintf("%gx%g", doc.Width, doc.Height))
	return out, nil
}

type mapper struct {
	w, h, s float64
}

func (m mapper) point(x, y float64) (float64, float64) {
	return ToScene(x, y, m.w, m.h, m.s)
}

func (m mapper) object(el source.Element) (Object, bool) {
	s := m.s
	switch el.Kind {
	case source.KindRect:
		cx, cy := el.Center()
		x, y := m.point(cx, cy)
		size := Vec3{X: el.Width * s, Y: el.Height * s, Z: BoxDepth}
		return Object{
			Shape:     ShapeBox,
			Transform: Transform{Position: Vec3{X: x, Y: y}, Scale: size},
			Extents:   size,
		}, true

	case source.KindCircle:
		x, y := m.point(el.CX, el.CY)
		r := el.R * s
		return Object{
			Shape:     ShapeCylinder,
			Transform: Transform{Position: Vec3{X: x, Y: y}, Scale: Vec3{X: r, Y: r, Z: DiscDepth / 2}},
			Extents:   Vec3{X: 2 * r, Y: 2 * r, Z: DiscDepth},
			Radius:    r,
			Depth:     DiscDepth,
		}, true

	case source.KindEllipse:
		x, y := m.point(el.CX, el.CY)
		rx, ry := el.RX*s, el.RY*s
		return Object{
			Shape:     ShapeCylinder,
			Transform: Transform{Position: Vec3{X: x, Y: y}, Scale: Vec3{X: rx, Y: ry, Z: EllipseHalfDepth}},
			Extents:   Vec3{X: 2 * rx, Y: 2 * ry, Z: 2 * EllipseHalfDepth},
			Depth:     2 * EllipseHalfDepth,
		}, true

	case source.KindLine:
		x1, y1 := m.point(el.X1, el.Y1)
		x2, y2 := m.point(el.X2, el.Y2)
		dx, dy := x2-x1, y2-y1
		length := math.Hypot(dx, dy)
		if length < 1e-9 {
			return Object{}, false
		}
		r := el.StrokeWidth * LineRadiusFactor
		return Object{
			Shape: ShapeCylinder,
			Transform: Transform{
				Position: Vec3{X: (x1 + x2) / 2, Y: (y1 + y2) / 2},
				// lay the cylinder axis along X, then turn it onto the segment
				Rotation: Vec3{Y: math.Pi / 2, Z: math.Atan2(dy, dx)},
				Scale:    Vec3{X: r, Y: r, Z: length / 2},
			},
			Extents: Vec3{X: length, Y: 2 * r, Z: 2 * r},
			Radius:  r,
			Depth:   length,
		}, true

	case source.KindText:
		x, y := m.point(el.X, el.Y)
		size := el.FontSize * s
		runes := len([]rune(el.Text))
		return Object{
			Shape:     ShapeGlyph,
			Transform: Transform{Position: Vec3{X: x, Y: y, Z: TextZ}, Scale: Vec3{X: 1, Y: 1, Z: 1}},
			Extents:   Vec3{X: float64(runes) * glyphAdvance * size, Y: size, Z: GlyphDepth},
			Size:      size,
			Depth:     GlyphDepth,
			Text:      el.Text,
		}, true
	}
	return Object{}, false
}

// materialColor picks stroke for lines and fill otherwise, falling back to
// stroke when the fill is disabled.
func materialColor(el source.Element) source.RGB {
	paint := el.Fill
	if el.Kind == source.KindLine || source.IsNone(paint) {
		paint = el.Stroke
	}
	if source.IsNone(paint) {
		return source.DefaultGray
	}
	return source.ColorOrDefault(paint)
}
