package source

// ElementKind names a supported vector primitive.
type ElementKind string

const (
	KindRect    ElementKind = "rect"
	KindCircle  ElementKind = "circle"
	KindEllipse ElementKind = "ellipse"
	KindLine    ElementKind = "line"
	KindText    ElementKind = "text"
)

// Attribute defaults applied when the document omits them.
const (
	DefaultFill        = "#CCCCCC"
	DefaultStroke      = "#000000"
	DefaultStrokeWidth = 1.0
	DefaultFontSize    = 12.0
	DefaultWidth       = 800.0
	DefaultHeight      = 600.0
)

// Element is one primitive parsed from the graphic. Only the geometry
// attributes of its kind are meaningful.
type Element struct {
	Kind  ElementKind `yaml:"kind"`
	Index int         `yaml:"index"`

	// rect
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`

	// circle / ellipse
	CX float64 `yaml:"cx,omitempty"`
	CY float64 `yaml:"cy,omitempty"`
	R  float64 `yaml:"r,omitempty"`
	RX float64 `yaml:"rx,omitempty"`
	RY float64 `yaml:"ry,omitempty"`

	// line
	X1 float64 `yaml:"x1,omitempty"`
	Y1 float64 `yaml:"y1,omitempty"`
	X2 float64 `yaml:"x2,omitempty"`
	Y2 float64 `yaml:"y2,omitempty"`

	Fill        string  `yaml:"fill"`
	Stroke      string  `yaml:"stroke"`
	StrokeWidth float64 `yaml:"stroke_width"`
	FontSize    float64 `yaml:"font_size,omitempty"`
	Text        string  `yaml:"text,omitempty"`
}

// Center returns the element's geometric center in canvas coordinates.
func (e Element) Center() (float64, float64) {
	switch e.Kind {
	case KindRect:
		return e.X + e.Width/2, e.Y + e.Height/2
	case KindCircle, KindEllipse:
		return e.CX, e.CY
	case KindLine:
		return (e.X1 + e.X2) / 2, (e.Y1 + e.Y2) / 2
	default:
		return e.X, e.Y
	}
}

// Document is a parsed graphic: the canvas and its supported elements in
// document order.
type Document struct {
	Width    float64   `yaml:"width"`
	Height   float64   `yaml:"height"`
	Elements []Element `yaml:"elements"`
	Skipped  []string  `yaml:"skipped,omitempty"`
}
