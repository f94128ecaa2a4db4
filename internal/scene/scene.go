// Package scene maps parsed 2D graphics onto 3D scene objects.
//
// Coordinates: canvas x grows right and y grows down; scene x grows right
// and y grows up, centered on the canvas midpoint and scaled by Scale.
package scene

import (
	"github.com/ivlev/concept2video/internal/source"
)

// Shape is the engine primitive an object is built from.
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeCylinder Shape = "cylinder"
	ShapeGlyph    Shape = "glyph"
)

// Mapping constants, in scene units.
const (
	DefaultScale     = 0.01
	BoxDepth         = 0.1
	DiscDepth        = 0.1
	EllipseHalfDepth = 0.05
	LineRadiusFactor = 0.005
	TextZ            = 0.05
	GlyphDepth       = 0.02

	// average glyph advance relative to font size, for text extents
	glyphAdvance = 0.6
)

type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Transform places a primitive. Boxes are scaled to their dimensions;
// cylinders use (radius, radius, half depth) over a unit cylinder whose
// axis is local Z.
type Transform struct {
	Position Vec3 `yaml:"position,flow" json:"position"`
	Rotation Vec3 `yaml:"rotation,flow" json:"rotation"`
	Scale    Vec3 `yaml:"scale,flow" json:"scale"`
}

type Material struct {
	Color   source.RGB `yaml:"color,flow" json:"color"`
	Opacity float64    `yaml:"opacity" json:"opacity"`
}

// Object is one synthesized 3D primitive.
type Object struct {
	ID          string             `yaml:"id" json:"id"`
	Shape       Shape              `yaml:"shape" json:"shape"`
	Source      source.ElementKind `yaml:"source" json:"source"`
	SourceIndex int                `yaml:"source_index" json:"source_index"`
	Transform   Transform          `yaml:"transform" json:"transform"`
	// Extents are the object's sizes along its own length, width and depth.
	Extents  Vec3     `yaml:"extents,flow" json:"extents"`
	Material Material `yaml:"material" json:"material"`

	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Depth  float64 `yaml:"depth,omitempty" json:"depth,omitempty"`
	Size   float64 `yaml:"size,omitempty" json:"size,omitempty"`
	Text   string  `yaml:"text,omitempty" json:"text,omitempty"`
}

// Document is the declarative scene handed to the engine.
type Document struct {
	CanvasWidth  float64  `yaml:"canvas_width" json:"canvas_width"`
	CanvasHeight float64  `yaml:"canvas_height" json:"canvas_height"`
	Scale        float64  `yaml:"scale" json:"scale"`
	Objects      []Object `yaml:"objects" json:"objects"`
}

// Span returns the canvas size in scene units.
func (d *Document) Span() (float64, float64) {
	return d.CanvasWidth * d.Scale, d.CanvasHeight * d.Scale
}

// ToScene converts a canvas point to scene x, y.
func ToScene(x, y, w, h, s float64) (float64, float64) {
	return (x - w/2) * s, (h/2 - y) * s
}

// ToCanvas is the inverse of ToScene.
func ToCanvas(pos Vec3, w, h, s float64) (float64, float64) {
	return pos.X/s + w/2, h/2 - pos.Y/s
}
