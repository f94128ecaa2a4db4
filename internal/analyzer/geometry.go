package analyzer

import (
	"math"

	"github.com/ivlev/concept2video/internal/scene"
	"github.com/ivlev/concept2video/internal/source"
)

// Thresholds are the extent limits used by GeometryClassifier, in scene units.
type Thresholds struct {
	PlanarMin         float64 `yaml:"planar_min"`          // X and Y extents above this are planar
	NodeMaxDepth      float64 `yaml:"node_max_depth"`      // Z extent below this is thin enough for a node
	ElongationRatio   float64 `yaml:"elongation_ratio"`    // long axis ≥ ratio × short axis
	ConnectorMaxDepth float64 `yaml:"connector_max_depth"` // Z extent below this is thin enough for a connector
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlanarMin:         0.1,
		NodeMaxDepth:      0.2,
		ElongationRatio:   3,
		ConnectorMaxDepth: 0.1,
	}
}

// GeometryClassifier assigns roles from bounding extents alone.
type GeometryClassifier struct {
	Thresholds
}

// NewGeometryClassifier creates a classifier with default thresholds.
func NewGeometryClassifier() *GeometryClassifier {
	return &GeometryClassifier{Thresholds: DefaultThresholds()}
}

// Classify checks, in order: glyphs are labels, flat planar shapes are
// nodes, thin elongated shapes are connectors.
func (c *GeometryClassifier) Classify(obj scene.Object) Role {
	if obj.Shape == scene.ShapeGlyph {
		return RoleLabel
	}

	e := obj.Extents
	if e.X > c.PlanarMin && e.Y > c.PlanarMin && e.Z < c.NodeMaxDepth {
		return RoleNode
	}

	long, short := math.Max(e.X, e.Y), math.Min(e.X, e.Y)
	if long > 0 && long >= c.ElongationRatio*short && e.Z < c.ConnectorMaxDepth {
		return RoleConnector
	}

	return RoleUnclassified
}

// SourceClassifier assigns roles from the originating element kind.
// It ignores geometry and is mainly useful for hand-authored graphics.
type SourceClassifier struct{}

func (SourceClassifier) Classify(obj scene.Object) Role {
	switch {
	case obj.Shape == scene.ShapeGlyph:
		return RoleLabel
	case obj.Source == source.KindLine:
		return RoleConnector
	case obj.Source == source.KindRect, obj.Source == source.KindCircle, obj.Source == source.KindEllipse:
		return RoleNode
	}
	return RoleUnclassified
}
