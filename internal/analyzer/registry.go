package analyzer

import "fmt"

// NewClassifier creates a classifier based on the specified variant.
// Thresholds apply to the geometry variant; zero fields keep defaults.
func NewClassifier(variant string, th Thresholds) (Classifier, error) {
	switch variant {
	case "geometry", "":
		c := NewGeometryClassifier()
		if th.PlanarMin > 0 {
			c.PlanarMin = th.PlanarMin
		}
		if th.NodeMaxDepth > 0 {
			c.NodeMaxDepth = th.NodeMaxDepth
		}
		if th.ElongationRatio > 0 {
			c.ElongationRatio = th.ElongationRatio
		}
		if th.ConnectorMaxDepth > 0 {
			c.ConnectorMaxDepth = th.ConnectorMaxDepth
		}
		return c, nil
	case "source":
		return SourceClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier variant: %s", variant)
	}
}
