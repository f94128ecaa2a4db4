package analyzer

import "github.com/ivlev/concept2video/internal/scene"

// Role is the semantic part an object plays in a diagram.
type Role string

const (
	RoleNode         Role = "node"
	RoleConnector    Role = "connector"
	RoleLabel        Role = "label"
	RoleUnclassified Role = "unclassified"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleNode, RoleConnector, RoleLabel, RoleUnclassified}

// Classified pairs a scene object with its role. The object is a copy.
type Classified struct {
	Object scene.Object `yaml:"object"`
	Role   Role         `yaml:"role"`
}

// Classifier is the interface for role assignment strategies. A classifier
// must be pure and assign exactly one role to every object.
type Classifier interface {
	Classify(obj scene.Object) Role
}

// ClassifyAll applies c to every object, keeping input order.
func ClassifyAll(c Classifier, objects []scene.Object) []Classified {
	out := make([]Classified, len(objects))
	for i, obj := range objects {
		out[i] = Classified{Object: obj, Role: c.Classify(obj)}
	}
	return out
}

// Partition counts objects per role. Every role is present in the result.
func Partition(objects []Classified) map[Role]int {
	counts := make(map[Role]int, len(Roles))
	for _, r := range Roles {
		counts[r] = 0
	}
	for _, o := range objects {
		counts[o.Role]++
	}
	return counts
}

// Select returns the objects with role r in input order.
func Select(objects []Classified, r Role) []Classified {
	var out []Classified
	for _, o := range objects {
		if o.Role == r {
			out = append(out, o)
		}
	}
	return out
}
