package renderer

import (
	"math"
	"sort"
)

// Easing names attached to keyframes. The easing of a keyframe shapes the
// segment that starts at it.
const (
	EaseLinear    = "linear"
	EaseIn        = "ease_in"
	EaseOut       = "ease_out"
	EaseInOut     = "ease_in_out"
	EaseOutBack   = "ease_out_back"
	EaseConstant  = "constant"
	defaultEasing = EaseInOut
)

// Keyframe is the minimal view of a keyframe the evaluator needs.
type Keyframe struct {
	Frame  float64
	Value  []float64
	Easing string
}

// Ease maps t in [0,1] through the named curve. Unknown names fall back to linear.
func Ease(name string, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch name {
	case EaseIn:
		return t * t * t
	case EaseOut:
		return 1 - pow(1-t, 3)
	case EaseInOut:
		return easeInOutCubic(t)
	case EaseOutBack:
		const c1 = 1.70158
		const c3 = c1 + 1
		return 1 + c3*pow(t-1, 3) + c1*pow(t-1, 2)
	case EaseConstant:
		return 0
	default:
		return t
	}
}

// IsEased reports whether name is a known non-linear curve.
func IsEased(name string) bool {
	switch name {
	case EaseIn, EaseOut, EaseInOut, EaseOutBack, EaseConstant:
		return true
	}
	return false
}

// Evaluate calculates the value of a track at frame by interpolating between
// the surrounding keyframes with the easing of the earlier one.
func Evaluate(keyframes []Keyframe, frame float64) []float64 {
	if len(keyframes) == 0 {
		return nil
	}

	kfs := make([]Keyframe, len(keyframes))
	copy(kfs, keyframes)
	sort.SliceStable(kfs, func(i, j int) bool { return kfs[i].Frame < kfs[j].Frame })

	if frame <= kfs[0].Frame {
		return clone(kfs[0].Value)
	}
	last := kfs[len(kfs)-1]
	if frame >= last.Frame {
		return clone(last.Value)
	}

	var prev, next Keyframe
	for i := 0; i < len(kfs)-1; i++ {
		if frame >= kfs[i].Frame && frame < kfs[i+1].Frame {
			prev, next = kfs[i], kfs[i+1]
			break
		}
	}

	span := next.Frame - prev.Frame
	if span <= 0 {
		return clone(next.Value)
	}
	easing := prev.Easing
	if easing == "" {
		easing = defaultEasing
	}
	t := Ease(easing, (frame-prev.Frame)/span)

	n := int(math.Min(float64(len(prev.Value)), float64(len(next.Value))))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = lerp(prev.Value[i], next.Value[i], t)
	}
	return out
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
