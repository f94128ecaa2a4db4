package source

import (
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// RGB is a color with channels normalized to 0–1.
type RGB struct {
	R float64 `yaml:"r" json:"r"`
	G float64 `yaml:"g" json:"g"`
	B float64 `yaml:"b" json:"b"`
}

// DefaultGray is the fallback for colors that cannot be read.
var DefaultGray = RGB{R: 0xCC / 255.0, G: 0xCC / 255.0, B: 0xCC / 255.0}

// IsNone reports whether a paint value disables painting.
func IsNone(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "none" || v == "transparent"
}

// ParseColor reads #RGB, #RRGGBB, rgb(r,g,b) and CSS color names.
// ok is false when the value is malformed.
func ParseColor(v string) (RGB, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return RGB{}, false
	}

	if strings.HasPrefix(v, "#") {
		return parseHex(v[1:])
	}

	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "rgb(") && strings.HasSuffix(lower, ")") {
		return parseFunctional(lower[4 : len(lower)-1])
	}

	if c, ok := colornames.Map[lower]; ok {
		return RGB{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}, true
	}
	return RGB{}, false
}

// ColorOrDefault is ParseColor with the gray fallback applied.
func ColorOrDefault(v string) RGB {
	if c, ok := ParseColor(v); ok {
		return c
	}
	return DefaultGray
}

func parseHex(h string) (RGB, bool) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return RGB{}, false
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{
		R: float64((n>>16)&0xFF) / 255,
		G: float64((n>>8)&0xFF) / 255,
		B: float64(n&0xFF) / 255,
	}, true
}

func parseFunctional(body string) (RGB, bool) {
	parts := splitOnCommaOrSpace(body)
	if len(parts) != 3 {
		return RGB{}, false
	}
	var ch [3]float64
	for i, p := range parts {
		scale := 255.0
		if strings.HasSuffix(p, "%") {
			p = strings.TrimSuffix(p, "%")
			scale = 100
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return RGB{}, false
		}
		ch[i] = clamp01(f / scale)
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
