package renderer

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is the caller-facing render quality level.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Profile is the render settings contract every engine must honour for a
// quality level.
type Profile struct {
	Quality          Quality `yaml:"quality" json:"quality"`
	Samples          int     `yaml:"samples" json:"samples"`
	AmbientOcclusion bool    `yaml:"ambient_occlusion" json:"ambient_occlusion"`
	Reflections      bool    `yaml:"reflections" json:"reflections"`
	Bloom            bool    `yaml:"bloom" json:"bloom"`
	MotionBlur       bool    `yaml:"motion_blur" json:"motion_blur"`
}

var profiles = map[Quality]Profile{
	QualityLow: {
		Quality: QualityLow,
		Samples: 16,
	},
	QualityMedium: {
		Quality:          QualityMedium,
		Samples:          64,
		AmbientOcclusion: true,
	},
	QualityHigh: {
		Quality:          QualityHigh,
		Samples:          256,
		AmbientOcclusion: true,
		Reflections:      true,
		Bloom:            true,
		MotionBlur:       true,
	},
}

// ParseQuality validates a quality name. Empty means medium.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality %q (want low, medium or high)", s)
	}
}

// ProfileFor returns the settings for q.
func ProfileFor(q Quality) (Profile, error) {
	p, ok := profiles[q]
	if !ok {
		return Profile{}, fmt.Errorf("unknown quality %q", q)
	}
	return p, nil
}

// PostEffects reports whether any post-processing pass is enabled.
func (p Profile) PostEffects() bool {
	return p.AmbientOcclusion || p.Reflections || p.Bloom
}

// Args renders the profile as engine command-line parameters.
func (p Profile) Args() []string {
	args := []string{
		"--quality", string(p.Quality),
		"--samples", strconv.Itoa(p.Samples),
	}
	if p.AmbientOcclusion {
		args = append(args, "--ambient-occlusion")
	}
	if p.Reflections {
		args = append(args, "--reflections")
	}
	if p.Bloom {
		args = append(args, "--bloom")
	}
	if p.MotionBlur {
		args = append(args, "--motion-blur")
	}
	return args
}
