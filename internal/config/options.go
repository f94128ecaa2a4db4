package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/concept2video/internal/director"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/renderer"
)

// Resolution is an output frame size, written "WxH".
type Resolution struct {
	Width  int
	Height int
}

// ParseResolution reads "1920x1080".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, domain.Validation("resolution", "want WxH, got %q", s)
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil {
		return Resolution{}, domain.Validation("resolution", "want WxH, got %q", s)
	}
	return Resolution{Width: width, Height: height}, nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) MarshalYAML() (any, error) {
	return r.String(), nil
}

func (r *Resolution) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseResolution(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Resolution) UnmarshalText(b []byte) error {
	parsed, err := ParseResolution(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Options is the caller-facing option set of one job.
type Options struct {
	Provider       string     `yaml:"provider" json:"provider,omitempty"`
	Quality        string     `yaml:"quality" json:"quality,omitempty"`
	AnimationStyle string     `yaml:"animation_style" json:"animation_style,omitempty"`
	Resolution     Resolution `yaml:"resolution" json:"resolution"`
	FPS            int        `yaml:"fps" json:"fps,omitempty"`
	DurationFrames int        `yaml:"duration_frames" json:"duration_frames,omitempty"`
}

const (
	maxDimension = 8192
	maxFPS       = 240
)

// DefaultOptions returns a 1080p, 24 fps, ten second medium-quality job.
func DefaultOptions() Options {
	return Options{
		Quality:        string(renderer.QualityMedium),
		AnimationStyle: string(director.StyleStandard),
		Resolution:     Resolution{Width: 1920, Height: 1080},
		FPS:            24,
		DurationFrames: 240,
	}
}

// Merge fills zero fields of o from defaults.
func (o Options) Merge(defaults Options) Options {
	if o.Provider == "" {
		o.Provider = defaults.Provider
	}
	if o.Quality == "" {
		o.Quality = defaults.Quality
	}
	if o.AnimationStyle == "" {
		o.AnimationStyle = defaults.AnimationStyle
	}
	if o.Resolution == (Resolution{}) {
		o.Resolution = defaults.Resolution
	}
	if o.FPS == 0 {
		o.FPS = defaults.FPS
	}
	if o.DurationFrames == 0 {
		o.DurationFrames = defaults.DurationFrames
	}
	return o
}

// Validate rejects malformed or unsupported options.
func (o Options) Validate() error {
	if o.DurationFrames <= 0 {
		return domain.Validation("options", "duration_frames must be positive, got %d", o.DurationFrames)
	}
	if _, err := renderer.ParseQuality(o.Quality); err != nil {
		return domain.Validation("options", "%v", err)
	}
	if _, err := director.ParseStyle(o.AnimationStyle); err != nil {
		return err
	}
	r := o.Resolution
	if r.Width <= 0 || r.Height <= 0 || r.Width > maxDimension || r.Height > maxDimension {
		return domain.Validation("options", "resolution %s out of range", r)
	}
	if o.FPS <= 0 || o.FPS > maxFPS {
		return domain.Validation("options", "fps must be in 1..%d, got %d", maxFPS, o.FPS)
	}
	return nil
}
