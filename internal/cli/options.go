package cli

import (
	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/config"
)

// optionFlags are the per-job options shared by the job commands.
type optionFlags struct {
	provider   string
	quality    string
	style      string
	resolution string
	fps        int
	frames     int
}

func (f *optionFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.provider, "provider", "", "Generation provider: anthropic, openai, ollama, static")
	fs.StringVar(&f.quality, "quality", "", "Render quality: low, medium, high")
	fs.StringVar(&f.style, "style", "", "Animation style: standard, flowchart, network")
	fs.StringVar(&f.resolution, "resolution", "", "Output size as WxH, e.g. 1280x720")
	fs.IntVar(&f.fps, "fps", 0, "Frames per second")
	fs.IntVar(&f.frames, "frames", 0, "Duration in frames")
}

// options merges the flags over defaults. An explicit --frames is kept as
// given, so --frames 0 is rejected rather than defaulted.
func (f *optionFlags) options(cmd *cobra.Command, defaults config.Options) (config.Options, error) {
	o := config.Options{
		Provider:       f.provider,
		Quality:        f.quality,
		AnimationStyle: f.style,
		FPS:            f.fps,
	}
	if f.resolution != "" {
		r, err := config.ParseResolution(f.resolution)
		if err != nil {
			return o, err
		}
		o.Resolution = r
	}
	o = o.Merge(defaults)
	if cmd.Flags().Changed("frames") {
		o.DurationFrames = f.frames
	}
	return o, o.Validate()
}
