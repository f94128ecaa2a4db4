package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/director"
	"github.com/ivlev/concept2video/internal/pipeline"
	"github.com/ivlev/concept2video/internal/preview"
	"github.com/ivlev/concept2video/internal/source"
	"github.com/ivlev/concept2video/internal/system"
)

type jobFunc func(ctx context.Context, o *pipeline.Orchestrator, opts config.Options) (*pipeline.Result, error)

// runSingle executes one job and prints its result. A non-empty timelineDir
// receives a copy of the composed timeline.
func (a *App) runSingle(cmd *cobra.Command, flags *optionFlags, output, timelineDir string, fn jobFunc) (*pipeline.Result, error) {
	cfg, logger, err := a.setup()
	if err != nil {
		return nil, err
	}
	opts, err := flags.options(cmd, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	if err := prepareOutput(output); err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	svc, err := a.services(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	res, err := fn(ctx, svc.orch, opts)
	if res == nil {
		return nil, err
	}
	out := a.output()
	out.Results([]*pipeline.Result{res})

	if timelineDir != "" && res.Timeline != nil {
		if err := os.MkdirAll(timelineDir, 0755); err != nil {
			logger.Warn("could not create timeline directory", "dir", timelineDir, "error", err)
		} else {
			path := director.GenerateTimelinePath(timelineDir)
			if err := director.WriteTimeline(res.Timeline, path); err != nil {
				logger.Warn("could not keep timeline", "path", path, "error", err)
			}
		}
	}
	if err == nil {
		out.Success("Done: " + res.OutputPath)
	}
	return res, err
}

func newRunCmd(app *App) *cobra.Command {
	var flags optionFlags
	var output, timelineDir string

	cmd := &cobra.Command{
		Use:   "run CONCEPT...",
		Short: "Generate a diagram for a concept and animate it into a video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concept := strings.Join(args, " ")
			if output == "" {
				output = outputName(defaultOutputDir, slug(concept), ".mp4", time.Now())
			}
			_, err := app.runSingle(cmd, &flags, output, timelineDir, func(ctx context.Context, o *pipeline.Orchestrator, opts config.Options) (*pipeline.Result, error) {
				return o.RunConcept(ctx, concept, output, opts)
			})
			return err
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Video path (default output/<concept>_<time>.mp4)")
	cmd.Flags().StringVar(&timelineDir, "timeline-dir", defaultTimelineDir, "Keep a copy of the timeline here; empty disables")
	return cmd
}

func newRenderCmd(app *App) *cobra.Command {
	var flags optionFlags
	var output, timelineDir string

	cmd := &cobra.Command{
		Use:   "render [SVG]",
		Short: "Animate an SVG diagram into a video",
		Long:  "Animate an SVG diagram into a video. Without SVG the newest file in " + defaultSVGDir + " is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := svgInput(app.output(), args)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			if output == "" {
				output = outputName(defaultOutputDir, input, ".mp4", time.Now())
			}
			_, err = app.runSingle(cmd, &flags, output, timelineDir, func(ctx context.Context, o *pipeline.Orchestrator, opts config.Options) (*pipeline.Result, error) {
				return o.RunGraphic(ctx, string(data), output, opts)
			})
			return err
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Video path (default output/<name>_<time>.mp4)")
	cmd.Flags().StringVar(&timelineDir, "timeline-dir", defaultTimelineDir, "Keep a copy of the timeline here; empty disables")
	return cmd
}

func svgInput(out *Output, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	latest, err := system.FindLatest(defaultSVGDir, ".svg")
	if err != nil {
		return "", fmt.Errorf("%w: put an SVG into %s or pass a path", err, defaultSVGDir)
	}
	out.Success("Selected " + latest)
	return latest, nil
}

func newGenerateCmd(app *App) *cobra.Command {
	var flags optionFlags
	var output string
	var withPreview bool

	cmd := &cobra.Command{
		Use:   "generate CONCEPT...",
		Short: "Generate an SVG diagram for a concept",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concept := strings.Join(args, " ")
			if output == "" {
				output = outputName(defaultOutputDir, slug(concept), ".svg", time.Now())
			}
			var width int
			res, err := app.runSingle(cmd, &flags, output, "", func(ctx context.Context, o *pipeline.Orchestrator, opts config.Options) (*pipeline.Result, error) {
				width = o.Config.PreviewWidth
				return o.Generate(ctx, concept, output, opts)
			})
			if err != nil || !withPreview {
				return err
			}
			png := strings.TrimSuffix(output, ".svg") + ".png"
			if err := preview.WriteFile(png, res.SVG, width); err != nil {
				return fmt.Errorf("preview: %w", err)
			}
			app.output().Success("Preview: " + png)
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "SVG path (default output/<concept>_<time>.svg)")
	cmd.Flags().BoolVar(&withPreview, "preview", false, "Also write a PNG preview next to the SVG")
	return cmd
}

func newBatchCmd(app *App) *cobra.Command {
	var flags optionFlags
	var workers int
	var outputDir string

	cmd := &cobra.Command{
		Use:   "batch MANIFEST|DIR",
		Short: "Run many jobs concurrently",
		Long: "Run the jobs of a YAML manifest concurrently. Given a directory, every SVG in it\n" +
			"is animated into <output-dir>/<name>.mp4 with the option flags.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.setup()
			if err != nil {
				return err
			}
			reqs, err := batchRequests(cmd, &flags, args[0], outputDir, cfg, logger)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return fmt.Errorf("%s has no jobs", args[0])
			}
			for _, r := range reqs {
				if err := prepareOutput(r.Output); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			svc, err := app.services(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			results := svc.orch.RunBatch(ctx, reqs, workers)
			app.output().Results(results)

			failed := 0
			for _, r := range results {
				if r == nil || !r.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(results))
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent jobs (default from config, else sized to the host)")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "Video directory when running a directory of SVGs")
	return cmd
}

// batchRequests reads a manifest, or lists a directory of graphics.
func batchRequests(cmd *cobra.Command, flags *optionFlags, path, outputDir string, cfg *config.Config, logger *slog.Logger) ([]pipeline.Request, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return pipeline.ReadManifest(path)
	}

	opts, err := flags.options(cmd, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	src, err := source.NewFileSource(path)
	if err != nil {
		return nil, err
	}
	return pipeline.SourceRequests(src, outputDir, opts, logger)
}
