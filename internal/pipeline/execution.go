package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/concept2video/internal/analyzer"
	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/director"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/effects"
	"github.com/ivlev/concept2video/internal/engine"
	"github.com/ivlev/concept2video/internal/preview"
	"github.com/ivlev/concept2video/internal/provider"
	"github.com/ivlev/concept2video/internal/renderer"
	"github.com/ivlev/concept2video/internal/scene"
	"github.com/ivlev/concept2video/internal/source"
	"github.com/ivlev/concept2video/internal/telemetry"
	"github.com/ivlev/concept2video/internal/video"
)

// execution is the state of one running job.
type execution struct {
	o    *Orchestrator
	job  *domain.Job
	opts config.Options
	out  string
	log  *slog.Logger

	gen      provider.Generator
	dir      string
	svg      string
	doc      *source.Document
	scene    *scene.Document
	timeline *director.Timeline
}

// validate rejects the job before any generation or engine call.
func (x *execution) validate(input string) error {
	if err := x.opts.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(input) == "" {
		if x.job.Kind == domain.JobKindGraphic {
			return domain.Validation("validate", "graphic document is empty")
		}
		return domain.Validation("validate", "concept is empty")
	}
	if x.job.Kind != domain.JobKindGenerate && x.out == "" {
		return domain.Validation("validate", "output path is required")
	}
	if x.job.Kind != domain.JobKindGraphic {
		gen, err := x.o.Generators(x.opts.Provider)
		if err != nil {
			return domain.Validation("validate", "%v", err)
		}
		x.gen = gen
	}
	return nil
}

// execute owns the working directory: it is removed on every way out,
// panics included.
func (x *execution) execute(ctx context.Context, input string) {
	if err := x.makeWorkDir(); err != nil {
		x.fail(ctx, err)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			x.fail(ctx, domain.Errorf(domain.KindInternal, "pipeline", "panic: %v", p))
		}
		x.cleanup()
	}()

	if err := x.stages(ctx, input); err != nil {
		x.fail(ctx, err)
	}
}

func (x *execution) stages(ctx context.Context, input string) error {
	if err := x.step(ctx, StepGenerate, func() error { return x.graphic(ctx, input) }); err != nil {
		return err
	}
	if err := x.advance(ctx, domain.StageSVGReady); err != nil {
		return err
	}

	if x.job.Kind == domain.JobKindGenerate {
		if x.out != "" {
			err := x.step(ctx, StepPublish, func() error {
				if err := writeFile(x.out, []byte(x.svg)); err != nil {
					return domain.Wrap(domain.KindResource, StepPublish, err)
				}
				x.job.OutputPath = x.out
				return nil
			})
			if err != nil {
				return err
			}
		}
		return x.advance(ctx, domain.StageSucceeded)
	}

	if err := x.step(ctx, StepSynthesize, x.compose); err != nil {
		return err
	}

	d := x.o.Dispatcher
	state := x.path("scene.blend")
	if err := x.step(ctx, StepConvert, func() error {
		return d.Convert(ctx, x.job.Artifacts[ArtifactScene], state)
	}); err != nil {
		return err
	}
	x.job.AddArtifact(ArtifactState, state)
	if err := x.advance(ctx, domain.StageModelReady); err != nil {
		return err
	}

	animated := x.path("animated.blend")
	if err := x.step(ctx, StepAnimate, func() error {
		return d.Animate(ctx, state, x.job.Artifacts[ArtifactTimeline], animated)
	}); err != nil {
		return err
	}
	x.job.AddArtifact(ArtifactAnimated, animated)
	if err := x.advance(ctx, domain.StageAnimated); err != nil {
		return err
	}

	rendered := x.path("render.mp4")
	if err := x.step(ctx, StepRender, func() error {
		return d.Render(ctx, animated, rendered, x.renderParams())
	}); err != nil {
		return err
	}
	x.job.AddArtifact(ArtifactRender, rendered)
	if err := x.advance(ctx, domain.StageRendered); err != nil {
		return err
	}

	if err := x.step(ctx, StepPublish, func() error { return x.publish(ctx, rendered) }); err != nil {
		return err
	}
	return x.advance(ctx, domain.StageSucceeded)
}

// graphic obtains the SVG document, either from the caller or the provider.
func (x *execution) graphic(ctx context.Context, input string) error {
	var err error
	if x.job.Kind == domain.JobKindGraphic {
		x.svg, x.doc, err = x.accept(input)
	} else {
		x.svg, x.doc, err = x.generate(ctx, input)
	}
	if err != nil {
		return err
	}

	path := x.path("graphic.svg")
	if err := os.WriteFile(path, []byte(x.svg), 0644); err != nil {
		return domain.Wrap(domain.KindResource, StepGenerate, err)
	}
	x.job.AddArtifact(ArtifactGraphic, path)

	if x.o.Config.Preview {
		png := filepath.Join(x.dir, "preview.png")
		if err := preview.WriteFile(png, x.svg, x.o.Config.PreviewWidth); err != nil {
			x.log.Warn("preview failed", "error", err)
		} else {
			x.job.AddArtifact(ArtifactPreview, png)
		}
	}
	return nil
}

// accept extracts and parses the graphic in text.
func (x *execution) accept(text string) (string, *source.Document, error) {
	svg, err := source.Extract(text)
	if err != nil {
		return "", nil, err
	}
	doc, err := source.ParseString(svg, x.log)
	if err != nil {
		return "", nil, err
	}
	if len(doc.Skipped) > 0 {
		x.log.Info("unsupported elements dropped", "elements", doc.Skipped)
	}
	return svg, doc, nil
}

// compose builds and writes the scene and timeline documents.
func (x *execution) compose() error {
	sc, err := scene.Synthesize(x.doc, scene.Options{Logger: x.log})
	if err != nil {
		return err
	}

	cfg := x.o.Config
	cls, err := analyzer.NewClassifier(cfg.Classifier, cfg.Thresholds)
	if err != nil {
		return domain.Validation(StepSynthesize, "%v", err)
	}
	classified := analyzer.ClassifyAll(cls, sc.Objects)
	x.log.Info("scene classified", "objects", len(classified), "roles", analyzer.Partition(classified))

	tl, err := director.ForScene(sc, cfg.Animation).
		Compose(classified, x.opts.DurationFrames, director.Style(x.opts.AnimationStyle))
	if err != nil {
		return err
	}

	scenePath := x.path("scene.yaml")
	if err := scene.Write(sc, scenePath); err != nil {
		return domain.Wrap(domain.KindResource, StepSynthesize, err)
	}
	x.job.AddArtifact(ArtifactScene, scenePath)
	timelinePath := x.path("timeline.yaml")
	if err := director.WriteTimeline(tl, timelinePath); err != nil {
		return domain.Wrap(domain.KindResource, StepSynthesize, err)
	}
	x.job.AddArtifact(ArtifactTimeline, timelinePath)
	x.scene, x.timeline = sc, tl
	return nil
}

func (x *execution) renderParams() engine.RenderParams {
	q, _ := renderer.ParseQuality(x.opts.Quality)
	profile, _ := renderer.ProfileFor(q)
	return engine.RenderParams{
		Profile: profile,
		Width:   x.opts.Resolution.Width,
		Height:  x.opts.Resolution.Height,
		FPS:     x.opts.FPS,
		Frames:  x.opts.DurationFrames,
	}
}

func (x *execution) publish(ctx context.Context, rendered string) error {
	vc := x.o.Config.Video
	var params video.Params
	if vc.Transcode {
		eff, err := effects.New(vc.Effect, x.timeline)
		if err != nil {
			return domain.Validation(StepPublish, "%v", err)
		}
		params = video.Params{
			Filter: eff.GenerateFilter(effects.Params{
				Width:       x.opts.Resolution.Width,
				Height:      x.opts.Resolution.Height,
				FPS:         x.opts.FPS,
				Frames:      x.opts.DurationFrames,
				FadeSeconds: vc.FadeSec,
			}),
			FPS:       x.opts.FPS,
			Encoder:   x.o.videoEncoder(ctx),
			Quality:   vc.Quality,
			AudioPath: vc.AudioPath,
		}
	}

	if err := x.o.Publisher.Publish(ctx, rendered, x.out, params); err != nil {
		if ctx.Err() != nil {
			return domain.Wrap(domain.KindCancelled, StepPublish, err)
		}
		return domain.Wrap(domain.KindResource, StepPublish, err)
	}
	x.job.OutputPath = x.out
	return nil
}

// step runs one stage and records its duration.
func (x *execution) step(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindCancelled, name, err)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	x.o.Metrics.ObserveStage(name, elapsed, err)
	log := telemetry.WithStage(x.log, name)
	if err != nil {
		log.Error("stage failed", "duration", elapsed, "error", err)
		return err
	}
	log.Info("stage completed", "duration", elapsed)
	return nil
}

func (x *execution) advance(ctx context.Context, next domain.Stage) error {
	from := x.job.Stage
	if err := x.job.Advance(next); err != nil {
		return domain.Wrap(domain.KindInternal, "advance", err)
	}
	x.log.Info("job advanced", "from", from, "to", next)
	x.save(ctx)
	return nil
}

func (x *execution) fail(ctx context.Context, err error) {
	from := x.job.Stage
	de := domain.AsError("pipeline", err)
	if errors.Is(ctx.Err(), context.Canceled) && de.Kind != domain.KindCancelled {
		de = &domain.Error{Kind: domain.KindCancelled, Op: de.Op, Message: "job cancelled", Err: err}
	}
	x.job.Fail(de)
	x.log.Error("job failed", "from", from, "kind", de.Kind, "error", de)
	x.save(ctx)
}

// save records the job. Store failures never fail the job.
func (x *execution) save(ctx context.Context) {
	if x.o.Store == nil {
		return
	}
	if err := x.o.Store.Save(context.WithoutCancel(ctx), x.job); err != nil {
		x.log.Warn("could not save job", "error", err)
	}
}

func (x *execution) makeWorkDir() error {
	root := x.o.Config.WorkRoot
	if err := os.MkdirAll(root, 0755); err != nil {
		return domain.Wrap(domain.KindResource, "workdir", err)
	}
	dir, err := os.MkdirTemp(root, x.job.ID.String()+"-")
	if err != nil {
		return domain.Wrap(domain.KindResource, "workdir", err)
	}
	x.dir = dir
	x.job.WorkDir = dir
	x.log.Debug("work dir created", "dir", dir)
	return nil
}

func (x *execution) cleanup() {
	if x.o.Config.RetainWorkDirs {
		x.log.Info("work dir retained", "dir", x.dir)
		return
	}
	if err := os.RemoveAll(x.dir); err != nil {
		x.log.Warn("could not remove work dir", "dir", x.dir, "error", err)
		return
	}
	x.log.Debug("work dir removed", "dir", x.dir)
}

// path returns name inside the work dir. Stages record it as an artifact
// once the file exists.
func (x *execution) path(name string) string {
	return filepath.Join(x.dir, name)
}

func (x *execution) result() *Result {
	res := &Result{
		JobID:      x.job.ID,
		Stage:      x.job.Stage,
		OutputPath: x.job.OutputPath,
		SVG:        x.svg,
		Attempts:   x.job.Attempts,
		Scene:      x.scene,
		Timeline:   x.timeline,
		Err:        x.job.Error,
	}
	if x.o.Config.RetainWorkDirs && x.dir != "" {
		res.WorkDir = x.dir
		res.Artifacts = make(map[string]string, len(x.job.Artifacts))
		for k, v := range x.job.Artifacts {
			res.Artifacts[k] = v
		}
	}
	return res
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
