// Package pipeline runs jobs through the stage sequence
//
//	generate → synthesize → convert → animate → render → publish
//
// Each job works in its own directory under the configured work root, which
// is removed when the job ends unless retention is configured.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/director"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/engine"
	"github.com/ivlev/concept2video/internal/jobstore"
	"github.com/ivlev/concept2video/internal/provider"
	"github.com/ivlev/concept2video/internal/scene"
	"github.com/ivlev/concept2video/internal/system"
	"github.com/ivlev/concept2video/internal/telemetry"
	"github.com/ivlev/concept2video/internal/video"
)

// Stage names used in logs and metrics.
const (
	StepGenerate   = "generate"
	StepSynthesize = "synthesize"
	StepConvert    = "convert"
	StepAnimate    = "animate"
	StepRender     = "render"
	StepPublish    = "publish"
)

// Artifact names recorded on the job.
const (
	ArtifactGraphic  = "graphic"
	ArtifactPreview  = "preview"
	ArtifactScene    = "scene"
	ArtifactTimeline = "timeline"
	ArtifactState    = "state"
	ArtifactAnimated = "animated"
	ArtifactRender   = "render"
)

// GeneratorFunc resolves a provider name to a generator.
type GeneratorFunc func(name string) (provider.Generator, error)

// Orchestrator runs pipeline jobs. Its fields may be replaced after New and
// before the first job.
type Orchestrator struct {
	Config     *config.Config
	Dispatcher engine.Dispatcher
	Generators GeneratorFunc
	Publisher  video.Publisher
	Store      jobstore.Store
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger

	encoderOnce sync.Once
	encoder     string

	running sync.WaitGroup
}

// New wires an orchestrator from cfg. Generators come from the provider
// registry; the publisher follows cfg.Video.Transcode; jobs are kept in memory.
func New(cfg *config.Config, d engine.Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		Config:     cfg,
		Dispatcher: d,
		Store:      jobstore.NewMemory(),
		Logger:     logger,
	}
	o.Generators = func(name string) (provider.Generator, error) {
		return provider.New(name, cfg.Provider)
	}
	if cfg.Video.Transcode {
		o.Publisher = &video.FFmpegPublisher{Binary: cfg.Video.FFmpeg}
	} else {
		o.Publisher = video.CopyPublisher{}
	}
	return o
}

// NewDispatcher builds the subprocess dispatcher described by cfg. It logs
// through the job logger carried by the stage context.
func NewDispatcher(cfg config.EngineConfig) *engine.Subprocess {
	d := engine.NewSubprocess(cfg.Binary, cfg.Args, nil)
	d.Timeouts = engine.Timeouts{
		Convert: cfg.ConvertTimeout,
		Animate: cfg.AnimateTimeout,
		Render:  cfg.RenderTimeout,
	}
	return d
}

// Result is the outcome of one job.
type Result struct {
	JobID      uuid.UUID
	Stage      domain.Stage
	OutputPath string
	SVG        string
	Attempts   int

	// Scene and Timeline are the in-memory intermediate documents.
	Scene    *scene.Document
	Timeline *director.Timeline

	// WorkDir and Artifacts are reported only when the working directory is
	// retained; otherwise the files no longer exist.
	WorkDir   string
	Artifacts map[string]string

	Err *domain.Error
}

// Succeeded reports whether the job reached SUCCEEDED.
func (r *Result) Succeeded() bool {
	return r.Stage == domain.StageSucceeded
}

// RunConcept generates a graphic for concept and renders it into out.
//
// The entry points take opts as given: a zero DurationFrames is rejected,
// not defaulted. Front ends fill unset options with Options.Merge first.
func (o *Orchestrator) RunConcept(ctx context.Context, concept, out string, opts config.Options) (*Result, error) {
	return o.run(ctx, domain.JobKindConcept, concept, out, opts)
}

// RunGraphic renders a caller-supplied SVG document into out.
func (o *Orchestrator) RunGraphic(ctx context.Context, svg, out string, opts config.Options) (*Result, error) {
	return o.run(ctx, domain.JobKindGraphic, svg, out, opts)
}

// Generate only produces the graphic. The SVG is written to out when out is
// not empty, and is always returned in the result.
func (o *Orchestrator) Generate(ctx context.Context, concept, out string, opts config.Options) (*Result, error) {
	return o.run(ctx, domain.JobKindGenerate, concept, out, opts)
}

func (o *Orchestrator) run(ctx context.Context, kind domain.JobKind, input, out string, opts config.Options) (*Result, error) {
	return o.runJob(ctx, domain.NewJob(kind), input, out, opts)
}

func (o *Orchestrator) runJob(ctx context.Context, job *domain.Job, input, out string, opts config.Options) (*Result, error) {
	kind := job.Kind
	x := &execution{
		o:    o,
		job:  job,
		opts: opts,
		out:  out,
	}
	x.log = telemetry.WithJobID(o.Logger, x.job.ID.String())
	ctx = telemetry.WithLogger(ctx, x.log)
	x.log.Info("job created", "kind", kind, "quality", x.opts.Quality,
		"style", x.opts.AnimationStyle, "resolution", x.opts.Resolution.String(),
		"fps", x.opts.FPS, "frames", x.opts.DurationFrames)

	o.Metrics.JobStarted()
	x.save(ctx)

	if err := x.validate(input); err != nil {
		x.fail(ctx, err)
	} else {
		x.execute(ctx, input)
	}

	o.Metrics.JobFinished(string(kind), outcome(x.job))
	x.save(ctx)
	x.log.Info("job finished", "stage", x.job.Stage, "duration", x.job.Duration())

	res := x.result()
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// Get returns a job record from the store.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return o.Store.Get(ctx, id)
}

// videoEncoder returns the configured encoder, probing ffmpeg once when
// none is set.
func (o *Orchestrator) videoEncoder(ctx context.Context) string {
	o.encoderOnce.Do(func() {
		o.encoder = o.Config.Video.Encoder
		if o.encoder == "" {
			o.encoder = system.GetBestH264Encoder(ctx, o.Config.Video.FFmpeg)
			o.Logger.Info("video encoder selected", "encoder", o.encoder)
		}
	})
	return o.encoder
}

func outcome(job *domain.Job) string {
	switch {
	case job.Stage == domain.StageSucceeded:
		return "succeeded"
	case job.ErrorKind == domain.KindCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}
