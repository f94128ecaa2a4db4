package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/source"
	"github.com/ivlev/concept2video/internal/system"
)

// Request is one job of a batch. Exactly one of Concept, SVG and SVGPath
// is expected; GenerateOnly stops a concept job after generation.
type Request struct {
	Concept      string         `yaml:"concept,omitempty" json:"concept,omitempty"`
	SVG          string         `yaml:"svg,omitempty" json:"svg,omitempty"`
	SVGPath      string         `yaml:"svg_path,omitempty" json:"svg_path,omitempty"`
	Output       string         `yaml:"output" json:"output"`
	GenerateOnly bool           `yaml:"generate_only,omitempty" json:"generate_only,omitempty"`
	Options      config.Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// Manifest is the YAML batch file.
type Manifest struct {
	Defaults config.Options `yaml:"defaults"`
	Jobs     []Request      `yaml:"jobs"`
}

// ReadManifest loads a batch file. Manifest defaults fill the options each
// job leaves unset.
func ReadManifest(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for i := range m.Jobs {
		m.Jobs[i].Options = m.Jobs[i].Options.Merge(m.Defaults)
	}
	return m.Jobs, nil
}

// SourceRequests builds one graphic job per graphic of src, each writing
// <outDir>/<name>.mp4. A graphic that does not parse stops the listing.
func SourceRequests(src source.Source, outDir string, opts config.Options, logger *slog.Logger) ([]Request, error) {
	reqs := make([]Request, 0, src.Count())
	for i := 0; i < src.Count(); i++ {
		_, raw, err := src.Load(i, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name(i), err)
		}
		reqs = append(reqs, Request{
			SVG:     raw,
			Output:  filepath.Join(outDir, src.Name(i)+".mp4"),
			Options: opts,
		})
	}
	return reqs, nil
}

// Do runs a single request through the matching entry point. Options the
// request leaves unset come from the configured defaults.
func (o *Orchestrator) Do(ctx context.Context, req Request) (*Result, error) {
	input, err := req.input()
	if err != nil {
		res := &Result{Stage: domain.StageFailed, Err: domain.Validation("request", "read graphic: %v", err)}
		return res, res.Err
	}
	return o.runJob(ctx, domain.NewJob(req.kind()), input, req.Output, req.Options.Merge(o.Config.Defaults))
}

// Start launches req in the background and returns its job id at once. The
// job is in the store as CREATED before Start returns; ctx bounds the job's
// lifetime. The channel yields the result when the job ends.
func (o *Orchestrator) Start(ctx context.Context, req Request) (uuid.UUID, <-chan *Result, error) {
	input, err := req.input()
	if err != nil {
		return uuid.Nil, nil, domain.Validation("request", "read graphic: %v", err)
	}

	job := domain.NewJob(req.kind())
	if o.Store != nil {
		if err := o.Store.Save(ctx, job); err != nil {
			return uuid.Nil, nil, domain.Wrap(domain.KindResource, "start", err)
		}
	}

	done := make(chan *Result, 1)
	o.running.Add(1)
	go func() {
		defer o.running.Done()
		defer close(done)
		res, _ := o.runJob(ctx, job, input, req.Output, req.Options.Merge(o.Config.Defaults))
		done <- res
	}()
	return job.ID, done, nil
}

// Wait blocks until every job launched by Start has finished and cleaned
// up, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		o.running.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (req Request) kind() domain.JobKind {
	switch {
	case req.SVG != "" || req.SVGPath != "":
		return domain.JobKindGraphic
	case req.GenerateOnly:
		return domain.JobKindGenerate
	default:
		return domain.JobKindConcept
	}
}

func (req Request) input() (string, error) {
	switch {
	case req.SVGPath != "":
		data, err := os.ReadFile(req.SVGPath)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case req.SVG != "":
		return req.SVG, nil
	default:
		return req.Concept, nil
	}
}

// RunBatch runs independent jobs concurrently, at most limit at a time, and
// returns one result per request in request order. A failed job does not
// stop the others. limit <= 0 uses the configured worker count, or sizes
// the pool from the host.
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []Request, limit int) []*Result {
	if limit <= 0 {
		limit = o.Config.BatchWorkers
	}
	if limit <= 0 {
		snap := system.TakeSnapshot(ctx)
		limit = snap.RecommendedWorkers()
		o.Logger.Info("batch workers sized from host",
			"workers", limit, "cpus", snap.LogicalCPUs, "available_memory", snap.AvailMemory)
	}

	results := make([]*Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i], _ = o.Do(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
