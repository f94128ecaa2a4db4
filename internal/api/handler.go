package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/jobstore"
	"github.com/ivlev/concept2video/internal/pipeline"
)

// Runner starts jobs in this process.
type Runner interface {
	Start(ctx context.Context, req pipeline.Request) (uuid.UUID, <-chan *pipeline.Result, error)
}

// Submitter hands jobs to a queue instead of running them here.
type Submitter interface {
	Submit(ctx context.Context, request any) (string, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API.
type Handler struct {
	runner    Runner
	submitter Submitter
	store     jobstore.Store
	defaults  config.Options
	outRoot   string
	gatherer  prometheus.Gatherer
	checks    map[string]Pinger
	jobCtx    context.Context
	logger    *slog.Logger
}

// Config holds the Handler's dependencies. Submitter takes precedence over
// Runner when both are set.
type Config struct {
	Runner    Runner
	Submitter Submitter
	Store     jobstore.Store
	Defaults  config.Options
	Gatherer  prometheus.Gatherer
	Checks    map[string]Pinger

	// OutputRoot holds every output written for an API job. Requests name
	// outputs relative to it. Empty means "output".
	OutputRoot string

	// JobContext bounds jobs started in process. It should outlive requests.
	JobContext context.Context
	Logger     *slog.Logger
}

func NewHandler(cfg Config) *Handler {
	h := &Handler{
		runner:    cfg.Runner,
		submitter: cfg.Submitter,
		store:     cfg.Store,
		defaults:  cfg.Defaults,
		outRoot:   cfg.OutputRoot,
		gatherer:  cfg.Gatherer,
		checks:    cfg.Checks,
		jobCtx:    cfg.JobContext,
		logger:    cfg.Logger,
	}
	if h.jobCtx == nil {
		h.jobCtx = context.Background()
	}
	if h.outRoot == "" {
		h.outRoot = "output"
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}
