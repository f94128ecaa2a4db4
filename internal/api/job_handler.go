package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/jobstore"
	"github.com/ivlev/concept2video/internal/pipeline"
)

// CreateJobRequest is the body of POST /v1/jobs. Graphics are sent inline;
// server-side input paths are not accepted. Output is relative to the
// handler's output root.
type CreateJobRequest struct {
	Concept      string     `json:"concept,omitempty"`
	SVG          string     `json:"svg,omitempty"`
	Output       string     `json:"output"`
	GenerateOnly bool       `json:"generate_only,omitempty"`
	Options      JobOptions `json:"options"`
}

// JobOptions mirrors config.Options. DurationFrames is a pointer so an
// explicit zero is rejected instead of replaced by the default.
type JobOptions struct {
	Provider       string            `json:"provider,omitempty"`
	Quality        string            `json:"quality,omitempty"`
	AnimationStyle string            `json:"animation_style,omitempty"`
	Resolution     config.Resolution `json:"resolution"`
	FPS            int               `json:"fps,omitempty"`
	DurationFrames *int              `json:"duration_frames,omitempty"`
}

// CreateJobResponse identifies the submitted job.
type CreateJobResponse struct {
	JobID     string `json:"job_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Queued    bool   `json:"queued"`
}

// CreateJob validates a job request and starts or enqueues it.
// POST /v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var body CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	req, err := h.toRequest(body)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if h.submitter != nil {
		id, err := h.submitter.Submit(r.Context(), req)
		if err != nil {
			Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "job queue unavailable")
			h.logger.Error("submit failed", "error", err)
			return
		}
		Accepted(w, CreateJobResponse{RequestID: id, Queued: true})
		return
	}

	if h.runner == nil {
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no job runner configured")
		return
	}
	id, _, err := h.runner.Start(h.jobCtx, req)
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	Accepted(w, CreateJobResponse{JobID: id.String()})
}

// toRequest fills unset options from the defaults and validates them, so a
// bad request is refused here instead of failing later in a worker.
func (h *Handler) toRequest(body CreateJobRequest) (pipeline.Request, error) {
	if (body.Concept == "") == (body.SVG == "") {
		return pipeline.Request{}, errors.New("exactly one of concept and svg is required")
	}
	if body.GenerateOnly && body.SVG != "" {
		return pipeline.Request{}, errors.New("generate_only needs a concept")
	}

	req := pipeline.Request{
		Concept:      body.Concept,
		SVG:          body.SVG,
		Output:       body.Output,
		GenerateOnly: body.GenerateOnly,
	}
	opts := body.Options
	req.Options = config.Options{
		Provider:       opts.Provider,
		Quality:        opts.Quality,
		AnimationStyle: opts.AnimationStyle,
		Resolution:     opts.Resolution,
		FPS:            opts.FPS,
	}.Merge(h.defaults)
	if opts.DurationFrames != nil {
		req.Options.DurationFrames = *opts.DurationFrames
	}
	if err := req.Options.Validate(); err != nil {
		return req, err
	}
	if req.Output == "" {
		if !req.GenerateOnly {
			return req, errors.New("output is required")
		}
		return req, nil
	}
	out, err := h.outputPath(req.Output)
	if err != nil {
		return req, err
	}
	req.Output = out
	return req, nil
}

// outputPath places a client-named output under the output root. Absolute
// paths and paths that climb out of the root are refused.
func (h *Handler) outputPath(name string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("output %q must be a relative path inside the output directory", name)
	}
	return filepath.Join(h.outRoot, filepath.FromSlash(name)), nil
}

// GetJob returns one job.
// GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}
	job, err := h.store.Get(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		NotFound(w, "job not found")
		return
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Success(w, job)
}

// ListJobs returns the newest jobs.
// GET /v1/jobs?limit=N
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	jobs, err := h.store.List(r.Context(), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, jobs, len(jobs))
}

// Health reports ok when every dependency answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	JSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}
