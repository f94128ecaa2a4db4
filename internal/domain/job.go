package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is the position of a job in the pipeline.
//
// Lifecycle:
//
//	CREATED → SVG_READY → MODEL_READY → ANIMATED → RENDERED → SUCCEEDED
//	     ↘ FAILED (from any non-terminal stage)
type Stage string

const (
	StageCreated    Stage = "CREATED"
	StageSVGReady   Stage = "SVG_READY"
	StageModelReady Stage = "MODEL_READY"
	StageAnimated   Stage = "ANIMATED"
	StageRendered   Stage = "RENDERED"
	StageSucceeded  Stage = "SUCCEEDED"
	StageFailed     Stage = "FAILED"
)

var stageOrder = map[Stage]int{
	StageCreated:    0,
	StageSVGReady:   1,
	StageModelReady: 2,
	StageAnimated:   3,
	StageRendered:   4,
	StageSucceeded:  5,
	StageFailed:     5,
}

// IsTerminal reports whether no further transitions are possible.
func (s Stage) IsTerminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// JobKind selects the entry point a job was started through.
type JobKind string

const (
	JobKindConcept  JobKind = "concept"
	JobKindGraphic  JobKind = "graphic"
	JobKindGenerate JobKind = "generate"
)

// Job is one pipeline invocation.
type Job struct {
	ID         uuid.UUID         `json:"id"`
	Kind       JobKind           `json:"kind"`
	WorkDir    string            `json:"work_dir,omitempty"`
	Stage      Stage             `json:"stage"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Error      *Error            `json:"-"`
	ErrorKind  Kind              `json:"error_kind,omitempty"`
	ErrorText  string            `json:"error,omitempty"`
	Attempts   int               `json:"attempts"`
	OutputPath string            `json:"output_path,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// NewJob creates a job in the CREATED stage.
func NewJob(kind JobKind) *Job {
	return &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Stage:     StageCreated,
		Artifacts: make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// Advance moves the job forward. Backward moves, skips into FAILED and moves
// out of a terminal stage are rejected.
func (j *Job) Advance(next Stage) error {
	if j.Stage.IsTerminal() {
		return fmt.Errorf("job %s is already %s", j.ID, j.Stage)
	}
	if next == StageFailed {
		return fmt.Errorf("use Fail to move job %s into %s", j.ID, StageFailed)
	}
	if stageOrder[next] <= stageOrder[j.Stage] {
		return fmt.Errorf("job %s cannot move from %s to %s", j.ID, j.Stage, next)
	}
	j.Stage = next
	if next.IsTerminal() {
		j.finish()
	}
	return nil
}

// Fail records err and moves the job to FAILED.
func (j *Job) Fail(err *Error) {
	if j.Stage.IsTerminal() {
		return
	}
	j.Stage = StageFailed
	j.Error = err
	if err != nil {
		j.ErrorKind = err.Kind
		j.ErrorText = err.Error()
	}
	j.finish()
}

// AddArtifact records an intermediate file produced by a stage.
func (j *Job) AddArtifact(name, path string) {
	j.Artifacts[name] = path
}

// Duration returns the wall time of a finished job, 0 otherwise.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

func (j *Job) finish() {
	now := time.Now()
	j.FinishedAt = &now
}
