package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := Errorf(KindRender, "render", "exit status %d", 3)
	assert.Equal(t, "render [render]: exit status 3", err.Error())

	wrapped := Wrap(KindResource, "publish", errors.New("disk full"))
	assert.Equal(t, "resource [publish]: disk full", wrapped.Error())
	assert.Nil(t, Wrap(KindResource, "publish", nil))
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("job: %w", Errorf(KindConversion, "convert", "bad scene"))

	assert.True(t, errors.Is(err, &Error{Kind: KindConversion}))
	assert.True(t, errors.Is(err, &Error{Kind: KindConversion, Op: "convert"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConversion, Op: "render"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindRender}))

	cause := errors.New("boom")
	assert.True(t, errors.Is(Wrap(KindInternal, "x", cause), cause))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", Validation("options", "bad"), KindValidation},
		{"wrapped typed", fmt.Errorf("ctx: %w", Errorf(KindProvider, "generate", "429")), KindProvider},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), KindCancelled},
		{"plain", errors.New("what"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError("x", nil))

	orig := Errorf(KindAnimation, "animate", "no keys")
	assert.Same(t, orig, AsError("other", fmt.Errorf("wrap: %w", orig)))

	got := AsError("run", context.Canceled)
	assert.Equal(t, KindCancelled, got.Kind)
	assert.Equal(t, "run", got.Op)
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobKindGraphic)
	assert.Equal(t, StageCreated, job.Stage)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Zero(t, job.Duration())

	for _, s := range []Stage{StageSVGReady, StageModelReady, StageAnimated, StageRendered} {
		require.NoError(t, job.Advance(s))
		assert.False(t, job.Stage.IsTerminal())
	}
	assert.Error(t, job.Advance(StageModelReady), "backward")
	assert.Error(t, job.Advance(StageRendered), "same stage")
	assert.Error(t, job.Advance(StageFailed), "failures go through Fail")

	require.NoError(t, job.Advance(StageSucceeded))
	assert.True(t, job.Stage.IsTerminal())
	require.NotNil(t, job.FinishedAt)
	assert.GreaterOrEqual(t, job.Duration(), time.Duration(0))

	assert.Error(t, job.Advance(StageSucceeded), "terminal")
	job.Fail(Errorf(KindRender, "render", "late"))
	assert.Equal(t, StageSucceeded, job.Stage, "Fail after success is ignored")
	assert.Nil(t, job.Error)
}

func TestJob_GenerateSkipsToSuccess(t *testing.T) {
	job := NewJob(JobKindGenerate)
	require.NoError(t, job.Advance(StageSVGReady))
	require.NoError(t, job.Advance(StageSucceeded))
}

func TestJob_Fail(t *testing.T) {
	job := NewJob(JobKindConcept)
	require.NoError(t, job.Advance(StageSVGReady))

	err := Errorf(KindConversion, "convert", "engine exited 1")
	job.Fail(err)
	assert.Equal(t, StageFailed, job.Stage)
	assert.Same(t, err, job.Error)
	assert.Equal(t, KindConversion, job.ErrorKind)
	assert.Equal(t, err.Error(), job.ErrorText)
	assert.NotNil(t, job.FinishedAt)

	assert.Error(t, job.Advance(StageModelReady))
}

func TestJob_Artifacts(t *testing.T) {
	job := NewJob(JobKindGraphic)
	job.AddArtifact("scene", "/work/scene.yaml")
	job.AddArtifact("scene", "/work/scene2.yaml")
	assert.Equal(t, map[string]string{"scene": "/work/scene2.yaml"}, job.Artifacts)
}
