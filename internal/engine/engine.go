// Package engine drives the external 3D engine. Every stage runs in its own
// process; nothing is shared between invocations except the files named on
// the command line.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/renderer"
	"github.com/ivlev/concept2video/internal/telemetry"
)

// Stage names passed to the engine.
const (
	StageConvert = "convert"
	StageAnimate = "animate"
	StageRender  = "render"
)

// RenderParams are the stage parameters of a render.
type RenderParams struct {
	Profile renderer.Profile
	Width   int
	Height  int
	FPS     int
	Frames  int
}

func (p RenderParams) args() []string {
	args := p.Profile.Args()
	return append(args,
		"--resolution", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"--fps", strconv.Itoa(p.FPS),
		"--frames", strconv.Itoa(p.Frames),
	)
}

// Dispatcher runs the three engine stages.
type Dispatcher interface {
	// Convert materializes a scene document into an engine scene-state file.
	Convert(ctx context.Context, scenePath, outPath string) error
	// Animate applies a timeline to a scene-state file.
	Animate(ctx context.Context, statePath, timelinePath, outPath string) error
	// Render produces the video file from an animated scene-state file.
	Render(ctx context.Context, statePath, outPath string, params RenderParams) error
}

// Timeouts bound each stage separately.
type Timeouts struct {
	Convert time.Duration
	Animate time.Duration
	Render  time.Duration
}

// DefaultTimeouts returns 2m/2m/30m.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Convert: 2 * time.Minute,
		Animate: 2 * time.Minute,
		Render:  30 * time.Minute,
	}
}

// Subprocess invokes an engine binary as
//
//	<Binary> <Args…> -- --stage <stage> --input <path>… --output <path> <params…>
//
// The engine must write exactly the output path or exit non-zero with a
// diagnostic on stderr.
type Subprocess struct {
	Binary   string
	Args     []string
	Timeouts Timeouts
	Logger   *slog.Logger // nil logs through the context logger

	// WaitDelay bounds how long to wait for pipes after the process is killed.
	WaitDelay time.Duration
}

// NewSubprocess creates a dispatcher for binary with default timeouts.
func NewSubprocess(binary string, args []string, logger *slog.Logger) *Subprocess {
	return &Subprocess{
		Binary:    binary,
		Args:      args,
		Timeouts:  DefaultTimeouts(),
		Logger:    logger,
		WaitDelay: 5 * time.Second,
	}
}

func (s *Subprocess) Convert(ctx context.Context, scenePath, outPath string) error {
	return s.run(ctx, StageConvert, domain.KindConversion, s.Timeouts.Convert,
		[]string{scenePath}, outPath, nil)
}

func (s *Subprocess) Animate(ctx context.Context, statePath, timelinePath, outPath string) error {
	return s.run(ctx, StageAnimate, domain.KindAnimation, s.Timeouts.Animate,
		[]string{statePath, timelinePath}, outPath, nil)
}

func (s *Subprocess) Render(ctx context.Context, statePath, outPath string, params RenderParams) error {
	return s.run(ctx, StageRender, domain.KindRender, s.Timeouts.Render,
		[]string{statePath}, outPath, params.args())
}

// Invocation returns the argument list for a stage.
func (s *Subprocess) Invocation(stage string, inputs []string, output string, params []string) []string {
	args := make([]string, 0, len(s.Args)+6+2*len(inputs)+len(params))
	args = append(args, s.Args...)
	args = append(args, "--", "--stage", stage)
	for _, in := range inputs {
		args = append(args, "--input", in)
	}
	args = append(args, "--output", output)
	return append(args, params...)
}

func (s *Subprocess) run(ctx context.Context, stage string, kind domain.Kind, timeout time.Duration,
	inputs []string, output string, params []string) error {
	log := s.Logger
	if log == nil {
		log = telemetry.FromContext(ctx)
	}
	log = log.With("engine_stage", stage)

	// a stale artifact must not satisfy the output check
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.Error{Kind: domain.KindResource, Op: stage, Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := s.Invocation(stage, inputs, output, params)
	cmd := exec.CommandContext(ctx, s.Binary, args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = s.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Debug("engine stage starting", "args", args)
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return &domain.Error{Kind: domain.KindCancelled, Op: stage, Err: ctx.Err()}
		}
		log.Warn("engine stage failed", "error", err, "duration", elapsed)
		return &domain.Error{Kind: kind, Op: stage, Message: diagnostic(&stderr, &stdout), Err: err}
	}

	if fi, statErr := os.Stat(output); statErr != nil || fi.IsDir() {
		log.Warn("engine stage produced no artifact", "output", output)
		return &domain.Error{Kind: kind, Op: stage, Message: diagnostic(&stderr, &stdout),
			Err: fmt.Errorf("%w: %s", ErrOutputMissing, output)}
	}

	log.Info("engine stage finished", "duration", elapsed)
	return nil
}

// maxDiagnostic caps the captured output carried in errors.
const maxDiagnostic = 4096

// diagnostic returns the tail of stderr, or of stdout when stderr is empty.
func diagnostic(stderr, stdout *bytes.Buffer) string {
	out := bytes.TrimSpace(stderr.Bytes())
	if len(out) == 0 {
		out = bytes.TrimSpace(stdout.Bytes())
	}
	if len(out) > maxDiagnostic {
		out = append([]byte("…"), out[len(out)-maxDiagnostic:]...)
	}
	return string(out)
}
