package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/director"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/mq"
	"github.com/ivlev/concept2video/internal/pipeline"
	"github.com/ivlev/concept2video/internal/telemetry"
)

const diagram = `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600" viewBox="0 0 800 600">
  <rect x="100" y="100" width="200" height="100" fill="#FF0000"/>
  <circle cx="400" cy="300" r="50" fill="#0000FF"/>
  <line x1="300" y1="150" x2="400" y2="300" stroke="black" stroke-width="2"/>
  <text x="200" y="250" font-size="24">Start</text>
</svg>`

// engineScript writes its arguments into the file named by --output.
const engineScript = `#!/bin/sh
all="$*"
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
  esac
  shift
done
echo "$all" > "$out"
`

func testApp() (*App, *bytes.Buffer) {
	var stdout bytes.Buffer
	return &App{
		Stdout:     &stdout,
		Stderr:     io.Discard,
		Registerer: prometheus.NewRegistry(),
		Gatherer:   prometheus.NewRegistry(),
	}, &stdout
}

func execute(t *testing.T, app *App, args ...string) error {
	t.Helper()
	root := newRootCmd(app, "test")
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestRootCommands(t *testing.T) {
	app, _ := testApp()
	root := newRootCmd(app, "test")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "render", "generate", "batch", "serve", "worker", "inspect"} {
		assert.Contains(t, names, want)
	}
}

func TestOptionFlags(t *testing.T) {
	newCmd := func(args ...string) (*cobra.Command, *optionFlags) {
		var f optionFlags
		cmd := &cobra.Command{Use: "x"}
		f.bind(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		return cmd, &f
	}

	cmd, f := newCmd("--quality", "low", "--resolution", "640x360", "--style", "network")
	o, err := f.options(cmd, config.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "low", o.Quality)
	assert.Equal(t, "network", o.AnimationStyle)
	assert.Equal(t, config.Resolution{Width: 640, Height: 360}, o.Resolution)
	assert.Equal(t, 24, o.FPS)
	assert.Equal(t, 240, o.DurationFrames)

	cmd, f = newCmd("--frames", "0")
	_, err = f.options(cmd, config.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	cmd, f = newCmd("--resolution", "huge")
	_, err = f.options(cmd, config.DefaultOptions())
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, filepath.Join("output", "my_diagram_2026-03-14_09-26-53.mp4"),
		outputName("output", "input/svg/my diagram.svg", ".mp4", now))
	assert.Equal(t, filepath.Join("out", "load_balancer_with_3_servers_2026-03-14_09-26-53.svg"),
		outputName("out", slug("load balancer with 3 servers!"), ".svg", now))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "concept", slug("  ?? "))
	assert.Equal(t, "a_b", slug("a/b"))
	assert.LessOrEqual(t, len(slug("a very long concept description that keeps going and going")), 40)
}

func writeTimeline(t *testing.T, dir string) string {
	t.Helper()
	tl, err := director.NewDirector(8, 6).Compose(nil, 48, director.StyleStandard)
	require.NoError(t, err)
	path := filepath.Join(dir, "timeline_test.yaml")
	require.NoError(t, director.WriteTimeline(tl, path))
	return path
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeTimeline(t, dir)

	app, stdout := testApp()
	require.NoError(t, execute(t, app, "inspect", path))
	assert.Contains(t, stdout.String(), "PHASE")
	assert.Contains(t, stdout.String(), director.PhaseCameraIntro)

	stdout.Reset()
	require.NoError(t, execute(t, app, "inspect", "--dir", dir, "--frame", "1", "--json"))
	var samples []trackSample
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &samples))
	require.NotEmpty(t, samples)
	assert.Equal(t, director.CameraRef, samples[0].Object)
	assert.Len(t, samples[0].Value, 3)

	assert.Error(t, execute(t, app, "inspect", path, "--frame", "49"))
	assert.Error(t, execute(t, app, "inspect", "--dir", t.TempDir()))
}

// engineConfig writes a config file that runs engineScript as the engine.
func engineConfig(t *testing.T, dir string) string {
	t.Helper()
	script := filepath.Join(dir, "engine.sh")
	require.NoError(t, os.WriteFile(script, []byte(engineScript), 0755))

	path := filepath.Join(dir, "c2v.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
work_root: `+filepath.Join(dir, "work")+`
engine:
  binary: /bin/sh
  args: ["`+script+`"]
log:
  level: ERROR
`), 0644))
	return path
}

func TestRender_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := engineConfig(t, dir)

	svg := filepath.Join(dir, "flow.svg")
	require.NoError(t, os.WriteFile(svg, []byte(diagram), 0644))
	out := filepath.Join(dir, "videos", "flow.mp4")
	timelines := filepath.Join(dir, "timelines")

	app, stdout := testApp()
	require.NoError(t, execute(t, app,
		"--config", cfgPath, "--json",
		"render", svg, "-o", out, "--frames", "48", "--quality", "low", "--timeline-dir", timelines))

	var views []resultView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, string(domain.StageSucceeded), views[0].Stage)
	assert.Equal(t, out, views[0].OutputPath)
	assert.FileExists(t, out)

	kept, err := director.FindLatestTimeline(timelines)
	require.NoError(t, err)
	tl, err := director.ReadTimeline(kept)
	require.NoError(t, err)
	assert.Equal(t, 48, tl.TotalFrames)
}

func TestBatch_Directory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := engineConfig(t, dir)

	svgs := filepath.Join(dir, "svg")
	require.NoError(t, os.MkdirAll(svgs, 0755))
	for _, name := range []string{"alpha.svg", "beta.svg"} {
		require.NoError(t, os.WriteFile(filepath.Join(svgs, name), []byte(diagram), 0644))
	}
	videos := filepath.Join(dir, "videos")

	app, stdout := testApp()
	require.NoError(t, execute(t, app,
		"--config", cfgPath, "--json",
		"batch", svgs, "--output-dir", videos, "--frames", "24", "--workers", "2"))

	var views []resultView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &views))
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, string(domain.StageSucceeded), v.Stage)
	}
	assert.FileExists(t, filepath.Join(videos, "alpha.mp4"))
	assert.FileExists(t, filepath.Join(videos, "beta.mp4"))
}

func TestRender_InvalidFrames(t *testing.T) {
	svg := filepath.Join(t.TempDir(), "flow.svg")
	require.NoError(t, os.WriteFile(svg, []byte(diagram), 0644))

	app, _ := testApp()
	err := execute(t, app, "render", svg, "--frames", "0", "-o", filepath.Join(t.TempDir(), "x.mp4"))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

type fakeRunner struct {
	res *pipeline.Result
	err error
	got []pipeline.Request
}

func (f *fakeRunner) Do(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.got = append(f.got, req)
	return f.res, f.err
}

type fakeCompletions struct {
	sent []mq.JobCompleted
}

func (f *fakeCompletions) Completed(_ context.Context, c mq.JobCompleted) error {
	f.sent = append(f.sent, c)
	return nil
}

func message(t *testing.T, typ mq.MessageType, payload any) *mq.Message {
	t.Helper()
	msg, err := mq.NewMessage(typ, payload)
	require.NoError(t, err)
	return msg
}

func TestJobHandler(t *testing.T) {
	jobID := uuid.New()

	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{res: &pipeline.Result{JobID: jobID, Stage: domain.StageSucceeded, OutputPath: "/out/a.mp4"}}
		pub := &fakeCompletions{}
		msg := message(t, mq.MessageJobRequested, pipeline.Request{SVG: diagram, Output: "/out/a.mp4"})

		require.NoError(t, jobHandler(runner, pub, telemetry.Discard())(context.Background(), msg))
		require.Len(t, runner.got, 1)
		assert.Equal(t, diagram, runner.got[0].SVG)
		require.Len(t, pub.sent, 1)
		assert.Equal(t, mq.JobCompleted{RequestID: msg.ID, JobID: jobID.String(), Stage: "SUCCEEDED", OutputPath: "/out/a.mp4"}, pub.sent[0])
	})

	t.Run("job failure is reported, not retried", func(t *testing.T) {
		fail := domain.Errorf(domain.KindRender, "render", "engine crashed")
		runner := &fakeRunner{res: &pipeline.Result{JobID: jobID, Stage: domain.StageFailed, Err: fail}, err: fail}
		pub := &fakeCompletions{}

		require.NoError(t, jobHandler(runner, pub, telemetry.Discard())(context.Background(),
			message(t, mq.MessageJobRequested, pipeline.Request{Concept: "x", Output: "/out/x.mp4"})))
		require.Len(t, pub.sent, 1)
		assert.Equal(t, "render", pub.sent[0].ErrorKind)
		assert.Equal(t, "FAILED", pub.sent[0].Stage)
	})

	t.Run("permanent", func(t *testing.T) {
		h := jobHandler(&fakeRunner{}, &fakeCompletions{}, telemetry.Discard())
		bad := &mq.Message{ID: "1", Type: mq.MessageJobRequested, Payload: json.RawMessage(`[1,2]`)}

		for _, msg := range []*mq.Message{
			message(t, mq.MessageJobCompleted, mq.JobCompleted{}),
			bad,
			message(t, mq.MessageJobRequested, pipeline.Request{SVGPath: "/etc/passwd", Output: "x.mp4"}),
		} {
			err := h(context.Background(), msg)
			assert.True(t, errors.Is(err, mq.ErrPermanent), "%v", err)
		}
	})

	t.Run("shutdown requeues", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := &fakeRunner{res: &pipeline.Result{Stage: domain.StageFailed, Err: domain.Errorf(domain.KindCancelled, "run", "cancelled")}}
		pub := &fakeCompletions{}

		err := jobHandler(runner, pub, telemetry.Discard())(ctx, message(t, mq.MessageJobRequested, pipeline.Request{Concept: "x", Output: "x.mp4"}))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, mq.ErrPermanent))
		assert.Empty(t, pub.sent)
	})
}
