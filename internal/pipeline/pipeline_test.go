package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/engine"
	"github.com/ivlev/concept2video/internal/jobstore"
	"github.com/ivlev/concept2video/internal/provider"
	"github.com/ivlev/concept2video/internal/source"
	"github.com/ivlev/concept2video/internal/telemetry"
)

const diagram = `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600" viewBox="0 0 800 600">
  <rect x="100" y="100" width="200" height="100" fill="#FF0000"/>
  <circle cx="400" cy="300" r="50" fill="#0000FF"/>
  <line x1="300" y1="150" x2="400" y2="300" stroke="black" stroke-width="2"/>
  <text x="200" y="250" font-size="24">Start</text>
</svg>`

// fakeEngine counts stage calls and writes a fixed artifact per stage.
type fakeEngine struct {
	mu      sync.Mutex
	calls   map[string]int
	failAt  string
	blockAt string
	panicAt string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{calls: make(map[string]int)}
}

func (f *fakeEngine) count(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeEngine) total() int {
	return f.count(engine.StageConvert) + f.count(engine.StageAnimate) + f.count(engine.StageRender)
}

func (f *fakeEngine) stage(ctx context.Context, name string, kind domain.Kind, out string, inputs ...string) error {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return domain.Errorf(kind, name, "missing input %s", in)
		}
	}
	switch name {
	case f.panicAt:
		panic("engine crashed")
	case f.blockAt:
		<-ctx.Done()
		return domain.Wrap(domain.KindCancelled, name, ctx.Err())
	case f.failAt:
		return domain.Errorf(kind, name, "Traceback: %s failed", name)
	}
	return os.WriteFile(out, []byte(name+" output"), 0644)
}

func (f *fakeEngine) Convert(ctx context.Context, scenePath, outPath string) error {
	return f.stage(ctx, engine.StageConvert, domain.KindConversion, outPath, scenePath)
}

func (f *fakeEngine) Animate(ctx context.Context, statePath, timelinePath, outPath string) error {
	return f.stage(ctx, engine.StageAnimate, domain.KindAnimation, outPath, statePath, timelinePath)
}

func (f *fakeEngine) Render(ctx context.Context, statePath, outPath string, _ engine.RenderParams) error {
	return f.stage(ctx, engine.StageRender, domain.KindRender, outPath, statePath)
}

type reply struct {
	text string
	err  error
}

// scripted answers with replies in order, repeating the last one.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

func (s *scripted) Generate(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	return r.text, r.err
}

type fixture struct {
	o    *Orchestrator
	eng  *fakeEngine
	gen  *scripted
	reg  *prometheus.Registry
	root string
	out  string
}

func newFixture(t *testing.T, replies ...reply) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.WorkRoot = t.TempDir()
	cfg.RetryBackoff = 0

	if len(replies) == 0 {
		replies = []reply{{text: diagram}}
	}
	f := &fixture{
		eng:  newFakeEngine(),
		gen:  &scripted{replies: replies},
		reg:  prometheus.NewRegistry(),
		root: cfg.WorkRoot,
		out:  filepath.Join(t.TempDir(), "video", "out.mp4"),
	}
	f.o = New(cfg, f.eng, telemetry.Discard())
	f.o.Generators = func(string) (provider.Generator, error) { return f.gen, nil }
	f.o.Metrics = telemetry.NewMetrics(f.reg)
	return f
}

func options() config.Options {
	o := config.DefaultOptions()
	o.DurationFrames = 48
	return o
}

func assertNoWorkDirs(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "work dirs left behind")
}

func TestRunGraphic_Succeeds(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, f.out, res.OutputPath)

	data, err := os.ReadFile(f.out)
	require.NoError(t, err)
	assert.Equal(t, "render output", string(data))

	assert.Equal(t, 1, f.eng.count(engine.StageConvert))
	assert.Equal(t, 1, f.eng.count(engine.StageAnimate))
	assert.Equal(t, 1, f.eng.count(engine.StageRender))
	assert.Equal(t, 0, f.gen.calls)

	require.NotNil(t, res.Scene)
	assert.Len(t, res.Scene.Objects, 4)
	require.NotNil(t, res.Timeline)
	assert.Equal(t, 48, res.Timeline.TotalFrames)
	assert.Nil(t, res.Artifacts, "artifacts are not exposed without retention")
	assertNoWorkDirs(t, f.root)

	job, err := f.o.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSucceeded, job.Stage)
	assert.NotNil(t, job.FinishedAt)
}

func TestRun_FailureStopsLaterStages(t *testing.T) {
	tests := []struct {
		stage string
		kind  domain.Kind
		want  map[string]int
	}{
		{engine.StageConvert, domain.KindConversion, map[string]int{"convert": 1, "animate": 0, "render": 0}},
		{engine.StageAnimate, domain.KindAnimation, map[string]int{"convert": 1, "animate": 1, "render": 0}},
		{engine.StageRender, domain.KindRender, map[string]int{"convert": 1, "animate": 1, "render": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			f := newFixture(t)
			f.eng.failAt = tt.stage

			res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
			require.Error(t, err)
			assert.Equal(t, domain.StageFailed, res.Stage)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Contains(t, err.Error(), "Traceback")

			for stage, n := range tt.want {
				assert.Equal(t, n, f.eng.count(stage), stage)
			}
			assert.NoFileExists(t, f.out)
			assertNoWorkDirs(t, f.root)
		})
	}
}

func TestRun_InvalidOptionsBeforeAnyCall(t *testing.T) {
	for _, frames := range []int{0, -1} {
		f := newFixture(t)
		opts := options()
		opts.DurationFrames = frames

		res, err := f.o.RunConcept(context.Background(), "a cell", f.out, opts)
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		assert.Equal(t, domain.StageFailed, res.Stage)
		assert.Equal(t, 0, f.gen.calls)
		assert.Equal(t, 0, f.eng.total())
		assertNoWorkDirs(t, f.root)
	}

	f := newFixture(t)
	opts := options()
	opts.AnimationStyle = "spiral"
	_, err := f.o.RunGraphic(context.Background(), diagram, f.out, opts)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.o.RunGraphic(context.Background(), diagram, "", options())
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.o.RunGraphic(context.Background(), "just words", f.out, options())
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, 0, f.eng.total())
}

func TestRun_DeterministicArtifacts(t *testing.T) {
	f := newFixture(t)
	f.o.Config.RetainWorkDirs = true

	first, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.NoError(t, err)
	second, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.NoError(t, err)
	require.NotEqual(t, first.WorkDir, second.WorkDir)

	for _, name := range []string{ArtifactScene, ArtifactTimeline} {
		a, err := os.ReadFile(first.Artifacts[name])
		require.NoError(t, err)
		b, err := os.ReadFile(second.Artifacts[name])
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
		assert.NotEmpty(t, a)
	}
}

func TestRun_Preview(t *testing.T) {
	f := newFixture(t)
	f.o.Config.RetainWorkDirs = true
	f.o.Config.Preview = true
	f.o.Config.PreviewWidth = 64

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.NoError(t, err)
	assert.FileExists(t, res.Artifacts[ArtifactPreview])
	assert.FileExists(t, res.Artifacts[ArtifactGraphic])
}

func TestRunConcept_RetriesGeneration(t *testing.T) {
	f := newFixture(t,
		reply{text: "I'm sorry, here is a description instead."},
		reply{err: domain.Wrap(domain.KindProvider, "fake", &provider.HTTPError{StatusCode: 503})},
		reply{text: "Sure!\n```svg\n" + diagram + "\n```"},
	)

	res, err := f.o.RunConcept(context.Background(), "a flowchart", f.out, options())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 3, f.gen.calls)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, diagram, res.SVG)
	assert.Equal(t, 1, f.eng.count(engine.StageRender))
}

func TestRunConcept_RetriesExhausted(t *testing.T) {
	f := newFixture(t, reply{text: "no graphic here"})

	res, err := f.o.RunConcept(context.Background(), "a flowchart", f.out, options())
	require.Error(t, err)
	assert.Equal(t, domain.KindProvider, res.Err.Kind)
	assert.Equal(t, 3, f.gen.calls, "one attempt plus two retries")
	assert.Equal(t, 0, f.eng.total())
	assertNoWorkDirs(t, f.root)
}

func TestRunConcept_PermanentProviderError(t *testing.T) {
	f := newFixture(t, reply{err: domain.Wrap(domain.KindProvider, "fake", &provider.HTTPError{StatusCode: 401})})

	_, err := f.o.RunConcept(context.Background(), "a flowchart", f.out, options())
	require.Error(t, err)
	assert.Equal(t, domain.KindProvider, domain.KindOf(err))
	assert.Equal(t, 1, f.gen.calls)
}

func TestGenerate_StopsAfterGraphic(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "graphic.svg")

	res, err := f.o.Generate(context.Background(), "a network", out, options())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 0, f.eng.total())
	assert.Nil(t, res.Scene)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.SVG, string(data))
	assertNoWorkDirs(t, f.root)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.eng.blockAt = engine.StageRender

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := f.o.RunGraphic(ctx, diagram, f.out, options())
	require.Error(t, err)
	assert.Equal(t, domain.KindCancelled, res.Err.Kind)
	assert.Equal(t, domain.StageFailed, res.Stage)
	assert.NoFileExists(t, f.out)
	assertNoWorkDirs(t, f.root)
}

func TestRun_PanicStillCleansUp(t *testing.T) {
	f := newFixture(t)
	f.eng.panicAt = engine.StageConvert

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, res.Err.Kind)
	assert.Contains(t, err.Error(), "engine crashed")
	assertNoWorkDirs(t, f.root)
}

func TestRun_RetainedOnFailure(t *testing.T) {
	f := newFixture(t)
	f.o.Config.RetainWorkDirs = true
	f.eng.failAt = engine.StageAnimate

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.Error(t, err)
	assert.DirExists(t, res.WorkDir)
	assert.FileExists(t, res.Artifacts[ArtifactScene])
	assert.FileExists(t, res.Artifacts[ArtifactState])
	for name, path := range res.Artifacts {
		assert.FileExists(t, path, "artifact %s", name)
	}
	assert.NotContains(t, res.Artifacts, ArtifactAnimated)
	assert.NotContains(t, res.Artifacts, ArtifactRender)
}

func TestRun_ConvertFailureReportsOnlyWrittenArtifacts(t *testing.T) {
	f := newFixture(t)
	f.o.Config.RetainWorkDirs = true
	f.eng.failAt = engine.StageConvert

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.Error(t, err)
	assert.Equal(t, domain.KindConversion, res.Err.Kind)

	assert.ElementsMatch(t,
		[]string{ArtifactGraphic, ArtifactScene, ArtifactTimeline},
		keys(res.Artifacts))
	for name, path := range res.Artifacts {
		assert.FileExists(t, path, "artifact %s", name)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestRunBatch(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	svgPath := filepath.Join(dir, "in.svg")
	require.NoError(t, os.WriteFile(svgPath, []byte(diagram), 0644))

	reqs := []Request{
		{SVG: diagram, Output: filepath.Join(dir, "a.mp4")},
		{SVGPath: svgPath, Output: filepath.Join(dir, "b.mp4"), Options: config.Options{Quality: "low"}},
		{Concept: "a loop", Output: filepath.Join(dir, "c.mp4"), Options: config.Options{AnimationStyle: "network"}},
		{Concept: "a loop", Output: filepath.Join(dir, "d.svg"), GenerateOnly: true},
		{SVGPath: filepath.Join(dir, "missing.svg"), Output: filepath.Join(dir, "e.mp4")},
	}

	results := f.o.RunBatch(context.Background(), reqs, 2)
	require.Len(t, results, len(reqs))
	for i := 0; i < 4; i++ {
		assert.True(t, results[i].Succeeded(), "request %d: %v", i, results[i].Err)
		assert.FileExists(t, reqs[i].Output)
	}
	assert.Equal(t, domain.KindValidation, results[4].Err.Kind)
	assert.Equal(t, 3, f.eng.count(engine.StageRender))
	assertNoWorkDirs(t, f.root)

	n, err := testutil.GatherAndCount(f.reg, "concept2video_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "graphic, concept and generate series")
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  quality: low
  fps: 12
jobs:
  - concept: photosynthesis
    output: out/photo.mp4
  - svg_path: diagrams/net.svg
    output: out/net.mp4
    options:
      quality: high
      animation_style: network
`), 0644))

	reqs, err := ReadManifest(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "low", reqs[0].Options.Quality)
	assert.Equal(t, 12, reqs[0].Options.FPS)
	assert.Equal(t, "high", reqs[1].Options.Quality)
	assert.Equal(t, "network", reqs[1].Options.AnimationStyle)
	assert.Equal(t, 12, reqs[1].Options.FPS)

	_, err = ReadManifest(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestSourceRequests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.svg"), []byte(diagram), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644))

	src, err := source.NewFileSource(dir)
	require.NoError(t, err)

	reqs, err := SourceRequests(src, "out", options(), telemetry.Discard())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, filepath.Join("out", "flow.mp4"), reqs[0].Output)
	assert.Equal(t, diagram, reqs[0].SVG)
	assert.Equal(t, domain.JobKindGraphic, reqs[0].kind())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.svg"), []byte("<svg"), 0644))
	src, err = source.NewFileSource(dir)
	require.NoError(t, err)
	_, err = SourceRequests(src, "out", options(), telemetry.Discard())
	assert.ErrorContains(t, err, "broken")
}

func TestStoreFailureDoesNotFailJob(t *testing.T) {
	f := newFixture(t)
	f.o.Store = brokenStore{jobstore.NewMemory()}

	res, err := f.o.RunGraphic(context.Background(), diagram, f.out, options())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

type brokenStore struct{ *jobstore.Memory }

func (brokenStore) Save(context.Context, *domain.Job) error {
	return errors.New("database is down")
}

func TestStart(t *testing.T) {
	f := newFixture(t)

	id, done, err := f.o.Start(context.Background(), Request{SVG: diagram, Output: f.out, Options: options()})
	require.NoError(t, err)

	job, err := f.o.Get(context.Background(), id)
	require.NoError(t, err, "job is stored before Start returns")
	assert.Equal(t, id, job.ID)

	res := <-done
	require.NotNil(t, res)
	assert.Equal(t, id, res.JobID)
	assert.True(t, res.Succeeded())

	job, err = f.o.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSucceeded, job.Stage)

	_, _, err = f.o.Start(context.Background(), Request{SVGPath: filepath.Join(t.TempDir(), "nope.svg"), Output: f.out})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestWait_CancelledStartedJobsCleanUp(t *testing.T) {
	f := newFixture(t)
	f.eng.blockAt = engine.StageRender

	ctx, cancel := context.WithCancel(context.Background())
	id, _, err := f.o.Start(ctx, Request{SVG: diagram, Output: f.out, Options: options()})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.eng.count(engine.StageRender) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	waitCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, f.o.Wait(waitCtx))

	assertNoWorkDirs(t, f.root)
	job, err := f.o.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, job.Stage)
}

func TestWait_Timeout(t *testing.T) {
	f := newFixture(t)
	f.eng.blockAt = engine.StageRender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err := f.o.Start(ctx, Request{SVG: diagram, Output: f.out, Options: options()})
	require.NoError(t, err)

	waitCtx, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, f.o.Wait(waitCtx), context.DeadlineExceeded)

	cancel()
	require.NoError(t, f.o.Wait(context.Background()))
}
