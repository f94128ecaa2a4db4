package director

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/concept2video/internal/analyzer"
	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/renderer"
	"github.com/ivlev/concept2video/internal/scene"
)

func classified(id string, role analyzer.Role, x, y float64, idx int) analyzer.Classified {
	return analyzer.Classified{
		Role: role,
		Object: scene.Object{
			ID:          id,
			SourceIndex: idx,
			Transform: scene.Transform{
				Position: scene.Vec3{X: x, Y: y},
				Scale:    scene.Vec3{X: 2, Y: 1, Z: 0.1},
			},
		},
	}
}

func diagram() []analyzer.Classified {
	return []analyzer.Classified{
		classified("obj_000", analyzer.RoleNode, -2, -1, 0),
		classified("obj_001", analyzer.RoleNode, 0, 2, 1),
		classified("obj_002", analyzer.RoleConnector, -1, 0.5, 2),
		classified("obj_003", analyzer.RoleLabel, -2, -1, 3),
		classified("obj_004", analyzer.RoleUnclassified, 3, 3, 4),
		classified("obj_005", analyzer.RoleConnector, 1, 0.5, 5),
	}
}

func phase(t *testing.T, tl *Timeline, name string) Phase {
	t.Helper()
	for _, p := range tl.Phases {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("phase %s not found", name)
	return Phase{}
}

func TestCompose_Invariants(t *testing.T) {
	d := NewDirector(8, 6)
	for _, style := range []Style{StyleStandard, StyleFlowchart, StyleNetwork} {
		for _, frames := range []int{1, 2, 7, 48, 250, 1000} {
			tl, err := d.Compose(diagram(), frames, style)
			require.NoError(t, err, "%s/%d", style, frames)
			require.NoError(t, tl.Validate(), "%s/%d", style, frames)

			sum := 0.0
			for _, p := range tl.Phases {
				sum += p.Fraction
				for _, tr := range p.Tracks {
					for _, k := range tr.Keyframes {
						assert.GreaterOrEqual(t, k.Frame, 1.0)
						assert.LessOrEqual(t, k.Frame, float64(frames))
						assert.True(t, renderer.IsEased(k.Easing), "easing %q", k.Easing)
					}
				}
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.Equal(t, float64(frames), tl.Phases[len(tl.Phases)-1].EndFrame)
		}
	}
}

func TestCompose_PhaseLayout(t *testing.T) {
	d := NewDirector(8, 6)

	tl, err := d.Compose(diagram(), 101, StyleStandard)
	require.NoError(t, err)
	names := []string{}
	for _, p := range tl.Phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{PhaseCameraIntro, PhaseNodeIntro, PhaseConnectorGrowth, PhaseLabelFadeIn, PhaseFlowHighlight}, names)

	nodes := phase(t, tl, PhaseNodeIntro)
	assert.Equal(t, 21.0, nodes.StartFrame)
	assert.Equal(t, 51.0, nodes.EndFrame)
	require.Len(t, nodes.Tracks, 2)
	// step = 30 / (2+1)
	assert.Equal(t, 21.0, nodes.Tracks[0].Keyframes[0].Frame)
	assert.Equal(t, 31.0, nodes.Tracks[0].Keyframes[1].Frame)
	assert.Equal(t, 31.0, nodes.Tracks[1].Keyframes[0].Frame)
	assert.Equal(t, 41.0, nodes.Tracks[1].Keyframes[1].Frame)
	assert.Equal(t, []float64{0, 0, 0}, nodes.Tracks[0].Keyframes[0].Value)
	assert.Equal(t, []float64{2, 1, 0.1}, nodes.Tracks[0].Keyframes[1].Value)

	net, err := d.Compose(diagram(), 101, StyleNetwork)
	require.NoError(t, err)
	names = names[:0]
	for _, p := range net.Phases {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{PhaseCameraIntro, PhaseNodeIntro, PhaseConnectorGrowth, PhaseNetworkActivity}, names)
	assert.InDelta(t, 0.3, phase(t, net, PhaseConnectorGrowth).Fraction, 1e-12)
}

func TestCompose_Camera(t *testing.T) {
	tl, err := NewDirector(8, 6).Compose(nil, 100, StyleStandard)
	require.NoError(t, err)

	cam := phase(t, tl, PhaseCameraIntro)
	require.Len(t, cam.Tracks, 1)
	tr := cam.Tracks[0]
	assert.Equal(t, CameraRef, tr.ObjectRef)
	assert.Equal(t, PropLocation, tr.Property)
	require.Len(t, tr.Keyframes, 2)
	assert.Greater(t, tr.Keyframes[0].Value[2], tr.Keyframes[1].Value[2], "camera moves closer")
}

func TestCompose_EmptyRolesKeepPhases(t *testing.T) {
	only := []analyzer.Classified{classified("obj_000", analyzer.RoleNode, 0, 0, 0)}
	tl, err := NewDirector(8, 6).Compose(only, 60, StyleStandard)
	require.NoError(t, err)

	assert.Len(t, tl.Phases, 5)
	assert.Empty(t, phase(t, tl, PhaseConnectorGrowth).Tracks)
	assert.Empty(t, phase(t, tl, PhaseLabelFadeIn).Tracks)
	assert.Len(t, phase(t, tl, PhaseFlowHighlight).Tracks, 1)
}

func TestCompose_UnclassifiedNotAnimated(t *testing.T) {
	tl, err := NewDirector(8, 6).Compose(diagram(), 100, StyleNetwork)
	require.NoError(t, err)
	for _, p := range tl.Phases {
		for _, tr := range p.Tracks {
			assert.NotEqual(t, "obj_004", tr.ObjectRef)
		}
	}
}

func TestCompose_NetworkOvershootAndBounce(t *testing.T) {
	tl, err := NewDirector(8, 6).Compose(diagram(), 200, StyleNetwork)
	require.NoError(t, err)

	nodes := phase(t, tl, PhaseNodeIntro)
	require.Len(t, nodes.Tracks, 4)

	scale := nodes.Tracks[0]
	assert.Equal(t, PropScale, scale.Property)
	require.Len(t, scale.Keyframes, 3)
	assert.InDelta(t, 2.4, scale.Keyframes[1].Value[0], 1e-12)
	assert.Equal(t, []float64{2, 1, 0.1}, scale.Keyframes[2].Value)

	loc := nodes.Tracks[1]
	assert.Equal(t, PropLocation, loc.Property)
	assert.InDelta(t, 0.15, loc.Keyframes[1].Value[2], 1e-12)
	assert.Equal(t, scale.Keyframes[1].Frame, loc.Keyframes[1].Frame)

	growth := phase(t, tl, PhaseConnectorGrowth)
	require.Len(t, growth.Tracks, 4, "reveal and emission per connector")
	reveal, pulse := growth.Tracks[0], growth.Tracks[1]
	assert.Equal(t, PropReveal, reveal.Property)
	assert.Equal(t, PropEmission, pulse.Property)
	assert.Equal(t, reveal.Keyframes[1].Frame, pulse.Keyframes[0].Frame, "pulse follows growth")
	assert.Equal(t, 3.0, pulse.Keyframes[1].Value[0])
}

func TestCompose_NetworkActivity(t *testing.T) {
	tl, err := NewDirector(8, 6).Compose(diagram(), 500, StyleNetwork)
	require.NoError(t, err)

	act := phase(t, tl, PhaseNetworkActivity)
	require.Len(t, act.Tracks, 2)
	for _, tr := range act.Tracks {
		assert.Equal(t, PropEmission, tr.Property)
		require.Len(t, tr.Keyframes, 9, "three pulses")
		for i := 1; i < len(tr.Keyframes); i++ {
			assert.Greater(t, tr.Keyframes[i].Frame, tr.Keyframes[i-1].Frame)
		}
		assert.GreaterOrEqual(t, tr.Keyframes[0].Frame, act.StartFrame)
		assert.LessOrEqual(t, tr.Keyframes[8].Frame, act.EndFrame)
	}
	assert.NotEqual(t, act.Tracks[0].Keyframes[0].Frame, act.Tracks[1].Keyframes[0].Frame, "connectors are staggered")
}

func TestCompose_FlowchartReadingOrder(t *testing.T) {
	objs := []analyzer.Classified{
		classified("bottom", analyzer.RoleNode, 0, -3, 0),
		classified("top-right", analyzer.RoleNode, 2, 3, 1),
		classified("middle", analyzer.RoleNode, 0, 0, 2),
		classified("top-left", analyzer.RoleNode, -2, 3, 3),
	}

	flow, err := NewDirector(8, 6).Compose(objs, 400, StyleFlowchart)
	require.NoError(t, err)
	hl := phase(t, flow, PhaseFlowHighlight)
	var order []string
	for _, tr := range hl.Tracks {
		order = append(order, tr.ObjectRef)
		require.Len(t, tr.Keyframes, 4, "rise, dwell, decay")
		assert.Equal(t, tr.Keyframes[1].Value, tr.Keyframes[2].Value)
	}
	assert.Equal(t, []string{"top-left", "top-right", "middle", "bottom"}, order)

	std, err := NewDirector(8, 6).Compose(objs, 400, StyleStandard)
	require.NoError(t, err)
	order = order[:0]
	for _, tr := range phase(t, std, PhaseFlowHighlight).Tracks {
		order = append(order, tr.ObjectRef)
		assert.Len(t, tr.Keyframes, 3)
	}
	assert.Equal(t, []string{"bottom", "top-right", "middle", "top-left"}, order)
}

func TestCompose_Errors(t *testing.T) {
	d := NewDirector(8, 6)
	for _, frames := range []int{0, -10} {
		_, err := d.Compose(diagram(), frames, StyleStandard)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	}
	_, err := d.Compose(diagram(), 100, Style("spiral"))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCompose_TuningNormalized(t *testing.T) {
	d := NewDirector(8, 6)
	d.Tuning.Standard = Fractions{CameraIntro: 1, NodeIntro: 1, ConnectorGrowth: 1, LabelFadeIn: 1, FlowHighlight: 1}

	tl, err := d.Compose(diagram(), 101, StyleStandard)
	require.NoError(t, err)
	for _, p := range tl.Phases {
		assert.InDelta(t, 0.2, p.Fraction, 1e-12)
	}
	assert.Equal(t, 21.0, tl.Phases[0].EndFrame)
}

func TestTrack_Sample(t *testing.T) {
	tl, err := NewDirector(8, 6).Compose(diagram(), 101, StyleStandard)
	require.NoError(t, err)

	tr := phase(t, tl, PhaseLabelFadeIn).Tracks[0]
	a, b := tr.Keyframes[0].Frame, tr.Keyframes[1].Frame
	assert.Equal(t, []float64{0}, tr.Sample(a))
	assert.Equal(t, []float64{1}, tr.Sample(b))
	mid := tr.Sample((a + b) / 2)
	assert.InDelta(t, 0.5, mid[0], 1e-9)
	quarter := tr.Sample(a + (b-a)/4)
	assert.Less(t, quarter[0], 0.25, "eased, not linear")
}

func TestTimeline_WriteReadDeterministic(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}

	for _, p := range paths {
		tl, err := NewDirector(8, 6).Compose(diagram(), 120, StyleNetwork)
		require.NoError(t, err)
		require.NoError(t, WriteTimeline(tl, p))
	}

	a, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	b, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))

	back, err := ReadTimeline(paths[0])
	require.NoError(t, err)
	assert.Equal(t, 120, back.TotalFrames)
	assert.Equal(t, StyleNetwork, back.Style)
	assert.Len(t, back.Phases, 4)
}

func TestReadTimeline_RejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	tl := &Timeline{
		TotalFrames: 10,
		Phases: []Phase{{
			Name: PhaseCameraIntro, Fraction: 1, StartFrame: 1, EndFrame: 10,
			Tracks: []Track{{ObjectRef: CameraRef, Property: PropLocation, Keyframes: []Keyframe{{Frame: 11, Value: []float64{0}}}}},
		}},
	}
	require.NoError(t, WriteTimeline(tl, path))

	_, err := ReadTimeline(path)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
