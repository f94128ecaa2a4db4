package director

// Fractions are the shares of the total duration given to each phase.
// Phases a style does not use are ignored.
type Fractions struct {
	CameraIntro     float64 `yaml:"camera_intro"`
	NodeIntro       float64 `yaml:"node_intro"`
	ConnectorGrowth float64 `yaml:"connector_growth"`
	LabelFadeIn     float64 `yaml:"label_fade_in"`
	FlowHighlight   float64 `yaml:"flow_highlight"`
	NetworkActivity float64 `yaml:"network_activity"`
}

func (f Fractions) of(phase string) float64 {
	switch phase {
	case PhaseCameraIntro:
		return f.CameraIntro
	case PhaseNodeIntro:
		return f.NodeIntro
	case PhaseConnectorGrowth:
		return f.ConnectorGrowth
	case PhaseLabelFadeIn:
		return f.LabelFadeIn
	case PhaseFlowHighlight:
		return f.FlowHighlight
	case PhaseNetworkActivity:
		return f.NetworkActivity
	}
	return 0
}

// Tuning holds the empirically chosen animation constants. None of them is
// a correctness invariant; all may be overridden from configuration.
type Tuning struct {
	Standard Fractions `yaml:"standard"` // standard and flowchart
	Network  Fractions `yaml:"network"`

	Overshoot     float64 `yaml:"overshoot"`      // network node scale peak, relative to authored scale
	BounceHeight  float64 `yaml:"bounce_height"`  // network node z bump, scene units
	PulseCount    int     `yaml:"pulse_count"`    // network activity pulses per connector
	HighlightPeak float64 `yaml:"highlight_peak"` // flow highlight emission strength
	PulsePeak     float64 `yaml:"pulse_peak"`     // connector pulse emission strength
	DwellShare    float64 `yaml:"dwell_share"`    // flowchart share of a node window held at peak
	GrowthShare   float64 `yaml:"growth_share"`   // network share of a connector window spent growing
	CameraWide    float64 `yaml:"camera_wide"`    // establishing distance, in canvas spans
	CameraClose   float64 `yaml:"camera_close"`   // final distance, in canvas spans
	RowTolerance  float64 `yaml:"row_tolerance"`  // flowchart nodes closer than this in y share a row
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		Standard: Fractions{
			CameraIntro:     0.2,
			NodeIntro:       0.3,
			ConnectorGrowth: 0.2,
			LabelFadeIn:     0.2,
			FlowHighlight:   0.1,
		},
		Network: Fractions{
			CameraIntro:     0.2,
			NodeIntro:       0.3,
			ConnectorGrowth: 0.3,
			NetworkActivity: 0.2,
		},
		Overshoot:     1.2,
		BounceHeight:  0.15,
		PulseCount:    3,
		HighlightPeak: 5.0,
		PulsePeak:     3.0,
		DwellShare:    0.4,
		GrowthShare:   0.7,
		CameraWide:    2.5,
		CameraClose:   1.2,
		RowTolerance:  0.05,
	}
}

// withDefaults fills zero fields from DefaultTuning.
func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.Standard == (Fractions{}) {
		t.Standard = d.Standard
	}
	if t.Network == (Fractions{}) {
		t.Network = d.Network
	}
	if t.Overshoot <= 0 {
		t.Overshoot = d.Overshoot
	}
	if t.BounceHeight < 0 {
		t.BounceHeight = d.BounceHeight
	}
	if t.PulseCount <= 0 {
		t.PulseCount = d.PulseCount
	}
	if t.HighlightPeak <= 0 {
		t.HighlightPeak = d.HighlightPeak
	}
	if t.PulsePeak <= 0 {
		t.PulsePeak = d.PulsePeak
	}
	if t.DwellShare <= 0 || t.DwellShare >= 1 {
		t.DwellShare = d.DwellShare
	}
	if t.GrowthShare <= 0 || t.GrowthShare >= 1 {
		t.GrowthShare = d.GrowthShare
	}
	if t.CameraWide <= 0 {
		t.CameraWide = d.CameraWide
	}
	if t.CameraClose <= 0 {
		t.CameraClose = d.CameraClose
	}
	if t.RowTolerance < 0 {
		t.RowTolerance = d.RowTolerance
	}
	return t
}

// phasesFor lists the phase names of a style in order.
func phasesFor(style Style) []string {
	if style == StyleNetwork {
		return []string{PhaseCameraIntro, PhaseNodeIntro, PhaseConnectorGrowth, PhaseNetworkActivity}
	}
	return []string{PhaseCameraIntro, PhaseNodeIntro, PhaseConnectorGrowth, PhaseLabelFadeIn, PhaseFlowHighlight}
}

// fractions returns the normalized share of each phase of style.
func (t Tuning) fractions(style Style) []float64 {
	src := t.Standard
	if style == StyleNetwork {
		src = t.Network
	}
	names := phasesFor(style)

	out := make([]float64, len(names))
	sum := 0.0
	for i, name := range names {
		f := src.of(name)
		if f < 0 {
			f = 0
		}
		out[i] = f
		sum += f
	}
	if sum <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
