package depth

import (
	"math"
	"testing"

	"github.com/ayusman/shadowdepth/internal/shadow"
)

func metricsWithDrop(drop float64) *shadow.Metrics {
	return &shadow.Metrics{IntensityDrop: drop}
}

// The curve and its constants are a tunable heuristic. These tests pin the
// current calibration, not a physical law.
func TestConfig_RawDepth(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		name string
		drop float64
		want float64
	}{
		{name: "no drop", drop: 0, want: 50.0},
		{name: "negative drop", drop: -0.4, want: 50.0},
		{name: "at shadow threshold", drop: 0.05, want: 50.0},
		{name: "just above threshold", drop: 0.06, want: 50.0 * 0.94 * 0.94},
		{name: "half", drop: 0.5, want: 12.5},
		{name: "sixty percent", drop: 0.6, want: 8.0},
		{name: "full drop", drop: 1.0, want: 0.0},
		{name: "over full drop", drop: 1.7, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.RawDepth(tt.drop)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RawDepth(%v) = %v, want %v", tt.drop, got, tt.want)
			}
		})
	}
}

func TestConfig_RawDepth_Monotonic(t *testing.T) {
	c := DefaultConfig()

	prev := c.RawDepth(0)
	for i := 1; i <= 1000; i++ {
		drop := float64(i) / 1000
		got := c.RawDepth(drop)
		if got > prev {
			t.Fatalf("RawDepth(%v) = %v increased from %v", drop, got, prev)
		}
		if got < 0 {
			t.Fatalf("RawDepth(%v) = %v is negative", drop, got)
		}
		prev = got
	}
}

func TestConfig_Classify_Boundaries(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		depth float64
		want  Action
	}{
		{depth: 0, want: ActionTouching},
		{depth: 4.999, want: ActionTouching},
		{depth: 5.000, want: ActionAway},
		{depth: 5.001, want: ActionAway},
		{depth: 50, want: ActionAway},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.depth); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.depth, got, tt.want)
		}
	}
}

func TestEstimator_ThresholdThroughEstimate(t *testing.T) {
	tests := []struct {
		name     string
		maxDepth float64
		want     Action
	}{
		{name: "below threshold", maxDepth: 4.999, want: ActionTouching},
		{name: "at threshold", maxDepth: 5.000, want: ActionAway},
		{name: "above threshold", maxDepth: 5.001, want: ActionAway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// with no shadow the raw depth equals MaxDepthCM
			e := NewEstimator(Config{MaxDepthCM: tt.maxDepth, TouchThresholdCM: 5.0})
			got := e.Estimate(nil)
			if got.DepthCM != tt.maxDepth {
				t.Errorf("DepthCM = %v, want %v", got.DepthCM, tt.maxDepth)
			}
			if got.Action != tt.want {
				t.Errorf("Action = %q, want %q", got.Action, tt.want)
			}
		})
	}
}

func TestEstimator_SingleSample(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	got := e.Estimate(metricsWithDrop(0.5))
	if got.DepthCM != 12.5 {
		t.Errorf("DepthCM = %v, want 12.5 after one sample", got.DepthCM)
	}
	if len(e.History()) != 1 {
		t.Errorf("history length = %d, want 1", len(e.History()))
	}
}

func TestEstimator_NilMetrics(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	got := e.Estimate(nil)
	if got.DepthCM != 50.0 {
		t.Errorf("DepthCM = %v, want 50 for missing metrics", got.DepthCM)
	}
	if got.Action != ActionAway {
		t.Errorf("Action = %q, want %q", got.Action, ActionAway)
	}
}

func TestEstimator_PartialWindowAverage(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	e.Estimate(nil)                       // 50
	got := e.Estimate(metricsWithDrop(1)) // 0

	if got.DepthCM != 25.0 {
		t.Errorf("DepthCM = %v, want 25 (mean of 2 samples)", got.DepthCM)
	}
}

func TestEstimator_Converges(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	// start far away, then hold a constant shadow
	e.Estimate(nil)
	e.Estimate(nil)

	var got Estimate
	for i := 0; i < 5; i++ {
		got = e.Estimate(metricsWithDrop(0.6))
	}

	if math.Abs(got.DepthCM-8.0) > 1e-9 {
		t.Errorf("DepthCM = %v, want 8.0 after a saturated window", got.DepthCM)
	}
	if got.Action != ActionAway {
		t.Errorf("Action = %q, want %q", got.Action, ActionAway)
	}

	// further identical samples keep it stable
	again := e.Estimate(metricsWithDrop(0.6))
	if math.Abs(again.DepthCM-got.DepthCM) > 1e-9 {
		t.Errorf("DepthCM drifted from %v to %v", got.DepthCM, again.DepthCM)
	}
}

func TestEstimator_HistoryBounded(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	for i := 0; i < 100; i++ {
		e.Estimate(metricsWithDrop(float64(i%10) / 10))
		if n := len(e.History()); n > 5 {
			t.Fatalf("history length = %d after %d calls, want <= 5", n, i+1)
		}
	}
}

func TestEstimator_HistoryEvictsOldest(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	drops := []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}
	for _, d := range drops {
		e.Estimate(metricsWithDrop(d))
	}

	history := e.History()
	c := e.Config()
	for i, d := range drops[1:] {
		if want := c.RawDepth(d); math.Abs(history[i]-want) > 1e-9 {
			t.Errorf("history[%d] = %v, want %v", i, history[i], want)
		}
	}
}

func TestEstimator_Touching(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	var got Estimate
	for i := 0; i < 5; i++ {
		got = e.Estimate(metricsWithDrop(0.9))
	}

	// 50 * 0.1^2 = 0.5 cm
	if math.Abs(got.DepthCM-0.5) > 1e-9 {
		t.Errorf("DepthCM = %v, want 0.5", got.DepthCM)
	}
	if got.Action != ActionTouching {
		t.Errorf("Action = %q, want %q", got.Action, ActionTouching)
	}
}

func TestEstimator_Reset(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	e.Estimate(metricsWithDrop(0.9))
	e.Estimate(metricsWithDrop(0.9))

	e.Reset()

	if len(e.History()) != 0 {
		t.Fatalf("history length = %d after Reset, want 0", len(e.History()))
	}
	if got := e.Estimate(nil); got.DepthCM != 50 {
		t.Errorf("DepthCM = %v after Reset, want 50", got.DepthCM)
	}
}

func TestEstimator_IndependentInstances(t *testing.T) {
	a := NewEstimator(DefaultConfig())
	b := NewEstimator(DefaultConfig())

	for i := 0; i < 5; i++ {
		a.Estimate(metricsWithDrop(0.9))
	}
	got := b.Estimate(nil)

	if got.DepthCM != 50 {
		t.Errorf("second estimator DepthCM = %v, want 50 (windows must not be shared)", got.DepthCM)
	}
}

func TestNewEstimator_Defaults(t *testing.T) {
	e := NewEstimator(Config{})

	if got := e.Config(); got != DefaultConfig() {
		t.Errorf("Config() = %+v, want %+v", got, DefaultConfig())
	}
	if w := e.Waiting(); w.Action != ActionWaiting || w.DepthCM != 50 {
		t.Errorf("Waiting() = %+v, want waiting at 50cm", w)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	d := DefaultConfig()
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero", Config{}, d},
		{"negative", Config{MaxDepthCM: -1, TouchThresholdCM: -2, ShadowThreshold: -0.1, Window: -3}, d},
		{"zero shadow threshold is unset", Config{MaxDepthCM: 40, ShadowThreshold: 0}, Config{40, d.TouchThresholdCM, d.ShadowThreshold, d.Window}},
		{"tiny shadow threshold kept", Config{ShadowThreshold: 1e-9}, Config{d.MaxDepthCM, d.TouchThresholdCM, 1e-9, d.Window}},
		{"all set", Config{30, 8, 0.1, 3}, Config{30, 8, 0.1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.WithDefaults(); got != tt.want {
				t.Errorf("WithDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAction_Label(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionTouching, "TOUCHING FACE / EATING"},
		{ActionAway, "HAND AWAY"},
		{ActionWaiting, "WAITING"},
	}

	for _, tt := range tests {
		if got := tt.action.Label(); got != tt.want {
			t.Errorf("%q.Label() = %q, want %q", tt.action, got, tt.want)
		}
	}
}
