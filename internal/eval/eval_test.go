package eval

import (
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

func metric(r EvalResult, name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

func TestEvalPassesOnUniformWeights(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	w := map[string]float64{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25}
	th := map[band.Type]selector.AdaptiveThreshold{
		band.Midrange: selector.InitialThreshold(band.Midrange, 0.1),
	}

	result := h.Run(w, th)
	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) == 0 {
		t.Fatal("expected metrics")
	}
	if m, ok := metric(result, "weight_sum"); !ok || !m.Pass {
		t.Fatalf("weight_sum metric = %+v", m)
	}
}

func TestEvalFailsOnWeightDrift(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(map[string]float64{"a": 0.5, "b": 0.5 + 1e-6}, nil)
	if result.Passed {
		t.Fatal("expected fail on drifted weight sum")
	}
	if !strings.Contains(result.Reason, "sum") {
		t.Fatalf("reason = %q", result.Reason)
	}
}

func TestEvalFailsOnNegativeOrNaNWeight(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	for _, w := range []map[string]float64{
		{"a": 1.5, "b": -0.5},
		{"a": math.NaN(), "b": 1},
	} {
		if result := h.Run(w, nil); result.Passed {
			t.Fatalf("expected fail for %v", w)
		}
	}
}

func TestEvalFailsOnEmptyWeights(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	if result := h.Run(map[string]float64{}, nil); result.Passed {
		t.Fatal("an empty weight vector cannot sum to 1")
	}
}

func TestEvalFailsOnMalformedThreshold(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(nil, map[band.Type]selector.AdaptiveThreshold{
		band.Bass:   {Min: 50, Max: 40},
		band.Treble: {Min: math.NaN(), Max: 600},
	})
	if result.Passed {
		t.Fatal("expected fail on malformed thresholds")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Fatalf("reason = %q, want both failures counted", result.Reason)
	}
}

func TestEvalSpreadIsInformational(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(nil, map[band.Type]selector.AdaptiveThreshold{
		band.Midrange: {Min: 10, Max: 1000},
	})
	if !result.Passed {
		t.Fatalf("spread must not fail the run: %s", result.Reason)
	}
	m, ok := metric(result, "threshold_MIDRANGE_spread")
	if !ok || m.Pass {
		t.Fatalf("spread metric = %+v, want flagged", m)
	}
}
