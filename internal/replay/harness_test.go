package replay

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

func healthyMetrics() *selector.PerformanceMetrics {
	return &selector.PerformanceMetrics{
		BandUtilization:      map[band.Type]float64{band.Midrange: 0.9},
		ErrorRate:            0.01,
		TransitionOverhead:   0.05,
		OptimalSelectionRate: 0.95,
	}
}

func mustReplay(t *testing.T, events []Event, cfg ReplayConfig) ([]ReplayResult, ReplaySummary) {
	t.Helper()
	results, summary, err := Replay(events, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return results, summary
}

// 1. Outcomes keep the weight vector normalized.
func TestReplay_OutcomesNormalized(t *testing.T) {
	var events []Event
	for i := 0; i < 20; i++ {
		events = append(events, Event{
			ID: "o", Kind: KindOutcome, Algorithm: "pollard_rho",
			BitSize: 200, Millis: 3, Success: i%2 == 0,
		})
	}
	results, summary := mustReplay(t, events, DefaultReplayConfig())

	for i, r := range results {
		if r.Action != ActionRecorded {
			t.Fatalf("event %d: %s (%s)", i, r.Action, r.Reason)
		}
		if r.EvalResult == nil || !r.EvalResult.Passed {
			t.Fatalf("event %d: eval did not pass", i)
		}
	}
	sum := 0.0
	for _, w := range summary.FinalWeights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("final weights sum to %v", sum)
	}
}

// 2. An eval failure rolls the weights back.
func TestReplay_EvalRollbackRestoresWeights(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.Eval.WeightTolerance = -1 // nothing passes

	results, summary := mustReplay(t, []Event{
		{ID: "o1", Kind: KindOutcome, Algorithm: "fermat", BitSize: 900, Millis: 1, Success: true},
	}, cfg)

	if results[0].Action != ActionEvalRollback {
		t.Fatalf("expected eval_rollback, got %s", results[0].Action)
	}
	if results[0].Update == nil || results[0].Update.Action != "reward" {
		t.Fatalf("update = %+v", results[0].Update)
	}
	if math.Abs(summary.FinalWeights["fermat"]-0.25) > 1e-12 {
		t.Fatalf("fermat weight = %v, want restored 0.25", summary.FinalWeights["fermat"])
	}
	if summary.EvalRollbacks != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

// 3. Commit advances the version and installs the recommended band.
func TestReplay_AdaptCommit(t *testing.T) {
	results, summary := mustReplay(t, []Event{
		{ID: "s0", Kind: KindSelect, BitSize: 100},
		{ID: "a1", Kind: KindAdapt, Metrics: healthyMetrics()},
	}, DefaultReplayConfig())

	before, after := results[0].FinalVersionID, results[1].FinalVersionID
	if results[1].Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", results[1].Action, results[1].Reason)
	}
	if after == "" || after == before {
		t.Fatalf("version should advance: %q -> %q", before, after)
	}
	if summary.FinalBand != band.Midrange || summary.FinalVersion != after {
		t.Fatalf("summary = %+v", summary)
	}
}

// 4. A gate rejection restores thresholds and keeps the version.
func TestReplay_GateRejectRestores(t *testing.T) {
	bad := healthyMetrics()
	bad.ErrorRate = 0.9

	results, summary := mustReplay(t, []Event{
		{ID: "a1", Kind: KindAdapt, Metrics: healthyMetrics()},
		{ID: "a2", Kind: KindAdapt, Metrics: bad},
	}, DefaultReplayConfig())

	if results[1].Action != ActionGateReject || results[1].GateDecision == nil {
		t.Fatalf("expected gate_reject, got %s", results[1].Action)
	}
	if results[1].FinalVersionID != results[0].FinalVersionID {
		t.Fatal("rejected adaptation must not change the version")
	}
	// a1 widened MIDRANGE once (140.8 * 1.05); the rejected a2 must not stick.
	if got := summary.FinalThresholds[band.Midrange].Max; math.Abs(got-147.84) > 1e-9 {
		t.Fatalf("MIDRANGE max = %v, want 147.84", got)
	}
}

// 5. Observations feed adaptations that carry no explicit metrics.
func TestReplay_ObserveFeedsAdapt(t *testing.T) {
	var events []Event
	for i := 0; i < 9; i++ {
		events = append(events, Event{ID: "ob", Kind: KindObserve, Band: "TREBLE", Optimal: true})
	}
	events = append(events, Event{ID: "ob", Kind: KindObserve, Band: "UPPER_MID", Selected: "TREBLE", Optimal: true})
	events = append(events, Event{ID: "a", Kind: KindAdapt})

	results, summary := mustReplay(t, events, DefaultReplayConfig())
	last := results[len(results)-1]
	if last.Action != ActionCommit || last.Band != "TREBLE" {
		t.Fatalf("adapt = %s/%s (%s)", last.Action, last.Band, last.Reason)
	}
	if summary.FinalBand != band.Treble {
		t.Fatalf("final band = %s", summary.FinalBand)
	}
}

// 6. Cooldown uses event timestamps.
func TestReplay_CooldownFromEventTimes(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.Gate.Cooldown = time.Hour
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	results, _ := mustReplay(t, []Event{
		{ID: "a1", Kind: KindAdapt, At: t0, Metrics: healthyMetrics()},
		{ID: "a2", Kind: KindAdapt, At: t0.Add(time.Minute), Metrics: healthyMetrics()},
		{ID: "a3", Kind: KindAdapt, At: t0.Add(2 * time.Hour), Metrics: healthyMetrics()},
	}, cfg)

	want := []string{ActionCommit, ActionGateReject, ActionCommit}
	for i, w := range want {
		if results[i].Action != w {
			t.Fatalf("event %d: %s, want %s (%s)", i, results[i].Action, w, results[i].Reason)
		}
	}
}

// 7. Bad events are reported inline and do not stop the run.
func TestReplay_ErrorsAreInline(t *testing.T) {
	results, summary := mustReplay(t, []Event{
		{ID: "x1", Kind: "teleport"},
		{ID: "x2", Kind: KindPerformance, Band: "NOPE"},
		{ID: "x3", Kind: KindSelect, BitSize: 5000},
		{ID: "x4", Kind: KindSelect, BitSize: 20},
	}, DefaultReplayConfig())

	for i := 0; i < 3; i++ {
		if results[i].Action != ActionError {
			t.Fatalf("event %d: %s, want error", i, results[i].Action)
		}
	}
	if results[3].Action != ActionSelected || results[3].Band != "ULTRABASS" {
		t.Fatalf("event 3 = %+v", results[3])
	}
	if summary.Errors != 3 || summary.Selections != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestReplay_BadConfig(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.Algorithms = nil
	if _, _, err := Replay(nil, cfg); err == nil {
		t.Fatal("expected error without algorithms")
	}
}
