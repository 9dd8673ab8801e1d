package adaptive

import (
	"math"
	"math/rand"
	"testing"
)

const tolerance = 1e-9

func newVector(t *testing.T, priors map[string]float64) *WeightVector[string] {
	t.Helper()
	w, err := NewWeightVector([]string{"a", "b", "c"}, priors)
	if err != nil {
		t.Fatalf("NewWeightVector: %v", err)
	}
	return w
}

func TestNewWeightVector_NormalizesPriors(t *testing.T) {
	w := newVector(t, map[string]float64{"a": 2, "b": 1, "c": 1})
	if got := w.Get("a"); math.Abs(got-0.5) > tolerance {
		t.Errorf("weight(a) = %f, want 0.5", got)
	}
	if math.Abs(w.Sum()-1) > tolerance {
		t.Errorf("sum = %f, want 1", w.Sum())
	}
}

func TestNewWeightVector_ZeroPriorsBecomeUniform(t *testing.T) {
	w := newVector(t, nil)
	for _, c := range w.Candidates() {
		if math.Abs(w.Get(c)-1.0/3) > tolerance {
			t.Errorf("weight(%s) = %f, want 1/3", c, w.Get(c))
		}
	}
}

func TestNewWeightVector_Errors(t *testing.T) {
	if _, err := NewWeightVector[string](nil, nil); err == nil {
		t.Error("expected error for empty candidate list")
	}
	if _, err := NewWeightVector([]string{"a", "a"}, nil); err == nil {
		t.Error("expected error for duplicate candidate")
	}
}

func TestApplyOutcome_NormalizationHolds(t *testing.T) {
	w := newVector(t, map[string]float64{"a": 0.5, "b": 0.3, "c": 0.2})
	cfg := DefaultUpdateConfig()
	rng := rand.New(rand.NewSource(7))
	names := w.Candidates()

	for i := 0; i < 500; i++ {
		o := Outcome[string]{
			Candidate: names[rng.Intn(len(names))],
			Success:   rng.Intn(2) == 0,
			CostMs:    float64(rng.Intn(5000)),
		}
		ApplyOutcome(w, o, cfg)

		if math.Abs(w.Sum()-1) > tolerance {
			t.Fatalf("step %d: sum = %.12f", i, w.Sum())
		}
		for _, c := range names {
			if w.Get(c) < 0 {
				t.Fatalf("step %d: negative weight for %s", i, c)
			}
		}
	}
}

func TestApplyOutcome_LearningMonotonicity(t *testing.T) {
	w, err := NewWeightVector([]string{"A", "B"}, map[string]float64{"A": 0.5, "B": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultUpdateConfig()

	prevA, prevB := w.Get("A"), w.Get("B")
	for i := 0; i < 20; i++ {
		var o Outcome[string]
		if i%2 == 0 {
			o = Outcome[string]{Candidate: "A", Success: true, CostMs: 1}
		} else {
			o = Outcome[string]{Candidate: "B", Success: false, CostMs: 5000}
		}
		ApplyOutcome(w, o, cfg)

		a, b := w.Get("A"), w.Get("B")
		if a <= prevA {
			t.Fatalf("step %d: weight(A) %f did not increase from %f", i, a, prevA)
		}
		if b >= prevB {
			t.Fatalf("step %d: weight(B) %f did not decrease from %f", i, b, prevB)
		}
		prevA, prevB = a, b
	}
}

func TestApplyOutcome_Actions(t *testing.T) {
	w := newVector(t, nil)
	cfg := DefaultUpdateConfig()

	res := ApplyOutcome(w, Outcome[string]{Candidate: "a", Success: true}, cfg)
	if res.Action != "reward" || res.After <= res.Before {
		t.Errorf("reward result = %+v", res)
	}
	res = ApplyOutcome(w, Outcome[string]{Candidate: "b", Success: false}, cfg)
	if res.Action != "penalize" || res.After >= res.Before {
		t.Errorf("penalize result = %+v", res)
	}
	res = ApplyOutcome(w, Outcome[string]{Candidate: "zzz", Success: true}, cfg)
	if res.Action != "no_op" {
		t.Errorf("unknown candidate action = %q, want no_op", res.Action)
	}
}

func TestApplyOutcome_MinWeightFloor(t *testing.T) {
	w := newVector(t, nil)
	cfg := UpdateConfig{LearningRate: 0.9, MinWeight: 0.05}
	for i := 0; i < 50; i++ {
		ApplyOutcome(w, Outcome[string]{Candidate: "c", Success: false}, cfg)
	}
	if w.Get("c") < 0.04 {
		t.Errorf("weight(c) = %f, floor not applied", w.Get("c"))
	}
	if math.Abs(w.Sum()-1) > tolerance {
		t.Errorf("sum = %f", w.Sum())
	}
}

func TestRestore(t *testing.T) {
	w := newVector(t, nil)
	w.Restore(map[string]float64{"a": 3, "b": 1, "c": 0, "unknown": 9})
	if math.Abs(w.Get("a")-0.75) > tolerance || w.Get("c") != 0 {
		t.Errorf("restored weights = %v", w.Snapshot())
	}
}

func TestArgmax_IncumbentWinsTies(t *testing.T) {
	score := map[string]float64{"x": 1, "y": 1, "z": 0.5}
	got, s := Argmax("x", []string{"y", "z"}, func(c string) float64 { return score[c] })
	if got != "x" || s != 1 {
		t.Errorf("Argmax = %s (%f), want x", got, s)
	}

	score["y"] = 1.01
	got, _ = Argmax("x", []string{"y", "z"}, func(c string) float64 { return score[c] })
	if got != "y" {
		t.Errorf("Argmax = %s, want y", got)
	}
}

func TestRank_StableDescending(t *testing.T) {
	score := map[int]float64{1: 0.2, 2: 0.9, 3: 0.2, 4: 0.5}
	ranked := Rank([]int{1, 2, 3, 4}, func(c int) float64 { return score[c] })
	want := []int{2, 4, 1, 3}
	for i, r := range ranked {
		if r.Candidate != want[i] {
			t.Fatalf("rank = %+v, want order %v", ranked, want)
		}
	}
}
