package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// #region fixture-tests

// TestFixture_Session loads the session fixture, runs Replay(), and compares
// each event's action against the expected action. If gate, eval or selector
// parameters drift, this catches it.
func TestFixture_Session(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, summary, err := Replay(f.Events, f.Config.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(results) != len(f.ExpectedResults) {
		t.Fatalf("expected %d results, got %d", len(f.ExpectedResults), len(results))
	}
	for i, expected := range f.ExpectedResults {
		actual := results[i]
		if actual.EventID != expected.ID {
			t.Errorf("event %d: expected id=%s, got %s", i, expected.ID, actual.EventID)
		}
		if actual.Action != expected.Action {
			t.Errorf("event %d (%s): expected action=%s, got action=%s (reason: %s)",
				i, expected.ID, expected.Action, actual.Action, actual.Reason)
		}
		if expected.Band != "" && actual.Band != expected.Band {
			t.Errorf("event %d (%s): expected band=%s, got %s", i, expected.ID, expected.Band, actual.Band)
		}
	}

	if summary.Commits != 1 || summary.GateRejects != 2 || summary.Errors != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.FinalWeights["fermat"] <= 0.25 {
		t.Errorf("fermat weight %v should have grown from its prior", summary.FinalWeights["fermat"])
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestToReplayConfig_Overrides(t *testing.T) {
	off := false
	fc := FixtureConfig{
		Algorithms:   []string{"a", "b"},
		LearningRate: 0.2,
		Window:       10,
		GateConfig: FixtureGateConfig{
			CooldownSeconds: 30,
			RequireLineage:  &off,
		},
	}
	cfg := fc.ToReplayConfig()

	if len(cfg.Algorithms) != 2 || cfg.Router.LearningRate != 0.2 || cfg.Metrics.Window != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Gate.Cooldown != 30*time.Second || cfg.Gate.RequireLineage {
		t.Fatalf("gate overrides not applied: %+v", cfg.Gate)
	}
	def := DefaultReplayConfig()
	if cfg.Gate.MaxErrorRate != def.Gate.MaxErrorRate || cfg.Eval != def.Eval {
		t.Fatal("unset fields should keep defaults")
	}
}

// #endregion fixture-tests
