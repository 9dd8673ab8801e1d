package selector

import (
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
)

func withBits(bits int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
}

func newSelector(t *testing.T, opts ...Option) *Selector {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSelectBand_Scenarios(t *testing.T) {
	s := newSelector(t)
	tests := []struct {
		bits int
		want band.Type
	}{
		{20, band.Ultrabass},
		{100, band.Midrange},
		{2000, band.Ultrasonic1},
	}
	for _, tt := range tests {
		got, err := s.SelectBand(withBits(tt.bits))
		if err != nil {
			t.Fatalf("SelectBand(%d bits): %v", tt.bits, err)
		}
		if got != tt.want {
			t.Errorf("SelectBand(%d bits) = %s, want %s", tt.bits, got, tt.want)
		}
	}
}

func TestSelectBand_OutOfRange(t *testing.T) {
	s := newSelector(t)
	if _, err := s.SelectBandForBitSize(5000); !berrors.Is(err, berrors.ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func TestSelectBand_Idempotent(t *testing.T) {
	s := newSelector(t)
	s.RecordPerformance(band.Bass, 0.4)
	s.RecordPerformance(band.Ultrabass, 0.9)

	for bits := band.MinBits; bits <= 600; bits++ {
		first, err := s.SelectBandForBitSize(bits)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 3; i++ {
			again, _ := s.SelectBandForBitSize(bits)
			if again != first {
				t.Fatalf("bit size %d: got %s then %s", bits, first, again)
			}
		}
	}
}

func TestSelectBand_NeighborNeedsStrictlyHigherScore(t *testing.T) {
	s := newSelector(t)

	// Bass in-range score 1.0 beats Ultrabass elastic score 0.7.
	got, _ := s.SelectBandForBitSize(33)
	if got != band.Bass {
		t.Fatalf("got %s, want BASS", got)
	}

	// A poor Bass ledger drops it to 0.5, below Ultrabass's 0.7.
	s.RecordPerformance(band.Bass, 0.5)
	got, _ = s.SelectBandForBitSize(33)
	if got != band.Ultrabass {
		t.Fatalf("got %s, want ULTRABASS after poor BASS performance", got)
	}

	// Exactly equal scores keep the primary band.
	s2 := newSelector(t)
	s2.RecordPerformance(band.Bass, 0.7)
	got, _ = s2.SelectBandForBitSize(33)
	if got != band.Bass {
		t.Fatalf("tie: got %s, want BASS", got)
	}
}

func TestSelectBand_AdaptiveDisabledReturnsPrimary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveThresholds = false
	s := newSelector(t, WithConfig(cfg))
	s.RecordPerformance(band.Bass, 0.01)

	got, _ := s.SelectBandForBitSize(33)
	if got != band.Bass {
		t.Errorf("got %s, want BASS with adaptive thresholds off", got)
	}
}

func TestScore(t *testing.T) {
	s := newSelector(t)

	if got := s.Score(band.Midrange, 100); got != 1.0 {
		t.Errorf("in range score = %f, want 1.0", got)
	}
	// Midrange elastic range is [58.5, 140.8].
	if got := s.Score(band.Midrange, 135); got != 0.7 {
		t.Errorf("elastic score = %f, want 0.7", got)
	}
	if got := s.Score(band.Midrange, 400); got != 0.1 {
		t.Errorf("out of range score = %f, want 0.1", got)
	}

	s.RecordPerformance(band.Midrange, 0.5)
	s.RecordPerformance(band.Midrange, 0.7)
	if got := s.Score(band.Midrange, 100); !approx(got, 0.6) {
		t.Errorf("scaled score = %f, want 0.6", got)
	}
}

func TestSelectOptimalBand_Empty(t *testing.T) {
	s := newSelector(t)
	got, err := s.SelectOptimalBand(nil)
	if err != nil || got != band.Midrange {
		t.Errorf("SelectOptimalBand(nil) = %s, %v; want MIDRANGE", got, err)
	}

	a, err := s.SelectOptimalBandWithAnalysis(nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Band != band.Midrange || a.Confidence != 0.5 {
		t.Errorf("analysis = %+v", a)
	}
	if len(a.Recommendations) != 1 || a.Recommendations[0] != "No input numbers provided" {
		t.Errorf("recommendations = %v", a.Recommendations)
	}
}

func TestSelectOptimalBand_SingleDelegates(t *testing.T) {
	s := newSelector(t)
	s.RecordPerformance(band.Bass, 0.5)

	got, _ := s.SelectOptimalBand([]*big.Int{withBits(33)})
	want, _ := s.SelectBand(withBits(33))
	if got != want {
		t.Errorf("single = %s, SelectBand = %s", got, want)
	}
}

func scenarioThreeBatch() []*big.Int {
	ns := make([]*big.Int, 0, 10)
	for i := 0; i < 8; i++ {
		ns = append(ns, withBits(100))
	}
	return append(ns, withBits(200), withBits(200))
}

func TestSelectOptimalBand_ScenarioThree(t *testing.T) {
	s := newSelector(t)
	// Even a heavily favoured UPPER_MID is not considered: 2 < 0.8*8.
	s.RecordPerformance(band.Midrange, 0.01)

	ns := scenarioThreeBatch()
	bc, err := band.ClassifyBatch(ns)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Distribution[band.Midrange] != 8 || bc.Distribution[band.UpperMid] != 2 {
		t.Fatalf("distribution = %v", bc.Distribution)
	}
	if bc.Confidence != 0.8 {
		t.Fatalf("confidence = %f, want 0.8", bc.Confidence)
	}

	got, err := s.SelectOptimalBand(ns)
	if err != nil {
		t.Fatal(err)
	}
	if got != band.Midrange {
		t.Errorf("got %s, want MIDRANGE", got)
	}
}

func TestOptimizeBatchSelection_SwitchesToHeavyNeighbor(t *testing.T) {
	s := newSelector(t)
	bc := band.BatchClassification{
		Distribution: map[band.Type]int{band.Midrange: 5, band.UpperMid: 5},
		Optimal:      band.Midrange,
		Confidence:   0.5,
		AvgBitSize:   150,
	}
	// 150 bits: UPPER_MID in range (1.0), MIDRANGE outside its elastic range (0.1).
	if got := s.OptimizeBatchSelection(bc); got != band.UpperMid {
		t.Errorf("got %s, want UPPER_MID", got)
	}

	bc.Confidence = 0.81
	if got := s.OptimizeBatchSelection(bc); got != band.Midrange {
		t.Errorf("high confidence: got %s, want MIDRANGE", got)
	}
}

func TestSelectOptimalBandWithAnalysis(t *testing.T) {
	s := newSelector(t)
	a, err := s.SelectOptimalBandWithAnalysis(scenarioThreeBatch())
	if err != nil {
		t.Fatal(err)
	}

	if a.Band != band.Midrange || a.Confidence != 0.8 || a.AvgBitSize != 120 {
		t.Errorf("analysis = %+v", a)
	}
	if len(a.Alternatives) != 3 {
		t.Fatalf("alternatives = %+v, want 3", a.Alternatives)
	}
	for i := 1; i < len(a.Alternatives); i++ {
		if a.Alternatives[i].Score > a.Alternatives[i-1].Score {
			t.Errorf("alternatives not sorted: %+v", a.Alternatives)
		}
	}
	for _, alt := range a.Alternatives {
		want := "lower"
		if alt.Band > a.Band {
			want = "higher"
		}
		if alt.Tradeoffs.Memory != want {
			t.Errorf("%s memory tradeoff = %q, want %q", alt.Band, alt.Tradeoffs.Memory, want)
		}
	}

	// 120 bits is within 10% of MIDRANGE's upper bound 128.
	if !containsRec(a.Recommendations, RecNearBoundary) {
		t.Errorf("recommendations = %v, want near boundary", a.Recommendations)
	}
	if containsRec(a.Recommendations, RecLowConfidence) {
		t.Errorf("unexpected low confidence recommendation")
	}
}

func TestSelectOptimalBandWithAnalysis_DiversityAndConfidence(t *testing.T) {
	s := newSelector(t)
	ns := []*big.Int{withBits(20), withBits(50), withBits(100), withBits(200), withBits(400)}

	a, err := s.SelectOptimalBandWithAnalysis(ns)
	if err != nil {
		t.Fatal(err)
	}
	if !containsRec(a.Recommendations, RecLowConfidence) {
		t.Errorf("missing low confidence recommendation: %v", a.Recommendations)
	}
	if !containsRec(a.Recommendations, RecHighDiversity) {
		t.Errorf("missing high diversity recommendation: %v", a.Recommendations)
	}
}

func containsRec(recs []string, want string) bool {
	for _, r := range recs {
		if r == want {
			return true
		}
	}
	return false
}

func TestConfigure(t *testing.T) {
	s := newSelector(t)

	before := s.Thresholds()[band.Midrange]
	off := false
	if err := s.Configure(Patch{AdaptiveThresholds: &off}); err != nil {
		t.Fatal(err)
	}
	after := s.Thresholds()[band.Midrange]
	if after.Min != 65 || after.Max != 128 {
		t.Errorf("thresholds after disabling = %+v, want static range", after)
	}
	if before == after {
		t.Error("thresholds were not reinitialized")
	}

	bad := 1.5
	err := s.Configure(Patch{HysteresisMargin: &bad})
	if !berrors.Is(err, berrors.ErrInvalidSelection) {
		t.Errorf("err = %v, want ErrInvalidSelection", err)
	}
	if s.Configuration().HysteresisMargin != 0.1 {
		t.Error("invalid patch modified configuration")
	}

	def := band.Treble
	if err := s.Configure(Patch{DefaultBand: &def}); err != nil {
		t.Fatal(err)
	}
	if s.Configuration().DefaultBand != band.Treble {
		t.Errorf("default band = %s, want TREBLE", s.Configuration().DefaultBand)
	}
	if got, _ := s.SelectOptimalBand(nil); got != band.Midrange {
		t.Errorf("empty batch = %s, want MIDRANGE", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ElasticScore = 2
	if _, err := New(WithConfig(cfg)); !berrors.Is(err, berrors.ErrInvalidSelection) {
		t.Errorf("err = %v, want ErrInvalidSelection", err)
	}
}

func TestAdaptBandSelection(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newSelector(t, WithClock(func() time.Time { return fixed }))

	snap, err := s.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.Midrange: 0.9, band.Treble: 0.5},
		ErrorRate:       0.1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !approx(snap.ExpectedImprovement, 0.9) {
		t.Errorf("improvement = %f, want 0.9", snap.ExpectedImprovement)
	}
	if snap.Band != band.Midrange {
		t.Errorf("band = %s, want MIDRANGE (0.9*1.5 > 0.5*2.0)", snap.Band)
	}
	if snap.Version == "" || !snap.CreatedAt.Equal(fixed) {
		t.Errorf("snapshot header = %q %v", snap.Version, snap.CreatedAt)
	}

	th := s.Thresholds()
	if !approx(th[band.Midrange].Min, 58.5*1.05) || !approx(th[band.Midrange].Max, 140.8*1.05) {
		t.Errorf("midrange widened to %+v", th[band.Midrange])
	}
	if !approx(th[band.Treble].Min, 231.3*0.95) || !approx(th[band.Treble].Max, 563.2*0.95) {
		t.Errorf("treble narrowed to %+v", th[band.Treble])
	}
	if th[band.Bass] != InitialThreshold(band.Bass, 0.1) {
		t.Errorf("unutilized band changed: %+v", th[band.Bass])
	}

	// Adaptation does not change the default until applied.
	if s.Configuration().DefaultBand != band.Midrange {
		t.Error("default band changed before apply")
	}
}

func TestAdaptBandSelection_ImprovementFactors(t *testing.T) {
	tests := []struct {
		name string
		m    PerformanceMetrics
		want float64
	}{
		{"neutral", PerformanceMetrics{}, 1.0},
		{"errors", PerformanceMetrics{ErrorRate: 0.06}, 0.9},
		{"overhead", PerformanceMetrics{TransitionOverhead: 0.2}, 0.95},
		{"optimal", PerformanceMetrics{OptimalSelectionRate: 0.95}, 1.1},
		{"all", PerformanceMetrics{ErrorRate: 0.5, TransitionOverhead: 0.5, OptimalSelectionRate: 1}, 0.9 * 0.95 * 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpectedImprovement(tt.m); !approx(got, tt.want) {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAdaptBandSelection_AccelerationFavoursLargeBands(t *testing.T) {
	s := newSelector(t)
	snap, err := s.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.Bass: 0.3, band.Ultrasonic2: 0.4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Band != band.Ultrasonic2 {
		t.Errorf("band = %s, want ULTRASONIC_2", snap.Band)
	}

	second, _ := s.AdaptBandSelection(PerformanceMetrics{})
	if second.ParentVersion != snap.Version {
		t.Errorf("parent = %q, want %q", second.ParentVersion, snap.Version)
	}
	if second.Band != band.Midrange {
		t.Errorf("no utilization: band = %s, want current default", second.Band)
	}
}

func TestAdaptBandSelection_RejectsBadMetrics(t *testing.T) {
	s := newSelector(t)
	_, err := s.AdaptBandSelection(PerformanceMetrics{ErrorRate: math.NaN()})
	if !berrors.Is(err, berrors.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestEmptyBatch_IgnoresAdaptedDefault(t *testing.T) {
	s := newSelector(t)
	snap, err := s.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.Ultrasonic2: 0.9},
	})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Band != band.Ultrasonic2 {
		t.Fatalf("snapshot band = %s, want ULTRASONIC_2", snap.Band)
	}
	if err := s.ApplySnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if s.Current().Band != band.Ultrasonic2 {
		t.Fatalf("current band = %s, want ULTRASONIC_2", s.Current().Band)
	}

	got, err := s.SelectOptimalBand(nil)
	if err != nil || got != band.Midrange {
		t.Errorf("SelectOptimalBand(nil) = %s, %v; want MIDRANGE", got, err)
	}
	a, err := s.SelectOptimalBandWithAnalysis(nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Band != band.Midrange || a.Confidence != 0.5 {
		t.Errorf("analysis = %s/%v, want MIDRANGE/0.5", a.Band, a.Confidence)
	}
}

func TestApplySnapshot(t *testing.T) {
	src := newSelector(t)
	snap, err := src.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.SuperTreble: 0.95},
	})
	if err != nil {
		t.Fatal(err)
	}

	dst := newSelector(t)
	if err := dst.ApplySnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if dst.Configuration().DefaultBand != band.SuperTreble {
		t.Errorf("default = %s", dst.Configuration().DefaultBand)
	}
	if dst.Thresholds()[band.SuperTreble] != src.Thresholds()[band.SuperTreble] {
		t.Error("thresholds not installed")
	}
	if dst.Version() != snap.Version {
		t.Errorf("version = %q", dst.Version())
	}

	// The adapted default does not leak into empty-batch routing.
	if got, err := dst.SelectOptimalBand(nil); err != nil || got != band.Midrange {
		t.Errorf("SelectOptimalBand(nil) = %s, %v; want MIDRANGE", got, err)
	}

	bad := snap
	bad.Parameters.Thresholds = map[band.Type]AdaptiveThreshold{band.Bass: {Min: 80, Max: 10}}
	if err := dst.ApplySnapshot(bad); !berrors.Is(err, berrors.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestDecayPolicy(t *testing.T) {
	s := newSelector(t, WithThresholdPolicy(DecayPolicy{Floor: 0.2, Rate: 0.5}))
	initial := InitialThreshold(band.Treble, 0.1)

	for i := 0; i < 3; i++ {
		if _, err := s.AdaptBandSelection(PerformanceMetrics{
			BandUtilization: map[band.Type]float64{band.Treble: 0.9},
		}); err != nil {
			t.Fatal(err)
		}
	}
	widened := s.Thresholds()[band.Treble]
	if widened.Max <= initial.Max {
		t.Fatalf("threshold not widened: %+v", widened)
	}

	if _, err := s.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.Treble: 0.05},
	}); err != nil {
		t.Fatal(err)
	}
	decayed := s.Thresholds()[band.Treble]
	if !approx(decayed.Max, widened.Max+(initial.Max-widened.Max)*0.5) {
		t.Errorf("decayed max = %f", decayed.Max)
	}
}

func TestSelector_ConcurrentUse(t *testing.T) {
	s := newSelector(t)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = s.SelectBandForBitSize(16 + i)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, _ = s.AdaptBandSelection(PerformanceMetrics{
					BandUtilization: map[band.Type]float64{band.Bass: 0.9},
				})
				s.RecordPerformance(band.Bass, 0.8)
			}
		}()
	}
	wg.Wait()
}

func TestCurrent_RestoresAfterAdapt(t *testing.T) {
	s := newSelector(t)
	base := s.Current()
	if base.Version == "" || base.Band != band.Midrange {
		t.Fatalf("baseline = %+v", base)
	}
	if again := s.Current(); again.Version != base.Version {
		t.Fatal("baseline version should be stable")
	}

	snap, err := s.AdaptBandSelection(PerformanceMetrics{
		BandUtilization: map[band.Type]float64{band.Midrange: 0.95},
	})
	if err != nil {
		t.Fatal(err)
	}
	if snap.ParentVersion != base.Version {
		t.Fatalf("parent = %q, want %q", snap.ParentVersion, base.Version)
	}
	if s.Thresholds()[band.Midrange] == base.Parameters.Thresholds[band.Midrange] {
		t.Fatal("adaptation should have moved the MIDRANGE threshold")
	}

	if err := s.ApplySnapshot(base); err != nil {
		t.Fatal(err)
	}
	if s.Thresholds()[band.Midrange] != base.Parameters.Thresholds[band.Midrange] {
		t.Fatal("applying the baseline should restore the threshold")
	}
	if s.Version() != base.Version {
		t.Fatalf("version = %q", s.Version())
	}
}
