package selector

import (
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
)

// #region config

// Config holds the selector tunables. The score constants and the
// widen/narrow factors are exposed as-is rather than derived.
type Config struct {
	AdaptiveThresholds  bool      `toml:"adaptive_thresholds" json:"adaptive_thresholds"`
	HysteresisMargin    float64   `toml:"hysteresis_margin" json:"hysteresis_margin"`
	HistorySize         int       `toml:"history_size" json:"history_size"`
	InRangeScore        float64   `toml:"in_range_score" json:"in_range_score"`
	ElasticScore        float64   `toml:"elastic_score" json:"elastic_score"`
	OutOfRangeScore     float64   `toml:"out_of_range_score" json:"out_of_range_score"`
	WidenFactor         float64   `toml:"widen_factor" json:"widen_factor"`
	NarrowFactor        float64   `toml:"narrow_factor" json:"narrow_factor"`
	HighUtilization     float64   `toml:"high_utilization" json:"high_utilization"`
	BatchKeepConfidence float64   `toml:"batch_keep_confidence" json:"batch_keep_confidence"`
	NeighborWeightRatio float64   `toml:"neighbor_weight_ratio" json:"neighbor_weight_ratio"`
	BoundaryProximity   float64   `toml:"boundary_proximity" json:"boundary_proximity"`
	LowConfidence       float64   `toml:"low_confidence" json:"low_confidence"`
	DiversityLimit      int       `toml:"diversity_limit" json:"diversity_limit"`
	// DefaultBand is the recommended band adaptation settles on. Empty
	// batches still route to MIDRANGE.
	DefaultBand band.Type `toml:"default_band" json:"default_band"`
}

// DefaultConfig returns the stock selector configuration.
func DefaultConfig() Config {
	return Config{
		AdaptiveThresholds:  true,
		HysteresisMargin:    0.1,
		HistorySize:         100,
		InRangeScore:        1.0,
		ElasticScore:        0.7,
		OutOfRangeScore:     0.1,
		WidenFactor:         1.05,
		NarrowFactor:        0.95,
		HighUtilization:     0.8,
		BatchKeepConfidence: 0.8,
		NeighborWeightRatio: 0.8,
		BoundaryProximity:   0.1,
		LowConfidence:       0.5,
		DiversityLimit:      3,
		DefaultBand:         band.Midrange,
	}
}

// Patch carries optional overrides merged by Configure. Nil fields are left unchanged.
type Patch struct {
	AdaptiveThresholds  *bool
	HysteresisMargin    *float64
	InRangeScore        *float64
	ElasticScore        *float64
	OutOfRangeScore     *float64
	WidenFactor         *float64
	NarrowFactor        *float64
	HighUtilization     *float64
	BatchKeepConfidence *float64
	NeighborWeightRatio *float64
	DefaultBand         *band.Type
}

// #endregion config

// #region threshold

// AdaptiveThreshold is the elastic bit-length range of one band.
type AdaptiveThreshold struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether bits lies inside the elastic range.
func (a AdaptiveThreshold) Contains(bits float64) bool {
	return bits >= a.Min && bits <= a.Max
}

// #endregion threshold

// #region metrics

// PerformanceMetrics is an externally aggregated snapshot fed into AdaptBandSelection.
type PerformanceMetrics struct {
	BandUtilization      map[band.Type]float64 `json:"band_utilization"`
	ErrorRate            float64               `json:"error_rate"`
	TransitionOverhead   float64               `json:"transition_overhead"`
	OptimalSelectionRate float64               `json:"optimal_selection_rate"`
}

// #endregion metrics

// #region snapshot

// Snapshot is a full adaptation result for the caller to apply or persist.
type Snapshot struct {
	Version             string         `json:"version"`
	ParentVersion       string         `json:"parent_version,omitempty"`
	Band                band.Type      `json:"band"`
	ExpectedImprovement float64        `json:"expected_improvement"`
	Parameters          SnapshotParams `json:"parameters"`
	CreatedAt           time.Time      `json:"created_at"`
}

// SnapshotParams are the derived parameters carried by a Snapshot.
type SnapshotParams struct {
	AdaptiveThresholds bool                            `json:"adaptive_thresholds"`
	HysteresisMargin   float64                         `json:"hysteresis_margin"`
	Thresholds         map[band.Type]AdaptiveThreshold `json:"thresholds"`
	Acceleration       float64                         `json:"acceleration"`
	Utilization        map[band.Type]float64           `json:"utilization,omitempty"`
}

// #endregion snapshot

// #region analysis

// Tradeoffs describes the qualitative cost of moving to another band.
type Tradeoffs struct {
	Memory      string `json:"memory"`
	Scalability string `json:"scalability"`
	Latency     string `json:"latency"`
}

// Alternative is a ranked neighbouring band.
type Alternative struct {
	Band      band.Type `json:"band"`
	Score     float64   `json:"score"`
	Tradeoffs Tradeoffs `json:"tradeoffs"`
}

// Analysis is the result of SelectOptimalBandWithAnalysis.
type Analysis struct {
	Band            band.Type         `json:"band"`
	Confidence      float64           `json:"confidence"`
	Distribution    map[band.Type]int `json:"distribution,omitempty"`
	AvgBitSize      float64           `json:"avg_bit_size"`
	Alternatives    []Alternative     `json:"alternatives"`
	Recommendations []string          `json:"recommendations"`
}

// #endregion analysis

// #region recommendations

// Recommendation texts.
const (
	RecNoInput       = "No input numbers provided"
	RecLowConfidence = "Low confidence in band selection, consider manual verification"
	RecHighDiversity = "High diversity in input sizes, consider splitting batches"
	RecNearBoundary  = "Average bit size near band boundary, monitor neighboring band performance"
)

// #endregion recommendations

// #region acceleration

// acceleration is the expected per-band speed-up used to pick a new default band.
var acceleration = [band.Count]float64{1.0, 1.2, 1.5, 1.8, 2.0, 2.2, 2.5, 2.8}

// Acceleration returns the expected speed-up factor for b.
func Acceleration(b band.Type) float64 {
	if !b.Valid() {
		return 0
	}
	return acceleration[b]
}

// #endregion acceleration
