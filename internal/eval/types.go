package eval

// #region eval-config
// EvalConfig holds thresholds for post-update validation.
type EvalConfig struct {
	WeightTolerance float64 // max |sum(weights) - 1|
	MaxSpread       float64 // warn when a threshold is this many times wider than its static range
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		WeightTolerance: 1e-9,
		MaxSpread:       2.0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-update validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
