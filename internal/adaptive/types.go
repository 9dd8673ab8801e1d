package adaptive

// #region update-config

// UpdateConfig holds the learning parameters for outcome updates.
type UpdateConfig struct {
	LearningRate float64 // step size for rewards and multiplicative penalties (default 0.1)
	MinWeight    float64 // floor applied before renormalization (0 = none)
}

// DefaultUpdateConfig returns the default learning parameters.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		LearningRate: 0.1,
		MinWeight:    0,
	}
}

// #endregion update-config

// #region outcome

// Outcome is the observation fed back for one candidate.
type Outcome[C comparable] struct {
	Candidate C
	Success   bool
	CostMs    float64 // processing time in milliseconds
}

// #endregion outcome

// #region update-result

// UpdateResult records what an outcome did to the weight vector.
type UpdateResult[C comparable] struct {
	Candidate C
	Action    string // "reward" | "penalize" | "no_op"
	Before    float64
	After     float64 // weight after renormalization
}

// #endregion update-result
