package strategy

import (
	"context"
	"math/big"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/adaptive"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
)

// #region algorithm-names

// Names of the built-in algorithms referenced by the default sub-range rules.
const (
	AlgoTrialDivision  = "trial_division"
	AlgoPollardRho     = "pollard_rho"
	AlgoPollardPMinus1 = "pollard_p_minus_1"
	AlgoFermat         = "fermat"
)

// #endregion algorithm-names

// #region strategy

// Strategy is one compute algorithm the router can dispatch to. Attempt
// returns factors of remaining; the router verifies them before counting the
// attempt as a success.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, remaining *big.Int, ac AttemptContext) (Result, error)
}

// AttemptContext is passed to every Attempt call.
type AttemptContext struct {
	BitSize    int
	Attempt    int // 1-based attempt number within the Factorize call
	Checkpoint *Checkpoint
}

// Result is what a Strategy reports back.
type Result struct {
	Factors   []*big.Int
	Took      time.Duration // zero means the router measures wall time
	Succeeded bool
}

// Registration adds a strategy with its prior weight.
type Registration struct {
	Strategy Strategy
	Prior    float64
}

// #endregion strategy

// #region config

// SubRange maps a band of bit sizes to a default algorithm and an optional
// preferred algorithm that takes over once its weight exceeds Activation.
type SubRange struct {
	MaxBits    int     `toml:"max_bits" json:"max_bits"`
	Default    string  `toml:"default" json:"default"`
	Preferred  string  `toml:"preferred" json:"preferred"`
	Activation float64 `toml:"activation" json:"activation"`
}

// Config holds router tunables.
type Config struct {
	MaxAttempts          int        `toml:"max_attempts" json:"max_attempts"`
	HistorySize          int        `toml:"history_size" json:"history_size"`
	LearningRate         float64    `toml:"learning_rate" json:"learning_rate"`
	RecommendationWindow int        `toml:"recommendation_window" json:"recommendation_window"`
	Fallback             string     `toml:"fallback" json:"fallback"`
	SubRanges            []SubRange `toml:"sub_ranges" json:"sub_ranges"`
	BatchChunk           int        `toml:"batch_chunk" json:"batch_chunk"`
	BatchSpread          float64    `toml:"batch_spread" json:"batch_spread"`
	HighEndBits          float64    `toml:"high_end_bits" json:"high_end_bits"`
	CheckpointEvery      int        `toml:"checkpoint_every" json:"checkpoint_every"`

	// TriedPerCall shares one tried set across every value reduced in a
	// Factorize call. By default each intermediate value gets its own, so an
	// algorithm that split the input may be tried again on the pieces.
	TriedPerCall bool `toml:"tried_per_call" json:"tried_per_call"`
}

// DefaultSubRanges returns the three stock sub-range rules. The last rule
// covers every size above the previous one.
func DefaultSubRanges() []SubRange {
	return []SubRange{
		{MaxBits: 64, Default: AlgoTrialDivision, Preferred: AlgoPollardRho, Activation: 0.4},
		{MaxBits: 512, Default: AlgoPollardRho, Preferred: AlgoPollardPMinus1, Activation: 0.35},
		{MaxBits: 0, Default: AlgoPollardPMinus1, Preferred: AlgoFermat, Activation: 0.3},
	}
}

// DefaultConfig returns the stock router configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          6,
		HistorySize:          1000,
		LearningRate:         0.1,
		RecommendationWindow: 100,
		Fallback:             AlgoPollardRho,
		SubRanges:            DefaultSubRanges(),
		BatchChunk:           8,
		BatchSpread:          100,
		HighEndBits:          1024,
		CheckpointEvery:      1024,
	}
}

// #endregion config

// #region outcome

// Outcome is one observed strategy attempt.
type Outcome struct {
	Algorithm      string        `json:"algorithm"`
	BitSize        int           `json:"bit_size"`
	ProcessingTime time.Duration `json:"processing_time"`
	Success        bool          `json:"success"`
	At             time.Time     `json:"at"`
}

// Millis returns the processing time in fractional milliseconds.
func (o Outcome) Millis() float64 {
	return float64(o.ProcessingTime) / float64(time.Millisecond)
}

// #endregion outcome

// #region factorization

// FactorKind tags a factor in a Factorization.
type FactorKind string

const (
	// KindPrime is a factor that passed a probabilistic primality test.
	KindPrime FactorKind = "prime"
	// KindTerminal is an unreduced remainder every strategy failed on. It is
	// treated as an indivisible unit of its own.
	KindTerminal FactorKind = "terminal"
)

// Factor is one part of a factorization.
type Factor struct {
	Value *big.Int
	Kind  FactorKind
}

// AttemptRecord describes one dispatched attempt.
type AttemptRecord struct {
	Outcome  Outcome
	Fallback bool
	Err      string
	Update   adaptive.UpdateResult[string]
}

// Factorization is the result of Factorize.
type Factorization struct {
	Input        *big.Int
	Negative     bool
	Factors      []Factor
	Attempts     []AttemptRecord
	FallbackUsed bool
	// Exhaustion is set when a remainder ended up KindTerminal. It is
	// informational; Factorize never returns it as an error.
	Exhaustion *berrors.StrategyExhaustionError
}

// Product multiplies every factor back together (ignoring sign).
func (f Factorization) Product() *big.Int {
	p := big.NewInt(1)
	for _, fc := range f.Factors {
		p.Mul(p, fc.Value)
	}
	return p
}

// #endregion factorization

// #region batch

// BatchItem is the per-value result of FactorizeBatch. Exactly one of
// Result and Err is set.
type BatchItem struct {
	Index  int
	Input  *big.Int
	Result *Factorization
	Err    error
}

// BatchResult summarizes FactorizeBatch.
type BatchResult struct {
	Items      []BatchItem
	MeanBits   float64
	StdDevBits float64
	Chunk      int
	Override   string
	Failed     int
}

// #endregion batch
