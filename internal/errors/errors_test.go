package errors

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"classification", NewClassificationError(8, 16, 4096), ErrOutOfRange},
		{"selection", NewSelectionError("hysteresis_margin", "negative"), ErrInvalidSelection},
		{"exhaustion", NewStrategyExhaustionError(big.NewInt(91), []string{"a"}), ErrStrategiesExhausted},
		{"configuration", NewConfigurationError("band", "unknown", nil), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !Is(wrapped, tt.target) {
				t.Errorf("Is(%v, %v) = false, want true", wrapped, tt.target)
			}
		})
	}
}

func TestClassificationError_As(t *testing.T) {
	err := fmt.Errorf("route: %w", NewClassificationError(5000, 16, 4096))

	var ce *ClassificationError
	if !As(err, &ce) {
		t.Fatal("As() = false, want true")
	}
	if ce.BitSize != 5000 {
		t.Errorf("BitSize = %d, want 5000", ce.BitSize)
	}
	if !strings.Contains(ce.Error(), "5000") {
		t.Errorf("Error() = %q, want it to mention the bit size", ce.Error())
	}
}

func TestStrategyExhaustionError_CopiesInputs(t *testing.T) {
	rem := big.NewInt(1009)
	tried := []string{"trial_division", "pollard_rho"}
	err := NewStrategyExhaustionError(rem, tried)

	rem.SetInt64(7)
	tried[0] = "mutated"

	if err.Remainder.Int64() != 1009 {
		t.Errorf("Remainder = %v, want 1009", err.Remainder)
	}
	if err.Tried[0] != "trial_division" {
		t.Errorf("Tried[0] = %q, want trial_division", err.Tried[0])
	}
}

func TestConfigurationError_Unwrap(t *testing.T) {
	cause := errors.New("toml: bad key")
	err := NewConfigurationError("router.learning_rate", "parse failed", cause)

	if !Is(err, cause) {
		t.Error("Is(err, cause) = false, want true")
	}
	if got := err.Error(); got != "config: router.learning_rate: parse failed: toml: bad key" {
		t.Errorf("Error() = %q", got)
	}
}
