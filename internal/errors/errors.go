// Package errors defines the error taxonomy shared by the band selector and
// the strategy router.
//
// Four concrete types cover the failure modes:
//   - ClassificationError: a bit length outside the covered [16,4096] range
//   - SelectionError: invalid selector configuration
//   - StrategyExhaustionError: every strategy failed on a remainder (soft, attached to results)
//   - ConfigurationError: a malformed configuration file or adaptation snapshot
//
// Each type matches a sentinel through errors.Is:
//
//	if errors.Is(err, errors.ErrOutOfRange) { ... }
//
//	var ce *errors.ClassificationError
//	if errors.As(err, &ce) { ... }
package errors

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Re-exported so callers can import only this package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// #region sentinels

var (
	// ErrOutOfRange indicates a bit length no band covers.
	ErrOutOfRange = New("bit length out of range")
	// ErrEmptyBatch indicates a batch operation received no values.
	ErrEmptyBatch = New("empty batch")
	// ErrInvalidSelection indicates a selector configuration was rejected.
	ErrInvalidSelection = New("invalid selection configuration")
	// ErrStrategiesExhausted indicates every strategy failed on a value.
	ErrStrategiesExhausted = New("strategies exhausted")
	// ErrInvalidConfig indicates a configuration or snapshot was malformed.
	ErrInvalidConfig = New("invalid configuration")
)

// #endregion sentinels

// #region classification-error

// ClassificationError reports a bit length outside every static band range.
type ClassificationError struct {
	BitSize int
	Min     int
	Max     int
}

// NewClassificationError builds a ClassificationError for the covered range.
func NewClassificationError(bitSize, min, max int) *ClassificationError {
	return &ClassificationError{BitSize: bitSize, Min: min, Max: max}
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify: bit size %d outside [%d,%d]", e.BitSize, e.Min, e.Max)
}

// Is matches ErrOutOfRange.
func (e *ClassificationError) Is(target error) bool {
	return target == ErrOutOfRange
}

// #endregion classification-error

// #region selection-error

// SelectionError reports an invalid selector setting.
type SelectionError struct {
	Field  string
	Reason string
}

// NewSelectionError builds a SelectionError.
func NewSelectionError(field, reason string) *SelectionError {
	return &SelectionError{Field: field, Reason: reason}
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selector: %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidSelection.
func (e *SelectionError) Is(target error) bool {
	return target == ErrInvalidSelection
}

// #endregion selection-error

// #region exhaustion-error

// StrategyExhaustionError records that no strategy reduced a remainder.
// The router attaches it to results instead of returning it.
type StrategyExhaustionError struct {
	Remainder *big.Int
	Tried     []string
}

// NewStrategyExhaustionError builds a StrategyExhaustionError. The remainder is copied.
func NewStrategyExhaustionError(remainder *big.Int, tried []string) *StrategyExhaustionError {
	r := new(big.Int)
	if remainder != nil {
		r.Set(remainder)
	}
	return &StrategyExhaustionError{
		Remainder: r,
		Tried:     append([]string(nil), tried...),
	}
}

func (e *StrategyExhaustionError) Error() string {
	return fmt.Sprintf("strategies exhausted on %d-bit remainder after [%s]",
		e.Remainder.BitLen(), strings.Join(e.Tried, ", "))
}

// Is matches ErrStrategiesExhausted.
func (e *StrategyExhaustionError) Is(target error) bool {
	return target == ErrStrategiesExhausted
}

// #endregion exhaustion-error

// #region configuration-error

// ConfigurationError reports a malformed configuration value or snapshot.
type ConfigurationError struct {
	Field  string
	Reason string
	Cause  error
}

// NewConfigurationError builds a ConfigurationError. cause may be nil.
func NewConfigurationError(field, reason string, cause error) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason, Cause: cause}
}

func (e *ConfigurationError) Error() string {
	msg := "config"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// #endregion configuration-error
