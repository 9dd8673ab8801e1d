package strategy

import (
	"context"
	"runtime"
)

// #region checkpoint

// Checkpoint is a cooperative yield point for long-running loops. Every
// Every-th Tick yields the processor to other goroutines and reports
// context cancellation. A Checkpoint belongs to one attempt and is not
// safe for concurrent use.
type Checkpoint struct {
	every int
	ticks int
}

// NewCheckpoint creates a checkpoint that yields every n ticks (n <= 0 yields every tick).
func NewCheckpoint(n int) *Checkpoint {
	if n <= 0 {
		n = 1
	}
	return &Checkpoint{every: n}
}

// Tick counts one loop iteration.
func (c *Checkpoint) Tick(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.ticks++
	if c.ticks%c.every != 0 {
		return nil
	}
	runtime.Gosched()
	return ctx.Err()
}

// Ticks returns the number of iterations counted.
func (c *Checkpoint) Ticks() int {
	if c == nil {
		return 0
	}
	return c.ticks
}

// #endregion checkpoint
