// Package routing connects band selection to the strategy routers.
//
// A Pipeline routes each value to a band, factors it with the router bound
// to that band, and feeds the outcome back twice: into the selector's
// performance ledger (so later selections score the band by how it actually
// did) and into a metrics window that AdaptBandSelection can consume.
//
// Values outside every band range are still factored, by the default
// router, but produce no feedback.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// Ledger values recorded for a band after each routed value.
const (
	ReducedValue   = 1.0 // fully factored
	ExhaustedValue = 0.0 // a terminal remainder was left
)

// #region options

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBandRouter dispatches values selected into b to r instead of the
// default router.
func WithBandRouter(b band.Type, r *strategy.Router) Option {
	return func(p *Pipeline) {
		if r != nil && b.Valid() {
			p.routers[b] = r
		}
	}
}

// WithProducer shares an existing metrics window.
func WithProducer(m *metrics.Producer) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.producer = m
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp observations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// #endregion options

// #region pipeline

// Pipeline routes values through a selector into per-band routers. Safe for
// concurrent use.
type Pipeline struct {
	selector *selector.Selector
	fallback *strategy.Router
	routers  map[band.Type]*strategy.Router
	producer *metrics.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline over sel with router as the default for every band.
func New(sel *selector.Selector, router *strategy.Router, opts ...Option) (*Pipeline, error) {
	if sel == nil {
		return nil, fmt.Errorf("routing: nil selector")
	}
	if router == nil {
		return nil, fmt.Errorf("routing: nil router")
	}
	p := &Pipeline{
		selector: sel,
		fallback: router,
		routers:  make(map[band.Type]*strategy.Router),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.producer == nil {
		p.producer = metrics.NewProducer(metrics.DefaultProducerConfig())
	}
	return p, nil
}

// Router returns the router bound to b, or the default router.
func (p *Pipeline) Router(b band.Type) *strategy.Router {
	if r, ok := p.routers[b]; ok {
		return r
	}
	return p.fallback
}

// Default returns the router used for bands without their own.
func (p *Pipeline) Default() *strategy.Router { return p.fallback }

// Selector returns the selector values are routed through.
func (p *Pipeline) Selector() *selector.Selector { return p.selector }

// Producer returns the metrics window observations are written to.
func (p *Pipeline) Producer() *metrics.Producer { return p.producer }

// Metrics aggregates the current observation window.
func (p *Pipeline) Metrics() selector.PerformanceMetrics {
	return p.producer.Produce()
}

// #endregion pipeline

// #region factorize

// Routed is one value's pass through the pipeline. Primary, Selected and
// Observation are only meaningful when Banded is set.
type Routed struct {
	Primary     band.Type
	Selected    band.Type
	Banded      bool
	Observation metrics.Observation
	Result      strategy.Factorization
}

// Factorize selects a band for n, factors n with that band's router and
// records the outcome. The only error returned is the context's.
func (p *Pipeline) Factorize(ctx context.Context, n *big.Int) (Routed, error) {
	var out Routed
	primary, selected, banded, err := p.route(n)
	if err != nil {
		return out, err
	}

	router := p.fallback
	if banded {
		out.Primary, out.Selected, out.Banded = primary, selected, true
		router = p.Router(selected)
	}

	res, err := router.Factorize(ctx, n)
	out.Result = res
	if err != nil {
		return out, err
	}
	if banded {
		out.Observation = p.feedback(primary, selected, res)
	}
	return out, nil
}

// route returns the primary and selected bands for n. banded is false when
// n lies outside every band.
func (p *Pipeline) route(n *big.Int) (primary, selected band.Type, banded bool, err error) {
	c, err := band.Classify(n)
	if errors.Is(err, berrors.ErrOutOfRange) {
		p.logger.Debug("value outside band ranges", "bit_size", band.BitSize(n))
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	selected, err = p.selector.SelectBandForBitSize(c.BitSize)
	if err != nil {
		return 0, 0, false, err
	}
	return c.Band, selected, true, nil
}

// feedback records f against the selected band and observes it.
func (p *Pipeline) feedback(primary, selected band.Type, f strategy.Factorization) metrics.Observation {
	o := metrics.Observation{
		Primary:  primary,
		Selected: selected,
		Optimal:  f.Exhaustion == nil && !f.FallbackUsed,
		At:       p.now(),
	}
	value := ReducedValue
	if f.Exhaustion != nil {
		o.Err = f.Exhaustion
		value = ExhaustedValue
	}
	p.selector.RecordPerformance(selected, value)
	p.producer.Observe(o)

	p.logger.Debug("routed",
		"primary", primary.String(),
		"selected", selected.String(),
		"attempts", len(f.Attempts),
		"value", value)
	return o
}

// #endregion factorize

// #region batch

// BatchResult is the router's batch result plus the band the batch was
// routed to and the observation recorded for each item that completed.
type BatchResult struct {
	strategy.BatchResult
	Selected     band.Type
	Banded       bool
	Observations []metrics.Observation
}

// FactorizeBatch routes the whole batch to one band (SelectOptimalBand) and
// records every completed item against it. A batch containing a value
// outside every band goes to the default router without feedback.
func (p *Pipeline) FactorizeBatch(ctx context.Context, ns []*big.Int) BatchResult {
	var out BatchResult
	router := p.fallback
	if len(ns) > 0 {
		selected, err := p.selector.SelectOptimalBand(ns)
		if err == nil {
			out.Selected, out.Banded = selected, true
			router = p.Router(selected)
		} else {
			p.logger.Debug("batch not banded", "error", err)
		}
	}

	out.BatchResult = router.FactorizeBatch(ctx, ns)
	if !out.Banded {
		return out
	}
	for _, it := range out.Items {
		if it.Result == nil {
			continue
		}
		c, err := band.Classify(it.Input)
		if err != nil {
			continue
		}
		out.Observations = append(out.Observations, p.feedback(c.Band, out.Selected, *it.Result))
	}
	return out
}

// #endregion batch
