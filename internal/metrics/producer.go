// Package metrics aggregates routing observations into the performance
// snapshot that drives band adaptation.
package metrics

import (
	"sync"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/ledger"
	"github.com/danielpatrickdp/bandroute/internal/selector"
)

// #region producer

// Producer keeps a sliding window of observations. Safe for concurrent use.
type Producer struct {
	mu     sync.Mutex
	window *ledger.Ring[Observation]
	now    func() time.Time
}

// NewProducer creates a Producer.
func NewProducer(config ProducerConfig) *Producer {
	return &Producer{
		window: ledger.NewRing[Observation](config.Window),
		now:    time.Now,
	}
}

// Observe adds one observation, stamping it when At is zero.
func (p *Producer) Observe(o Observation) {
	if o.At.IsZero() {
		o.At = p.now()
	}
	p.mu.Lock()
	p.window.Push(o)
	p.mu.Unlock()
}

// Len returns the number of retained observations.
func (p *Producer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window.Len()
}

// Reset drops every observation.
func (p *Producer) Reset() {
	p.mu.Lock()
	p.window.Reset()
	p.mu.Unlock()
}

// #endregion producer

// #region produce

// Produce computes PerformanceMetrics over the retained window:
//
//   - BandUtilization: share of observations routed to each band
//   - ErrorRate: share of observations with a non-nil Err
//   - TransitionOverhead: share of observations that paid a band switch,
//     either because the selection moved off the previous observation's band
//     or because the value was re-routed away from its primary band
//   - OptimalSelectionRate: share of observations marked Optimal
//
// An empty window yields zero rates and an empty utilization map.
func (p *Producer) Produce() selector.PerformanceMetrics {
	p.mu.Lock()
	obs := p.window.Items()
	p.mu.Unlock()

	m := selector.PerformanceMetrics{BandUtilization: make(map[band.Type]float64)}
	if len(obs) == 0 {
		return m
	}

	total := float64(len(obs))
	var errs, optimal, transitions int
	for i, o := range obs {
		m.BandUtilization[o.Selected]++
		if o.Err != nil {
			errs++
		}
		if o.Optimal {
			optimal++
		}
		switched := i > 0 && obs[i-1].Selected != o.Selected
		if switched || o.Primary != o.Selected {
			transitions++
		}
	}
	for b := range m.BandUtilization {
		m.BandUtilization[b] /= total
	}
	m.ErrorRate = float64(errs) / total
	m.OptimalSelectionRate = float64(optimal) / total
	m.TransitionOverhead = float64(transitions) / total
	return m
}

// #endregion produce
