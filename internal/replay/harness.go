// Package replay re-runs recorded routing events through a fresh selector,
// router, gate and eval harness entirely in memory.
package replay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/danielpatrickdp/bandroute/internal/adaptive"
	"github.com/danielpatrickdp/bandroute/internal/band"
	"github.com/danielpatrickdp/bandroute/internal/eval"
	"github.com/danielpatrickdp/bandroute/internal/gate"
	"github.com/danielpatrickdp/bandroute/internal/metrics"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// #region types

// Event kinds.
const (
	KindOutcome     = "outcome"
	KindPerformance = "performance"
	KindObserve     = "observe"
	KindSelect      = "select"
	KindAdapt       = "adapt"
)

// Actions reported per event.
const (
	ActionRecorded     = "recorded"
	ActionSelected     = "selected"
	ActionCommit       = "commit"
	ActionGateReject   = "gate_reject"
	ActionEvalRollback = "eval_rollback"
	ActionError        = "error"
)

// Event is one recorded routing event. Which fields matter depends on Kind:
//
//   - outcome: Algorithm, BitSize, Millis, Success
//   - performance: Band, Value
//   - observe: Band (primary), Selected, Failed, Optimal
//   - select: BitSize
//   - adapt: Metrics (nil uses the metrics aggregated from observe events)
type Event struct {
	ID        string                       `json:"id"`
	Kind      string                       `json:"kind"`
	At        time.Time                    `json:"at,omitempty"`
	Algorithm string                       `json:"algorithm,omitempty"`
	BitSize   int                          `json:"bit_size,omitempty"`
	Millis    float64                      `json:"ms,omitempty"`
	Success   bool                         `json:"success,omitempty"`
	Band      string                       `json:"band,omitempty"`
	Selected  string                       `json:"selected,omitempty"`
	Value     float64                      `json:"value,omitempty"`
	Failed    bool                         `json:"failed,omitempty"`
	Optimal   bool                         `json:"optimal,omitempty"`
	Metrics   *selector.PerformanceMetrics `json:"metrics,omitempty"`
}

// ReplayConfig bundles the configuration of every stage of a replay run.
type ReplayConfig struct {
	Selector   selector.Config
	Router     strategy.Config
	Gate       gate.GateConfig
	Eval       eval.EvalConfig
	Metrics    metrics.ProducerConfig
	Algorithms []string
}

// ReplayResult captures the outcome of replaying one event.
type ReplayResult struct {
	EventID string
	Kind    string
	Action  string
	Reason  string
	Band    string // selected band (select) or proposed band (adapt)

	Update       *adaptive.UpdateResult[string]
	GateDecision *gate.GateDecision
	EvalResult   *eval.EvalResult

	// Active selector version after this event
	FinalVersionID string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalEvents   int
	Recorded      int
	Selections    int
	Commits       int
	GateRejects   int
	EvalRollbacks int
	Errors        int
	FinalVersion  string
	FinalBand     band.Type
	FinalWeights  map[string]float64

	FinalThresholds map[band.Type]selector.AdaptiveThreshold
}

// placeholder stands in for a compute strategy; replay only feeds recorded
// outcomes and never dispatches work.
type placeholder string

func (p placeholder) Name() string { return string(p) }

func (p placeholder) Attempt(context.Context, *big.Int, strategy.AttemptContext) (strategy.Result, error) {
	return strategy.Result{}, errors.New("replay placeholder cannot compute")
}

// #endregion types

// #region replay

// run holds the in-memory pipeline of one replay.
type run struct {
	sel      *selector.Selector
	router   *strategy.Router
	producer *metrics.Producer
	gate     *gate.Gate
	eval     *eval.EvalHarness
	clock    time.Time
}

// Replay applies every event in order: outcomes and performance samples are
// recorded (outcomes are validated by the eval harness and rolled back on
// failure), selections are answered, and adaptations run
// adapt → gate → eval → commit/reject. The returned error reports only a
// configuration that could not build the pipeline.
func Replay(events []Event, config ReplayConfig) ([]ReplayResult, ReplaySummary, error) {
	sel, err := selector.New(selector.WithConfig(config.Selector))
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("replay selector: %w", err)
	}

	regs := make([]strategy.Registration, 0, len(config.Algorithms))
	for _, name := range config.Algorithms {
		regs = append(regs, strategy.Registration{Strategy: placeholder(name), Prior: 1})
	}
	router, err := strategy.New(regs, strategy.WithConfig(config.Router))
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("replay router: %w", err)
	}

	r := &run{
		sel:      sel,
		router:   router,
		producer: metrics.NewProducer(config.Metrics),
		eval:     eval.NewEvalHarness(config.Eval),
		clock:    time.Unix(0, 0).UTC(),
	}
	r.gate = gate.NewGate(config.Gate).WithClock(func() time.Time { return r.clock })

	results := make([]ReplayResult, 0, len(events))
	for _, ev := range events {
		if !ev.At.IsZero() {
			r.clock = ev.At
		}
		res := r.apply(ev)
		res.EventID = ev.ID
		res.Kind = ev.Kind
		res.FinalVersionID = sel.Version()
		results = append(results, res)
	}
	return results, r.summarize(results), nil
}

func (r *run) apply(ev Event) ReplayResult {
	switch ev.Kind {
	case KindOutcome:
		return r.outcome(ev)
	case KindPerformance:
		b, err := band.ParseType(ev.Band)
		if err != nil {
			return errorResult(err)
		}
		r.sel.RecordPerformance(b, ev.Value)
		return ReplayResult{Action: ActionRecorded, Band: b.String()}
	case KindObserve:
		return r.observe(ev)
	case KindSelect:
		b, err := r.sel.SelectBandForBitSize(ev.BitSize)
		if err != nil {
			return errorResult(err)
		}
		return ReplayResult{Action: ActionSelected, Band: b.String()}
	case KindAdapt:
		return r.adapt(ev)
	default:
		return errorResult(fmt.Errorf("unknown event kind %q", ev.Kind))
	}
}

func (r *run) outcome(ev Event) ReplayResult {
	before := r.router.Weights()
	upd, err := r.router.RecordOutcome(strategy.Outcome{
		Algorithm:      ev.Algorithm,
		BitSize:        ev.BitSize,
		ProcessingTime: time.Duration(ev.Millis * float64(time.Millisecond)),
		Success:        ev.Success,
		At:             r.clock,
	})
	if err != nil {
		return errorResult(err)
	}

	check := r.eval.Run(r.router.Weights(), nil)
	if !check.Passed {
		r.router.RestoreWeights(before)
		return ReplayResult{Action: ActionEvalRollback, Reason: check.Reason, Update: &upd, EvalResult: &check}
	}
	return ReplayResult{Action: ActionRecorded, Reason: upd.Action, Update: &upd, EvalResult: &check}
}

func (r *run) observe(ev Event) ReplayResult {
	primary, err := band.ParseType(ev.Band)
	if err != nil {
		return errorResult(err)
	}
	selected := primary
	if ev.Selected != "" {
		if selected, err = band.ParseType(ev.Selected); err != nil {
			return errorResult(err)
		}
	}
	o := metrics.Observation{Primary: primary, Selected: selected, Optimal: ev.Optimal, At: r.clock}
	if ev.Failed {
		o.Err = errors.New("recorded failure")
	}
	r.producer.Observe(o)
	return ReplayResult{Action: ActionRecorded, Band: selected.String()}
}

func (r *run) adapt(ev Event) ReplayResult {
	m := r.producer.Produce()
	if ev.Metrics != nil {
		m = *ev.Metrics
	}

	current := r.sel.Current()
	proposed, err := r.sel.AdaptBandSelection(m)
	if err != nil {
		return errorResult(err)
	}
	res := ReplayResult{Band: proposed.Band.String()}

	decision := r.gate.Evaluate(current, proposed, m)
	res.GateDecision = &decision
	if decision.Action == "reject" {
		if err := r.sel.ApplySnapshot(current); err != nil {
			return errorResult(err)
		}
		res.Action = ActionGateReject
		res.Reason = decision.Reason
		return res
	}

	result := r.eval.Run(nil, proposed.Parameters.Thresholds)
	res.EvalResult = &result
	if !result.Passed {
		if err := r.sel.ApplySnapshot(current); err != nil {
			return errorResult(err)
		}
		res.Action = ActionEvalRollback
		res.Reason = result.Reason
		return res
	}

	if err := r.sel.ApplySnapshot(proposed); err != nil {
		return errorResult(err)
	}
	res.Action = ActionCommit
	res.Reason = decision.Reason
	return res
}

func errorResult(err error) ReplayResult {
	return ReplayResult{Action: ActionError, Reason: err.Error()}
}

// summarize computes aggregate stats from replay results.
func (r *run) summarize(results []ReplayResult) ReplaySummary {
	s := Summarize(results)
	s.FinalVersion = r.sel.Version()
	s.FinalBand = r.sel.Configuration().DefaultBand
	s.FinalWeights = r.router.Weights()
	s.FinalThresholds = r.sel.Thresholds()
	return s
}

// Summarize counts actions across results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalEvents: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionRecorded:
			s.Recorded++
		case ActionSelected:
			s.Selections++
		case ActionCommit:
			s.Commits++
		case ActionGateReject:
			s.GateRejects++
		case ActionEvalRollback:
			s.EvalRollbacks++
		case ActionError:
			s.Errors++
		}
	}
	return s
}

// #endregion replay
