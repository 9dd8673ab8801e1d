package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/bandroute/internal/band"
	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
	"github.com/danielpatrickdp/bandroute/internal/routing"
	"github.com/danielpatrickdp/bandroute/internal/selector"
	"github.com/danielpatrickdp/bandroute/internal/strategy"
)

// #region server

// Server implements RouterServer over a selector and a routing pipeline.
type Server struct {
	selector *selector.Selector
	pipeline *routing.Pipeline
	timeout  time.Duration
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTimeout bounds each Factorize call. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline serves Factorize and Recommend through p, sharing its
// metrics window with the caller. It takes precedence over the router
// passed to NewServer.
func WithPipeline(p *routing.Pipeline) ServerOption {
	return func(s *Server) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// NewServer returns a Server. Without a router or WithPipeline, Factorize
// and Recommend fail with Unimplemented.
func NewServer(sel *selector.Selector, router *strategy.Router, opts ...ServerOption) *Server {
	s := &Server{
		selector: sel,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	if s.pipeline == nil && sel != nil && router != nil {
		// New only fails on nil arguments.
		s.pipeline, _ = routing.New(sel, router, routing.WithLogger(s.logger))
	}
	return s
}

// #endregion server

// #region handlers

// Classify maps {"value": "<decimal>"} to the value's band classification.
func (s *Server) Classify(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := intField(req, "value")
	if err != nil {
		return nil, err
	}
	c, err := band.Classify(n)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"band":         c.Band.String(),
		"bit_size":     c.BitSize,
		"confidence":   c.Confidence,
		"alternatives": bandNames(c.Alternatives),
	})
}

// SelectBand maps {"value": "<decimal>"} or {"bit_size": n} to the band the
// selector routes it to.
func (s *Server) SelectBand(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		b   band.Type
		err error
	)
	if v, ok := req.GetFields()["bit_size"]; ok {
		b, err = s.selector.SelectBandForBitSize(int(v.GetNumberValue()))
	} else {
		var n *big.Int
		if n, err = intField(req, "value"); err != nil {
			return nil, err
		}
		b, err = s.selector.SelectBand(n)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"band": b.String()})
}

// Analyze maps {"values": ["<decimal>", ...]} to a batch band analysis.
func (s *Server) Analyze(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ns, err := intList(req, "values")
	if err != nil {
		return nil, err
	}
	a, err := s.selector.SelectOptimalBandWithAnalysis(ns)
	if err != nil {
		return nil, toStatus(err)
	}

	dist := make(map[string]any, len(a.Distribution))
	for b, c := range a.Distribution {
		dist[b.String()] = c
	}
	alts := make([]any, len(a.Alternatives))
	for i, alt := range a.Alternatives {
		alts[i] = map[string]any{
			"band":        alt.Band.String(),
			"score":       alt.Score,
			"memory":      alt.Tradeoffs.Memory,
			"scalability": alt.Tradeoffs.Scalability,
			"latency":     alt.Tradeoffs.Latency,
		}
	}
	recs := make([]any, len(a.Recommendations))
	for i, r := range a.Recommendations {
		recs[i] = r
	}
	return newStruct(map[string]any{
		"band":            a.Band.String(),
		"confidence":      a.Confidence,
		"avg_bit_size":    a.AvgBitSize,
		"distribution":    dist,
		"alternatives":    alts,
		"recommendations": recs,
	})
}

// Factorize maps {"value": "<decimal>"} to its factorization. Values inside
// a band also report the primary and selected band.
func (s *Server) Factorize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.pipeline == nil {
		return nil, status.Error(codes.Unimplemented, "no strategy router configured")
	}
	n, err := intField(req, "value")
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	routed, err := s.pipeline.Factorize(ctx, n)
	if err != nil {
		return nil, toStatus(err)
	}
	f := routed.Result
	s.logger.Info("factorize served",
		"bit_size", band.BitSize(n),
		"banded", routed.Banded,
		"factors", len(f.Factors),
		"attempts", len(f.Attempts))

	factors := make([]any, len(f.Factors))
	for i, fc := range f.Factors {
		factors[i] = map[string]any{"value": fc.Value.String(), "kind": string(fc.Kind)}
	}
	out := map[string]any{
		"negative":      f.Negative,
		"factors":       factors,
		"attempts":      len(f.Attempts),
		"fallback_used": f.FallbackUsed,
	}
	if routed.Banded {
		out["primary"] = routed.Primary.String()
		out["band"] = routed.Selected.String()
	}
	if f.Exhaustion != nil {
		out["exhausted"] = f.Exhaustion.Remainder.String()
	}
	return newStruct(out)
}

// Recommend maps {"bit_size": n} to the recommended algorithm name of the
// router serving that size.
func (s *Server) Recommend(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.pipeline == nil {
		return nil, status.Error(codes.Unimplemented, "no strategy router configured")
	}
	v, ok := req.GetFields()["bit_size"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing bit_size")
	}
	bits := int(v.GetNumberValue())
	router := s.pipeline.Default()
	if b, err := band.Lookup(bits); err == nil {
		router = s.pipeline.Router(b)
	}
	return newStruct(map[string]any{"algorithm": router.GetRecommendation(bits)})
}

// #endregion handlers

// #region helpers

func intField(req *structpb.Struct, key string) (*big.Int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "missing %s", key)
	}
	return parseInt(key, v.GetStringValue())
}

func intList(req *structpb.Struct, key string) ([]*big.Int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	vals := v.GetListValue().GetValues()
	out := make([]*big.Int, len(vals))
	for i, item := range vals {
		n, err := parseInt(fmt.Sprintf("%s[%d]", key, i), item.GetStringValue())
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseInt(field, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %q is not a decimal integer", field, s)
	}
	return n, nil
}

func bandNames(bs []band.Type) []any {
	out := make([]any, len(bs))
	for i, b := range bs {
		out[i] = b.String()
	}
	return out
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, berrors.ErrOutOfRange), errors.Is(err, berrors.ErrEmptyBatch):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, berrors.ErrInvalidSelection), errors.Is(err, berrors.ErrInvalidConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion helpers
