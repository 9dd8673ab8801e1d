package transport

import (
	"context"
	"fmt"
	"math/big"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types

// Classification is the client view of a Classify response.
type Classification struct {
	Band         string
	BitSize      int
	Confidence   float64
	Alternatives []string
}

// Factor is one factor in a Factorize response.
type Factor struct {
	Value string
	Kind  string
}

// Factorization is the client view of a Factorize response.
type Factorization struct {
	Negative     bool
	Factors      []Factor
	Attempts     int
	FallbackUsed bool
	Exhausted    string // unreduced remainder, empty when fully factored
	Primary      string // classifier band, empty outside every band
	Band         string // band the value was routed to
}

// Analysis is the client view of an Analyze response.
type Analysis struct {
	Band            string
	Confidence      float64
	AvgBitSize      float64
	Distribution    map[string]int
	Alternatives    []string
	Recommendations []string
}

// #endregion types

// #region client-struct

// Client wraps a connection to a bandroute.v1.Router server.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// NewClient connects to the server at addr without transport security.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection, which the
// caller keeps ownership of.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fmt.Errorf("%s rpc: %w", method, err)
	}
	return out, nil
}

// #endregion client-struct

// #region calls

// Classify classifies n.
func (c *Client) Classify(ctx context.Context, n *big.Int) (Classification, error) {
	resp, err := c.invoke(ctx, MethodClassify, map[string]any{"value": n.String()})
	if err != nil {
		return Classification{}, err
	}
	f := resp.GetFields()
	return Classification{
		Band:         f["band"].GetStringValue(),
		BitSize:      int(f["bit_size"].GetNumberValue()),
		Confidence:   f["confidence"].GetNumberValue(),
		Alternatives: stringList(f["alternatives"]),
	}, nil
}

// SelectBand returns the band n is routed to.
func (c *Client) SelectBand(ctx context.Context, n *big.Int) (string, error) {
	resp, err := c.invoke(ctx, MethodSelectBand, map[string]any{"value": n.String()})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["band"].GetStringValue(), nil
}

// SelectBandForBitSize returns the band a value of the given size is routed to.
func (c *Client) SelectBandForBitSize(ctx context.Context, bits int) (string, error) {
	resp, err := c.invoke(ctx, MethodSelectBand, map[string]any{"bit_size": bits})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["band"].GetStringValue(), nil
}

// Analyze selects a band for ns and returns the analysis.
func (c *Client) Analyze(ctx context.Context, ns []*big.Int) (Analysis, error) {
	vals := make([]any, len(ns))
	for i, n := range ns {
		vals[i] = n.String()
	}
	resp, err := c.invoke(ctx, MethodAnalyze, map[string]any{"values": vals})
	if err != nil {
		return Analysis{}, err
	}
	f := resp.GetFields()
	a := Analysis{
		Band:            f["band"].GetStringValue(),
		Confidence:      f["confidence"].GetNumberValue(),
		AvgBitSize:      f["avg_bit_size"].GetNumberValue(),
		Distribution:    map[string]int{},
		Recommendations: stringList(f["recommendations"]),
	}
	for k, v := range f["distribution"].GetStructValue().GetFields() {
		a.Distribution[k] = int(v.GetNumberValue())
	}
	for _, alt := range f["alternatives"].GetListValue().GetValues() {
		a.Alternatives = append(a.Alternatives, alt.GetStructValue().GetFields()["band"].GetStringValue())
	}
	return a, nil
}

// Factorize factors n on the server.
func (c *Client) Factorize(ctx context.Context, n *big.Int) (Factorization, error) {
	resp, err := c.invoke(ctx, MethodFactorize, map[string]any{"value": n.String()})
	if err != nil {
		return Factorization{}, err
	}
	f := resp.GetFields()
	out := Factorization{
		Negative:     f["negative"].GetBoolValue(),
		Attempts:     int(f["attempts"].GetNumberValue()),
		FallbackUsed: f["fallback_used"].GetBoolValue(),
		Exhausted:    f["exhausted"].GetStringValue(),
		Primary:      f["primary"].GetStringValue(),
		Band:         f["band"].GetStringValue(),
	}
	for _, v := range f["factors"].GetListValue().GetValues() {
		ff := v.GetStructValue().GetFields()
		out.Factors = append(out.Factors, Factor{
			Value: ff["value"].GetStringValue(),
			Kind:  ff["kind"].GetStringValue(),
		})
	}
	return out, nil
}

// Recommend returns the algorithm the server recommends for bits.
func (c *Client) Recommend(ctx context.Context, bits int) (string, error) {
	resp, err := c.invoke(ctx, MethodRecommend, map[string]any{"bit_size": bits})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["algorithm"].GetStringValue(), nil
}

// #endregion calls

func stringList(v *structpb.Value) []string {
	vals := v.GetListValue().GetValues()
	out := make([]string, len(vals))
	for i, item := range vals {
		out[i] = item.GetStringValue()
	}
	return out
}
