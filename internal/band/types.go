package band

import (
	"fmt"
	"strings"
)

// #region band-type

// Type is one of the eight ordered magnitude bands.
type Type int

const (
	Ultrabass Type = iota
	Bass
	Midrange
	UpperMid
	Treble
	SuperTreble
	Ultrasonic1
	Ultrasonic2
)

// Count is the number of bands.
const Count = 8

// MinBits and MaxBits bound the covered bit lengths.
const (
	MinBits = 16
	MaxBits = 4096
)

var names = [Count]string{
	"ULTRABASS",
	"BASS",
	"MIDRANGE",
	"UPPER_MID",
	"TREBLE",
	"SUPER_TREBLE",
	"ULTRASONIC_1",
	"ULTRASONIC_2",
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Band(%d)", int(t))
	}
	return names[t]
}

// Valid reports whether t is one of the eight bands.
func (t Type) Valid() bool {
	return t >= Ultrabass && t <= Ultrasonic2
}

// Prev returns the band one ordinal below t.
func (t Type) Prev() (Type, bool) {
	if t <= Ultrabass || !t.Valid() {
		return t, false
	}
	return t - 1, true
}

// Next returns the band one ordinal above t.
func (t Type) Next() (Type, bool) {
	if t >= Ultrasonic2 || !t.Valid() {
		return t, false
	}
	return t + 1, true
}

// Neighbors returns the existing ordinal neighbours, lower first.
func (t Type) Neighbors() []Type {
	out := make([]Type, 0, 2)
	if p, ok := t.Prev(); ok {
		out = append(out, p)
	}
	if n, ok := t.Next(); ok {
		out = append(out, n)
	}
	return out
}

// Range returns the static bit-length range of t.
func (t Type) Range() Range {
	if !t.Valid() {
		return Range{}
	}
	return staticRanges[t]
}

// MarshalText encodes the band by name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal band %d: invalid", int(t))
	}
	return []byte(names[t]), nil
}

// UnmarshalText decodes a band name.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType resolves a band name, case-insensitive.
func ParseType(s string) (Type, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == upper {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown band %q", s)
}

// All returns every band in ordinal order.
func All() []Type {
	out := make([]Type, Count)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// #endregion band-type

// #region range

// Range is an inclusive bit-length interval.
type Range struct {
	Min int
	Max int
}

// Contains reports whether bits lies inside r.
func (r Range) Contains(bits int) bool {
	return bits >= r.Min && bits <= r.Max
}

// Midpoint is the centre of r.
func (r Range) Midpoint() float64 {
	return float64(r.Min+r.Max) / 2
}

var staticRanges = [Count]Range{
	{16, 32},
	{33, 64},
	{65, 128},
	{129, 256},
	{257, 512},
	{513, 1024},
	{1025, 2048},
	{2049, 4096},
}

// #endregion range

// #region characteristics

// Characteristics are heuristic descriptors of a value derived from its size.
type Characteristics struct {
	BitSize                 int
	Magnitude               int     // approximate decimal digit count
	PrimeDensity            float64 // ~1/ln(n)
	FactorizationDifficulty float64
	CacheLocality           float64
	ParallelPotential       float64
}

// #endregion characteristics

// #region classification

// Classification is the result of classifying one value.
type Classification struct {
	Band            Type
	BitSize         int
	Confidence      float64
	Alternatives    []Type
	Characteristics Characteristics
}

// BatchClassification summarizes a classified batch.
type BatchClassification struct {
	Distribution map[Type]int
	Optimal      Type
	Confidence   float64
	AvgBitSize   float64
	Items        []Classification
}

// Weight returns the count recorded for b.
func (bc BatchClassification) Weight(b Type) int {
	return bc.Distribution[b]
}

// #endregion classification
