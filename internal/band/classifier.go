// Package band maps integer bit lengths onto eight ordered magnitude bands.
//
// Classification is a pure function of bit length; nothing in this package
// holds state, so a single classifier is shared by every selector.
package band

// #region imports
import (
	"math"
	"math/big"

	berrors "github.com/danielpatrickdp/bandroute/internal/errors"
)

// #endregion

// #region bit-size

// BitSize returns the number of bits needed to represent |n|. Zero and nil take one bit.
func BitSize(n *big.Int) int {
	if n == nil {
		return 1
	}
	if bl := n.BitLen(); bl > 0 {
		return bl
	}
	return 1
}

// #endregion

// #region lookup

// Lookup returns the static band whose range contains bits.
func Lookup(bits int) (Type, error) {
	for i, r := range staticRanges {
		if r.Contains(bits) {
			return Type(i), nil
		}
	}
	return 0, berrors.NewClassificationError(bits, MinBits, MaxBits)
}

// #endregion

// #region classify

// Classify classifies n by its bit length.
func Classify(n *big.Int) (Classification, error) {
	return ClassifyBitSize(BitSize(n))
}

// ClassifyBitSize classifies a bit length directly. Values outside
// [MinBits, MaxBits] fail with a ClassificationError; they are never clamped.
func ClassifyBitSize(bits int) (Classification, error) {
	b, err := Lookup(bits)
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		Band:            b,
		BitSize:         bits,
		Confidence:      confidence(b.Range(), bits),
		Alternatives:    alternatives(b, bits),
		Characteristics: characterize(bits),
	}, nil
}

// confidence is 1.0 at the midpoint of r and falls linearly to 0.5 at either edge.
func confidence(r Range, bits int) float64 {
	half := float64(r.Max-r.Min) / 2
	if half <= 0 {
		return 1
	}
	dist := math.Abs(float64(bits) - r.Midpoint())
	c := 1 - 0.5*dist/half
	return math.Max(0, math.Min(1, c))
}

// alternatives lists the neighbour on the side of the midpoint bits falls on.
func alternatives(b Type, bits int) []Type {
	if float64(bits) < b.Range().Midpoint() {
		if p, ok := b.Prev(); ok {
			return []Type{p}
		}
		return nil
	}
	if float64(bits) > b.Range().Midpoint() {
		if n, ok := b.Next(); ok {
			return []Type{n}
		}
	}
	return nil
}

// #endregion

// #region characteristics

func characterize(bits int) Characteristics {
	fb := float64(bits)
	return Characteristics{
		BitSize:                 bits,
		Magnitude:               int(math.Ceil(fb * math.Log10(2))),
		PrimeDensity:            clamp(1 / (fb * math.Ln2)),
		FactorizationDifficulty: clamp(math.Log2(fb) / math.Log2(MaxBits)),
		CacheLocality:           clamp(1 - fb/MaxBits),
		ParallelPotential:       clamp(fb / 1024),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion

// #region classify-batch

// ClassifyBatch classifies every value and summarizes the distribution.
// The optimal band is the most frequent one, ties going to the lower ordinal.
// An empty batch is a caller error.
func ClassifyBatch(ns []*big.Int) (BatchClassification, error) {
	if len(ns) == 0 {
		return BatchClassification{}, berrors.ErrEmptyBatch
	}

	items := make([]Classification, 0, len(ns))
	dist := make(map[Type]int)
	var bitSum int

	for _, n := range ns {
		c, err := Classify(n)
		if err != nil {
			return BatchClassification{}, err
		}
		items = append(items, c)
		dist[c.Band]++
		bitSum += c.BitSize
	}

	optimal := Ultrabass
	best := -1
	for _, b := range All() {
		if dist[b] > best {
			best = dist[b]
			optimal = b
		}
	}

	return BatchClassification{
		Distribution: dist,
		Optimal:      optimal,
		Confidence:   float64(best) / float64(len(ns)),
		AvgBitSize:   float64(bitSum) / float64(len(ns)),
		Items:        items,
	}, nil
}

// #endregion
