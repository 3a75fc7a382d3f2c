// Package score implements the similarity metrics for scoring how
// close a candidate expression's output column is to the observed
// trace, grounded on the original source's Score variants
// (hamming_distance, abs_distance, range_distance, combined) under
// fixed names (Hamming/AbsRatio/BytePrefix/Combined).
package score

import (
	"math/bits"

	"github.com/xermicus/r2deob/internal/kernel"
)

// Tag discriminates the Score variants.
type Tag byte

const (
	TagHamming Tag = iota
	TagAbsRatio
	TagBytePrefix
	TagCombined
	TagUnknown
	TagUnsat
)

// Score is a tagged similarity value in [0,1], with Unsat/Unknown
// sorting strictly worst regardless of Value.
type Score struct {
	Tag   Tag
	Value float32
}

// Unknown is the default, uninitialized score (Node.score starts at 0
// conceptually, but the tagged Unknown value makes "never scored"
// distinguishable from "scored zero").
var Unknown = Score{Tag: TagUnknown}

// Unsat denotes "expression could not be evaluated".
var Unsat = Score{Tag: TagUnsat}

// Less reports whether a is strictly worse than b, the ordering used
// by the frontier's max-heap: Combined(x) with larger x is
// better; Unsat/Unknown are strictly worst.
func Less(a, b Score) bool {
	av, aFinite := numericValue(a)
	bv, bFinite := numericValue(b)
	if !aFinite && !bFinite {
		return false
	}
	if !aFinite {
		return true
	}
	if !bFinite {
		return false
	}
	return av < bv
}

func numericValue(s Score) (float32, bool) {
	if s.Tag == TagUnsat || s.Tag == TagUnknown {
		return 0, false
	}
	return s.Value, true
}

const bitWidth = 64

// hamming computes the elementwise Hamming similarity between a and b:
// 1 - popcount(a^b)/bitwidth, averaged over all elements.
func hamming(a, b []kernel.Word) float32 {
	var sum float64
	for i := range a {
		diff := uint64(a[i]) ^ uint64(b[i])
		sum += 1.0 - float64(bits.OnesCount64(diff))/float64(bitWidth)
	}
	return float32(sum / float64(len(a)))
}

// absRatio computes min(a[i],b[i])/max(a[i],b[i]) per element, with
// the edge cases: both zero -> 1, exactly one zero -> 0.
func absRatio(a, b []kernel.Word) float32 {
	var sum float64
	for i := range a {
		x, y := a[i], b[i]
		if x < 0 {
			x = -x
		}
		if y < 0 {
			y = -y
		}
		switch {
		case x == 0 && y == 0:
			sum += 1
		case x == 0 || y == 0:
			sum += 0
		default:
			lo, hi := x, y
			if lo > hi {
				lo, hi = hi, lo
			}
			sum += float64(lo) / float64(hi)
		}
	}
	return float32(sum / float64(len(a)))
}

// bytePrefix encodes each value little-endian and counts the byte
// positions where a and b agree, scoring k/bytes(W).
func bytePrefix(a, b []kernel.Word) float32 {
	var sum float64
	for i := range a {
		ab := littleEndianBytes(a[i])
		bb := littleEndianBytes(b[i])
		k := 0
		for j := range ab {
			if ab[j] == bb[j] {
				k++
			}
		}
		sum += float64(k) / float64(len(ab))
	}
	return float32(sum / float64(len(a)))
}

func littleEndianBytes(w kernel.Word) [8]byte {
	u := uint64(w)
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

// Combined computes the Combined metric: the elementwise
// arithmetic mean of Hamming, AbsRatio, and BytePrefix, averaged over
// all observations. a and b must have equal, non-zero length; the
// caller (internal/workerpool's evaluate, which internal/synth's
// inline path also goes through) only invokes this on finite
// expressions evaluated against the live trace matrix, where that
// invariant always holds.
func Combined(a, b []kernel.Word) Score {
	if len(a) == 0 || len(a) != len(b) {
		return Unsat
	}
	h := hamming(a, b)
	r := absRatio(a, b)
	p := bytePrefix(a, b)
	return Score{Tag: TagCombined, Value: (h + r + p) / 3}
}
