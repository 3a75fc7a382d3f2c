// Package kernel implements elementwise arithmetic over fixed-width
// signed integer columns — the operator kernel of the expression grammar. It
// provides a batched (lane-unrolled) path for bulk evaluation and a
// scalar path for the tail and for portability; both agree bit for
// bit on Add/Sub/Mul and on the checked-div convention for Div.
package kernel

// Word is the fixed signed integer type used for register values,
// trace outputs, and all arithmetic. Synthesis never needs anything
// wider than int64; 32-bit words are modeled by truncation at the
// session boundary, not by a distinct Go type.
type Word = int64

// Operator is one of the four grammar operators.
type Operator byte

const (
	Add Operator = iota
	Sub
	Mul
	Div
)

func (o Operator) String() string {
	switch o {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	default:
		return "?"
	}
}

// Operators is the full, stably ordered operator set — the default
// when a session's Config does not restrict it.
var Operators = []Operator{Add, Sub, Mul, Div}

// LaneWidth returns the batched kernel's unroll width for a given
// word size: 8 lanes for 64-bit words, 16 for 32-bit words, mirroring
// the original source's avx2-lane-count-over-element-width split
// (simdeez's 256-bit vector ÷ element width).
func LaneWidth(wordBits int) int {
	if wordBits == 32 {
		return 16
	}
	return 8
}

// Perform applies o elementwise to a and b, returning a freshly
// allocated result of the same length. a and b must have equal
// length; callers (internal/ast.Eval, through PerformLanes) guarantee this since both
// operands are evaluated against the same trace matrix.
func Perform(o Operator, a, b []Word) []Word {
	return PerformLanes(o, a, b, LaneWidth(64))
}

// PerformLanes is Perform with an explicit lane width, used by tests
// to exercise both the 8-lane and 16-lane batched paths against the
// scalar reference.
func PerformLanes(o Operator, a, b []Word, lanes int) []Word {
	n := len(a)
	out := make([]Word, n)
	batched := n - (n % lanes)

	switch o {
	case Add:
		batchAdd(a[:batched], b[:batched], out[:batched], lanes)
		scalarAdd(a[batched:], b[batched:], out[batched:])
	case Sub:
		batchSub(a[:batched], b[:batched], out[:batched], lanes)
		scalarSub(a[batched:], b[batched:], out[batched:])
	case Mul:
		batchMul(a[:batched], b[:batched], out[:batched], lanes)
		scalarMul(a[batched:], b[batched:], out[batched:])
	case Div:
		// Division is checked and branchy per element; there is no
		// profitable batched path, so the scalar path covers the
		// whole slice (matches the original source, which also falls
		// back to a plain iterator for div).
		scalarDiv(a, b, out)
	}
	return out
}

// batchAdd, batchSub, batchMul process full lane-width groups, one
// group per outer iteration — the portable stand-in for the original
// source's simdeez compile-time SIMD generation (see DESIGN.md).

func batchAdd(a, b, out []Word, lanes int) {
	for i := 0; i < len(a); i += lanes {
		end := i + lanes
		if end > len(a) {
			end = len(a)
		}
		for j := i; j < end; j++ {
			out[j] = a[j] + b[j]
		}
	}
}

func batchSub(a, b, out []Word, lanes int) {
	for i := 0; i < len(a); i += lanes {
		end := i + lanes
		if end > len(a) {
			end = len(a)
		}
		for j := i; j < end; j++ {
			out[j] = a[j] - b[j]
		}
	}
}

func batchMul(a, b, out []Word, lanes int) {
	for i := 0; i < len(a); i += lanes {
		end := i + lanes
		if end > len(a) {
			end = len(a)
		}
		for j := i; j < end; j++ {
			out[j] = a[j] * b[j]
		}
	}
}

func scalarAdd(a, b, out []Word) {
	for i := range a {
		out[i] = a[i] + b[i]
	}
}

func scalarSub(a, b, out []Word) {
	for i := range a {
		out[i] = a[i] - b[i]
	}
}

func scalarMul(a, b, out []Word) {
	for i := range a {
		out[i] = a[i] * b[i]
	}
}

// scalarDiv implements a checked division convention:
// x/0 := 0, and MIN/-1 := 0 to avoid the two's-complement overflow
// trap that a real CPU division instruction would raise.
func scalarDiv(a, b, out []Word) {
	const minWord = Word(-1) << 63
	for i := range a {
		if b[i] == 0 {
			out[i] = 0
			continue
		}
		if a[i] == minWord && b[i] == -1 {
			out[i] = 0
			continue
		}
		out[i] = a[i] / b[i]
	}
}
