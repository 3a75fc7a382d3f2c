// Package trace holds the trace matrix T: per-register
// input columns plus the true-output column, collected incrementally
// and frozen before synthesis begins.
package trace

import (
	"sort"

	synerr "github.com/xermicus/r2deob/internal/errors"
	"github.com/xermicus/r2deob/internal/kernel"
)

// Matrix is the append-only trace store. The zero value is not
// usable; construct with NewMatrix.
type Matrix struct {
	registers []string // fixed order, set at construction
	regSet    map[string]struct{}
	cols      map[string][]kernel.Word
	y         []kernel.Word
	frozen    bool
}

// NewMatrix creates an empty matrix over the given, order-fixed
// register set.
func NewMatrix(registers []string) *Matrix {
	regSet := make(map[string]struct{}, len(registers))
	cols := make(map[string][]kernel.Word, len(registers))
	for _, r := range registers {
		regSet[r] = struct{}{}
		cols[r] = nil
	}
	return &Matrix{
		registers: append([]string(nil), registers...),
		regSet:    regSet,
		cols:      cols,
	}
}

// Registers returns the fixed, ordered register names.
func (m *Matrix) Registers() []string {
	return append([]string(nil), m.registers...)
}

// Len returns N, the number of observations collected so far.
func (m *Matrix) Len() int {
	return len(m.y)
}

// Column returns the observed values for register r, or ok=false if r
// is not one of the session's registers.
func (m *Matrix) Column(r string) ([]kernel.Word, bool) {
	col, ok := m.cols[r]
	return col, ok
}

// Y returns the true-output column.
func (m *Matrix) Y() []kernel.Word {
	return m.y
}

// Freeze locks the matrix against further AddTrace calls; Synthesize
// calls this before the driver starts so that worker copies of T are
// stable for the whole run.
func (m *Matrix) Freeze() {
	m.frozen = true
}

// Frozen reports whether Freeze has been called.
func (m *Matrix) Frozen() bool {
	return m.frozen
}

// AddTrace appends one (inputs, output) observation. inputs must have
// exactly the matrix's register set as keys; otherwise BadTrace is
// returned and the matrix is left untouched. AddTrace on a frozen
// matrix also returns BadTrace.
func (m *Matrix) AddTrace(inputs map[string]kernel.Word, output kernel.Word) error {
	if m.frozen {
		return synerr.New(synerr.BadTrace, "trace matrix is frozen")
	}
	if len(inputs) != len(m.registers) {
		return badRegisterSet(inputs, m.registers)
	}
	for r := range inputs {
		if _, ok := m.regSet[r]; !ok {
			return badRegisterSet(inputs, m.registers)
		}
	}
	for _, r := range m.registers {
		m.cols[r] = append(m.cols[r], inputs[r])
	}
	m.y = append(m.y, output)
	return nil
}

func badRegisterSet(inputs map[string]kernel.Word, want []string) error {
	got := make([]string, 0, len(inputs))
	for r := range inputs {
		got = append(got, r)
	}
	sort.Strings(got)
	return synerr.New(synerr.BadTrace, "register set does not match session registers").
		WithField("got", got).
		WithField("want", want)
}

// Clone returns a deep copy of the matrix's columns and outputs, used
// to hand each worker an immutable private copy at spawn — workers
// must never observe mutations made after they start.
func (m *Matrix) Clone() *Matrix {
	clone := NewMatrix(m.registers)
	for _, r := range m.registers {
		clone.cols[r] = append([]kernel.Word(nil), m.cols[r]...)
	}
	clone.y = append([]kernel.Word(nil), m.y...)
	clone.frozen = m.frozen
	return clone
}
