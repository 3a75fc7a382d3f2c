// Package ast implements the expression grammar: a
// tagged tree of terminals, holes, and binary operations, together
// with the term-set derivation and evaluation against a trace matrix.
package ast

import (
	"fmt"

	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/trace"
)

// Tag discriminates the three Expression cases. Mirrors the original
// source's Expression enum (Terminal/NonTerminal/Operation) — the
// Constant case is deliberately not reproduced here (see DESIGN.md).
type Tag byte

const (
	TagTerminal Tag = iota
	TagNonTerminal
	TagOperation
)

// Expression is a tagged variant. Only one of the fields is
// meaningful for a given Tag: Register for TagTerminal, Op/Left/Right
// for TagOperation.
type Expression struct {
	Tag      Tag
	Register string
	Op       kernel.Operator
	Left     *Expression
	Right    *Expression
}

// Terminal constructs a register-valued leaf.
func Terminal(register string) Expression {
	return Expression{Tag: TagTerminal, Register: register}
}

// NonTerminal is the unfilled hole placeholder.
func NonTerminal() Expression {
	return Expression{Tag: TagNonTerminal}
}

// Op constructs a binary operation node.
func Op(op kernel.Operator, left, right Expression) Expression {
	return Expression{Tag: TagOperation, Op: op, Left: &left, Right: &right}
}

// IsFinite reports whether e contains no NonTerminal — the only kind
// of expression Eval can evaluate.
func IsFinite(e Expression) bool {
	switch e.Tag {
	case TagTerminal:
		return true
	case TagNonTerminal:
		return false
	case TagOperation:
		return IsFinite(*e.Left) && IsFinite(*e.Right)
	default:
		return false
	}
}

// Holes counts the NonTerminal occurrences in e, used by callers that
// want to size Derive's output without materializing it (Derive(e,
// τ).length == Holes(e) * len(τ)).
func Holes(e Expression) int {
	switch e.Tag {
	case TagNonTerminal:
		return 1
	case TagOperation:
		return Holes(*e.Left) + Holes(*e.Right)
	default:
		return 0
	}
}

// Eval returns the column of values e assumes over t, or ok=false iff
// e is not finite. Pure and side-effect free; the arithmetic itself
// is delegated to internal/kernel. wordBits selects the kernel's lane
// width (32 -> 16 lanes, else 8); it never changes the result, only
// how the batched path groups its work.
func Eval(e Expression, t *trace.Matrix, wordBits int) (out []kernel.Word, ok bool) {
	switch e.Tag {
	case TagTerminal:
		col, present := t.Column(e.Register)
		if !present {
			return nil, false
		}
		return col, true
	case TagNonTerminal:
		return nil, false
	case TagOperation:
		left, ok := Eval(*e.Left, t, wordBits)
		if !ok {
			return nil, false
		}
		right, ok := Eval(*e.Right, t, wordBits)
		if !ok {
			return nil, false
		}
		return kernel.PerformLanes(e.Op, left, right, kernel.LaneWidth(wordBits)), true
	default:
		return nil, false
	}
}

// Combinations returns τ(registers, ops): for each
// register (in the given order) emit Terminal(r), then for each
// operator (in ops order) the three two-way mixes with NonTerminal;
// then, once per operator, the register-free Op(o, U, U) variant.
// An empty operator set yields an empty term set, since the term set
// is defined over (register, operator) pairs: with no allowed
// operators there are zero pairs and zero terms — including no bare
// Terminal(r) — so deriving against an empty Combinations halts
// immediately with nothing substituted from the root.
func Combinations(registers []string, ops []kernel.Operator) []Expression {
	if len(ops) == 0 {
		return nil
	}
	terms := make([]Expression, 0, len(registers)*(1+3*len(ops))+len(ops))
	for _, r := range registers {
		terms = append(terms, Terminal(r))
		for _, o := range ops {
			terms = append(terms,
				Op(o, NonTerminal(), NonTerminal()),
				Op(o, Terminal(r), NonTerminal()),
				Op(o, NonTerminal(), Terminal(r)),
			)
		}
	}
	for _, o := range ops {
		terms = append(terms, Op(o, NonTerminal(), NonTerminal()))
	}
	return terms
}

// Derive enumerates all one-step derivations of e: at every
// NonTerminal occurrence (left-to-right), substitute each element of
// terms, cloning the rest of the expression unchanged. A finite
// expression yields an empty slice.
func Derive(e Expression, terms []Expression) []Expression {
	holes := Holes(e)
	if holes == 0 {
		return nil
	}
	out := make([]Expression, 0, holes*len(terms))
	for pos := 0; pos < holes; pos++ {
		for _, t := range terms {
			out = append(out, substituteHole(e, pos, t))
		}
	}
	return out
}

// substituteHole clones e, replacing the pos-th NonTerminal
// (left-to-right, 0-indexed) with replacement.
func substituteHole(e Expression, pos int, replacement Expression) Expression {
	counter := 0
	var walk func(Expression) Expression
	walk = func(n Expression) Expression {
		switch n.Tag {
		case TagNonTerminal:
			if counter == pos {
				counter++
				return replacement
			}
			counter++
			return n
		case TagOperation:
			left := walk(*n.Left)
			right := walk(*n.Right)
			return Op(n.Op, left, right)
		default:
			return n
		}
	}
	return walk(e)
}

// MathNotation renders e as an infix expression for human reporting
// only; it is never parsed back by the core. A parser for this
// notation is an eventual, out-of-scope integration point.
func MathNotation(e Expression) string {
	switch e.Tag {
	case TagTerminal:
		return e.Register
	case TagNonTerminal:
		return "U"
	case TagOperation:
		return fmt.Sprintf("(%s %s %s)", MathNotation(*e.Left), e.Op, MathNotation(*e.Right))
	default:
		return ""
	}
}
