package ast

import (
	"testing"

	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/trace"
)

func TestIsFinite(t *testing.T) {
	if !IsFinite(Terminal("a")) {
		t.Fatalf("Terminal should be finite")
	}
	if IsFinite(NonTerminal()) {
		t.Fatalf("NonTerminal should not be finite")
	}
	if IsFinite(Op(kernel.Add, Terminal("a"), NonTerminal())) {
		t.Fatalf("operation with a hole should not be finite")
	}
	if !IsFinite(Op(kernel.Add, Terminal("a"), Terminal("b"))) {
		t.Fatalf("operation over two terminals should be finite")
	}
}

func TestHoles(t *testing.T) {
	e := Op(kernel.Add, NonTerminal(), Op(kernel.Sub, NonTerminal(), Terminal("a")))
	if got := Holes(e); got != 2 {
		t.Fatalf("Holes() = %d, want 2", got)
	}
	if got := Holes(Terminal("a")); got != 0 {
		t.Fatalf("Holes(Terminal) = %d, want 0", got)
	}
}

func buildTestMatrix(t *testing.T) *trace.Matrix {
	t.Helper()
	m := trace.NewMatrix([]string{"a", "b"})
	for i := kernel.Word(1); i <= 4; i++ {
		if err := m.AddTrace(map[string]kernel.Word{"a": i, "b": i * 2}, i+i*2); err != nil {
			t.Fatalf("AddTrace: %v", err)
		}
	}
	return m
}

func TestEvalFinite(t *testing.T) {
	m := buildTestMatrix(t)
	e := Op(kernel.Add, Terminal("a"), Terminal("b"))
	got, ok := Eval(e, m, 64)
	if !ok {
		t.Fatalf("Eval should succeed on a finite expression")
	}
	want := []kernel.Word{3, 6, 9, 12}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Eval()[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestEvalNonFinite(t *testing.T) {
	m := buildTestMatrix(t)
	if _, ok := Eval(NonTerminal(), m, 64); ok {
		t.Fatalf("Eval on a NonTerminal should report ok=false")
	}
	if _, ok := Eval(Op(kernel.Add, Terminal("a"), NonTerminal()), m, 64); ok {
		t.Fatalf("Eval on an operation with a hole should report ok=false")
	}
}

func TestEvalUnknownRegister(t *testing.T) {
	m := buildTestMatrix(t)
	if _, ok := Eval(Terminal("zzz"), m, 64); ok {
		t.Fatalf("Eval on an unknown register should report ok=false")
	}
}

func TestCombinationsEmptyOps(t *testing.T) {
	terms := Combinations([]string{"a", "b"}, nil)
	if terms != nil {
		t.Fatalf("Combinations with empty ops = %v, want nil", terms)
	}
}

func TestCombinationsShape(t *testing.T) {
	terms := Combinations([]string{"a"}, []kernel.Operator{kernel.Add})
	// One bare Terminal(a), three two-way mixes for the one operator,
	// plus one register-free Op(Add, U, U).
	want := 1 + 3 + 1
	if len(terms) != want {
		t.Fatalf("Combinations len = %d, want %d", len(terms), want)
	}
	foundTerminal := false
	for _, term := range terms {
		if term.Tag == TagTerminal && term.Register == "a" {
			foundTerminal = true
		}
	}
	if !foundTerminal {
		t.Fatalf("Combinations should include a bare Terminal(a)")
	}
}

func TestDeriveCountMatchesHolesTimesTerms(t *testing.T) {
	e := Op(kernel.Add, NonTerminal(), NonTerminal())
	terms := Combinations([]string{"a"}, []kernel.Operator{kernel.Add})
	derived := Derive(e, terms)
	if len(derived) != Holes(e)*len(terms) {
		t.Fatalf("Derive len = %d, want %d", len(derived), Holes(e)*len(terms))
	}
}

func TestDeriveOnFiniteExpressionIsEmpty(t *testing.T) {
	terms := Combinations([]string{"a"}, []kernel.Operator{kernel.Add})
	if got := Derive(Terminal("a"), terms); got != nil {
		t.Fatalf("Derive on a finite expression = %v, want nil", got)
	}
}

func TestDeriveSubstitutesLeftToRight(t *testing.T) {
	e := Op(kernel.Add, NonTerminal(), NonTerminal())
	terms := []Expression{Terminal("a")}
	derived := Derive(e, terms)
	if len(derived) != 2 {
		t.Fatalf("Derive len = %d, want 2", len(derived))
	}
	if derived[0].Left.Tag != TagTerminal || derived[0].Right.Tag != TagNonTerminal {
		t.Fatalf("first derivation should substitute the left hole only")
	}
	if derived[1].Left.Tag != TagNonTerminal || derived[1].Right.Tag != TagTerminal {
		t.Fatalf("second derivation should substitute the right hole only")
	}
}

func TestMathNotation(t *testing.T) {
	e := Op(kernel.Add, Terminal("a"), Op(kernel.Sub, Terminal("b"), Terminal("c")))
	want := "(a + (b - c))"
	if got := MathNotation(e); got != want {
		t.Fatalf("MathNotation() = %q, want %q", got, want)
	}
}
