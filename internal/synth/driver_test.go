package synth

import (
	"context"
	"testing"
	"time"

	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/trace"
)

func buildSumMatrix(t *testing.T) *trace.Matrix {
	t.Helper()
	m := trace.NewMatrix([]string{"a", "b"})
	inputs := []struct{ a, b kernel.Word }{
		{1, 2}, {3, 4}, {10, 20}, {-5, 5}, {7, 1},
	}
	for _, in := range inputs {
		if err := m.AddTrace(map[string]kernel.Word{"a": in.a, "b": in.b}, in.a+in.b); err != nil {
			t.Fatalf("AddTrace: %v", err)
		}
	}
	return m
}

func TestRunFindsExactSumInline(t *testing.T) {
	m := buildSumMatrix(t)
	cfg := Config{
		NRuns:     50,
		NThreads:  1,
		BatchSize: 8,
		Registers: []string{"a", "b"},
		Ops:       []kernel.Operator{kernel.Add},
	}
	result := Run(context.Background(), cfg, m, nil)
	if result.Winner == nil {
		t.Fatalf("expected a winning expression for a+b")
	}
	if result.BestScore != 1.0 {
		t.Fatalf("BestScore = %v, want 1.0", result.BestScore)
	}
	if got := ast.MathNotation(*result.Winner); got != "(a + b)" {
		t.Fatalf("Winner = %q, want \"(a + b)\"", got)
	}
}

func TestRunFindsExactSumPooled(t *testing.T) {
	m := buildSumMatrix(t)
	cfg := Config{
		NRuns:     50,
		NThreads:  4,
		BatchSize: 8,
		Registers: []string{"a", "b"},
		Ops:       []kernel.Operator{kernel.Add},
	}
	result := Run(context.Background(), cfg, m, nil)
	if result.Winner == nil {
		t.Fatalf("expected a winning expression for a+b via the worker pool")
	}
	if result.BestScore != 1.0 {
		t.Fatalf("BestScore = %v, want 1.0", result.BestScore)
	}
}

func TestRunWithEmptyOpsHaltsImmediately(t *testing.T) {
	m := buildSumMatrix(t)
	cfg := Config{
		NRuns:     50,
		NThreads:  1,
		BatchSize: 8,
		Registers: []string{"a", "b"},
		Ops:       nil,
	}
	result := Run(context.Background(), cfg, m, nil)
	if result.Winner != nil {
		t.Fatalf("expected no winner when the operator set is empty")
	}
	if result.ExpandedNodes != 1 {
		t.Fatalf("ExpandedNodes = %d, want 1 (root only)", result.ExpandedNodes)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	m := buildSumMatrix(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{
		NRuns:     50,
		NThreads:  4,
		BatchSize: 8,
		Registers: []string{"a", "b"},
		Ops:       []kernel.Operator{kernel.Add, kernel.Sub, kernel.Mul, kernel.Div},
	}
	result := Run(ctx, cfg, m, nil)
	// A cancelled context must not hang or panic; a winner may or may
	// not have been found inline before cancellation took effect.
	_ = result
}

// A full operator set over two registers fans a popped node out into
// many more children than BatchSize holds (Combinations/Derive can
// produce several multiples of it per wave); this pins down that
// submission no longer blocks the whole pool once the results channel
// would otherwise fill up before any drain happens.
func TestRunLargeWaveDoesNotDeadlock(t *testing.T) {
	m := buildSumMatrix(t)
	cfg := Config{
		NRuns:     20,
		NThreads:  4,
		BatchSize: 8,
		Registers: []string{"a", "b"},
		Ops:       []kernel.Operator{kernel.Add, kernel.Sub, kernel.Mul, kernel.Div},
	}

	done := make(chan Result, 1)
	go func() {
		done <- Run(context.Background(), cfg, m, nil)
	}()

	select {
	case result := <-done:
		if result.Winner == nil {
			t.Fatalf("expected a winner for a+b within a large-wave run")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run deadlocked on a wave larger than BatchSize")
	}
}

func TestRunWordBits32AgreesWithWordBits64ForAddition(t *testing.T) {
	m := buildSumMatrix(t)
	cfg64 := Config{
		NRuns: 50, NThreads: 1, BatchSize: 8,
		Registers: []string{"a", "b"}, Ops: []kernel.Operator{kernel.Add}, WordBits: 64,
	}
	cfg32 := cfg64
	cfg32.WordBits = 32
	r64 := Run(context.Background(), cfg64, m, nil)
	r32 := Run(context.Background(), cfg32, m, nil)
	if r64.BestScore != r32.BestScore {
		t.Fatalf("BestScore mismatch between word widths: 64=%v 32=%v", r64.BestScore, r32.BestScore)
	}
}
