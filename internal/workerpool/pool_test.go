package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/score"
	"github.com/xermicus/r2deob/internal/trace"
)

func buildMatrix(t *testing.T) *trace.Matrix {
	t.Helper()
	m := trace.NewMatrix([]string{"rax", "rbx", "rcx"})
	for i := kernel.Word(1); i <= 8; i++ {
		if err := m.AddTrace(map[string]kernel.Word{"rax": i, "rbx": i, "rcx": i}, i+i-i); err != nil {
			t.Fatalf("AddTrace: %v", err)
		}
	}
	return m
}

func TestEvaluatePerfectExpression(t *testing.T) {
	m := buildMatrix(t)
	expr := ast.Op(kernel.Add, ast.Terminal("rax"), ast.Op(kernel.Sub, ast.Terminal("rbx"), ast.Terminal("rcx")))
	result := Evaluate(expr, 7, m, 64)
	if result.Node != 7 {
		t.Fatalf("Node = %d, want 7", result.Node)
	}
	if result.Score.Tag != score.TagCombined || result.Score.Value != 1.0 {
		t.Fatalf("Score = %+v, want Combined(1.0)", result.Score)
	}
}

func TestEvaluateNonFiniteIsUnsat(t *testing.T) {
	m := buildMatrix(t)
	result := Evaluate(ast.NonTerminal(), 1, m, 64)
	if result.Score.Tag != score.TagUnsat {
		t.Fatalf("Score = %+v, want Unsat", result.Score)
	}
}

func TestPoolRoundTrip(t *testing.T) {
	m := buildMatrix(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := New(ctx, 2, 4, m, 64, nil)
	expr := ast.Terminal("rax")
	pool.Submit(Task{Node: 3, Expr: expr})

	select {
	case res := <-pool.Results():
		if res.Node != 3 {
			t.Fatalf("Node = %d, want 3", res.Node)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker result")
	}
	pool.Close()
}

func TestPoolClosesCleanly(t *testing.T) {
	m := buildMatrix(t)
	ctx := context.Background()
	pool := New(ctx, 3, 4, m, 64, nil)
	if pool.ActiveWorkers() != 3 {
		t.Fatalf("ActiveWorkers() = %d, want 3", pool.ActiveWorkers())
	}
	pool.Close()
}

// (h) a worker that panics mid-evaluation downgrades the pool's active
// worker count instead of taking the whole pool down; the remaining
// workers keep servicing submitted tasks.
func TestWorkerDeadDowngradesParallelismButPoolSurvives(t *testing.T) {
	m := buildMatrix(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := New(ctx, 2, 4, m, 64, nil)

	// A TagOperation node built without the Op constructor has nil
	// Left/Right; IsFinite's recursion (run before Eval) dereferences them and panics,
	// exercising runWorker's recover() path exactly as a malformed
	// derivation would in production.
	malformed := ast.Expression{Tag: ast.TagOperation}
	pool.Submit(Task{Node: 1, Expr: malformed})

	deadline := time.After(2 * time.Second)
	for pool.ActiveWorkers() == 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ActiveWorkers to drop after a worker panic")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if pool.ActiveWorkers() != 1 {
		t.Fatalf("ActiveWorkers() = %d, want 1 after one worker died", pool.ActiveWorkers())
	}

	pool.Submit(Task{Node: 2, Expr: ast.Terminal("rax")})
	select {
	case res := <-pool.Results():
		if res.Node != 2 {
			t.Fatalf("Node = %d, want 2", res.Node)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the surviving worker to process a task")
	}
	pool.Close()
}
