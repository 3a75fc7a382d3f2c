// Package workerpool implements the evaluation worker pool that scores
// candidate expressions off the driver's hot path. It is modeled
// directly on internal/concurrency.WorkerPool/Worker/Job/JobResult's
// shape — a
// context-scoped pool of goroutines around one shared jobs channel
// and one shared results channel, coordinated with a sync.WaitGroup —
// retyped to the domain: Task/Result in place of Job/JobResult, and a
// private per-worker copy of the trace matrix captured at spawn
// instead of arbitrary job data.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/score"
	"github.com/xermicus/r2deob/internal/trace"
)

// Task is one unit of evaluation work: score expr and report it back
// tagged with the tree node it belongs to.
type Task struct {
	Node int
	Expr ast.Expression
}

// Result is what a worker reports back for a Task.
type Result struct {
	Node  int
	Score score.Score
	Model map[string]kernel.Word
}

// Pool is a fixed set of worker goroutines sharing one jobs channel
// and one results channel. T is cloned once per worker at spawn and
// is read-only thereafter — workers never see the live tree or queue.
type Pool struct {
	tasks    chan Task
	results  chan Result
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	size     int32 // current live worker count, decremented on WorkerDead
	wordBits int
	log      *logrus.Entry
}

// New starts n workers, each holding a private clone of t. bufferSize
// sizes both channels; a reasonable default is batchSize from the
// session config. wordBits selects the kernel lane width every worker
// evaluates with (see internal/kernel.LaneWidth).
func New(ctx context.Context, n int, bufferSize int, t *trace.Matrix, wordBits int, log *logrus.Entry) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pool{
		tasks:    make(chan Task, bufferSize),
		results:  make(chan Result, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
		size:     int32(n),
		wordBits: wordBits,
		log:      log,
	}
	for i := 0; i < n; i++ {
		workerT := t.Clone()
		p.wg.Add(1)
		go p.runWorker(i, workerT)
	}
	return p
}

// Submit enqueues a task. Blocks if the jobs channel is full, unless
// the pool's context is already done.
func (p *Pool) Submit(task Task) {
	select {
	case p.tasks <- task:
	case <-p.ctx.Done():
	}
}

// Results exposes the results channel for the driver's drain phase.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// ActiveWorkers returns the current live worker count, which can drop
// below the configured size if a worker dies (see WorkerDead).
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt32(&p.size))
}

// Close stops accepting new work and waits for all workers to exit —
// they observe ctx.Done() at their next receive.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
	close(p.results)
}

// runWorker is the worker loop: receive a task, evaluate it if finite
// (else Unsat), score it, send the result. A panic
// during evaluation is recovered and downgrades this worker rather
// than crashing the pool (WorkerDead).
func (p *Pool) runWorker(id int, t *trace.Matrix) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt32(&p.size, -1)
			p.log.WithFields(logrus.Fields{
				"worker": id,
				"panic":  r,
			}).Warn("worker died, downgrading parallelism")
		}
	}()

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result := evaluate(task, t, p.wordBits)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// evaluate is the pure work function shared by in-thread evaluation
// (internal/synth, when n_threads==1) and worker-dispatched
// evaluation, so both paths are guaranteed to score identically.
func evaluate(task Task, t *trace.Matrix, wordBits int) Result {
	if !ast.IsFinite(task.Expr) {
		return Result{Node: task.Node, Score: score.Unsat}
	}
	values, ok := ast.Eval(task.Expr, t, wordBits)
	if !ok {
		return Result{Node: task.Node, Score: score.Unsat}
	}
	s := score.Combined(values, t.Y())
	model := make(map[string]kernel.Word, len(t.Registers()))
	if t.Len() > 0 {
		for _, r := range t.Registers() {
			col, _ := t.Column(r)
			model[r] = col[0]
		}
	}
	return Result{Node: task.Node, Score: s, Model: model}
}

// Evaluate runs the pure work function directly, without a pool —
// used by the driver's inline evaluation path.
func Evaluate(expr ast.Expression, node int, t *trace.Matrix, wordBits int) Result {
	return evaluate(Task{Node: node, Expr: expr}, t, wordBits)
}
