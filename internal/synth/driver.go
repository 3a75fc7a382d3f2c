// Package synth implements the synthesis driver: the
// outer loop that selects frontier nodes, derives children, evaluates
// them (inline or via the worker pool), propagates scores to
// ancestors, and rebuilds the frontier queue, halting on a perfect
// candidate or search-budget exhaustion. Grounded on the original
// source's Synthesis::synthesize/AtomicWorker::setup_workers
// (synth_tree.rs), generalized to the full driver loop the original
// left as a TODO.
package synth

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/frontier"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/score"
	"github.com/xermicus/r2deob/internal/trace"
	"github.com/xermicus/r2deob/internal/tree"
	"github.com/xermicus/r2deob/internal/workerpool"
)

// Config is the driver's tuning surface.
type Config struct {
	NRuns     int
	NThreads  int
	BatchSize int
	Registers []string
	Ops       []kernel.Operator
	WordBits  int
}

// Result is what Synthesize returns.
type Result struct {
	Winner        *ast.Expression
	Best          ast.Expression
	BestScore     float32
	ExpandedNodes int
}

// Run executes the driver loop against an already-populated trace
// matrix. The matrix is frozen on entry so that worker
// clones are stable for the whole run.
func Run(ctx context.Context, cfg Config, t *trace.Matrix, log *logrus.Entry) Result {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	wordBits := cfg.WordBits
	if wordBits == 0 {
		wordBits = 64
	}
	t.Freeze()

	terms := ast.Combinations(cfg.Registers, cfg.Ops)
	tr := tree.New()
	q := frontier.New()
	frontier.Rebuild(q, tr)

	if len(terms) == 0 {
		// Empty operator set ⇒ empty term set: the
		// root has a hole but nothing to substitute it with, so no
		// outer iteration can make progress. Halt immediately rather
		// than spin for nRuns iterations deriving nothing.
		log.Info("empty term set, nothing to synthesize")
		root := tr.Node(tree.Root)
		return Result{Best: root.Expr, ExpandedNodes: tr.Len()}
	}

	var pool *workerpool.Pool
	usePool := cfg.NThreads > 1
	if usePool {
		pool = workerpool.New(ctx, cfg.NThreads, cfg.BatchSize, t, wordBits, log)
		defer pool.Close()
	}

	bestIndex := tree.Root
	var winner *ast.Expression
	retired := make(map[int]bool)

	for run := 0; run < cfg.NRuns; run++ {
		if q.Empty() {
			log.WithField("run", run).Info("frontier exhausted before budget")
			break
		}

		// Select: pop up to nThreads frontier nodes.
		popped := make([]int, 0, cfg.NThreads)
		for i := 0; i < cfg.NThreads && !q.Empty(); i++ {
			popped = append(popped, q.Pop())
		}

		pendingChildren := make([]int, 0)
		for _, p := range popped {
			expr := tr.Node(p).Expr
			if ast.IsFinite(expr) {
				// A finite leaf can never be derived further; retire
				// it from the frontier so it stops winning every
				// future Select on score alone and starving expansion
				// of nodes that still have holes to fill.
				retired[p] = true
				continue
			}
			derivations := ast.Derive(expr, terms)
			for _, d := range derivations {
				child := tr.AddChild(p, d)
				pendingChildren = append(pendingChildren, child)
			}
		}

		// Evaluate + propagate. Submission is interleaved with draining
		// rather than pushed through in one pass: both of the pool's
		// channels are sized to cfg.BatchSize, and a wave easily holds
		// several multiples of that (Combinations/Derive fan out every
		// popped node into holes*len(terms) children). Submitting the
		// whole wave before ever receiving a result can fill the
		// results channel past its buffer — every worker then blocks
		// sending its result, no worker is left to receive from the
		// tasks channel, and Submit itself blocks forever with nothing
		// left to unblock it. Capping in-flight tasks at cfg.BatchSize
		// and draining one before every submission past that cap keeps
		// the results channel inside its buffer at all times.
		inFlight := 0
		drainOne := func() {
			select {
			case res, ok := <-pool.Results():
				if !ok {
					return
				}
				tr.SetScore(res.Node, res.Score)
				tr.PropagateScore(res.Node)
				if better := bestCandidate(tr, res.Node, bestIndex); better != bestIndex {
					bestIndex = better
				}
				if isPerfect(res.Score) {
					w := tr.Node(res.Node).Expr
					winner = &w
				}
				inFlight--
			case <-ctx.Done():
				inFlight = 0
			}
		}

		for _, child := range pendingChildren {
			expr := tr.Node(child).Expr
			if !usePool {
				res := workerpool.Evaluate(expr, child, t, wordBits)
				tr.SetScore(child, res.Score)
				tr.PropagateScore(child)
				if isPerfect(res.Score) {
					w := expr
					winner = &w
				}
			} else {
				if inFlight >= cfg.BatchSize {
					drainOne()
				}
				pool.Submit(workerpool.Task{Node: child, Expr: expr})
				inFlight++
			}
			if better := bestCandidate(tr, child, bestIndex); better != bestIndex {
				bestIndex = better
			}
			if winner != nil {
				break
			}
		}

		if usePool {
			for inFlight > 0 && winner == nil {
				drainOne()
			}
			if pool.ActiveWorkers() < cfg.NThreads {
				log.WithFields(logrus.Fields{
					"active": pool.ActiveWorkers(),
					"wanted": cfg.NThreads,
				}).Warn("running with reduced worker parallelism")
			}
		}

		if winner != nil {
			break
		}

		// Rebuild frontier from current tree state, excluding retired
		// finite leaves.
		frontier.RebuildExcept(q, tr, retired)

		log.WithFields(logrus.Fields{
			"run":            run,
			"expanded_nodes": tr.Len(),
			"best_score":     tr.Node(bestIndex).Score.Value,
		}).Debug("synthesis iteration complete")
	}

	best := tr.Node(bestIndex)
	return Result{
		Winner:        winner,
		Best:          best.Expr,
		BestScore:     numericScore(best.Score),
		ExpandedNodes: tr.Len(),
	}
}

func isPerfect(s score.Score) bool {
	return s.Tag == score.TagCombined && s.Value == 1.0
}

func numericScore(s score.Score) float32 {
	if s.Tag == score.TagUnsat || s.Tag == score.TagUnknown {
		return 0
	}
	return s.Value
}

// bestCandidate compares node candidate against current, returning
// whichever is better among finite, scored leaves.
func bestCandidate(tr *tree.Tree, candidate, current int) int {
	cNode := tr.Node(candidate)
	if !ast.IsFinite(cNode.Expr) {
		return current
	}
	curNode := tr.Node(current)
	if score.Less(curNode.Score, cNode.Score) {
		return candidate
	}
	return current
}
