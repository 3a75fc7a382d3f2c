// Package frontier implements the frontier queue Q: a
// max-heap over (score, index) pairs for the tree's childless nodes,
// using container/heap — the idiomatic stdlib priority queue, and a
// faithful match for the original source's plain Vec<usize> queue
// (synth_tree.rs), with a concrete tie-break ordering the
// original left informal.
package frontier

import (
	"container/heap"

	"github.com/xermicus/r2deob/internal/score"
	"github.com/xermicus/r2deob/internal/tree"
)

// entry is one (score, index) pair held by the heap.
type entry struct {
	s     score.Score
	index int
}

// items implements heap.Interface as a max-heap on score, with ties
// broken by smaller index first for determinism.
type items []entry

func (it items) Len() int { return len(it) }

func (it items) Less(i, j int) bool {
	// heap.Interface's Less defines the "pop first" element; we want
	// the highest score popped first, with smaller index breaking ties.
	// Equality must be judged by score.Less in both directions, not by
	// struct identity: Unsat and Unknown carry different tags but are
	// equally unscored, and treating them as distinct would make i<j
	// and j<i both report true, breaking the heap's ordering invariant.
	iWorse := score.Less(it[i].s, it[j].s)
	jWorse := score.Less(it[j].s, it[i].s)
	if !iWorse && !jWorse {
		return it[i].index < it[j].index
	}
	return jWorse
}

func (it items) Swap(i, j int) { it[i], it[j] = it[j], it[i] }

func (it *items) Push(x interface{}) {
	*it = append(*it, x.(entry))
}

func (it *items) Pop() interface{} {
	old := *it
	n := len(old)
	e := old[n-1]
	*it = old[:n-1]
	return e
}

// Frontier is the max-heap over frontier nodes.
type Frontier struct {
	h items
}

// New creates an empty frontier queue.
func New() *Frontier {
	f := &Frontier{}
	heap.Init(&f.h)
	return f
}

// Len returns the number of queued nodes.
func (f *Frontier) Len() int {
	return f.h.Len()
}

// Empty reports whether the queue has no nodes — a terminal failure
// state for the driver.
func (f *Frontier) Empty() bool {
	return f.h.Len() == 0
}

// Pop removes and returns the index of the highest-scored node.
func (f *Frontier) Pop() int {
	e := heap.Pop(&f.h).(entry)
	return e.index
}

// Rebuild clears Q and reinserts every node with no children — the
// driver must rebuild Q after every expansion wave.
func Rebuild(f *Frontier, t *tree.Tree) {
	RebuildExcept(f, t, nil)
}

// RebuildExcept is Rebuild, but omits any index present in skip. The
// driver uses this to permanently retire finite leaves it has already
// selected once: a finite expression can never derive further
// children (ast.Derive on it is always empty), so re-offering it would
// let the same best-scoring terminal dominate every future Select
// indefinitely instead of giving other candidates a turn.
func RebuildExcept(f *Frontier, t *tree.Tree, skip map[int]bool) {
	f.h = f.h[:0]
	heap.Init(&f.h)
	for _, idx := range t.Frontier() {
		if skip[idx] {
			continue
		}
		heap.Push(&f.h, entry{s: t.Node(idx).Score, index: idx})
	}
}
