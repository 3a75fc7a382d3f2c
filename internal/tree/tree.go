// Package tree implements the append-only search tree: an arena of
// nodes addressed by integer index, grounded on the
// original source's flat Vec<Node> with prev/next index fields
// (synth_tree.rs), translated here to a Go slice plus int handles so
// no parent/child pointers (and so no cycles) are representable.
package tree

import (
	"github.com/xermicus/r2deob/internal/ast"
	"github.com/xermicus/r2deob/internal/score"
)

// Node holds one tree entry. Index is the node's own identifier,
// assigned by insertion order; Parent of the root is the root itself.
type Node struct {
	Expr     ast.Expression
	Score    score.Score
	Index    int
	Parent   int
	Children []int

	// scored counts how many of this node's children have actually
	// contributed a finite score via PropagateScore so far. Derivation
	// adds every child of an expansion wave up front, then each child
	// is scored (and propagated) one at a time — using len(Children)
	// as the running-mean denominator would divide by children that
	// haven't been scored yet (or never will be, e.g. a sibling left
	// with an unfilled hole), skewing the average every time a wave
	// expands to more than one child before any of them are scored.
	scored int
}

// Tree is the append-only node arena. The zero value is not usable;
// construct with New.
type Tree struct {
	nodes []Node
}

// New creates a tree with a single root node: expression NonTerminal,
// score Unknown, self-parented.
func New() *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, Node{
		Expr:   ast.NonTerminal(),
		Score:  score.Unknown,
		Index:  0,
		Parent: 0,
	})
	return t
}

// Root is always index 0.
const Root = 0

// Len returns the number of nodes ever created.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns a copy of the node at index i.
func (t *Tree) Node(i int) Node {
	return t.nodes[i]
}

// SetScore mutates the score of node i in place. Only the driver (or
// a worker result applied by the driver) calls this — workers never
// touch the tree directly.
func (t *Tree) SetScore(i int, s score.Score) {
	t.nodes[i].Score = s
}

// AddChild appends a node with the given expression under parent,
// returning its index. Invariant: the returned index always exceeds
// parent (tree growth is strictly monotonic).
func (t *Tree) AddChild(parent int, e ast.Expression) int {
	index := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Expr:   e,
		Score:  score.Unknown,
		Index:  index,
		Parent: parent,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, index)
	return index
}

// IsFrontier reports whether node i currently has no children.
func (t *Tree) IsFrontier(i int) bool {
	return len(t.nodes[i].Children) == 0
}

// Frontier returns the index of every childless node, in index order.
func (t *Tree) Frontier() []int {
	out := make([]int, 0, len(t.nodes))
	for _, n := range t.nodes {
		if len(n.Children) == 0 {
			out = append(out, n.Index)
		}
	}
	return out
}

// PropagateScore walks the parent chain starting at node i up to the
// root, applying a running-mean aggregation: at each step, the
// parent's score becomes (parentScore*(c-1) + childScore)/c, where c
// is the number of children that have contributed a score to this
// parent so far (including this one) and childScore is the
// (already updated) score of the node just walked from. The root's
// self-parent link terminates the walk.
func (t *Tree) PropagateScore(i int) {
	node := i
	for {
		parent := t.nodes[node].Parent
		if parent == node {
			return // reached the self-parented root
		}
		cv, ok := numericValue(t.nodes[node].Score)
		if !ok {
			return
		}
		pnode := &t.nodes[parent]
		prev, _ := numericValue(pnode.Score)
		pnode.scored++
		c := pnode.scored
		updated := (prev*float32(c-1) + cv) / float32(c)
		pnode.Score = score.Score{Tag: score.TagCombined, Value: updated}
		node = parent
	}
}

func numericValue(s score.Score) (float32, bool) {
	if s.Tag == score.TagUnsat || s.Tag == score.TagUnknown {
		return 0, false
	}
	return s.Value, true
}
