package gbdt

import (
	"runtime"
	"sync"
)

// Node is one node of a regression tree stored in a flat slice. Internal
// nodes send x[Feature] <= Threshold left; NaN goes right. Leaves have
// Left == -1 and carry Value.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

func (n Node) isLeaf() bool { return n.Left < 0 }

// Tree is one boosting stage.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for !t.Nodes[i].isLeaf() {
		n := t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	leaves := 0
	for _, n := range t.Nodes {
		if n.isLeaf() {
			leaves++
		}
	}
	return leaves
}

// split is the best split found for a leaf.
type split struct {
	feature   int
	threshold float64
	gain      float64
	pos       int // samples [0, pos] of the feature order go left
}

// leaf is a growing leaf: its node slot, depth, gradient sums and the
// sample indices sorted by every feature.
type leaf struct {
	node   int
	depth  int
	g, h   float64
	sorted [][]int
	best   split
}

func (l *leaf) size() int { return len(l.sorted[0]) }

// grower builds one tree leaf-wise: at every step the leaf with the largest
// gain is split until NumLeaves is reached or no leaf can improve the loss.
type grower struct {
	params   Params
	x        [][]float64
	grad     []float64
	hess     []float64
	goesLeft []bool
	gains    []float64 // accumulated per feature
	workers  int
}

func newGrower(params Params, x [][]float64, gains []float64) *grower {
	return &grower{
		params:   params,
		x:        x,
		grad:     make([]float64, len(x)),
		hess:     make([]float64, len(x)),
		goesLeft: make([]bool, len(x)),
		gains:    gains,
		workers:  runtime.GOMAXPROCS(0),
	}
}

// grow fits a tree to the current gradients over the samples of rootSorted.
func (gr *grower) grow(rootSorted [][]int) *Tree {
	root := &leaf{sorted: rootSorted}
	for _, i := range rootSorted[0] {
		root.g += gr.grad[i]
		root.h += gr.hess[i]
	}

	tree := &Tree{Nodes: []Node{{Left: -1, Right: -1}}}
	leaves := []*leaf{root}
	gr.findSplit(root)

	for len(leaves) < gr.params.NumLeaves {
		bestIdx := -1
		for i, l := range leaves {
			if l.best.gain <= 0 {
				continue
			}
			if bestIdx < 0 || l.best.gain > leaves[bestIdx].best.gain {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		parent := leaves[bestIdx]
		left, right := gr.partition(parent)

		left.node = len(tree.Nodes)
		right.node = left.node + 1
		tree.Nodes[parent.node] = Node{
			Feature:   parent.best.feature,
			Threshold: parent.best.threshold,
			Left:      left.node,
			Right:     right.node,
		}
		tree.Nodes = append(tree.Nodes, Node{Left: -1, Right: -1}, Node{Left: -1, Right: -1})
		gr.gains[parent.best.feature] += parent.best.gain

		gr.findSplit(left)
		gr.findSplit(right)

		// children replace the parent in place to keep leaf order stable
		leaves[bestIdx] = left
		leaves = append(leaves, nil)
		copy(leaves[bestIdx+2:], leaves[bestIdx+1:])
		leaves[bestIdx+1] = right
	}

	lambda := gr.params.Lambda
	for _, l := range leaves {
		tree.Nodes[l.node].Value = -l.g / (l.h + lambda) * gr.params.LearningRate
	}
	return tree
}

// findSplit searches every feature for the best split of l. Features are
// scanned concurrently; results are merged in feature order so that ties
// resolve to the lowest feature index.
func (gr *grower) findSplit(l *leaf) {
	l.best = split{feature: -1}
	p := gr.params
	if p.MaxDepth > 0 && l.depth >= p.MaxDepth {
		return
	}
	if l.size() < 2*p.MinChildSamples || l.h < 2*p.MinChildWeight {
		return
	}

	nf := len(l.sorted)
	results := make([]split, nf)
	if l.size()*nf < 4096 || gr.workers == 1 {
		for f := 0; f < nf; f++ {
			results[f] = gr.scanFeature(l, f)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, gr.workers)
		for f := 0; f < nf; f++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(f int) {
				defer wg.Done()
				defer func() { <-sem }()
				results[f] = gr.scanFeature(l, f)
			}(f)
		}
		wg.Wait()
	}

	for _, r := range results {
		if r.feature >= 0 && r.gain > l.best.gain {
			l.best = r
		}
	}
}

// scanFeature walks the samples of l in increasing order of feature f and
// evaluates a threshold between every pair of distinct neighbouring values.
func (gr *grower) scanFeature(l *leaf, f int) split {
	p := gr.params
	order := l.sorted[f]
	best := split{feature: -1}
	parentScore := l.g * l.g / (l.h + p.Lambda)

	var gLeft, hLeft float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		gLeft += gr.grad[i]
		hLeft += gr.hess[i]

		v, next := gr.x[i][f], gr.x[order[k+1]][f]
		if v == next {
			continue
		}
		nLeft, nRight := k+1, len(order)-k-1
		if nLeft < p.MinChildSamples || nRight < p.MinChildSamples {
			continue
		}
		gRight, hRight := l.g-gLeft, l.h-hLeft
		if hLeft < p.MinChildWeight || hRight < p.MinChildWeight {
			continue
		}
		gain := gLeft*gLeft/(hLeft+p.Lambda) + gRight*gRight/(hRight+p.Lambda) - parentScore
		if gain > best.gain {
			best = split{feature: f, threshold: midpoint(v, next), gain: gain, pos: k}
		}
	}
	return best
}

// partition splits the per-feature orders of l into its two children. The
// relative order inside every feature list is kept, so no re-sorting is needed.
func (gr *grower) partition(l *leaf) (*leaf, *leaf) {
	order := l.sorted[l.best.feature]
	cut := l.best.pos + 1
	for k, i := range order {
		gr.goesLeft[i] = k < cut
	}

	nf := len(l.sorted)
	left := &leaf{depth: l.depth + 1, sorted: make([][]int, nf)}
	right := &leaf{depth: l.depth + 1, sorted: make([][]int, nf)}
	for f := 0; f < nf; f++ {
		ls := make([]int, 0, cut)
		rs := make([]int, 0, len(order)-cut)
		for _, i := range l.sorted[f] {
			if gr.goesLeft[i] {
				ls = append(ls, i)
			} else {
				rs = append(rs, i)
			}
		}
		left.sorted[f], right.sorted[f] = ls, rs
	}
	for _, i := range left.sorted[0] {
		left.g += gr.grad[i]
		left.h += gr.hess[i]
	}
	right.g, right.h = l.g-left.g, l.h-left.h
	return left, right
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t >= hi {
		return lo
	}
	return t
}
