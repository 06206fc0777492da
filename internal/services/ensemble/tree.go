package ensemble

import (
	"slices"
)

// minGain is the smallest squared-error reduction accepted for a split.
const minGain = 1e-12

// TreeParams bounds the growth of a regression tree.
type TreeParams struct {
	MaxDepth       int
	MinSamplesLeaf int
}

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// Tree is a fitted CART regression tree using squared error.
type Tree struct {
	nodes []treeNode
}

// Predict walks the tree for one row.
func (t *Tree) Predict(row []float64) float64 {
	if t == nil || len(t.nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	params     TreeParams
	nodes      []treeNode
	importance []float64
}

// fitTree grows a tree over the rows in idx. Squared-error reductions are
// added to importance per feature when importance is non-nil.
func fitTree(X [][]float64, y []float64, idx []int, params TreeParams, importance []float64) *Tree {
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	b := &treeBuilder{X: X, y: y, params: params, importance: importance}
	b.grow(slices.Clone(idx), 0)
	return &Tree{nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{leaf: true, value: b.mean(idx)})

	if depth >= b.params.MaxDepth || len(idx) < 2*b.params.MinSamplesLeaf {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(idx)
	if !ok || gain <= minGain {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return id
	}
	if b.importance != nil {
		b.importance[feature] += gain
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return id
}

// bestSplit scans every feature for the threshold maximizing the reduction
// in squared error. Ties keep the lowest feature index.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	parent := total * total / float64(n)

	order := slices.Clone(idx)
	minLeaf := b.params.MinSamplesLeaf
	cols := len(b.X[idx[0]])

	for f := 0; f < cols; f++ {
		slices.SortStableFunc(order, func(a, c int) int {
			switch va, vc := b.X[a][f], b.X[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.y[order[k]]
			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			cur, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := total - leftSum
			g := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - parent
			if g > gain {
				feature, threshold, gain, ok = f, (cur+next)/2, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}
