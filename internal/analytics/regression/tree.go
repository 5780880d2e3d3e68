package regression

import (
	"sort"
)

// minGain is the smallest score improvement that justifies a split
const minGain = 1e-12

// treeNode is one node of a flattened binary tree. Leaves have Feature -1.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// regressionTree is a CART tree: splits minimise squared error and leaves
// hold the mean target.
type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeGrower struct {
	X        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	nodes    []treeNode
}

// growTree fits a tree on the rows of X selected by idx. idx may contain
// repeated rows for bootstrap samples.
func growTree(X [][]float64, y []float64, idx []int, maxDepth, minLeaf int) *regressionTree {
	if minLeaf < 1 {
		minLeaf = 1
	}
	g := &treeGrower{X: X, y: y, maxDepth: maxDepth, minLeaf: minLeaf}
	g.build(append([]int(nil), idx...), 0)
	return &regressionTree{Nodes: g.nodes}
}

func (g *treeGrower) leafValue(sum float64, n int) float64 {
	return sum / float64(n)
}

func (g *treeGrower) score(sum float64, n int) float64 {
	return sum * sum / float64(n)
}

func (g *treeGrower) build(idx []int, depth int) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, treeNode{Feature: -1})

	sum := 0.0
	pure := true
	for _, i := range idx {
		sum += g.y[i]
		if g.y[i] != g.y[idx[0]] {
			pure = false
		}
	}
	g.nodes[id].Value = g.leafValue(sum, len(idx))

	if pure || len(idx) < 2*g.minLeaf || (g.maxDepth > 0 && depth >= g.maxDepth) {
		return id
	}

	feature, threshold, ok := g.bestSplit(idx, sum)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if g.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	g.nodes[id] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (g *treeGrower) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	parent := g.score(total, n)
	bestGain := minGain
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, n)
	for f := range g.X[idx[0]] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.X[sorted[a]][f] < g.X[sorted[b]][f]
		})

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += g.y[sorted[k]]
			nl := k + 1
			if nl < g.minLeaf || n-nl < g.minLeaf {
				continue
			}
			lo, hi := g.X[sorted[k]][f], g.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			gain := g.score(leftSum, nl) + g.score(total-leftSum, n-nl) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = splitPoint(lo, hi)
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// splitPoint returns a threshold t with lo <= t < hi. The midpoint of
// adjacent floats rounds to hi, in which case lo is used.
func splitPoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t >= hi {
		return lo
	}
	return t
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Feature < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

func (t *regressionTree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		node := t.Nodes[i]
		if node.Feature < 0 {
			return 0
		}
		l, r := walk(node.Left), walk(node.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}
