package ensemble

import (
	"context"
	"fmt"
	"math/rand"
)

// ForestParams configures a bootstrap-aggregated regression forest.
type ForestParams struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

// RandomForest averages trees fitted on bootstrap resamples.
type RandomForest struct {
	trees      []*Tree
	importance []float64
}

var (
	_ Regressor   = (*RandomForest)(nil)
	_ Importancer = (*RandomForest)(nil)
)

// FitRandomForest is deterministic for a given seed.
func FitRandomForest(ctx context.Context, X [][]float64, y []float64, p ForestParams) (*RandomForest, error) {
	if err := checkShape(X, y); err != nil {
		return nil, err
	}
	if p.Trees <= 0 {
		return nil, fmt.Errorf("random forest: tree count must be positive")
	}

	n := len(y)
	cols := len(X[0])
	rng := rand.New(rand.NewSource(p.Seed))
	params := TreeParams{MaxDepth: p.MaxDepth, MinSamplesLeaf: p.MinSamplesLeaf}

	m := &RandomForest{trees: make([]*Tree, 0, p.Trees), importance: make([]float64, cols)}
	sample := make([]int, n)
	treeImp := make([]float64, cols)

	for t := 0; t < p.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		clear(treeImp)
		m.trees = append(m.trees, fitTree(X, y, sample, params, treeImp))

		var total float64
		for _, v := range treeImp {
			total += v
		}
		if total > 0 {
			for j, v := range treeImp {
				m.importance[j] += v / total
			}
		}
	}
	for j := range m.importance {
		m.importance[j] /= float64(p.Trees)
	}
	return m, nil
}

func (m *RandomForest) Predict(row []float64) float64 {
	if len(m.trees) == 0 {
		return 0
	}
	var s float64
	for _, t := range m.trees {
		s += t.Predict(row)
	}
	return s / float64(len(m.trees))
}

// FeatureImportances returns the mean normalized impurity decrease per feature.
func (m *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), m.importance...)
}
