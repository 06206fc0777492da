package ensemble

import (
	"context"
	"fmt"
)

// BoostingParams configures gradient boosting with squared loss.
type BoostingParams struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
}

// GradientBoosting is an additive model of shallow regression trees.
type GradientBoosting struct {
	base       float64
	rate       float64
	trees      []*Tree
	importance []float64
}

var (
	_ Regressor   = (*GradientBoosting)(nil)
	_ Importancer = (*GradientBoosting)(nil)
)

// FitGradientBoosting fits trees sequentially to the residuals of the
// running prediction, starting from the mean of y.
func FitGradientBoosting(ctx context.Context, X [][]float64, y []float64, p BoostingParams) (*GradientBoosting, error) {
	if err := checkShape(X, y); err != nil {
		return nil, err
	}
	if p.Rounds <= 0 || p.LearningRate <= 0 {
		return nil, fmt.Errorf("gradient boosting: rounds and learning rate must be positive")
	}

	n := len(y)
	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	m := &GradientBoosting{
		base:       base,
		rate:       p.LearningRate,
		trees:      make([]*Tree, 0, p.Rounds),
		importance: make([]float64, len(X[0])),
	}
	resid := make([]float64, n)
	params := TreeParams{MaxDepth: p.MaxDepth, MinSamplesLeaf: p.MinSamplesLeaf}

	for round := 0; round < p.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tree := fitTree(X, resid, idx, params, m.importance)
		m.trees = append(m.trees, tree)
		for i := range pred {
			pred[i] += p.LearningRate * tree.Predict(X[i])
		}
	}
	return m, nil
}

func (m *GradientBoosting) Predict(row []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.rate * t.Predict(row)
	}
	return out
}

// FeatureImportances returns the total squared-error reduction per feature.
func (m *GradientBoosting) FeatureImportances() []float64 {
	return append([]float64(nil), m.importance...)
}
