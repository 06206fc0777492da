package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrNotFitted is returned when predicting with a bundle that was never trained.
var ErrNotFitted = errors.New("ensemble: model bundle is not fitted")

const (
	ModelBoosting = "gbm"
	ModelForest   = "rf"
)

// Regressor predicts a target from one scaled feature row.
type Regressor interface {
	Predict(row []float64) float64
}

// Importancer is implemented by regressors with native feature importances.
type Importancer interface {
	FeatureImportances() []float64
}

// Model is a named fitted regressor inside a bundle.
type Model struct {
	Name      string
	Regressor Regressor
}

// Options configures Train.
type Options struct {
	Boosting BoostingParams
	Forest   ForestParams
	// ValidationFraction is the trailing share of rows used to weight models.
	ValidationFraction float64
}

// DefaultOptions returns the production hyperparameters.
func DefaultOptions() Options {
	return Options{
		Boosting:           BoostingParams{Rounds: 100, LearningRate: 0.1, MaxDepth: 4, MinSamplesLeaf: 1},
		Forest:             ForestParams{Trees: 100, MaxDepth: 10, MinSamplesLeaf: 1, Seed: 42},
		ValidationFraction: 0.3,
	}
}

// Bundle is an immutable trained ensemble. The zero value is unfitted.
type Bundle struct {
	scaler  Scaler
	models  []Model
	weights []float64
}

// Predict returns the weighted average of every model on the scaled row.
func (b Bundle) Predict(row []float64) (float64, error) {
	if len(b.models) == 0 {
		return 0, ErrNotFitted
	}
	if len(row) != b.scaler.Width() {
		return 0, fmt.Errorf("ensemble: row has %d features, bundle expects %d", len(row), b.scaler.Width())
	}
	scaled := b.scaler.Transform(row)
	var out float64
	for i, m := range b.models {
		out += b.weights[i] * m.Regressor.Predict(scaled)
	}
	return out, nil
}

// Models returns the fitted base models in fixed order.
func (b Bundle) Models() []Model {
	return append([]Model(nil), b.models...)
}

// Weights returns the model weights keyed by model name.
func (b Bundle) Weights() map[string]float64 {
	out := make(map[string]float64, len(b.models))
	for i, m := range b.models {
		out[m.Name] = b.weights[i]
	}
	return out
}

type fitFunc func(ctx context.Context, X [][]float64, y []float64) (Regressor, error)

func (o Options) fitters() []struct {
	name string
	fit  fitFunc
} {
	return []struct {
		name string
		fit  fitFunc
	}{
		{ModelBoosting, func(ctx context.Context, X [][]float64, y []float64) (Regressor, error) {
			return FitGradientBoosting(ctx, X, y, o.Boosting)
		}},
		{ModelForest, func(ctx context.Context, X [][]float64, y []float64) (Regressor, error) {
			return FitRandomForest(ctx, X, y, o.Forest)
		}},
	}
}

// Train scales X, fits every base model on all rows and weights them by
// their error on a trailing validation slice. Probe copies fitted on the
// leading rows produce those errors. All fits run concurrently.
func Train(ctx context.Context, X [][]float64, y []float64, opts Options) (Bundle, error) {
	if err := checkShape(X, y); err != nil {
		return Bundle{}, err
	}
	for i, row := range X {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Bundle{}, fmt.Errorf("ensemble: non-finite feature in row %d", i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Bundle{}, fmt.Errorf("ensemble: non-finite target in row %d", i)
		}
	}

	scaler := FitScaler(X)
	Xs := scaler.TransformAll(X)

	n := len(y)
	frac := opts.ValidationFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.3
	}
	split := int(float64(n) * (1 - frac))
	probe := split > 0 && split < n

	fitters := opts.fitters()
	full := make([]Regressor, len(fitters))
	probes := make([]Regressor, len(fitters))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fitters {
		i, f := i, f
		g.Go(func() error {
			m, err := f.fit(gctx, Xs, y)
			if err != nil {
				return fmt.Errorf("fit %s: %w", f.name, err)
			}
			full[i] = m
			return nil
		})
		if probe {
			g.Go(func() error {
				m, err := f.fit(gctx, Xs[:split], y[:split])
				if err != nil {
					return fmt.Errorf("fit %s probe: %w", f.name, err)
				}
				probes[i] = m
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}

	weights := uniformWeights(len(fitters))
	if probe {
		errs := make([]float64, len(fitters))
		for i, m := range probes {
			errs[i] = meanAbsError(m, Xs[split:], y[split:])
		}
		weights = inverseErrorWeights(errs)
	}

	models := make([]Model, len(fitters))
	for i, f := range fitters {
		models[i] = Model{Name: f.name, Regressor: full[i]}
	}
	return Bundle{scaler: scaler, models: models, weights: weights}, nil
}

// inverseErrorWeights gives each model 1 - e_i/sum(e), renormalized.
// Degenerate inputs fall back to uniform weights.
func inverseErrorWeights(errs []float64) []float64 {
	var total float64
	for _, e := range errs {
		if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
			return uniformWeights(len(errs))
		}
		total += e
	}
	if total == 0 {
		return uniformWeights(len(errs))
	}
	w := make([]float64, len(errs))
	var sum float64
	for i, e := range errs {
		w[i] = 1 - e/total
		sum += w[i]
	}
	if sum <= 0 {
		return uniformWeights(len(errs))
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func meanAbsError(m Regressor, X [][]float64, y []float64) float64 {
	var s float64
	for i, row := range X {
		s += math.Abs(m.Predict(row) - y[i])
	}
	return s / float64(len(y))
}

func checkShape(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.New("ensemble: no training rows")
	}
	if len(X) != len(y) {
		return fmt.Errorf("ensemble: %d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return errors.New("ensemble: empty feature rows")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("ensemble: row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return nil
}
