package forecast

import (
	"fmt"
	"math"

	"DemandCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// BandPolicy selects how lower and upper bounds are derived from points.
type BandPolicy string

const (
	BandFixed    BandPolicy = "fixed"
	BandResidual BandPolicy = "residual"
)

const (
	ensembleLowerMul = 0.8
	ensembleUpperMul = 1.3
	// residualZ is the two-sided 95% normal quantile.
	residualZ = 1.96
	// minResiduals is the smallest held-out sample accepted by BandResidual.
	minResiduals = 2
)

func ParseBandPolicy(s string) (BandPolicy, error) {
	switch BandPolicy(s) {
	case "", BandFixed:
		return BandFixed, nil
	case BandResidual:
		return BandResidual, nil
	default:
		return "", fmt.Errorf("unknown band policy %q", s)
	}
}

// applyBands fills Lower and Upper in place and returns the policy that was
// actually applied.
func applyBands(points []models.ForecastPoint, policy BandPolicy, residuals []float64) BandPolicy {
	if policy == BandResidual && len(residuals) >= minResiduals {
		sigma := stat.StdDev(residuals, nil)
		if sigma >= 0 && !math.IsNaN(sigma) {
			half := residualZ * sigma
			for i := range points {
				points[i].Lower = math.Max(0, points[i].Point-half)
				points[i].Upper = points[i].Point + half
			}
			return BandResidual
		}
	}
	multiplyBands(points, ensembleLowerMul, ensembleUpperMul)
	return BandFixed
}

func multiplyBands(points []models.ForecastPoint, lower, upper float64) {
	for i := range points {
		points[i].Lower = points[i].Point * lower
		points[i].Upper = points[i].Point * upper
	}
}
