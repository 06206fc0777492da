package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"DemandCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is matched by every InsufficientDataError.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports how many daily points were available.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d days, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// outlierSigma is the clipping distance from the mean in standard deviations.
const outlierSigma = 3.0

// Point is one calendar day of demand.
type Point struct {
	Date     time.Time
	Quantity float64
}

// Series is a gap-free run of consecutive days in ascending order.
type Series []Point

// Values returns the quantities in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Quantity
	}
	return out
}

// Last returns the most recent day. It panics on an empty series.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize aggregates observations per day, fills missing days with zero
// and replaces values further than 3 sigma from the mean with the mean.
func Normalize(obs []models.Observation, minDays int) (Series, error) {
	if len(obs) == 0 {
		return nil, &InsufficientDataError{Have: 0, Need: minDays}
	}

	byDay := make(map[time.Time]float64, len(obs))
	first, last := Day(obs[0].Date), Day(obs[0].Date)
	for _, o := range obs {
		d := Day(o.Date)
		q := o.Quantity
		if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			q = 0
		}
		byDay[d] += q
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	n := daysBetween(first, last) + 1
	if n < minDays {
		return nil, &InsufficientDataError{Have: n, Need: minDays}
	}

	out := make(Series, n)
	for i := range out {
		d := first.AddDate(0, 0, i)
		out[i] = Point{Date: d, Quantity: byDay[d]}
	}
	clipOutliers(out)
	return out, nil
}

func clipOutliers(s Series) {
	if len(s) < 2 {
		return
	}
	values := s.Values()
	mu, sigma := stat.MeanStdDev(values, nil)
	if !(sigma > 0) {
		return
	}
	lo, hi := mu-outlierSigma*sigma, mu+outlierSigma*sigma
	for i := range s {
		if s[i].Quantity < lo || s[i].Quantity > hi {
			s[i].Quantity = mu
		}
	}
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
