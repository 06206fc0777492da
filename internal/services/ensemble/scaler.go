package ensemble

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each column to zero mean and unit variance.
type Scaler struct {
	mean  []float64
	scale []float64
}

// FitScaler learns column means and population standard deviations.
// Constant columns get a scale of 1.
func FitScaler(X [][]float64) Scaler {
	if len(X) == 0 {
		return Scaler{}
	}
	cols := len(X[0])
	s := Scaler{mean: make([]float64, cols), scale: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		s.mean[j] = m
		if sd > 0 {
			s.scale[j] = sd
		} else {
			s.scale[j] = 1
		}
	}
	return s
}

// Width is the number of columns the scaler was fitted on.
func (s Scaler) Width() int { return len(s.mean) }

func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j >= len(s.mean) {
			out[j] = v
			continue
		}
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out
}

func (s Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}
