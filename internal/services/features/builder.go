package features

import (
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Lags are the look-back offsets, in days, exposed as y_lagN features.
var Lags = [...]int{1, 2, 3, 7, 14, 30}

// RollingWindow is the number of prior days summarized by the rolling features.
const RollingWindow = 7

var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{
		"dayofweek", "dayofyear", "day_of_month", "week_of_year",
		"month", "quarter", "year",
		"is_weekend", "is_month_start", "is_month_end", "is_year_start", "is_year_end",
		"is_holiday", "is_rainy_season", "is_dry_season",
		"is_school_holiday", "is_back_to_school", "is_last_week",
	}
	for _, l := range Lags {
		names = append(names, "y_lag"+strconv.Itoa(l))
	}
	suffix := "_" + strconv.Itoa(RollingWindow)
	return append(names, "rolling_mean"+suffix, "rolling_std"+suffix, "rolling_max"+suffix)
}

// Vector is a feature row aligned to Builder.FeatureNames.
type Vector []float64

// Builder derives feature vectors for a day from its date and prior history.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	loc   Locale
	index map[string]int
}

func NewBuilder(loc Locale) *Builder {
	idx := make(map[string]int, len(featureNames))
	for i, n := range featureNames {
		idx[n] = i
	}
	return &Builder{loc: loc.clone(), index: idx}
}

// Locale returns a copy of the calendar in use.
func (b *Builder) Locale() Locale { return b.loc.clone() }

// FeatureNames returns the ordered feature names.
func (b *Builder) FeatureNames() []string { return slices.Clone(featureNames) }

// Index returns the column of name, or -1.
func (b *Builder) Index(name string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	return -1
}

// Map returns a name-keyed view of v.
func (b *Builder) Map(v Vector) map[string]float64 {
	out := make(map[string]float64, len(v))
	for i, name := range featureNames {
		if i < len(v) {
			out[name] = v[i]
		}
	}
	return out
}

// Row builds the features of date. history holds the quantities of the
// contiguous days ending the day before date; nothing at or after date is read.
func (b *Builder) Row(date time.Time, history []float64) Vector {
	date = Day(date)
	row := make(Vector, 0, len(featureNames))

	dow := (int(date.Weekday()) + 6) % 7
	_, week := date.ISOWeek()
	month := date.Month()
	day := date.Day()

	row = append(row,
		float64(dow),
		float64(date.YearDay()),
		float64(day),
		float64(week),
		float64(month),
		float64((int(month)-1)/3+1),
		float64(date.Year()),
		flag(dow >= 5),
		flag(day == 1),
		flag(date.AddDate(0, 0, 1).Day() == 1),
		flag(month == time.January && day <= 15),
		flag(month == time.December && day >= 15),
		flag(b.loc.IsHoliday(date)),
		flag(b.loc.RainyMonths.Has(month)),
		flag(b.loc.DryMonths.Has(month)),
		flag(b.loc.SchoolHolidayMonths.Has(month)),
		flag(b.loc.isBackToSchool(date)),
		flag(b.loc.PaydayFrom > 0 && day >= b.loc.PaydayFrom),
	)

	n := len(history)
	for _, l := range Lags {
		v := 0.0
		if n >= l {
			v = history[n-l]
		}
		row = append(row, v)
	}

	mean, std, peak := rolling(history)
	return append(row, mean, std, peak)
}

// Matrix builds one row per day of s, each from the days strictly before it.
func (b *Builder) Matrix(s Series) [][]float64 {
	values := s.Values()
	out := make([][]float64, len(s))
	for t, p := range s {
		out[t] = b.Row(p.Date, values[:t])
	}
	return out
}

func rolling(history []float64) (mean, std, peak float64) {
	start := len(history) - RollingWindow
	if start < 0 {
		start = 0
	}
	window := history[start:]
	if len(window) == 0 {
		return 0, 0, 0
	}
	mean = stat.Mean(window, nil)
	if len(window) > 1 {
		std = stat.StdDev(window, nil)
	}
	return mean, std, floats.Max(window)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
