package forecast

import (
	"sort"

	"DemandCast/internal/services/ensemble"
)

const (
	trendHighRatio = 1.2
	trendLowRatio  = 0.8

	MsgHigherDemand = "Higher than usual demand expected"
	MsgLowerDemand  = "Lower than usual demand expected"
	MsgStableDemand = "Stable demand pattern expected"
	MsgHoliday      = "Holiday season typically increases demand"
	MsgRainySeason  = "Rainy season may affect shopping patterns"
	MsgPayday       = "End-of-month payday may boost sales"
)

// Explain turns the first forecast day into human-readable notes. first is
// the named feature view of that day.
func Explain(first map[string]float64, firstPoint, lastActual float64) []string {
	out := make([]string, 0, 4)
	if lastActual > 0 {
		switch {
		case firstPoint > lastActual*trendHighRatio:
			out = append(out, MsgHigherDemand)
		case firstPoint < lastActual*trendLowRatio:
			out = append(out, MsgLowerDemand)
		default:
			out = append(out, MsgStableDemand)
		}
	}
	if first["is_holiday"] > 0 {
		out = append(out, MsgHoliday)
	}
	if first["is_rainy_season"] > 0 {
		out = append(out, MsgRainySeason)
	}
	if first["is_last_week"] > 0 {
		out = append(out, MsgPayday)
	}
	return out
}

// Importance aggregates native importances across models. Each model's
// vector is normalized to sum 1 before summing; the result is renormalized
// and cut to the topN largest, ties broken by name.
func Importance(models []ensemble.Model, names []string, topN int) map[string]float64 {
	agg := make([]float64, len(names))
	for _, m := range models {
		imp, ok := m.Regressor.(ensemble.Importancer)
		if !ok {
			continue
		}
		v := imp.FeatureImportances()
		var total float64
		for _, x := range v {
			total += x
		}
		if total <= 0 {
			continue
		}
		for j := 0; j < len(v) && j < len(agg); j++ {
			agg[j] += v[j] / total
		}
	}

	var total float64
	for _, x := range agg {
		total += x
	}
	if total <= 0 {
		return map[string]float64{}
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if agg[order[a]] != agg[order[b]] {
			return agg[order[a]] > agg[order[b]]
		}
		return names[order[a]] < names[order[b]]
	})
	if topN > 0 && topN < len(order) {
		order = order[:topN]
	}

	out := make(map[string]float64, len(order))
	for _, j := range order {
		out[names[j]] = agg[j] / total
	}
	return out
}
