package ingest

import (
	"math"
	"sort"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// Summary holds the per-metric statistics block.
type Summary struct {
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	P95       float64 `json:"p95"`
	GoodRatio float64 `json:"good_ratio"`
	PoorRatio float64 `json:"poor_ratio"`
}

// AggregateResult is the reduction of a flat record list.
type AggregateResult struct {
	Count    int                             `json:"count"`
	Averages map[string]float64              `json:"averages"`
	Ratings  map[string]map[model.Rating]int `json:"ratings"`
	Summary  map[string]Summary              `json:"performance_summary,omitempty"`
}

// Aggregate groups records by metric name and computes count, mean,
// min, max, nearest-rank p95 and good/poor ratios per group. An empty
// input yields {count:0, averages:{}, ratings:{}} with no summary.
func Aggregate(records []model.MetricRecord) AggregateResult {
	out := AggregateResult{
		Count:    len(records),
		Averages: map[string]float64{},
		Ratings:  map[string]map[model.Rating]int{},
	}
	if len(records) == 0 {
		return out
	}

	byName := map[string][]model.MetricRecord{}
	for _, r := range records {
		byName[r.Name] = append(byName[r.Name], r)
	}

	out.Summary = make(map[string]Summary, len(byName))
	for name, group := range byName {
		var sum float64
		min, max := math.Inf(1), math.Inf(-1)
		values := make([]float64, 0, len(group))
		ratings := map[model.Rating]int{}
		for _, r := range group {
			sum += r.Value
			if r.Value < min {
				min = r.Value
			}
			if r.Value > max {
				max = r.Value
			}
			values = append(values, r.Value)
			ratings[r.Rating]++
		}
		n := float64(len(group))
		avg := sum / n
		out.Averages[name] = avg
		out.Ratings[name] = ratings
		out.Summary[name] = Summary{
			Count:     len(group),
			Average:   avg,
			Min:       min,
			Max:       max,
			P95:       percentile(values, 95),
			GoodRatio: float64(ratings[model.RatingGood]) / n,
			PoorRatio: float64(ratings[model.RatingPoor]) / n,
		}
	}
	return out
}

// percentile selects by nearest rank: sort ascending, pick index
// ceil(p/100 * n) - 1 clamped to [0, n-1]. No interpolation; the result
// is always an observed value and is insensitive to input order.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
