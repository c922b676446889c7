package worker

import (
	"sort"

	"github.com/samber/lo"

	"github.com/daimoniac/swaudit/internal/types"
)

// mergeOutcomes joins every batch outcome without short-circuiting: successful
// batches contribute matches and frequencies, failed ones become BatchFailures.
func mergeOutcomes(runID string, batches int, outcomes <-chan batchOutcome) *RunResult {
	result := &RunResult{
		RunID:            runID,
		ProductFrequency: make(map[string]int),
		Batches:          batches,
	}

	for out := range outcomes {
		if out.err != nil {
			result.Failures = append(result.Failures, types.BatchFailure{
				Stage: types.StageMatch,
				Batch: out.task.Batch,
				Start: out.task.Start,
				End:   out.task.End,
				Error: out.err.Error(),
			})
			continue
		}
		result.Matches = append(result.Matches, out.output.matches...)
		for product, n := range out.output.frequency {
			result.ProductFrequency[product] += n
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Index < result.Matches[j].Index
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Batch < result.Failures[j].Batch
	})
	return result
}

// ProductCount is one row of the product frequency table.
type ProductCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RankProducts orders the frequency table by count descending, then name.
func RankProducts(freq map[string]int) []ProductCount {
	out := lo.MapToSlice(freq, func(name string, count int) ProductCount {
		return ProductCount{Name: name, Count: count}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RankedProducts returns the run's products in frequency order.
func (r *RunResult) RankedProducts() []ProductCount {
	return RankProducts(r.ProductFrequency)
}
