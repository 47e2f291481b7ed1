// Basic calculation functions
package calc

import "sort"

// Aggregate view of a set of measured rates
type RateSummary struct {
	Min         float64
	Max         float64
	Mean        float64
	TrimmedMean float64
	Count       int
}

// Summarizes measured rates, with the trimmed mean dropping trimPercent of
// extreme values from each end (post-sort)
func SummarizeRates(values []float64, trimPercent float64) (summary RateSummary) {
	n := len(values)
	if n == 0 {
		return
	}
	if trimPercent < 0 {
		trimPercent = 0
	}

	nums := make([]float64, n)
	copy(nums, values)
	sort.Float64s(nums)

	summary.Count = n
	summary.Min = nums[0]
	summary.Max = nums[n-1]

	var sum float64
	for _, v := range nums {
		sum += v
	}
	summary.Mean = sum / float64(n)

	// How many values to drop from each end
	trimCount := int(float64(n) * trimPercent)
	if trimCount*2 >= n {
		trimCount = (n - 1) / 2
	}

	var trimmedSum float64
	trimmed := nums[trimCount : n-trimCount]
	for _, v := range trimmed {
		trimmedSum += v
	}
	summary.TrimmedMean = trimmedSum / float64(len(trimmed))
	return
}
