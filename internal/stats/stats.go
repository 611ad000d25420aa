// Package stats holds the shared statistics primitives behind the
// threshold, pattern, and location-profile analyzers.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Quantile returns the p-quantile of values using linear interpolation.
// The input does not need to be sorted.
func Quantile(p float64, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Normalize converts counts into a probability distribution. A zero
// total yields the zero distribution, never NaN.
func Normalize(counts []int64) []float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, len(counts))
	if total == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = float64(c) / float64(total)
	}
	return dist
}

// Concentration measures how tightly mass clusters across a probability
// distribution: 0 for uniform, 1 for a single spike. Defined as one
// minus the normalized Shannon entropy.
func Concentration(dist []float64) float64 {
	if len(dist) < 2 {
		return 0
	}
	var total float64
	for _, p := range dist {
		total += p
	}
	if total == 0 {
		return 0
	}
	entropy := stat.Entropy(dist)
	maxEntropy := math.Log(float64(len(dist)))
	c := 1 - entropy/maxEntropy
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// TopShare returns the share of mass carried by the k largest slots.
func TopShare(dist []float64, k int) float64 {
	if k <= 0 || len(dist) == 0 {
		return 0
	}
	sorted := make([]float64, len(dist))
	copy(sorted, dist)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if k > len(sorted) {
		k = len(sorted)
	}
	var share float64
	for _, p := range sorted[:k] {
		share += p
	}
	return share
}

// ChiSquareUniform runs a goodness-of-fit test of the observed counts
// against a uniform null distribution and returns the test statistic
// and its p-value (len(counts)-1 degrees of freedom).
func ChiSquareUniform(counts []int64) (statistic, pValue float64) {
	n := len(counts)
	if n < 2 {
		return 0, 1
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0, 1
	}
	expected := float64(total) / float64(n)
	for _, c := range counts {
		diff := float64(c) - expected
		statistic += diff * diff / expected
	}
	dist := distuv.ChiSquared{K: float64(n - 1)}
	pValue = dist.Survival(statistic)
	return statistic, pValue
}

// ConfidenceLevel labels a p-value: high below 0.01, medium below 0.05,
// low otherwise.
func ConfidenceLevel(pValue float64) string {
	switch {
	case pValue < 0.01:
		return "high"
	case pValue < 0.05:
		return "medium"
	default:
		return "low"
	}
}
