package compute

import (
	"math"

	"github.com/plantlens/plantlens/pkg/types"
)

// minStabilitySamples is the smallest group for which a standard deviation is
// defined.
const minStabilitySamples = 2

// CoefficientOfVariation returns sample stddev / mean * 100.
// Fewer than two values, or a zero mean, yield 0.
func CoefficientOfVariation(values []float64) float64 {
	n := len(values)
	if n < minStabilitySamples {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if mean == 0 || math.IsInf(mean, 0) {
		return 0
	}

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return Finite(math.Sqrt(ss/float64(n-1)) / mean * 100)
}

// Stability returns a copy of groups with CV set from the OEE of each group's
// member records.
func Stability(records []types.Enriched, groups []types.Group, dim Dimension) []types.Group {
	oees := make(map[string][]float64, len(groups))
	for _, r := range records {
		k := dim.Key(r.Record)
		oees[k] = append(oees[k], r.OEE)
	}

	out := make([]types.Group, len(groups))
	for i, g := range groups {
		g.CV = CoefficientOfVariation(oees[g.Key])
		out[i] = g
	}
	return out
}
