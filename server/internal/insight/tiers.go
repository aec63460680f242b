package insight

import (
	"github.com/plantlens/plantlens/pkg/types"
)

// Tier labels assigned by Classify.
const (
	TierCritical  = "critical"
	TierImproving = "improving"
	TierBenchmark = "benchmark"
)

// LowerCutoff is the fixed mean OEE below which a group is critical.
const LowerCutoff = 0.70

// tierOrder is the order recommendations are emitted in.
var tierOrder = []string{TierCritical, TierImproving, TierBenchmark}

// Classify maps a mean OEE onto a tier. The fixed lower cutoff is checked
// first, so a target below 0.70 cannot lift a group out of critical.
func Classify(meanOEE, target float64) string {
	switch {
	case meanOEE < LowerCutoff:
		return TierCritical
	case meanOEE < target:
		return TierImproving
	default:
		return TierBenchmark
	}
}

// Tiers returns a copy of groups with Tier set.
func Tiers(groups []types.Group, target float64) []types.Group {
	out := make([]types.Group, len(groups))
	for i, g := range groups {
		g.Tier = Classify(g.MeanOEE, target)
		out[i] = g
	}
	return out
}

// Quadrant labels of the OEE versus unit-energy matrix.
const (
	QuadrantEfficient  = "efficient"  // high OEE, low energy
	QuadrantOverloaded = "overloaded" // high OEE, high energy
	QuadrantUnderused  = "underused"  // low OEE, low energy
	QuadrantWasteful   = "wasteful"   // low OEE, high energy
)

// Quadrants returns a copy of groups placed on the efficiency matrix. The
// split lines are the mean OEE and mean unit energy across groups; a value
// equal to a mean counts as the better side.
func Quadrants(groups []types.Group) []types.Group {
	out := make([]types.Group, len(groups))
	if len(groups) == 0 {
		return out
	}

	var oeeSum, ueSum float64
	for _, g := range groups {
		oeeSum += g.MeanOEE
		ueSum += g.UnitEnergy
	}
	n := float64(len(groups))
	meanOEE, meanUE := oeeSum/n, ueSum/n

	for i, g := range groups {
		highOEE := g.MeanOEE >= meanOEE
		lowUE := g.UnitEnergy <= meanUE
		switch {
		case highOEE && lowUE:
			g.Quadrant = QuadrantEfficient
		case highOEE:
			g.Quadrant = QuadrantOverloaded
		case lowUE:
			g.Quadrant = QuadrantUnderused
		default:
			g.Quadrant = QuadrantWasteful
		}
		out[i] = g
	}
	return out
}
