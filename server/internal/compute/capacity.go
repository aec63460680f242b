package compute

import "math"

// CapacityModel prices the output foregone because an entity ran at oee
// instead of target. Implementations must return a value >= 0.
type CapacityModel func(oee, target, output, margin float64) float64

// LinearExtrapolation assumes output scales linearly with OEE: reaching target
// would have produced output*target/oee units at the same margin.
//
// It applies only when 0 < oee < target. Entities at or above target score 0,
// and zero OEE is excluded because the ratio is undefined.
func LinearExtrapolation(oee, target, output, margin float64) float64 {
	if oee <= 0 || oee >= target {
		return 0
	}
	return math.Max(0, (target-oee)/oee*output*margin)
}

