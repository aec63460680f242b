package insight

import (
	"fmt"

	"github.com/plantlens/plantlens/pkg/types"
)

// Recommendations returns one recommendation per non-empty tier, in the order
// critical, improving, benchmark. Groups are classified against p.TargetOEE;
// any Tier already set on them is ignored.
func Recommendations(groups []types.Group, p types.Parameters) []types.Recommendation {
	members := make(map[string][]string, len(tierOrder))
	for _, g := range groups {
		tier := Classify(g.MeanOEE, p.TargetOEE)
		members[tier] = append(members[tier], g.Key)
	}

	var out []types.Recommendation
	for _, tier := range tierOrder {
		keys := members[tier]
		if len(keys) == 0 {
			continue
		}
		out = append(out, recommend(tier, keys, p))
	}
	return out
}

func recommend(tier string, keys []string, p types.Parameters) types.Recommendation {
	who := names(keys)
	rec := types.Recommendation{Tier: tier, Groups: keys}
	switch tier {
	case TierCritical:
		rec.Title = "Immediate intervention"
		rec.Text = fmt.Sprintf(
			"%s %s below %s OEE. Check whether machines idle on standby without powering down, "+
				"and pull the error codes to confirm whether frequent short stops are dragging availability down.",
			who, verb(keys, "runs", "run"), percent(LowerCutoff))
	case TierImproving:
		rec.Title = "Close the gap to target"
		rec.Text = fmt.Sprintf(
			"%s %s between %s and the %s target. Focus on changeover and speed losses; "+
				"every unit recovered is worth %s in margin.",
			who, verb(keys, "sits", "sit"), percent(LowerCutoff), percent(p.TargetOEE), money(p.UnitMargin))
	default:
		rec.Title = "Standardize on the benchmark"
		rec.Text = fmt.Sprintf(
			"%s %s the %s target. Export the parameter settings of %s as the standard operating parameters for the other groups.",
			who, verb(keys, "meets", "meet"), percent(p.TargetOEE), verb(keys, "this group", "these groups"))
	}
	return rec
}

func verb(keys []string, singular, plural string) string {
	if len(keys) == 1 {
		return singular
	}
	return plural
}
