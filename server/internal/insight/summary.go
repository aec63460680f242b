package insight

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/compute"
)

// Summarize derives the whole-set facts and the narrative from groups.
//
// Best and worst are chosen by mean OEE; ties go to the first group in order.
// The recoverable figures apply model group-to-group: the worst group's OEE is
// lifted to the best group's OEE at the worst group's output. A nil model
// means compute.LinearExtrapolation.
func Summarize(groups []types.Group, p types.Parameters, model compute.CapacityModel) types.Summary {
	var s types.Summary
	if len(groups) == 0 {
		return s
	}
	if model == nil {
		model = compute.LinearExtrapolation
	}

	best := lo.MaxBy(groups, func(a, b types.Group) bool { return a.MeanOEE > b.MeanOEE })
	worst := lo.MinBy(groups, func(a, b types.Group) bool { return a.MeanOEE < b.MeanOEE })
	s.Best, s.Worst = best.Key, worst.Key

	highest := lo.MaxBy(groups, func(a, b types.Group) bool { return a.UnitEnergy > b.UnitEnergy })
	positive := lo.Filter(groups, func(g types.Group, _ int) bool { return g.UnitEnergy > 0 })
	if len(positive) > 0 {
		lowest := lo.MinBy(positive, func(a, b types.Group) bool { return a.UnitEnergy < b.UnitEnergy })
		s.HighestEnergyGroup, s.LowestEnergyGroup = highest.Key, lowest.Key
		s.EnergyCostMultiplier = compute.Finite(highest.UnitEnergy / lowest.UnitEnergy)
	}

	s.RecoverableOutput = math.Max(0, compute.Finite(model(worst.MeanOEE, best.MeanOEE, worst.OutputQty, 1)))
	s.RecoverableRevenue = compute.Finite(s.RecoverableOutput * p.UnitMargin)

	s.TotalEnergyLoss = compute.Finite(lo.SumBy(groups, func(g types.Group) float64 { return g.EnergyLoss }))
	s.TotalLoss = compute.Finite(lo.SumBy(groups, func(g types.Group) float64 { return g.TotalLoss }))

	s.Narrative = narrate(s, best, worst)
	return s
}

// Period returns the earliest and latest record date, or empty strings when
// no record is dated.
func Period(records []types.Enriched) (start, end string) {
	dates := lo.FilterMap(records, func(r types.Enriched, _ int) (string, bool) {
		return r.Date, r.Date != ""
	})
	if len(dates) == 0 {
		return "", ""
	}
	return lo.Min(dates), lo.Max(dates)
}

func narrate(s types.Summary, best, worst types.Group) types.Narrative {
	n := types.Narrative{
		Findings: []string{},
		Actions:  []string{},
	}

	if best.Key == worst.Key {
		n.Headline = fmt.Sprintf("%s runs at %s mean OEE with no peer to compare against.", best.Key, percent(best.MeanOEE))
	} else {
		n.Headline = fmt.Sprintf("%s leads at %s mean OEE; %s trails at %s.",
			best.Key, percent(best.MeanOEE), worst.Key, percent(worst.MeanOEE))
	}

	n.Findings = append(n.Findings, fmt.Sprintf(
		"%s performs best with a mean OEE of %s and %.4f kWh per unit.",
		best.Key, percent(best.MeanOEE), best.UnitEnergy))
	if best.Key != worst.Key {
		n.Findings = append(n.Findings, fmt.Sprintf(
			"%s performs worst with a mean OEE of only %s.", worst.Key, percent(worst.MeanOEE)))
	}
	if s.EnergyCostMultiplier > 0 && s.HighestEnergyGroup != s.LowestEnergyGroup {
		n.Findings = append(n.Findings, fmt.Sprintf(
			"%s uses %.2fx the energy per unit of %s.",
			s.HighestEnergyGroup, s.EnergyCostMultiplier, s.LowestEnergyGroup))
	}
	n.Findings = append(n.Findings, fmt.Sprintf(
		"Bringing every record to the benchmark unit energy would have saved %s in energy cost.",
		money(s.TotalEnergyLoss)))
	if s.RecoverableOutput > 0 {
		n.Findings = append(n.Findings, fmt.Sprintf(
			"Lifting %s to the OEE of %s would add about %s units, worth %s.",
			worst.Key, best.Key, quantity(s.RecoverableOutput), money(s.RecoverableRevenue)))
	}

	if best.Key != worst.Key {
		n.Actions = append(n.Actions,
			fmt.Sprintf("%s: if unit energy is high, check for standby time with machines left powered on.", worst.Key),
			fmt.Sprintf("%s: review the error codes to confirm whether frequent short stops are lowering OEE.", worst.Key),
			fmt.Sprintf("Export the parameter settings of %s as the standard operating parameters for %s.", best.Key, worst.Key),
		)
	}
	return n
}
