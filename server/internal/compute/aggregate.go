package compute

import (
	"sort"

	"github.com/samber/lo"

	"github.com/plantlens/plantlens/pkg/types"
)

// Dimension is the record field an analysis groups by.
type Dimension string

const (
	DimensionFacility Dimension = types.FieldFacilityID
	DimensionEntity   Dimension = types.FieldEntityID
)

// Key returns the grouping value of r under d.
func (d Dimension) Key(r types.Record) string {
	if d == DimensionFacility {
		return r.FacilityID
	}
	return r.EntityID
}

// SelectDimension picks the grouping for a whole run: facility when more than
// one distinct facility is present, entity otherwise. It returns the matching
// scope label alongside.
func SelectDimension(records []types.Enriched) (Dimension, string) {
	facilities := lo.Uniq(lo.Map(records, func(r types.Enriched, _ int) string {
		return r.FacilityID
	}))
	if len(facilities) > 1 {
		return DimensionFacility, types.ScopeCrossFacility
	}
	return DimensionEntity, types.ScopeSingleFacility
}

// Aggregate rolls records up by dim. Groups come back in first-seen order of
// their key, ranked by mean OEE.
//
// Group unit energy is recomputed from the summed energy and output so
// high-volume records weigh more; averaging per-record unit energies would
// bias the figure toward small batches.
func Aggregate(records []types.Enriched, dim Dimension) []types.Group {
	keyOf := func(r types.Enriched) string { return dim.Key(r.Record) }

	keys := lo.Uniq(lo.Map(records, func(r types.Enriched, _ int) string { return keyOf(r) }))
	byKey := lo.GroupBy(records, keyOf)

	groups := make([]types.Group, 0, len(keys))
	for _, k := range keys {
		members := byKey[k]
		sum := func(field func(r types.Enriched) float64) float64 {
			return Finite(lo.SumBy(members, field))
		}
		g := types.Group{
			Key:       k,
			Records:   len(members),
			OutputQty: sum(func(r types.Enriched) float64 { return r.OutputQty }),
			EnergyKWh: sum(func(r types.Enriched) float64 { return r.EnergyKWh }),
			MeanOEE:   Finite(lo.SumBy(members, func(r types.Enriched) float64 { return r.OEE }) / float64(len(members))),

			EnergyLoss:              sum(func(r types.Enriched) float64 { return r.EnergyLoss }),
			CapacityOpportunityLoss: sum(func(r types.Enriched) float64 { return r.CapacityOpportunityLoss }),
			TotalLoss:               sum(func(r types.Enriched) float64 { return r.TotalLoss }),
		}
		g.UnitEnergy = UnitEnergy(g.EnergyKWh, g.OutputQty)
		groups = append(groups, g)
	}

	ranks := Rank(lo.Map(groups, func(g types.Group, _ int) float64 { return g.MeanOEE }))
	for i := range groups {
		groups[i].Rank = ranks[i]
	}
	return groups
}

// Rank orders values descending using minimum ranking: ties share the lowest
// rank of their block and the next distinct value skips ahead (1, 1, 3).
func Rank(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })

	ranks := make([]int, len(values))
	for pos, i := range idx {
		if pos > 0 && values[i] == values[idx[pos-1]] {
			ranks[i] = ranks[idx[pos-1]]
			continue
		}
		ranks[i] = pos + 1
	}
	return ranks
}

// Trend returns the mean output and mean OEE of every (group, date) pair,
// ordered by first-seen group then date. Records without a date are skipped,
// so an undated dataset yields no points.
func Trend(records []types.Enriched, dim Dimension) []types.TrendPoint {
	type cell struct {
		group, date string
	}
	type acc struct {
		output, oee float64
		n           int
	}

	var groupOrder []string
	seenGroup := make(map[string]bool)
	cells := make(map[cell]*acc)
	for _, r := range records {
		if r.Date == "" {
			continue
		}
		g := dim.Key(r.Record)
		if !seenGroup[g] {
			seenGroup[g] = true
			groupOrder = append(groupOrder, g)
		}
		c := cell{g, r.Date}
		a, ok := cells[c]
		if !ok {
			a = &acc{}
			cells[c] = a
		}
		a.output += r.OutputQty
		a.oee += r.OEE
		a.n++
	}

	rank := make(map[string]int, len(groupOrder))
	for i, g := range groupOrder {
		rank[g] = i
	}

	points := make([]types.TrendPoint, 0, len(cells))
	for c, a := range cells {
		points = append(points, types.TrendPoint{
			Group:     c.group,
			Date:      c.date,
			OutputQty: Finite(a.output / float64(a.n)),
			OEE:       Finite(a.oee / float64(a.n)),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Group != points[j].Group {
			return rank[points[i].Group] < rank[points[j].Group]
		}
		return points[i].Date < points[j].Date
	})
	return points
}
