package compute

import (
	"math"

	"github.com/plantlens/plantlens/pkg/types"
)

// percentThreshold separates fraction-scale from percent-scale OEE. A raw
// value of exactly 1.0 stays on the fraction side.
const percentThreshold = 1.0

// Highlight bands for individual records.
const (
	BandGood = "good"
	BandPoor = "poor"

	BandGoodOEE = 0.85
	BandPoorOEE = 0.70
)

// NormalizeOEE returns raw as a fraction. Values above 1.0 are read as
// percentages. Each value is judged on its own, so mixed-scale datasets work.
func NormalizeOEE(raw float64) float64 {
	if raw > percentThreshold {
		return raw / 100
	}
	return raw
}

// Finite returns v, or 0 when v is NaN or infinite. Every derived metric
// passes through it so an overflow never reaches a report.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// UnitEnergy returns energy per unit of output, or 0 when output <= 0 or the
// ratio overflows.
func UnitEnergy(energyKWh, output float64) float64 {
	if output <= 0 {
		return 0
	}
	return Finite(energyKWh / output)
}

// Benchmark returns the lowest strictly-positive unit energy across the whole
// set, or 0 when no record has positive unit energy.
func Benchmark(records []types.Record) float64 {
	var best float64
	for _, r := range records {
		ue := UnitEnergy(r.EnergyKWh, r.OutputQty)
		if ue <= 0 {
			continue
		}
		if best == 0 || ue < best {
			best = ue
		}
	}
	return best
}

// EnergyLoss prices the energy used above the benchmark. It is never negative,
// so the benchmark record itself scores exactly 0.
func EnergyLoss(unitEnergy, benchmark, output, price float64) float64 {
	return math.Max(0, Finite((unitEnergy-benchmark)*output*price))
}

// Band returns the highlight band for a normalized OEE.
func Band(oee float64) string {
	switch {
	case oee >= BandGoodOEE:
		return BandGood
	case oee < BandPoorOEE:
		return BandPoor
	default:
		return ""
	}
}

// Enrich derives every per-record metric. It returns the enriched records in
// input order together with the benchmark used. A nil model means
// LinearExtrapolation.
func Enrich(records []types.Record, p types.Parameters, model CapacityModel) ([]types.Enriched, float64) {
	if model == nil {
		model = LinearExtrapolation
	}
	benchmark := Benchmark(records)

	out := make([]types.Enriched, len(records))
	oees := make([]float64, len(records))
	for i, r := range records {
		e := types.Enriched{Record: r}
		e.OEE = NormalizeOEE(r.OEERaw)
		e.UnitEnergy = UnitEnergy(r.EnergyKWh, r.OutputQty)
		e.EnergyLoss = EnergyLoss(e.UnitEnergy, benchmark, r.OutputQty, p.ElectricityPrice)
		e.CapacityOpportunityLoss = math.Max(0, Finite(model(e.OEE, p.TargetOEE, r.OutputQty, p.UnitMargin)))
		e.TotalLoss = Finite(e.EnergyLoss + e.CapacityOpportunityLoss)
		e.Band = Band(e.OEE)

		out[i] = e
		oees[i] = e.OEE
	}

	for i, rank := range Rank(oees) {
		out[i].Rank = rank
	}
	return out, benchmark
}
