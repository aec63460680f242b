package exposition

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/plantlens/plantlens/pkg/types"
)

// ContentType is the media type of the text written by Write.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

type groupGauge struct {
	name  string
	help  string
	value func(g types.Group) float64
}

var groupGauges = []groupGauge{
	{"plantlens_group_mean_oee", "Mean OEE of the group as a fraction.",
		func(g types.Group) float64 { return g.MeanOEE }},
	{"plantlens_group_unit_energy_kwh", "Energy per unit of output, sum(energy)/sum(output).",
		func(g types.Group) float64 { return g.UnitEnergy }},
	{"plantlens_group_output_units", "Summed output of the group.",
		func(g types.Group) float64 { return g.OutputQty }},
	{"plantlens_group_energy_kwh", "Summed energy of the group.",
		func(g types.Group) float64 { return g.EnergyKWh }},
	{"plantlens_group_energy_loss", "Cost of energy above the benchmark unit energy.",
		func(g types.Group) float64 { return g.EnergyLoss }},
	{"plantlens_group_capacity_opportunity_loss", "Margin foregone by running below target OEE.",
		func(g types.Group) float64 { return g.CapacityOpportunityLoss }},
	{"plantlens_group_total_loss", "Energy loss plus capacity opportunity loss.",
		func(g types.Group) float64 { return g.TotalLoss }},
	{"plantlens_group_oee_cv_percent", "Coefficient of variation of OEE, in percent.",
		func(g types.Group) float64 { return g.CV }},
	{"plantlens_group_rank", "OEE rank of the group, 1 is best.",
		func(g types.Group) float64 { return float64(g.Rank) }},
}

// Write encodes r as gauge families. Every sample carries the dataset label;
// group samples add the dimension and group key.
func Write(w io.Writer, dataset string, r *types.Report) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range Families(dataset, r) {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("exposition: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Families builds the metric families for r in a stable order.
func Families(dataset string, r *types.Report) []*dto.MetricFamily {
	base := []*dto.LabelPair{label("dataset", dataset)}

	var out []*dto.MetricFamily
	for _, gg := range groupGauges {
		mf := family(gg.name, gg.help)
		for _, g := range r.Groups {
			mf.Metric = append(mf.Metric, gauge(gg.value(g), groupLabels(base, r.Dimension, g.Key)...))
		}
		out = append(out, mf)
	}

	tier := family("plantlens_group_tier", "Always 1; the tier label carries the classification.")
	for _, g := range r.Groups {
		labels := append(groupLabels(base, r.Dimension, g.Key), label("quadrant", g.Quadrant), label("tier", g.Tier))
		tier.Metric = append(tier.Metric, gauge(1, labels...))
	}
	out = append(out, tier)

	summary := []struct {
		name, help string
		value      float64
	}{
		{"plantlens_benchmark_unit_energy_kwh", "Lowest positive unit energy in the dataset.", r.Benchmark},
		{"plantlens_energy_cost_multiplier", "Highest group unit energy over the lowest positive one.", r.Summary.EnergyCostMultiplier},
		{"plantlens_recoverable_output_units", "Output the worst group would add at the best group's OEE.", r.Summary.RecoverableOutput},
		{"plantlens_recoverable_revenue", "Margin of the recoverable output.", r.Summary.RecoverableRevenue},
		{"plantlens_total_energy_loss", "Energy loss summed over all records.", r.Summary.TotalEnergyLoss},
		{"plantlens_total_loss", "Total loss summed over all records.", r.Summary.TotalLoss},
		{"plantlens_records", "Records in the analysis.", float64(len(r.Records))},
	}
	for _, s := range summary {
		mf := family(s.name, s.help)
		mf.Metric = []*dto.Metric{gauge(s.value, base...)}
		out = append(out, mf)
	}
	return out
}

func family(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: floatPtr(v)},
	}
}

// groupLabels returns a fresh slice so appends never alias between samples.
func groupLabels(base []*dto.LabelPair, dimension, key string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(base)+4)
	out = append(out, base...)
	return append(out, label("dimension", dimension), label("group", key))
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: strPtr(name), Value: strPtr(value)}
}

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }
