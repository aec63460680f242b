package api

import (
	"fmt"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/insight"
)

// Hint levels, most severe first.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
	LevelOK       = "ok"
)

// Thresholds for the energy and stability hints.
const (
	energyCriticalRatio = 1.5
	energyWarningRatio  = 1.2
	cvWarningPct        = 15.0
	cvInfoPct           = 5.0
)

// DiagnosticHint is one human-readable insight about a group.
// The UI displays these as chips on the group card; Detail is shown on click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is the number the hint was derived from, when there is one.
	Value *float64 `json:"value,omitempty"`
}

// GroupDiagnostics is one group's entry in GET /api/v1/datasets/{id}/diagnostics.
type GroupDiagnostics struct {
	Group    string           `json:"group"`
	Tier     string           `json:"tier"`
	Quadrant string           `json:"quadrant"`
	Hints    []DiagnosticHint `json:"hints"`
}

// diagnose derives hints for every group of r, in report order.
func diagnose(r *types.Report) []GroupDiagnostics {
	out := make([]GroupDiagnostics, 0, len(r.Groups))
	for _, g := range r.Groups {
		out = append(out, GroupDiagnostics{
			Group:    g.Key,
			Tier:     g.Tier,
			Quadrant: g.Quadrant,
			Hints:    groupHints(g, r.Benchmark, r.Parameters),
		})
	}
	return out
}

// groupHints derives hints for one group. Hints are ordered: OEE, energy,
// stability, quadrant. A group with nothing to report gets a single "ok" hint.
func groupHints(g types.Group, benchmark float64, p types.Parameters) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── OEE tier ──────────────────────────────────────────────────────────────
	oee := g.MeanOEE * 100
	switch g.Tier {
	case insight.TierCritical:
		hints = append(hints, DiagnosticHint{
			Key:   "oee",
			Level: LevelCritical,
			Title: fmt.Sprintf("OEE %.1f%%", oee),
			Detail: fmt.Sprintf(
				"Mean OEE of %s is %.1f%%, below the %.0f%% floor. "+
					"Check standby and error-code logs for long idle periods and frequent stops.",
				g.Key, oee, insight.LowerCutoff*100),
			Value: &oee,
		})
	case insight.TierImproving:
		gap := (p.TargetOEE - g.MeanOEE) * 100
		hints = append(hints, DiagnosticHint{
			Key:   "oee",
			Level: LevelWarning,
			Title: fmt.Sprintf("OEE %.1f%%", oee),
			Detail: fmt.Sprintf(
				"Mean OEE of %s is %.1f points short of the %.0f%% target. "+
					"Closing the gap is worth roughly %.0f in margin at the current output.",
				g.Key, gap, p.TargetOEE*100, g.CapacityOpportunityLoss),
			Value: &oee,
		})
	}

	// ── Energy against the benchmark ─────────────────────────────────────────
	if benchmark > 0 && g.UnitEnergy > 0 {
		ratio := g.UnitEnergy / benchmark
		over := (ratio - 1) * 100
		var level string
		switch {
		case ratio >= energyCriticalRatio:
			level = LevelCritical
		case ratio >= energyWarningRatio:
			level = LevelWarning
		case ratio > 1:
			level = LevelInfo
		}
		if level != "" {
			hints = append(hints, DiagnosticHint{
				Key:   "unit_energy",
				Level: level,
				Title: fmt.Sprintf("%.0f%% over benchmark", over),
				Detail: fmt.Sprintf(
					"%s draws %.4f kWh per unit against a benchmark of %.4f. "+
						"The excess cost %.2f over the period.",
					g.Key, g.UnitEnergy, benchmark, g.EnergyLoss),
				Value: &over,
			})
		}
	}

	// ── Stability ─────────────────────────────────────────────────────────────
	if g.CV >= cvInfoPct {
		cv := g.CV
		level := LevelInfo
		if cv >= cvWarningPct {
			level = LevelWarning
		}
		hints = append(hints, DiagnosticHint{
			Key:   "stability",
			Level: level,
			Title: fmt.Sprintf("CV %.1f%%", cv),
			Detail: fmt.Sprintf(
				"OEE of %s varies by %.1f%% across its %d records. "+
					"Compare the best and worst days to find what changed.",
				g.Key, cv, g.Records),
			Value: &cv,
		})
	}

	// ── Quadrant ──────────────────────────────────────────────────────────────
	if g.Quadrant == insight.QuadrantWasteful {
		hints = append(hints, DiagnosticHint{
			Key:   "quadrant",
			Level: LevelWarning,
			Title: "Low OEE, high energy",
			Detail: fmt.Sprintf(
				"%s sits below the average OEE and above the average unit energy. "+
					"This pattern usually means the machine keeps drawing power while idle.",
				g.Key),
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: LevelOK,
			Title: "All clear",
			Detail: fmt.Sprintf(
				"%s meets the OEE target at or near benchmark energy with steady output.", g.Key),
		})
	}
	return hints
}
