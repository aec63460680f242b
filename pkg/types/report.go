package types

import "time"

// Scope values describe which dimension an analysis grouped by.
const (
	ScopeCrossFacility  = "cross-facility"
	ScopeSingleFacility = "single-facility"
)

// Group aggregates the enriched records sharing one value of the analysis
// dimension.
type Group struct {
	Key     string `json:"key"`
	Records int    `json:"records"`

	OutputQty float64 `json:"output_qty"`
	EnergyKWh float64 `json:"energy_kwh"`
	MeanOEE   float64 `json:"mean_oee"`

	// UnitEnergy is sum(energy)/sum(output), never a mean of per-record values.
	UnitEnergy float64 `json:"unit_energy"`

	EnergyLoss              float64 `json:"energy_loss"`
	CapacityOpportunityLoss float64 `json:"capacity_opportunity_loss"`
	TotalLoss               float64 `json:"total_loss"`

	Rank int     `json:"rank"`
	CV   float64 `json:"cv"` // OEE coefficient of variation, percent

	Tier     string `json:"tier"`
	Quadrant string `json:"quadrant"`
}

// TrendPoint is the mean output and OEE of one group on one date.
type TrendPoint struct {
	Group     string  `json:"group"`
	Date      string  `json:"date"`
	OutputQty float64 `json:"output_qty"`
	OEE       float64 `json:"oee"`
}

// Recommendation is the narrative generated for one tier.
type Recommendation struct {
	Tier   string   `json:"tier"`
	Groups []string `json:"groups"`
	Title  string   `json:"title"`
	Text   string   `json:"text"`
}

// Summary holds the whole-set facts derived by the insight classifier.
type Summary struct {
	Best  string `json:"best"`
	Worst string `json:"worst"`

	// EnergyCostMultiplier is the worst group's unit energy divided by the
	// best (lowest positive) group's unit energy. 0 when undefined.
	EnergyCostMultiplier float64 `json:"energy_cost_multiplier"`
	HighestEnergyGroup   string  `json:"highest_energy_group"`
	LowestEnergyGroup    string  `json:"lowest_energy_group"`

	// RecoverableOutput and RecoverableRevenue project what the worst group
	// would add if it reached the best group's OEE.
	RecoverableOutput  float64 `json:"recoverable_output"`
	RecoverableRevenue float64 `json:"recoverable_revenue"`

	TotalEnergyLoss float64 `json:"total_energy_loss"`
	TotalLoss       float64 `json:"total_loss"`

	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`

	Narrative Narrative `json:"narrative"`
}

// Narrative is the plain-text diagnosis with every name already substituted.
type Narrative struct {
	Headline string   `json:"headline"`
	Findings []string `json:"findings"`
	Actions  []string `json:"actions"`
}

// Report is the full output of one analysis pass.
type Report struct {
	ID          string     `json:"id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Parameters  Parameters `json:"parameters"`

	Scope     string  `json:"scope"`
	Dimension string  `json:"dimension"`
	Benchmark float64 `json:"benchmark"`

	Records         []Enriched       `json:"records"`
	Groups          []Group          `json:"groups"`
	Trend           []TrendPoint     `json:"trend"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         Summary          `json:"summary"`
}
