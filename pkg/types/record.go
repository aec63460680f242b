package types

// Canonical field names. The normalizer maps every accepted input column onto
// one of these.
const (
	FieldDate       = "date"
	FieldFacilityID = "facility_id"
	FieldEntityID   = "entity_id"
	FieldOEERaw     = "oee_raw"
	FieldOutputQty  = "output_qty"
	FieldEnergyKWh  = "energy_kwh"
)

// DefaultFacilityID is injected when a dataset carries no facility column
// (a single-facility import).
const DefaultFacilityID = "imported-site"

// RequiredFields lists the canonical columns every dataset must carry, in the
// order they are reported when missing.
var RequiredFields = []string{FieldEntityID, FieldEnergyKWh, FieldOutputQty, FieldOEERaw}

// Row is one raw input row keyed by loosely-structured column names.
// Values are whatever the input provider decoded: JSON numbers, strings, nil.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record is one normalized production observation.
type Record struct {
	// Date is the calendar date as YYYY-MM-DD, empty when the dataset has no dates.
	Date       string  `json:"date,omitempty"`
	FacilityID string  `json:"facility_id"`
	EntityID   string  `json:"entity_id"`
	OEERaw     float64 `json:"oee_raw"`
	OutputQty  float64 `json:"output_qty"`
	EnergyKWh  float64 `json:"energy_kwh"`
}

// Enriched is a Record plus every value derived from it during one analysis
// pass. Derived fields are recomputed on every pass and never stored.
type Enriched struct {
	Record

	OEE                     float64 `json:"oee"`
	UnitEnergy              float64 `json:"unit_energy"`
	EnergyLoss              float64 `json:"energy_loss"`
	CapacityOpportunityLoss float64 `json:"capacity_opportunity_loss"`
	TotalLoss               float64 `json:"total_loss"`

	// Rank is the record's OEE rank across the whole set (1 = best, ties share).
	Rank int `json:"rank"`

	// Band is "good" (OEE >= 0.85), "poor" (OEE < 0.70) or empty.
	Band string `json:"band,omitempty"`
}

// Parameters are supplied per analysis run and stay constant for that run.
type Parameters struct {
	ElectricityPrice float64 `json:"electricity_price" yaml:"electricity_price"` // currency per kWh
	TargetOEE        float64 `json:"target_oee" yaml:"target_oee"`               // fraction 0..1
	UnitMargin       float64 `json:"unit_margin" yaml:"unit_margin"`             // currency per unit
}
