package api

import (
	"time"

	"github.com/plantlens/plantlens/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string    `json:"status"`
	DatasetCount int       `json:"dataset_count"`
	FiringAlerts int       `json:"firing_alerts"`
	Time         time.Time `json:"time"`
}

// ParametersResponse is the payload for GET /api/v1/parameters.
type ParametersResponse struct {
	Parameters types.Parameters `json:"parameters"`
	Sources    []string         `json:"sources"`
}

// ParameterOverride replaces individual default parameters for one run.
// Absent fields keep their default.
type ParameterOverride struct {
	ElectricityPrice *float64 `json:"electricity_price,omitempty"`
	TargetOEE        *float64 `json:"target_oee,omitempty"`
	UnitMargin       *float64 `json:"unit_margin,omitempty"`
}

// apply returns base with every present field of o replacing its counterpart.
func (o *ParameterOverride) apply(base types.Parameters) types.Parameters {
	if o == nil {
		return base
	}
	if o.ElectricityPrice != nil {
		base.ElectricityPrice = *o.ElectricityPrice
	}
	if o.TargetOEE != nil {
		base.TargetOEE = *o.TargetOEE
	}
	if o.UnitMargin != nil {
		base.UnitMargin = *o.UnitMargin
	}
	return base
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Rows       []types.Row        `json:"rows"`
	Parameters *ParameterOverride `json:"parameters,omitempty"`
}

// DatasetAnalyzeRequest is the optional body of POST /api/v1/datasets/{id}/analyze.
type DatasetAnalyzeRequest struct {
	Parameters *ParameterOverride `json:"parameters,omitempty"`
}

// RowsRequest is the body of PUT /api/v1/datasets/{id} and
// POST /api/v1/datasets/{id}/rows.
type RowsRequest struct {
	Rows []types.Row `json:"rows"`
}

// DatasetResponse is returned by every write to a dataset.
type DatasetResponse struct {
	ID       string `json:"id"`
	Rows     int    `json:"rows"`
	Appended int    `json:"appended,omitempty"`
}

// RowsResponse is the payload for GET /api/v1/datasets/{id}/rows.
type RowsResponse struct {
	ID        string      `json:"id"`
	Rows      []types.Row `json:"rows"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// errorResponse is a generic JSON error body. Missing is set for schema errors.
type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}
