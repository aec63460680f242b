package analysis

import (
	"fmt"
	"math"

	"github.com/plantlens/plantlens/pkg/types"
)

// ParameterError reports an analysis parameter outside its valid range.
type ParameterError struct {
	Field string
	Value float64
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameters: %s = %v is out of range", e.Field, e.Value)
}

// ValidateParameters checks that every parameter is finite and non-negative
// and that the target OEE is a fraction no greater than 1.
func ValidateParameters(p types.Parameters) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"electricity_price", p.ElectricityPrice},
		{"target_oee", p.TargetOEE},
		{"unit_margin", p.UnitMargin},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return &ParameterError{Field: f.name, Value: f.value}
		}
	}
	if p.TargetOEE > 1 {
		return &ParameterError{Field: "target_oee", Value: p.TargetOEE}
	}
	return nil
}
