package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/plantlens/plantlens/pkg/types"
)

// numericFields maps a condition field to its value on a group.
var numericFields = map[string]func(g types.Group) float64{
	"mean_oee":                  func(g types.Group) float64 { return g.MeanOEE },
	"unit_energy":               func(g types.Group) float64 { return g.UnitEnergy },
	"cv":                        func(g types.Group) float64 { return g.CV },
	"energy_loss":               func(g types.Group) float64 { return g.EnergyLoss },
	"capacity_opportunity_loss": func(g types.Group) float64 { return g.CapacityOpportunityLoss },
	"total_loss":                func(g types.Group) float64 { return g.TotalLoss },
	"output_qty":                func(g types.Group) float64 { return g.OutputQty },
	"energy_kwh":                func(g types.Group) float64 { return g.EnergyKWh },
	"rank":                      func(g types.Group) float64 { return float64(g.Rank) },
}

// labelFields are compared as strings and only support ==.
var labelFields = map[string]func(g types.Group) string{
	"tier":     func(g types.Group) string { return g.Tier },
	"quadrant": func(g types.Group) string { return g.Quadrant },
}

// evalCondition evaluates a rule condition string against one group.
//
// Supported expressions (field operator value):
//
//	mean_oee < 0.7
//	cv > 15
//	total_loss > 5000
//	unit_energy >= 0.15
//	rank == 1
//	tier == critical
//	quadrant == wasteful
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, g types.Group) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if get, ok := labelFields[field]; ok {
		if op == "==" {
			return get(g) == rhs, 0
		}
		return false, 0
	}

	get, ok := numericFields[field]
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	v := get(g)
	return compareFloat(v, op, threshold), v
}

// CheckCondition reports why cond cannot be evaluated, or nil if it can.
func CheckCondition(cond string) error {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return fmt.Errorf("condition %q: want \"field operator value\"", cond)
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if _, ok := labelFields[field]; ok {
		if op != "==" {
			return fmt.Errorf("condition %q: %s only supports ==", cond, field)
		}
		return nil
	}
	if _, ok := numericFields[field]; !ok {
		return fmt.Errorf("condition %q: unknown field %q", cond, field)
	}
	switch op {
	case ">", ">=", "<", "<=", "==":
	default:
		return fmt.Errorf("condition %q: unknown operator %q", cond, op)
	}
	if _, err := strconv.ParseFloat(rhs, 64); err != nil {
		return fmt.Errorf("condition %q: %q is not a number", cond, rhs)
	}
	return nil
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
