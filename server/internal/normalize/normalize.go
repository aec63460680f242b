package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plantlens/plantlens/pkg/types"
)

// DateLayout is the canonical form dates take after normalization.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. Month-first comes before day-first for
// slash dates, matching what spreadsheet exports usually produce.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"20060102",
}

// Canonicalize returns a copy of rows using the canonical column names.
//
// Synonyms are renamed only when the canonical column is not already present
// in that row; unknown columns pass through untouched. A dataset without a
// facility column gets types.DefaultFacilityID on every row. Date cells are
// rewritten as YYYY-MM-DD.
//
// The required-column check runs before any value is inspected, so a
// SchemaError always wins over a DateParseError.
func Canonicalize(rows []types.Row, aliases Aliases) ([]types.Row, error) {
	if aliases == nil {
		aliases = DefaultAliases()
	}

	out := make([]types.Row, len(rows))
	columns := make(map[string]bool)
	for i, row := range rows {
		out[i] = rename(row, aliases)
		for k := range out[i] {
			columns[k] = true
		}
	}

	var missing []string
	for _, f := range types.RequiredFields {
		if !columns[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	for _, row := range out {
		if isBlank(row[types.FieldFacilityID]) {
			row[types.FieldFacilityID] = types.DefaultFacilityID
		}
	}

	if columns[types.FieldDate] {
		for i, row := range out {
			v := row[types.FieldDate]
			if isBlank(v) {
				row[types.FieldDate] = ""
				continue
			}
			d, err := parseDate(v)
			if err != nil {
				return nil, &DateParseError{Row: i, Value: fmt.Sprint(v)}
			}
			row[types.FieldDate] = d
		}
	}

	return out, nil
}

// Records converts canonical rows into typed records. Blank measurement
// cells read as 0. A cell that is not a finite number, or a negative output
// or energy reading, is a ValueError.
func Records(rows []types.Row) ([]types.Record, error) {
	out := make([]types.Record, 0, len(rows))
	for i, row := range rows {
		entity := stringify(row[types.FieldEntityID])
		if entity == "" {
			return nil, &ValueError{Row: i, Field: types.FieldEntityID, Reason: ReasonBlank}
		}
		rec := types.Record{
			Date:       stringify(row[types.FieldDate]),
			FacilityID: stringify(row[types.FieldFacilityID]),
			EntityID:   entity,
		}
		if rec.FacilityID == "" {
			rec.FacilityID = types.DefaultFacilityID
		}

		fields := []struct {
			name        string
			dst         *float64
			nonNegative bool
		}{
			{types.FieldOEERaw, &rec.OEERaw, false},
			{types.FieldOutputQty, &rec.OutputQty, true},
			{types.FieldEnergyKWh, &rec.EnergyKWh, true},
		}
		for _, f := range fields {
			v, ok := toFloat(row[f.name])
			if !ok {
				return nil, &ValueError{Row: i, Field: f.name, Value: fmt.Sprint(row[f.name]), Reason: ReasonNotNumber}
			}
			if f.nonNegative && v < 0 {
				return nil, &ValueError{Row: i, Field: f.name, Value: fmt.Sprint(row[f.name]), Reason: ReasonNegative}
			}
			*f.dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// Normalize runs Canonicalize then Records.
func Normalize(rows []types.Row, aliases Aliases) ([]types.Record, error) {
	canonical, err := Canonicalize(rows, aliases)
	if err != nil {
		return nil, err
	}
	return Records(canonical)
}

// rename copies row, moving synonym keys to their canonical names. Keys are
// visited in sorted order so two synonyms for one field resolve the same way
// on every run.
func rename(row types.Row, aliases Aliases) types.Row {
	out := row.Clone()
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		canonical, ok := aliases.lookup(k)
		if !ok || canonical == k {
			continue
		}
		if _, taken := out[canonical]; taken {
			continue
		}
		out[canonical] = row[k]
		delete(out, k)
	}
	return out
}

func parseDate(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		return t.Format(DateLayout), nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unsupported date value %T", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("no layout matches %q", s)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// stringify renders identifiers. Numeric ids arrive as float64 from JSON and
// must not pick up an exponent or a trailing ".0".
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// toFloat accepts finite JSON numbers, Go numeric types and numeric strings
// such as "1,150" or "76.1%". nil and blank strings read as 0. NaN and the
// infinities are rejected even though strconv parses them.
func toFloat(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
