package normalize

import (
	"strings"

	"github.com/plantlens/plantlens/pkg/types"
)

// Aliases maps a folded column label to its canonical field name.
type Aliases map[string]string

// DefaultAliases returns the built-in synonym table. Canonical names map to
// themselves so differently-cased spellings of them are recognised too.
func DefaultAliases() Aliases {
	a := Aliases{}
	add := func(canonical string, labels ...string) {
		a[foldKey(canonical)] = canonical
		for _, l := range labels {
			a[foldKey(l)] = canonical
		}
	}

	add(types.FieldDate, "day", "report_date", "production_date", "日期")
	add(types.FieldFacilityID, "facility", "factory", "plant", "site", "廠別")
	add(types.FieldEntityID, "entity", "device", "machine", "machine_id", "unit", "equipment", "機台編號")
	add(types.FieldOEERaw, "oee", "OEE(%)", "oee_pct", "oee_percent")
	add(types.FieldOutputQty, "output", "quantity", "qty", "production", "units", "產量")
	add(types.FieldEnergyKWh, "energy", "kwh", "power(kWh)", "power_kwh", "electricity", "耗電量")
	return a
}

// Merge returns a copy of a with extra layered on top. Keys in extra are
// folded the same way as the built-in table.
func (a Aliases) Merge(extra map[string]string) Aliases {
	out := make(Aliases, len(a)+len(extra))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range extra {
		out[foldKey(k)] = v
	}
	return out
}

func (a Aliases) lookup(label string) (string, bool) {
	c, ok := a[foldKey(label)]
	return c, ok
}

// foldKey lowercases and trims a column label; inner spaces become underscores.
func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
