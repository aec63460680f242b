package importer

import (
	"errors"
	"fmt"
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/plantlens/plantlens/pkg/types"
)

// Metric and label names of the machine-exporter format.
const (
	MetricOutput     = "plant_output_units"
	MetricEnergy     = "plant_energy_kwh"
	MetricOEE        = "plant_oee"
	MetricOEEPercent = "plant_oee_percent"

	LabelMachine  = "machine"
	LabelFacility = "facility"
	LabelDate     = "date"
)

// ErrNoSamples is returned when an exposition carries none of the plant_* metrics.
var ErrNoSamples = errors.New("importer: no plant_* samples found")

// metricFields maps each exporter metric onto the canonical row field it fills.
var metricFields = []struct {
	metric string
	field  string
	scale  float64
}{
	{MetricOutput, types.FieldOutputQty, 1},
	{MetricEnergy, types.FieldEnergyKWh, 1},
	{MetricOEE, types.FieldOEERaw, 1},
	{MetricOEEPercent, types.FieldOEERaw, 0.01},
}

type rowKey struct {
	date, facility, machine string
}

// Parse decodes a Prometheus text exposition from r into canonical rows,
// ordered by date, facility and machine. Samples without a facility label
// take defaultFacility; when that is empty too the row has no facility and
// the normalizer applies its own default.
func Parse(r io.Reader, defaultFacility string) ([]types.Row, error) {
	mfs, err := parseMetrics(r)
	if err != nil {
		return nil, err
	}

	rows := make(map[rowKey]types.Row)
	for _, mf := range metricFields {
		fam := mfs[mf.metric]
		if fam == nil {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := labelMap(m)
			key := rowKey{
				date:     labels[LabelDate],
				facility: labels[LabelFacility],
				machine:  labels[LabelMachine],
			}
			if key.machine == "" {
				return nil, fmt.Errorf("importer: %s sample without %q label", mf.metric, LabelMachine)
			}
			if key.facility == "" {
				key.facility = defaultFacility
			}

			row, ok := rows[key]
			if !ok {
				row = types.Row{types.FieldEntityID: key.machine}
				if key.facility != "" {
					row[types.FieldFacilityID] = key.facility
				}
				if key.date != "" {
					row[types.FieldDate] = key.date
				}
				rows[key] = row
			}
			row[mf.field] = sampleValue(m) * mf.scale
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoSamples
	}

	keys := make([]rowKey, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.facility != b.facility {
			return a.facility < b.facility
		}
		return a.machine < b.machine
	})

	out := make([]types.Row, len(keys))
	for i, k := range keys {
		out[i] = rows[k]
	}
	return out, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("importer: parse exposition: %w", err)
	}
	return mfs, nil
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// sampleValue reads a gauge, counter or untyped sample.
func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
