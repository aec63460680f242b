// Package importer turns machine-exporter pages in the Prometheus text
// exposition format into raw production rows.
//
// An exporter publishes one gauge per measurement:
//
//	plant_output_units{machine="ACO2",facility="A",date="2025-11-17"} 1150
//	plant_energy_kwh{machine="ACO2",facility="A",date="2025-11-17"} 155
//	plant_oee{machine="ACO2",facility="A",date="2025-11-17"} 0.82
//
// plant_oee_percent may replace plant_oee. Samples sharing a label set form
// one row. The machine label is required; facility and date are optional.
//
// Parse decodes a body that was pushed to the API; Collector pulls one page
// from a configured source on demand.
package importer
