// Package compute derives efficiency metrics from normalized production
// records and rolls them up per analysis group.
//
// metrics.go normalizes OEE, computes unit energy, finds the benchmark (the
// lowest positive unit energy in the whole set) and prices the energy loss of
// every record against it. capacity.go holds the CapacityModel strategy used
// for the capacity opportunity loss; LinearExtrapolation is the default.
//
// aggregate.go picks the analysis dimension (facility when more than one is
// present, otherwise entity), aggregates, ranks and builds the per-date trend.
// stability.go scores OEE volatility as a coefficient of variation.
//
// Every function is pure. Degenerate input (zero output, zero OEE, a single
// record) resolves to 0, never to an error.
package compute
