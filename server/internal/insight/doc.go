// Package insight turns aggregated groups into a diagnosis: OEE tiers,
// efficiency-matrix quadrants, tier recommendations and a whole-set summary
// with a plain-text narrative.
//
// All functions are pure and return new values; group slices passed in are
// never modified.
package insight
