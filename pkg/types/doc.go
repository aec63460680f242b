// Package types defines the shared Go types used across the plantlens engine
// and server: raw input rows, normalized production records, analysis groups
// and the report returned by one analysis pass.
//
// These are plain data. Nothing in this package computes derived values;
// the compute, insight and analysis packages own all of that.
package types
