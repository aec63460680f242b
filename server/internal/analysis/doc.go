// Package analysis runs the full efficiency pipeline over one dataset:
// normalize, enrich, aggregate, score stability and classify.
//
// An Engine holds only immutable configuration (the alias table and the
// capacity model). Every Run recomputes everything from the raw rows, so
// concurrent runs with different parameters never share state.
package analysis
