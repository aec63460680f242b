// Package normalize maps heterogeneous input columns onto the canonical
// production-record schema.
//
// Canonicalize(rows, aliases) renames known synonyms, injects the default
// facility, parses dates and checks that every required column is present.
// It is idempotent: canonical rows pass through unchanged.
//
// Records(rows) turns canonical rows into typed records.
//
// Failures are typed: SchemaError (missing columns), DateParseError and
// ValueError. Any of them rejects the whole dataset.
package normalize
