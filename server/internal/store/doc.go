// Package store holds caller-owned datasets of raw production rows in memory.
//
// The analysis engine keeps no state between runs; the store is where rows
// live between requests. Each dataset is keyed by a caller-chosen ID and is
// evicted once it has not been written for the configured TTL.
package store
