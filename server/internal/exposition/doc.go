// Package exposition renders an analysis report as Prometheus text so a
// scraper can chart per-group efficiency over time.
package exposition
