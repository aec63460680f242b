// Package api implements the HTTP REST API for plantlens-server.
//
// New(store, alerts, publisher, cfg) returns a Handler that serves:
//
//	GET    /api/v1/health                         service status, dataset and alert counts
//	GET    /api/v1/parameters                     default parameters and configured sources
//	POST   /api/v1/analyze                        stateless run: {rows, parameters?} -> Report
//	GET    /api/v1/alerts                         firing and recently resolved alerts
//	GET    /api/v1/datasets                       live datasets {id, rows, updated_at}
//	PUT    /api/v1/datasets/{id}                  replace rows
//	DELETE /api/v1/datasets/{id}                  drop rows, resolve the dataset's alerts
//	GET    /api/v1/datasets/{id}/rows             current raw rows
//	POST   /api/v1/datasets/{id}/rows             append rows
//	POST   /api/v1/datasets/{id}/import           append rows from a Prometheus text body
//	POST   /api/v1/datasets/{id}/collect/{source} append rows pulled from a configured exporter
//	POST   /api/v1/datasets/{id}/analyze          run, evaluate alert rules, publish the report
//	GET    /api/v1/datasets/{id}/diagnostics      per-group hints
//	GET    /api/v1/datasets/{id}/metrics          the analysis as Prometheus gauges
//
// Routing uses gorilla/mux; a method that does not match a route returns 405.
// Invalid input data or parameters return 422, with the missing field names
// for a schema error. An unknown dataset returns 404 and a dataset over the
// row cap returns 413.
//
// Handler.Apply swaps the defaults, aliases and sources on config reload.
// JSON types are defined in types.go.
package api
