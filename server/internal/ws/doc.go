// Package ws implements the WebSocket hub of plantlens-server.
//
// Hub pushes every fresh analysis report to all connected clients as soon as
// it is published, and broadcasts the dataset list on a fixed interval so
// dashboards notice uploads and evictions.
//
// New(datasets, interval) creates a Hub.
// Hub.Run(ctx) starts the dataset ticker and blocks until ctx is cancelled,
// then closes all active connections.
// Hub.Publish(dataset, report) fans a report out to every client.
// Hub.ServeHTTP upgrades an HTTP connection, sends the dataset list and the
// latest report of each dataset immediately, then streams updates.
//
// Message formats sent to clients:
//
//	{"event": "report",   "dataset": "line-a", "data": { /* POST /api/v1/datasets/{id}/analyze */ }}
//	{"event": "datasets", "data": [ {"id": "line-a", "rows": 6, "updated_at": "..."} ]}
//
// The upgrader accepts all origins; the server mounts the hub at /ws/stream
// behind the same API key middleware as the REST API.
package ws
