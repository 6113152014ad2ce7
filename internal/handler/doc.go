// Package handler implements the HTTP API over the graph engine.
//
// # Endpoints
//
//	GET  /api/graph                 current nodes, edges and positions
//	GET  /api/graph.dot             the graph in DOT form
//	GET  /api/graph.svg             the graph rendered at its positions
//	GET  /api/status                engine summary
//	POST /api/snapshot              submit a JSON or YAML connection snapshot
//	POST /api/nodes/{id}/drag       pointer drag event {phase, x, y}
//	GET  /api/adapters              registered data sources
//	POST /api/adapters/{name}/sync  sync one data source now
//	GET  /api/events                Server-Sent Events stream
//	GET  /healthz                   liveness
//	GET  /metrics                   Prometheus metrics
//
// Errors are returned as JSON with {error, details}. Drags on unknown nodes
// get 404, drags on hub or port nodes get 409, and a stopped engine
// answers 503.
package handler
