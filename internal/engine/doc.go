// Package engine runs the connection graph pipeline for one data source.
//
// An Engine owns the differ, the graph store, the layout stabilizer and the
// position bridge. Snapshots enter through Submit (throttled) or Update
// (direct), are normalized and diffed, applied to the store, and re-seed the
// stabilizer. The Run loop advances the layout on a clock ticker and
// serializes snapshot application with simulation steps.
//
// # Events
//
// Engines publish to an EventBus: topology changes, layout steps and
// position saves. The HTTP server forwards these to SSE clients.
package engine
