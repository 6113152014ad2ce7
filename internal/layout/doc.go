// Package layout owns the force simulation lifecycle for one graph.
//
// The simulation is created once, on the first update, and reused for every
// later update: its node and link sets are replaced in place and its energy
// is raised by a bounded nudge instead of being reset. This keeps the layout
// from jumping when the topology changes.
//
// Node pin state:
//
//	hub, port      pinned for life at their creation coordinates
//	ip             free, moved by the simulation
//	ip (dragging)  pinned to the pointer until the drag ends
//
// After every simulation step the stabilizer notifies its StepObservers with
// a copy of all node positions. Renderers and the position persister
// subscribe independently.
package layout
