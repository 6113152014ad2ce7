// Package domain defines the core types of the netbloom connection graph.
//
// The graph has a fixed skeleton: one hub node (the local gateway), a star of
// port nodes pinned around it, and IP nodes that bloom around the port they
// first connect through and then float under the force simulation.
//
// # Core Types
//
// Connection is one observed (source, target, port) tuple from a data source.
// Tuples are never stored as-is; they are diffed and decomposed into nodes
// and edges.
//
// Node is a vertex with a kind (hub, port, ip), a simulated position and an
// optional pin. Hub and port nodes are pinned for their entire lifetime, IP
// nodes only while dragged.
//
// Edge is a directed pair of node ids. Endpoints are always ids; resolving
// them to nodes is the job of the graph store.
//
// NodePosition is the persisted form of a node's coordinates, used by the
// position store bridge to survive restarts without visual jumps.
//
// Graph is a copied view of the store for renderers and the HTTP API.
//
// # Design Principles
//
// - No storage, transport or simulation dependencies
// - Identity by string id: "port-<n>" for ports, the literal address otherwise
package domain
