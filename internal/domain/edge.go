package domain

import "fmt"

// EdgeType describes which relation an edge models
type EdgeType string

const (
	// EdgeTypeHubPort links the hub to a port that has at least one connection
	EdgeTypeHubPort EdgeType = "hub_port"
	// EdgeTypeSource links an IP in the source column to its port
	EdgeTypeSource EdgeType = "source"
	// EdgeTypeTarget links a port to an IP in the target column
	EdgeTypeTarget EdgeType = "target"
)

// Edge is a directed pair of node ids. Endpoints are always ids; resolving
// them to nodes goes through the graph store.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// NewEdge creates a new edge
func NewEdge(source, target string, edgeType EdgeType) Edge {
	return Edge{
		Source: source,
		Target: target,
		Type:   edgeType,
	}
}

// ID returns the edge identity: the ordered pair of endpoint ids
func (e Edge) ID() string {
	return fmt.Sprintf("%s->%s", e.Source, e.Target)
}

// Involves checks if this edge touches the given node id
func (e Edge) Involves(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// OtherEnd returns the node id on the other end of this edge
func (e Edge) OtherEnd(nodeID string) string {
	if e.Source == nodeID {
		return e.Target
	}
	return e.Source
}
