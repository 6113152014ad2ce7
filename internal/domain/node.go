package domain

import "fmt"

// NodeKind represents the role of a node in the connection graph
type NodeKind string

const (
	NodeKindHub  NodeKind = "hub"
	NodeKindPort NodeKind = "port"
	NodeKindIP   NodeKind = "ip"
)

// Node represents a graph vertex. The graph store owns every Node; the
// simulation and drag handling mutate fields in place.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	// Current simulated position
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Velocity, owned by the force simulation
	VX float64 `json:"-"`
	VY float64 `json:"-"`

	// Pinned coordinates. nil means the node floats.
	FX *float64 `json:"fx"`
	FY *float64 `json:"fy"`
}

// NewNode creates a floating node at the origin
func NewNode(id string, kind NodeKind, label string) *Node {
	return &Node{
		ID:    id,
		Kind:  kind,
		Label: label,
	}
}

// PortNodeID returns the node id used for a port number
func PortNodeID(port int) string {
	return fmt.Sprintf("port-%d", port)
}

// PortLabel returns the display label for a port node
func PortLabel(port int) string {
	return fmt.Sprintf("Port %d", port)
}

// Pin fixes the node at (x, y) and moves it there
func (n *Node) Pin(x, y float64) {
	n.FX = Float(x)
	n.FY = Float(y)
	n.X = x
	n.Y = y
	n.VX = 0
	n.VY = 0
}

// Unpin releases the node back to the simulation, keeping its position
func (n *Node) Unpin() {
	n.FX = nil
	n.FY = nil
}

// IsPinned reports whether both pin coordinates are set
func (n *Node) IsPinned() bool {
	return n.FX != nil && n.FY != nil
}

// IsAnchor reports whether the node is permanently pinned (hub or port)
func (n *Node) IsAnchor() bool {
	return n.Kind == NodeKindHub || n.Kind == NodeKindPort
}

// Position returns the persisted form of the node's coordinates
func (n *Node) Position() NodePosition {
	return NodePosition{
		NodeID: n.ID,
		X:      Float(n.X),
		Y:      Float(n.Y),
		FX:     copyFloat(n.FX),
		FY:     copyFloat(n.FY),
	}
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}
