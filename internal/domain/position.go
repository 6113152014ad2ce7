package domain

// NodePosition is the persisted position and pin state of one node.
// Nil fields are stored as null and left untouched on restore.
type NodePosition struct {
	NodeID string   `json:"-"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	FX     *float64 `json:"fx"`
	FY     *float64 `json:"fy"`
}

// NewNodePosition creates a floating position
func NewNodePosition(nodeID string, x, y float64) *NodePosition {
	return &NodePosition{
		NodeID: nodeID,
		X:      Float(x),
		Y:      Float(y),
	}
}

// Pinned reports whether the position carries a complete pin
func (p NodePosition) Pinned() bool {
	return p.FX != nil && p.FY != nil
}

// ApplyTo copies every non-nil field onto the node
func (p NodePosition) ApplyTo(n *Node) {
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.FX != nil {
		n.FX = Float(*p.FX)
	}
	if p.FY != nil {
		n.FY = Float(*p.FY)
	}
}
