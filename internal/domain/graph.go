package domain

// Graph is the read-only view handed to renderers and the HTTP API
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode represents a node in the visualization
type GraphNode struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Label  string   `json:"label"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Pinned bool     `json:"pinned"`
}

// GraphEdge represents an edge in the visualization
type GraphEdge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// DeriveGraph copies nodes and edges into a view that is safe to hand to
// other goroutines
func DeriveGraph(nodes []*Node, edges []Edge) *Graph {
	graph := &Graph{
		Nodes: make([]GraphNode, 0, len(nodes)),
		Edges: make([]GraphEdge, 0, len(edges)),
	}

	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:     n.ID,
			Kind:   n.Kind,
			Label:  displayLabel(n),
			X:      n.X,
			Y:      n.Y,
			Pinned: n.IsPinned(),
		})
	}

	for _, e := range edges {
		graph.Edges = append(graph.Edges, GraphEdge{
			ID:     e.ID(),
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type,
		})
	}

	return graph
}

// CountKind returns how many nodes of the given kind the view holds
func (g *Graph) CountKind(kind NodeKind) int {
	count := 0
	for _, n := range g.Nodes {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

func displayLabel(n *Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
