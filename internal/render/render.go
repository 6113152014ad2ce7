// Package render draws the connection graph at its simulated positions.
//
// Positions come from the layout; graphviz only paints. Every node is pinned
// at its current coordinates and neato runs with overlap allowed, so the
// picture matches what the layout computed. Screen coordinates grow downward
// and graphviz coordinates grow upward, so y is negated on the way in.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"netbloom/internal/domain"
)

type style struct {
	shape cgraph.Shape
	fill  string
}

var nodeStyles = map[domain.NodeKind]style{
	domain.NodeKindHub:  {shape: cgraph.DoubleCircleShape, fill: "#f4a261"},
	domain.NodeKindPort: {shape: cgraph.BoxShape, fill: "#e9c46a"},
	domain.NodeKindIP:   {shape: cgraph.EllipseShape, fill: "#a8dadc"},
}

var edgeColors = map[domain.EdgeType]string{
	domain.EdgeTypeHubPort: "#999999",
	domain.EdgeTypeSource:  "#457b9d",
	domain.EdgeTypeTarget:  "#2a9d8f",
}

// Renderer paints graphs to SVG. It serializes access to one graphviz
// instance and is safe for concurrent use.
type Renderer struct {
	mu sync.Mutex
	gv *graphviz.Graphviz
}

// New creates a renderer
func New(ctx context.Context) (*Renderer, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	gv.SetLayout(graphviz.NEATO)
	return &Renderer{gv: gv}, nil
}

// Close releases the graphviz instance
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gv.Close()
}

// SVG writes g as an SVG document
func (r *Renderer) SVG(ctx context.Context, g *domain.Graph, w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.gv.Graph(graphviz.WithDirectedType(graphviz.Directed))
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}
	defer graph.Close()

	graph.SetInputScale(72)
	graph.SetNoTranslate(true)
	graph.SetOverlap(true)
	graph.SetSplines("line")
	graph.SetPad(0.5)

	nodes := make(map[string]*cgraph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		gn, err := graph.CreateNodeByName(n.ID)
		if err != nil {
			return fmt.Errorf("create node %s: %w", n.ID, err)
		}
		st, ok := nodeStyles[n.Kind]
		if !ok {
			st = nodeStyles[domain.NodeKindIP]
		}
		gn.SetLabel(n.Label).
			SetShape(st.shape).
			SetStyle(cgraph.FilledNodeStyle).
			SetFillColor(st.fill).
			SetFontSize(10).
			SetPos(n.X, -n.Y).
			SetPin(true)
		nodes[n.ID] = gn
	}

	for _, e := range g.Edges {
		src, ok := nodes[e.Source]
		if !ok {
			continue
		}
		tgt, ok := nodes[e.Target]
		if !ok {
			continue
		}
		ge, err := graph.CreateEdgeByName(e.ID, src, tgt)
		if err != nil {
			return fmt.Errorf("create edge %s: %w", e.ID, err)
		}
		ge.SetColor(edgeColors[e.Type])
		if e.Type == domain.EdgeTypeHubPort {
			ge.SetArrowHead(cgraph.NoneArrow)
		}
	}

	if err := r.gv.Render(ctx, graph, graphviz.SVG, w); err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	return nil
}
