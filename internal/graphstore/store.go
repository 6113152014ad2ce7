// Package graphstore holds the node and edge collection of one connection
// graph and applies snapshot diffs to it.
//
// The store is the only owner of node objects. The layout stabilizer and the
// renderers read and mutate node fields through the pointers it hands out but
// never keep their own copies.
package graphstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/samber/lo"

	"netbloom/internal/domain"
	"netbloom/internal/snapshot"
	"netbloom/internal/topology"
)

// Update is the input of one apply cycle
type Update struct {
	// Current is the normalized snapshot that was just accepted
	Current []domain.Connection
	// Diff is Current diffed against the previously accepted snapshot
	Diff snapshot.Diff
}

// Changes describes what one apply cycle did to the graph
type Changes struct {
	HubCreated   bool
	NodesCreated []string
	NodesRemoved []string
	EdgesAdded   []domain.Edge
	EdgesRemoved []domain.Edge
}

// Topology reports whether the node or edge set changed
func (c Changes) Topology() bool {
	return c.HubCreated || len(c.NodesCreated) > 0 || len(c.NodesRemoved) > 0 ||
		len(c.EdgesAdded) > 0 || len(c.EdgesRemoved) > 0
}

// Store is the mutable node map and edge list of one graph. It is not safe
// for concurrent use; the engine serializes access.
type Store struct {
	g       graph.Graph[string, *domain.Node]
	hubID   string
	builder *topology.Builder
	logger  *slog.Logger
}

// New creates an empty store. The hub is created on the first Apply.
func New(hubID string, builder *topology.Builder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		g:       graph.New(nodeHash, graph.Directed()),
		hubID:   hubID,
		builder: builder,
		logger:  logger,
	}
}

func nodeHash(n *domain.Node) string {
	return n.ID
}

// Apply runs one update cycle. Steps run in a fixed order: hub, ports,
// added tuple edges, removed tuple edges, hub-port edges, prune.
func (s *Store) Apply(u Update) Changes {
	var ch Changes

	// 1. Hub
	if _, ok := s.Node(s.hubID); !ok {
		s.addNode(s.builder.NewHub(s.hubID), &ch)
		ch.HubCreated = true
	}
	hub, _ := s.Node(s.hubID)
	center := topology.PinOf(hub)

	// 2. Ports, indexed by first appearance in the current snapshot
	ports := topology.DistinctPorts(u.Current)
	for i, port := range ports {
		if _, ok := s.Node(domain.PortNodeID(port)); ok {
			continue
		}
		s.addNode(s.builder.NewPort(port, i, center), &ch)
	}

	// 3. Added tuples
	for _, c := range u.Diff.Added {
		portNode, ok := s.Node(c.PortNodeID())
		if !ok {
			// Diff and current disagree; place the port after the known ones.
			portNode = s.builder.NewPort(c.Port, len(ports), center)
			ports = append(ports, c.Port)
			s.addNode(portNode, &ch)
		}
		anchor := topology.PinOf(portNode)
		for _, addr := range []string{c.Source, c.Target} {
			if _, ok := s.Node(addr); !ok {
				s.addNode(s.builder.NewIP(addr, anchor), &ch)
			}
		}
		for _, e := range tupleEdges(c) {
			s.addEdge(e, &ch)
		}
	}

	// 4. Removed tuples. An edge still implied by another current tuple stays.
	implied := make(map[string]struct{})
	for _, c := range u.Current {
		for _, e := range tupleEdges(c) {
			implied[e.ID()] = struct{}{}
		}
	}
	for _, c := range u.Diff.Removed {
		for _, e := range tupleEdges(c) {
			if _, ok := implied[e.ID()]; ok {
				continue
			}
			s.removeEdge(e, &ch)
		}
	}

	// 5. Exactly one hub->port edge per port with connections
	referenced := lo.SliceToMap(ports, func(p int) (string, struct{}) {
		return domain.PortNodeID(p), struct{}{}
	})
	for _, n := range s.Nodes() {
		if n.Kind != domain.NodeKindPort {
			continue
		}
		e := domain.NewEdge(s.hubID, n.ID, domain.EdgeTypeHubPort)
		if _, ok := referenced[n.ID]; ok {
			s.addEdge(e, &ch)
		} else {
			s.removeEdge(e, &ch)
		}
	}

	// 6. Prune nodes not touched by any edge, except the hub
	s.prune(&ch)

	if ch.Topology() {
		s.logger.Debug("graph updated",
			"nodes_created", len(ch.NodesCreated),
			"nodes_removed", len(ch.NodesRemoved),
			"edges_added", len(ch.EdgesAdded),
			"edges_removed", len(ch.EdgesRemoved))
	}

	return ch
}

// tupleEdges returns the IP-port edges implied by one connection
func tupleEdges(c domain.Connection) []domain.Edge {
	port := c.PortNodeID()
	return []domain.Edge{
		domain.NewEdge(c.Source, port, domain.EdgeTypeSource),
		domain.NewEdge(port, c.Target, domain.EdgeTypeTarget),
	}
}

func (s *Store) addNode(n *domain.Node, ch *Changes) {
	err := s.g.AddVertex(n,
		graph.VertexAttribute("label", n.Label),
		graph.VertexAttribute("kind", string(n.Kind)))
	if err != nil {
		if !errors.Is(err, graph.ErrVertexAlreadyExists) {
			s.logger.Warn("add node failed", "node", n.ID, "error", err)
		}
		return
	}
	ch.NodesCreated = append(ch.NodesCreated, n.ID)
}

func (s *Store) addEdge(e domain.Edge, ch *Changes) {
	err := s.g.AddEdge(e.Source, e.Target,
		graph.EdgeData(e.Type),
		graph.EdgeAttribute("type", string(e.Type)))
	if err != nil {
		if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			s.logger.Warn("add edge failed", "edge", e.ID(), "error", err)
		}
		return
	}
	ch.EdgesAdded = append(ch.EdgesAdded, e)
}

func (s *Store) removeEdge(e domain.Edge, ch *Changes) {
	existing, err := s.g.Edge(e.Source, e.Target)
	if err != nil {
		return
	}
	if err := s.g.RemoveEdge(e.Source, e.Target); err != nil {
		s.logger.Warn("remove edge failed", "edge", e.ID(), "error", err)
		return
	}
	if t, ok := existing.Properties.Data.(domain.EdgeType); ok {
		e.Type = t
	}
	ch.EdgesRemoved = append(ch.EdgesRemoved, e)
}

func (s *Store) prune(ch *Changes) {
	adj, err := s.g.AdjacencyMap()
	if err != nil {
		s.logger.Warn("prune skipped", "error", err)
		return
	}
	pred, err := s.g.PredecessorMap()
	if err != nil {
		s.logger.Warn("prune skipped", "error", err)
		return
	}

	for id := range adj {
		if id == s.hubID || len(adj[id]) > 0 || len(pred[id]) > 0 {
			continue
		}
		if err := s.g.RemoveVertex(id); err != nil {
			s.logger.Warn("remove node failed", "node", id, "error", err)
			continue
		}
		ch.NodesRemoved = append(ch.NodesRemoved, id)
	}
	sort.Strings(ch.NodesRemoved)
}

// HubID returns the configured hub identity
func (s *Store) HubID() string {
	return s.hubID
}

// Hub returns the hub node once it exists
func (s *Store) Hub() (*domain.Node, bool) {
	return s.Node(s.hubID)
}

// Node returns the node with the given id
func (s *Store) Node(id string) (*domain.Node, bool) {
	n, err := s.g.Vertex(id)
	if err != nil {
		return nil, false
	}
	return n, true
}

// Resolve looks up both endpoints of an edge
func (s *Store) Resolve(e domain.Edge) (source, target *domain.Node, err error) {
	source, ok := s.Node(e.Source)
	if !ok {
		return nil, nil, fmt.Errorf("edge %s: source %q: %w", e.ID(), e.Source, graph.ErrVertexNotFound)
	}
	target, ok = s.Node(e.Target)
	if !ok {
		return nil, nil, fmt.Errorf("edge %s: target %q: %w", e.ID(), e.Target, graph.ErrVertexNotFound)
	}
	return source, target, nil
}

// Nodes returns all nodes sorted by id
func (s *Store) Nodes() []*domain.Node {
	adj, err := s.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	ids := lo.Keys(adj)
	sort.Strings(ids)

	nodes := make([]*domain.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.Node(id); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// NodeMap returns the nodes keyed by id
func (s *Store) NodeMap() map[string]*domain.Node {
	return lo.SliceToMap(s.Nodes(), func(n *domain.Node) (string, *domain.Node) {
		return n.ID, n
	})
}

// Edges returns all edges sorted by id
func (s *Store) Edges() []domain.Edge {
	raw, err := s.g.Edges()
	if err != nil {
		return nil
	}
	edges := lo.Map(raw, func(e graph.Edge[string], _ int) domain.Edge {
		t, _ := e.Properties.Data.(domain.EdgeType)
		return domain.NewEdge(e.Source, e.Target, t)
	})
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID() < edges[j].ID()
	})
	return edges
}

// HasEdge reports whether the directed edge source->target exists
func (s *Store) HasEdge(source, target string) bool {
	_, err := s.g.Edge(source, target)
	return err == nil
}

// Len returns the number of nodes and edges
func (s *Store) Len() (nodes, edges int) {
	nodes, _ = s.g.Order()
	edges, _ = s.g.Size()
	return nodes, edges
}

// Graph returns a detached view of the store
func (s *Store) Graph() *domain.Graph {
	return domain.DeriveGraph(s.Nodes(), s.Edges())
}

// WriteDOT writes the graph structure in DOT format
func (s *Store) WriteDOT(w io.Writer) error {
	if err := draw.DOT(s.g, w, draw.GraphAttribute("label", s.hubID)); err != nil {
		return fmt.Errorf("write dot: %w", err)
	}
	return nil
}
