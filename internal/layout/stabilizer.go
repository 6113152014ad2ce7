package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"netbloom/internal/domain"
	"netbloom/internal/forcesim"
)

// Default policy values
const (
	DefaultNudgeAmount     = 0.3
	DefaultNudgeCeiling    = 0.5
	DefaultDragAlphaTarget = 0.3
	DefaultSettleThreshold = 0.05
)

var (
	// ErrUnknownNode is returned for drag events on ids not in the graph
	ErrUnknownNode = errors.New("unknown node")
	// ErrPinnedNode is returned for drag events on hub and port nodes
	ErrPinnedNode = errors.New("node is permanently pinned")
)

// Simulation is the physics integrator the stabilizer drives
type Simulation interface {
	SetNodes(nodes []*domain.Node)
	SetLinks(links []forcesim.Link)
	Alpha() float64
	SetAlpha(alpha float64)
	SetAlphaTarget(target float64)
	AlphaMin() float64
	Tick()
	OnTick(f func())
	Stop()
}

// SimulationFactory creates the simulation on the first update
type SimulationFactory func(nodes []*domain.Node, links []forcesim.Link) Simulation

// ForceSimulation returns a factory for the built-in integrator
func ForceSimulation(cfg forcesim.Config) SimulationFactory {
	return func(nodes []*domain.Node, links []forcesim.Link) Simulation {
		return forcesim.New(cfg, nodes, links)
	}
}

// Graph is the node and edge source the stabilizer reads from
type Graph interface {
	Nodes() []*domain.Node
	Edges() []domain.Edge
	Node(id string) (*domain.Node, bool)
	Resolve(e domain.Edge) (source, target *domain.Node, err error)
}

// Config holds the stabilizer policy
type Config struct {
	// NudgeAmount is added to alpha on a topology change
	NudgeAmount float64 `yaml:"nudge_amount" json:"nudge_amount" validate:"gte=0,lte=1"`
	// NudgeCeiling bounds alpha after a nudge
	NudgeCeiling float64 `yaml:"nudge_ceiling" json:"nudge_ceiling" validate:"gte=0,lte=1"`
	// DragAlphaTarget is the energy held while any node is dragged
	DragAlphaTarget float64 `yaml:"drag_alpha_target" json:"drag_alpha_target" validate:"gte=0,lte=1"`
	// SettleThreshold is the alpha below which the layout counts as settled
	SettleThreshold float64 `yaml:"settle_threshold" json:"settle_threshold" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the default stabilizer policy
func DefaultConfig() Config {
	return Config{
		NudgeAmount:     DefaultNudgeAmount,
		NudgeCeiling:    DefaultNudgeCeiling,
		DragAlphaTarget: DefaultDragAlphaTarget,
		SettleThreshold: DefaultSettleThreshold,
	}
}

// StepEvent is published after every simulation step
type StepEvent struct {
	Seq       uint64                `json:"seq"`
	Alpha     float64               `json:"alpha"`
	Settled   bool                  `json:"settled"`
	Positions []domain.NodePosition `json:"-"`
}

// StepObserver receives step notifications on the stabilizer's goroutine
type StepObserver interface {
	OnStep(ev StepEvent)
}

// StepObserverFunc adapts a function to StepObserver
type StepObserverFunc func(ev StepEvent)

// OnStep calls f(ev)
func (f StepObserverFunc) OnStep(ev StepEvent) {
	f(ev)
}

// Stabilizer decides pin state and drives the simulation for one graph.
// It is not safe for concurrent use.
type Stabilizer struct {
	graph     Graph
	factory   SimulationFactory
	cfg       Config
	logger    *slog.Logger
	sim       Simulation
	dragging  map[string]struct{}
	observers []StepObserver
	seq       uint64
	stopped   bool
}

// New creates a stabilizer over graph. The simulation is not created until
// the first Update.
func New(graph Graph, factory SimulationFactory, cfg Config, logger *slog.Logger) *Stabilizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stabilizer{
		graph:    graph,
		factory:  factory,
		cfg:      cfg,
		logger:   logger,
		dragging: make(map[string]struct{}),
	}
}

// Subscribe registers an observer for step events
func (s *Stabilizer) Subscribe(obs StepObserver) {
	s.observers = append(s.observers, obs)
}

// Update re-seeds the simulation from the graph. The first call creates the
// simulation at full energy; later calls replace its nodes and links in
// place and, when topologyChanged is set, apply the bounded energy nudge.
func (s *Stabilizer) Update(topologyChanged bool) {
	if s.stopped {
		return
	}

	nodes := s.graph.Nodes()
	links := s.links()

	if s.sim == nil {
		s.sim = s.factory(nodes, links)
		s.sim.OnTick(s.afterTick)
		s.logger.Debug("simulation created", "nodes", len(nodes), "links", len(links))
		return
	}

	s.sim.SetNodes(nodes)
	s.sim.SetLinks(links)
	if topologyChanged {
		s.nudge()
	}
}

// nudge raises alpha by NudgeAmount without exceeding NudgeCeiling. Alpha
// is never lowered and never reset.
func (s *Stabilizer) nudge() {
	alpha := s.sim.Alpha()
	next := math.Max(alpha, math.Min(alpha+s.cfg.NudgeAmount, s.cfg.NudgeCeiling))
	s.sim.SetAlpha(next)
	s.logger.Debug("simulation nudged", "from", alpha, "to", next)
}

// links resolves every edge to its node pointers for the simulation
func (s *Stabilizer) links() []forcesim.Link {
	edges := s.graph.Edges()
	links := make([]forcesim.Link, 0, len(edges))
	for _, e := range edges {
		src, tgt, err := s.graph.Resolve(e)
		if err != nil {
			s.logger.Warn("dangling edge skipped", "edge", e.ID(), "error", err)
			continue
		}
		links = append(links, forcesim.Link{Source: src, Target: tgt})
	}
	return links
}

// Step advances the simulation by one tick if it has energy above its floor
// or a drag is active. It reports whether a step ran.
func (s *Stabilizer) Step() bool {
	if s.stopped || s.sim == nil {
		return false
	}
	if s.sim.Alpha() < s.sim.AlphaMin() && len(s.dragging) == 0 {
		return false
	}
	s.sim.Tick()
	return true
}

func (s *Stabilizer) afterTick() {
	if s.stopped {
		return
	}
	s.seq++
	ev := StepEvent{
		Seq:       s.seq,
		Alpha:     s.sim.Alpha(),
		Settled:   s.Settled(),
		Positions: s.Positions(),
	}
	for _, obs := range s.observers {
		obs.OnStep(ev)
	}
}

// Positions returns a copy of every node's position and pin
func (s *Stabilizer) Positions() []domain.NodePosition {
	nodes := s.graph.Nodes()
	out := make([]domain.NodePosition, len(nodes))
	for i, n := range nodes {
		out[i] = n.Position()
	}
	return out
}

// Alpha returns the simulation energy, or 0 before the first update
func (s *Stabilizer) Alpha() float64 {
	if s.sim == nil {
		return 0
	}
	return s.sim.Alpha()
}

// Settled reports whether the layout is at rest: energy below the settle
// threshold and no drag in progress
func (s *Stabilizer) Settled() bool {
	if s.sim == nil {
		return false
	}
	return s.sim.Alpha() < s.cfg.SettleThreshold && len(s.dragging) == 0
}

// Started reports whether the simulation has been created
func (s *Stabilizer) Started() bool {
	return s.sim != nil
}

// Dragging reports whether the node is being dragged
func (s *Stabilizer) Dragging(id string) bool {
	_, ok := s.dragging[id]
	return ok
}

// DragStart pins an IP node to the pointer and raises the energy target
func (s *Stabilizer) DragStart(id string, x, y float64) error {
	n, err := s.draggable(id)
	if err != nil {
		return err
	}
	n.Pin(x, y)
	s.dragging[id] = struct{}{}
	s.updateDragTarget()
	return nil
}

// DragMove moves the pin of a dragged node
func (s *Stabilizer) DragMove(id string, x, y float64) error {
	n, err := s.draggable(id)
	if err != nil {
		return err
	}
	n.Pin(x, y)
	if _, ok := s.dragging[id]; !ok {
		s.dragging[id] = struct{}{}
		s.updateDragTarget()
	}
	return nil
}

// DragEnd releases the node back into the simulation at its last position
func (s *Stabilizer) DragEnd(id string) error {
	n, err := s.draggable(id)
	if err != nil {
		return err
	}
	n.Unpin()
	delete(s.dragging, id)
	s.updateDragTarget()
	return nil
}

func (s *Stabilizer) draggable(id string) (*domain.Node, error) {
	if s.stopped {
		return nil, fmt.Errorf("drag %s: stabilizer stopped", id)
	}
	n, ok := s.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("drag %s: %w", id, ErrUnknownNode)
	}
	if n.IsAnchor() {
		return nil, fmt.Errorf("drag %s: %w", id, ErrPinnedNode)
	}
	return n, nil
}

func (s *Stabilizer) updateDragTarget() {
	if s.sim == nil {
		return
	}
	if len(s.dragging) > 0 {
		s.sim.SetAlphaTarget(s.cfg.DragAlphaTarget)
	} else {
		s.sim.SetAlphaTarget(0)
	}
}

// Forget drops drag state for nodes no longer in the graph
func (s *Stabilizer) Forget(ids []string) {
	before := len(s.dragging)
	for _, id := range ids {
		delete(s.dragging, id)
	}
	if len(s.dragging) != before {
		s.updateDragTarget()
	}
}

// Stop stops the simulation permanently. Later calls do nothing.
func (s *Stabilizer) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	if s.sim != nil {
		s.sim.Stop()
	}
	s.observers = nil
	s.logger.Debug("simulation stopped", "steps", s.seq)
}
