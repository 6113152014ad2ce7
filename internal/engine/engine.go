package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"netbloom/internal/domain"
	"netbloom/internal/forcesim"
	"netbloom/internal/graphstore"
	"netbloom/internal/layout"
	"netbloom/internal/positions"
	"netbloom/internal/repository"
	"netbloom/internal/repository/memory"
	"netbloom/internal/snapshot"
	"netbloom/internal/topology"
)

// Defaults
const (
	DefaultHub            = "192.168.1.1"
	DefaultUpdateInterval = 5 * time.Second
	DefaultTickInterval   = 16 * time.Millisecond
	DefaultSaveTimeout    = 5 * time.Second
)

var (
	// ErrNoDataSource is returned by New when the data source identity is empty
	ErrNoDataSource = errors.New("data source identity is required")
	// ErrStopped is returned by operations on a stopped engine
	ErrStopped = errors.New("engine stopped")
)

// Config holds the per data source settings
type Config struct {
	DataSource     string
	Hub            string
	Viewport       topology.Viewport
	UpdateInterval time.Duration
	TickInterval   time.Duration
	Force          forcesim.Config
	Policy         layout.Config
	KeyPrefix      string
	SaveTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Hub == "" {
		c.Hub = DefaultHub
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = topology.Viewport{Width: 1200, Height: 800}
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = DefaultUpdateInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Policy == (layout.Config{}) {
		c.Policy = layout.DefaultConfig()
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = positions.DefaultPrefix
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithStore sets the position store. The default is an in-memory store.
func WithStore(store repository.KVStore) Option {
	return func(e *Engine) { e.kv = store }
}

// WithClock sets the clock used for ticks and throttling
func WithClock(c clock.WithTicker) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRegisterer registers engine metrics on reg. Without it metrics go to a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.reg = reg }
}

// WithEventBus publishes engine events on bus
func WithEventBus(bus *EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithSimulationFactory replaces the built-in force simulation
func WithSimulationFactory(f layout.SimulationFactory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithRand sets the random source used for bloom placement
func WithRand(f func() float64) Option {
	return func(e *Engine) { e.rand = f }
}

// Engine maintains the graph and layout for one data source.
// All methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	clock   clock.WithTicker
	reg     prometheus.Registerer
	bus     *EventBus
	factory layout.SimulationFactory
	rand    func() float64
	kv      repository.KVStore

	mu        sync.Mutex
	limiter   *rate.Limiter
	differ    *snapshot.Differ
	builder   *topology.Builder
	store     *graphstore.Store
	stab      *layout.Stabilizer
	bridge    *positions.Bridge
	persister *positions.Persister
	metrics   *metrics
	restored  bool
	stopped   bool

	snapshots chan []domain.Connection
	done      chan struct{}
}

// New creates an engine. The data source identity is required.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.DataSource == "" {
		return nil, ErrNoDataSource
	}
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		snapshots: make(chan []domain.Connection, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("data_source", cfg.DataSource)
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.reg == nil {
		e.reg = prometheus.NewRegistry()
	}
	if e.bus == nil {
		e.bus = NewEventBus()
	}
	if e.factory == nil {
		e.factory = layout.ForceSimulation(cfg.Force)
	}
	if e.kv == nil {
		e.kv = memory.New()
	}

	var builderOpts []topology.Option
	if e.rand != nil {
		builderOpts = append(builderOpts, topology.WithRand(e.rand))
	}

	e.limiter = rate.NewLimiter(rate.Every(cfg.UpdateInterval), 1)
	e.differ = snapshot.NewDiffer()
	e.builder = topology.NewBuilder(cfg.Viewport, builderOpts...)
	e.store = graphstore.New(cfg.Hub, e.builder, e.logger)
	e.stab = layout.New(e.store, e.factory, cfg.Policy, e.logger)
	e.bridge = positions.NewBridge(e.kv, cfg.KeyPrefix, cfg.DataSource, e.logger)
	e.persister = positions.NewPersister(e.bridge, cfg.SaveTimeout)
	e.metrics = newMetrics(e.reg, cfg.DataSource)

	e.persister.OnSaved(e.onSaved)
	e.stab.Subscribe(e.persister)
	e.stab.Subscribe(layout.StepObserverFunc(e.onStep))

	return e, nil
}

// DataSource returns the data source identity
func (e *Engine) DataSource() string {
	return e.cfg.DataSource
}

// Events returns the bus the engine publishes on
func (e *Engine) Events() *EventBus {
	return e.bus
}

// Submit offers a snapshot to the run loop. It returns false for a nil
// snapshot and when the snapshot was dropped by the throttle or because one
// is already pending. A nil snapshot does not use up the throttle.
func (e *Engine) Submit(conns []domain.Connection) bool {
	if conns == nil {
		return false
	}

	e.mu.Lock()
	stopped := e.stopped
	allowed := !stopped && e.limiter.AllowN(e.clock.Now(), 1)
	e.mu.Unlock()

	if stopped {
		return false
	}
	if !allowed {
		e.metrics.dropped.Inc()
		e.logger.Debug("snapshot throttled")
		return false
	}

	select {
	case e.snapshots <- conns:
		return true
	default:
		e.metrics.dropped.Inc()
		e.logger.Debug("snapshot dropped, one already pending")
		return false
	}
}

// Update runs one full cycle synchronously: normalize, diff, apply, restore
// persisted positions onto new nodes and re-seed the layout. A nil
// snapshot skips the cycle and keeps the current state.
func (e *Engine) Update(conns []domain.Connection) (graphstore.Changes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return graphstore.Changes{}, ErrStopped
	}
	if conns == nil {
		e.metrics.skipped.Inc()
		e.logger.Debug("no snapshot, cycle skipped")
		return graphstore.Changes{}, nil
	}

	res := snapshot.Normalize(conns)
	e.metrics.rejected.Add(float64(res.Rejected))
	e.metrics.loopback.Add(float64(res.Loopback))
	if res.Rejected > 0 {
		e.logger.Warn("rejected malformed connections", "count", res.Rejected)
	}

	diff := e.differ.Next(res.Accepted)
	changes := e.store.Apply(graphstore.Update{Current: res.Accepted, Diff: diff})

	e.restore(changes.NodesCreated)

	e.stab.Forget(changes.NodesRemoved)
	e.stab.Update(changes.Topology())

	e.metrics.cycles.Inc()
	e.metrics.observeGraph(e.store.Graph())

	if changes.Topology() {
		e.publish(EventTopologyChanged, TopologyPayload{
			NodesCreated: changes.NodesCreated,
			NodesRemoved: changes.NodesRemoved,
			EdgesAdded:   len(changes.EdgesAdded),
			EdgesRemoved: len(changes.EdgesRemoved),
		})
	}

	e.logger.Debug("cycle applied",
		"accepted", len(res.Accepted),
		"added", len(diff.Added),
		"removed", len(diff.Removed))

	return changes, nil
}

// restore applies saved positions before the layout steps again: to every
// node on the first cycle, then to the nodes each cycle creates
func (e *Engine) restore(created []string) {
	nodes := e.store.NodeMap()
	if e.restored {
		if len(created) == 0 {
			return
		}
		subset := make(map[string]*domain.Node, len(created))
		for _, id := range created {
			if n, ok := nodes[id]; ok {
				subset[id] = n
			}
		}
		nodes = subset
	}
	e.restored = true

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SaveTimeout)
	defer cancel()
	if n := e.bridge.Restore(ctx, nodes); n > 0 {
		e.logger.Debug("restored positions", "nodes", n)
	}
}

// Tick advances the layout by one step. It reports whether a step ran.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}
	stepped := e.stab.Step()
	e.metrics.alpha.Set(e.stab.Alpha())
	return stepped
}

// Run drives the engine until ctx is cancelled or Stop is called. Snapshots
// from Submit are applied between ticks.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	defer e.Stop()

	e.logger.Info("engine started",
		"hub", e.cfg.Hub,
		"tick", e.cfg.TickInterval,
		"update_interval", e.cfg.UpdateInterval)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-e.done:
			return nil

		case conns := <-e.snapshots:
			if _, err := e.Update(conns); err != nil {
				if errors.Is(err, ErrStopped) {
					return nil
				}
				return fmt.Errorf("apply snapshot: %w", err)
			}

		case <-ticker.C():
			e.Tick()
		}
	}
}

// Stop stops the simulation. No positions are saved afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.stopped = true
	e.stab.Stop()
	close(e.done)
	e.logger.Info("engine stopped")
}

// DragStart pins a floating node under the pointer
func (e *Engine) DragStart(id string, x, y float64) error {
	return e.drag(func() error { return e.stab.DragStart(id, x, y) })
}

// DragMove moves a dragged node
func (e *Engine) DragMove(id string, x, y float64) error {
	return e.drag(func() error { return e.stab.DragMove(id, x, y) })
}

// DragEnd releases a dragged node back to the simulation
func (e *Engine) DragEnd(id string) error {
	return e.drag(func() error { return e.stab.DragEnd(id) })
}

func (e *Engine) drag(f func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	return f()
}

// SetViewport changes the viewport used to place new hub and port nodes.
// Existing pins are not moved.
func (e *Engine) SetViewport(v topology.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builder.SetViewport(v)
}

// View returns a copy of the current graph with positions
func (e *Engine) View() *domain.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Graph()
}

// WriteDOT writes the current graph in DOT format
func (e *Engine) WriteDOT(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.WriteDOT(w)
}

// Status is a point-in-time summary of the engine
type Status struct {
	DataSource string  `json:"data_source"`
	Hub        string  `json:"hub"`
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	Alpha      float64 `json:"alpha"`
	Settled    bool    `json:"settled"`
	Stopped    bool    `json:"stopped"`
}

// Status returns the current engine status
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodes, edges := e.store.Len()
	return Status{
		DataSource: e.cfg.DataSource,
		Hub:        e.cfg.Hub,
		Nodes:      nodes,
		Edges:      edges,
		Alpha:      e.stab.Alpha(),
		Settled:    e.stab.Settled(),
		Stopped:    e.stopped,
	}
}

// Settle steps the layout synchronously until it settles or maxSteps is
// reached. It returns the number of steps taken.
func (e *Engine) Settle(maxSteps int) int {
	steps := 0
	for steps < maxSteps {
		e.mu.Lock()
		done := e.stopped || !e.stab.Started() || e.stab.Settled()
		e.mu.Unlock()
		if done {
			break
		}
		if !e.Tick() {
			break
		}
		steps++
	}
	return steps
}

func (e *Engine) onStep(ev layout.StepEvent) {
	pos := make(map[string]Position, len(ev.Positions))
	for _, p := range ev.Positions {
		if p.X == nil || p.Y == nil {
			continue
		}
		pos[p.NodeID] = Position{X: *p.X, Y: *p.Y}
	}
	e.publish(EventLayoutStep, StepPayload{
		Seq:       ev.Seq,
		Alpha:     ev.Alpha,
		Settled:   ev.Settled,
		Positions: pos,
	})
}

func (e *Engine) onSaved(ok bool) {
	e.metrics.saves.Inc()
	if !ok {
		e.metrics.saveFailures.Inc()
	}
	e.publish(EventPositionsSaved, SavedPayload{OK: ok})
}

func (e *Engine) publish(t EventType, payload interface{}) {
	e.bus.Publish(Event{Type: t, DataSource: e.cfg.DataSource, Payload: payload})
}
