package forcesim

import (
	"math"
	"math/rand/v2"
	"sync"

	"netbloom/internal/domain"
)

// Default force parameters
const (
	DefaultLinkDistance    = 80.0
	DefaultChargeStrength  = -120.0
	DefaultTheta           = 0.9
	DefaultDistanceMin     = 1.0
	DefaultCollideRadius   = 18.0
	DefaultCollideStrength = 0.7
	DefaultVelocityDecay   = 0.4
	DefaultAlphaMin        = 0.001
	DefaultAlphaDecayTicks = 300
)

// Link is an edge decorated with its resolved endpoint nodes for one
// simulation pass
type Link struct {
	Source *domain.Node
	Target *domain.Node
}

// Config holds the force parameters. Zero fields take the defaults.
type Config struct {
	LinkDistance float64 `yaml:"link_distance" json:"link_distance"`
	// LinkStrength overrides the degree based default of 1/min(deg(s), deg(t))
	LinkStrength    float64 `yaml:"link_strength" json:"link_strength"`
	ChargeStrength  float64 `yaml:"charge_strength" json:"charge_strength"`
	Theta           float64 `yaml:"theta" json:"theta"`
	DistanceMin     float64 `yaml:"distance_min" json:"distance_min"`
	CollideRadius   float64 `yaml:"collide_radius" json:"collide_radius"`
	CollideStrength float64 `yaml:"collide_strength" json:"collide_strength"`
	VelocityDecay   float64 `yaml:"velocity_decay" json:"velocity_decay"`
	AlphaMin        float64 `yaml:"alpha_min" json:"alpha_min"`
}

// DefaultConfig returns the default force parameters
func DefaultConfig() Config {
	return Config{
		LinkDistance:    DefaultLinkDistance,
		ChargeStrength:  DefaultChargeStrength,
		Theta:           DefaultTheta,
		DistanceMin:     DefaultDistanceMin,
		CollideRadius:   DefaultCollideRadius,
		CollideStrength: DefaultCollideStrength,
		VelocityDecay:   DefaultVelocityDecay,
		AlphaMin:        DefaultAlphaMin,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.LinkDistance == 0 {
		c.LinkDistance = d.LinkDistance
	}
	if c.ChargeStrength == 0 {
		c.ChargeStrength = d.ChargeStrength
	}
	if c.Theta == 0 {
		c.Theta = d.Theta
	}
	if c.DistanceMin == 0 {
		c.DistanceMin = d.DistanceMin
	}
	if c.CollideRadius == 0 {
		c.CollideRadius = d.CollideRadius
	}
	if c.CollideStrength == 0 {
		c.CollideStrength = d.CollideStrength
	}
	if c.VelocityDecay == 0 {
		c.VelocityDecay = d.VelocityDecay
	}
	if c.AlphaMin == 0 {
		c.AlphaMin = d.AlphaMin
	}
}

// Simulation integrates node positions. Methods are safe to call from
// multiple goroutines but the nodes themselves are not locked; callers that
// read node fields concurrently with Tick must serialize access.
type Simulation struct {
	mu sync.Mutex

	cfg         Config
	nodes       []*domain.Node
	links       []Link
	alpha       float64
	alphaTarget float64
	alphaDecay  float64
	onTick      func()
	stopped     bool
	jiggle      func() float64

	// per-link state rebuilt by SetLinks
	strengths []float64
	bias      []float64
}

// Option configures a Simulation
type Option func(*Simulation)

// WithJiggle replaces the random source used to separate coincident nodes
func WithJiggle(f func() float64) Option {
	return func(s *Simulation) {
		s.jiggle = f
	}
}

// New creates a simulation over nodes with alpha 1
func New(cfg Config, nodes []*domain.Node, links []Link, opts ...Option) *Simulation {
	cfg.applyDefaults()
	s := &Simulation{
		cfg:        cfg,
		alpha:      1,
		alphaDecay: 1 - math.Pow(cfg.AlphaMin, 1.0/DefaultAlphaDecayTicks),
		jiggle:     rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nodes = nodes
	s.setLinks(links)
	return s
}

// SetNodes replaces the node collection in place
func (s *Simulation) SetNodes(nodes []*domain.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
	// degree bias depends on the node set too
	s.setLinks(s.links)
}

// SetLinks replaces the link collection in place
func (s *Simulation) SetLinks(links []Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLinks(links)
}

func (s *Simulation) setLinks(links []Link) {
	s.links = links
	count := make(map[*domain.Node]int, len(s.nodes))
	for _, l := range links {
		count[l.Source]++
		count[l.Target]++
	}

	s.strengths = make([]float64, len(links))
	s.bias = make([]float64, len(links))
	for i, l := range links {
		cs, ct := count[l.Source], count[l.Target]
		if s.cfg.LinkStrength > 0 {
			s.strengths[i] = s.cfg.LinkStrength
		} else {
			s.strengths[i] = 1 / float64(min(cs, ct))
		}
		s.bias[i] = float64(cs) / float64(cs+ct)
	}
}

// Nodes returns the current node collection
func (s *Simulation) Nodes() []*domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes
}

// Alpha returns the current energy
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// SetAlpha sets the current energy
func (s *Simulation) SetAlpha(alpha float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alpha = alpha
}

// AlphaTarget returns the value alpha decays toward
func (s *Simulation) AlphaTarget() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alphaTarget
}

// SetAlphaTarget sets the value alpha decays toward
func (s *Simulation) SetAlphaTarget(target float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alphaTarget = target
}

// AlphaMin returns the energy floor below which the layout is at rest
func (s *Simulation) AlphaMin() float64 {
	return s.cfg.AlphaMin
}

// OnTick registers the per-step callback
func (s *Simulation) OnTick(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = f
}

// Stop stops the simulation permanently
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.onTick = nil
}

// Stopped reports whether Stop was called
func (s *Simulation) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Tick advances the simulation by one step and then runs the tick callback
func (s *Simulation) Tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCollide()

	decay := 1 - s.cfg.VelocityDecay
	for _, n := range s.nodes {
		if n.FX != nil {
			n.X = *n.FX
			n.VX = 0
		} else {
			n.VX *= decay
			n.X += n.VX
		}
		if n.FY != nil {
			n.Y = *n.FY
			n.VY = 0
		} else {
			n.VY *= decay
			n.Y += n.VY
		}
	}

	cb := s.onTick
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (s *Simulation) jiggleValue() float64 {
	return (s.jiggle() - 0.5) * 1e-6
}
