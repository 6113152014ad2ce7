// Package topology computes fixed coordinates for the hub and port nodes and
// the initial bloom coordinate for newly discovered IP nodes.
package topology

import (
	"math"
	"math/rand/v2"

	"github.com/samber/lo"

	"netbloom/internal/domain"
)

// Star layout constants
const (
	PortsPerStar      = 8
	RingSpacing       = 150.0
	BaseRadiusFactor  = 0.3
	InnerRadiusFactor = 0.5
	BloomRadius       = 50.0
)

// Point is a 2D coordinate
type Point struct {
	X, Y float64
}

// Viewport is the drawing area the star is laid out in
type Viewport struct {
	Width  float64 `yaml:"width" json:"width" validate:"gt=0"`
	Height float64 `yaml:"height" json:"height" validate:"gt=0"`
}

// Center returns the middle of the viewport
func (v Viewport) Center() Point {
	return Point{X: v.Width / 2, Y: v.Height / 2}
}

// BaseRadius is the radius of ring 0
func (v Viewport) BaseRadius() float64 {
	return math.Min(v.Width, v.Height) * BaseRadiusFactor
}

// Builder places hub, port and IP nodes
type Builder struct {
	viewport Viewport
	rand     func() float64
}

// Option configures a Builder
type Option func(*Builder)

// WithRand replaces the source of uniform [0,1) values used for bloom angles
func WithRand(f func() float64) Option {
	return func(b *Builder) {
		b.rand = f
	}
}

// NewBuilder creates a builder for the given viewport
func NewBuilder(viewport Viewport, opts ...Option) *Builder {
	b := &Builder{
		viewport: viewport,
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Viewport returns the current viewport
func (b *Builder) Viewport() Viewport {
	return b.viewport
}

// SetViewport changes the viewport for future placements. Nodes already
// placed keep their pins.
func (b *Builder) SetViewport(v Viewport) {
	b.viewport = v
}

// HubPosition returns the coordinate a newly created hub is pinned at
func (b *Builder) HubPosition() Point {
	return b.viewport.Center()
}

// PortPosition returns the star coordinate of the port with the given
// discovery index. The result depends only on index, center and viewport.
func (b *Builder) PortPosition(index int, center Point) Point {
	ring := index / PortsPerStar
	slot := index % PortsPerStar

	radius := b.viewport.BaseRadius() + float64(ring)*RingSpacing
	if slot%2 == 1 {
		radius *= InnerRadiusFactor
	}

	angle := (2 * math.Pi / PortsPerStar) * float64(slot)
	return Point{
		X: center.X + math.Cos(angle)*radius,
		Y: center.Y + math.Sin(angle)*radius,
	}
}

// Bloom returns an initial position for a new IP node on a circle of
// BloomRadius around anchor, at a uniformly random angle
func (b *Builder) Bloom(anchor Point) Point {
	angle := b.rand() * 2 * math.Pi
	return Point{
		X: anchor.X + math.Cos(angle)*BloomRadius,
		Y: anchor.Y + math.Sin(angle)*BloomRadius,
	}
}

// NewHub creates the hub node pinned at the viewport center
func (b *Builder) NewHub(id string) *domain.Node {
	p := b.HubPosition()
	hub := domain.NewNode(id, domain.NodeKindHub, id)
	hub.Pin(p.X, p.Y)
	return hub
}

// NewPort creates a port node pinned at its star coordinate
func (b *Builder) NewPort(port, index int, center Point) *domain.Node {
	p := b.PortPosition(index, center)
	node := domain.NewNode(domain.PortNodeID(port), domain.NodeKindPort, domain.PortLabel(port))
	node.Pin(p.X, p.Y)
	return node
}

// NewIP creates a floating IP node bloomed around anchor
func (b *Builder) NewIP(addr string, anchor Point) *domain.Node {
	p := b.Bloom(anchor)
	node := domain.NewNode(addr, domain.NodeKindIP, "")
	node.X = p.X
	node.Y = p.Y
	return node
}

// DistinctPorts returns the port numbers of conns in first-appearance order
func DistinctPorts(conns []domain.Connection) []int {
	return lo.Uniq(lo.Map(conns, func(c domain.Connection, _ int) int {
		return c.Port
	}))
}

// PinOf returns the pinned coordinate of n, falling back to its position
func PinOf(n *domain.Node) Point {
	if n.IsPinned() {
		return Point{X: *n.FX, Y: *n.FY}
	}
	return Point{X: n.X, Y: n.Y}
}
