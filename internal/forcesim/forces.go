package forcesim

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"netbloom/internal/domain"
)

func (s *Simulation) applyLinks() {
	for i, l := range s.links {
		src, tgt := l.Source, l.Target
		if src == nil || tgt == nil || src == tgt {
			continue
		}
		x := tgt.X + tgt.VX - src.X - src.VX
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if x == 0 {
			x = s.jiggleValue()
		}
		if y == 0 {
			y = s.jiggleValue()
		}
		dist := math.Sqrt(x*x + y*y)
		k := (dist - s.cfg.LinkDistance) / dist * s.alpha * s.strengths[i]
		x *= k
		y *= k

		b := s.bias[i]
		tgt.VX -= x * b
		tgt.VY -= y * b
		src.VX += x * (1 - b)
		src.VY += y * (1 - b)
	}
}

// particle adapts a node to the Barnes-Hut tree. The coordinate is captured
// when the tree is built so velocity updates during the pass do not move it.
type particle struct {
	node *domain.Node
	pos  r2.Vec
}

func (p *particle) Coord2() r2.Vec { return p.pos }
func (p *particle) Mass() float64  { return 1 }

func (s *Simulation) applyCharge() {
	if len(s.nodes) < 2 {
		return
	}

	particles := make([]barneshut.Particle2, len(s.nodes))
	for i, n := range s.nodes {
		particles[i] = &particle{node: n, pos: r2.Vec{X: n.X, Y: n.Y}}
	}

	theta := s.cfg.Theta
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		// coincident nodes defeat the tree; fall back to exact pairs
		plane = &barneshut.Plane{Particles: particles}
		theta = 0
	}

	minDist2 := s.cfg.DistanceMin * s.cfg.DistanceMin
	strength := s.cfg.ChargeStrength * s.alpha
	force := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p2 != nil && p1 == p2 {
			return r2.Vec{}
		}
		if v.X == 0 {
			v.X = s.jiggleValue()
		}
		if v.Y == 0 {
			v.Y = s.jiggleValue()
		}
		l := r2.Norm2(v)
		if l < minDist2 {
			l = math.Sqrt(minDist2 * l)
		}
		return r2.Scale(strength*m2/l, v)
	}

	for _, p := range particles {
		f := plane.ForceOn(p, theta, force)
		n := p.(*particle).node
		n.VX += f.X
		n.VY += f.Y
	}
}

func (s *Simulation) applyCollide() {
	r := s.cfg.CollideRadius
	if r <= 0 {
		return
	}
	rr := 2 * r
	for i, a := range s.nodes {
		xi := a.X + a.VX
		yi := a.Y + a.VY
		for _, b := range s.nodes[i+1:] {
			x := xi - b.X - b.VX
			y := yi - b.Y - b.VY
			l := x*x + y*y
			if l >= rr*rr {
				continue
			}
			if x == 0 {
				x = s.jiggleValue()
				l += x * x
			}
			if y == 0 {
				y = s.jiggleValue()
				l += y * y
			}
			l = math.Sqrt(l)
			k := (rr - l) / l * s.cfg.CollideStrength
			x *= k
			y *= k
			// equal radii split the correction evenly
			a.VX += x * 0.5
			a.VY += y * 0.5
			b.VX -= x * 0.5
			b.VY -= y * 0.5
		}
	}
}
