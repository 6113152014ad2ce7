// Package forcesim is a small force-directed layout integrator.
//
// It follows the d3-force model: every tick the energy (alpha) decays toward
// a target, link, many-body and collision forces add to node velocities in
// proportion to alpha, and velocities are damped and integrated into
// positions. Pinned nodes (non-nil FX/FY) are snapped to their pin with zero
// velocity.
//
// Many-body repulsion uses the Barnes-Hut approximation from
// gonum.org/v1/gonum/spatial/barneshut.
//
// Nodes are the graph store's own *domain.Node values. The simulation
// mutates X, Y, VX and VY in place and never copies them.
package forcesim
