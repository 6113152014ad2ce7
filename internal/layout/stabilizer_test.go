package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbloom/internal/domain"
	"netbloom/internal/forcesim"
	"netbloom/internal/graphstore"
	"netbloom/internal/snapshot"
	"netbloom/internal/topology"
)

type fakeSim struct {
	nodes       []*domain.Node
	links       []forcesim.Link
	alpha       float64
	alphaTarget float64
	alphaMin    float64
	ticks       int
	onTick      func()
	stopped     bool
}

func (f *fakeSim) SetNodes(nodes []*domain.Node)  { f.nodes = nodes }
func (f *fakeSim) SetLinks(links []forcesim.Link) { f.links = links }
func (f *fakeSim) Alpha() float64                 { return f.alpha }
func (f *fakeSim) SetAlpha(a float64)             { f.alpha = a }
func (f *fakeSim) SetAlphaTarget(t float64)       { f.alphaTarget = t }
func (f *fakeSim) AlphaMin() float64              { return f.alphaMin }
func (f *fakeSim) OnTick(cb func())               { f.onTick = cb }
func (f *fakeSim) Stop()                          { f.stopped = true }

func (f *fakeSim) Tick() {
	if f.stopped {
		return
	}
	f.ticks++
	f.alpha += (f.alphaTarget - f.alpha) * 0.5
	if f.onTick != nil {
		f.onTick()
	}
}

type fixture struct {
	store   *graphstore.Store
	differ  *snapshot.Differ
	stab    *Stabilizer
	sims    []*fakeSim
	created int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{differ: snapshot.NewDiffer()}
	f.store = graphstore.New("192.168.1.1",
		topology.NewBuilder(topology.Viewport{Width: 1200, Height: 800}), nil)
	f.stab = New(f.store, func(nodes []*domain.Node, links []forcesim.Link) Simulation {
		f.created++
		sim := &fakeSim{nodes: nodes, links: links, alpha: 1, alphaMin: 0.001}
		f.sims = append(f.sims, sim)
		return sim
	}, DefaultConfig(), nil)
	return f
}

func (f *fixture) apply(conns ...domain.Connection) {
	current := snapshot.Normalize(conns).Accepted
	ch := f.store.Apply(graphstore.Update{Current: current, Diff: f.differ.Next(current)})
	f.stab.Update(ch.Topology())
}

func (f *fixture) sim() *fakeSim {
	return f.sims[0]
}

var (
	tupleA = domain.Connection{Source: "10.0.0.2", Target: "8.8.8.8", Port: 443}
	tupleB = domain.Connection{Source: "10.0.0.3", Target: "1.1.1.1", Port: 53}
)

func TestSimulationCreatedOnce(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.stab.Started())
	assert.Zero(t, f.stab.Alpha())

	f.apply(tupleA)
	require.Equal(t, 1, f.created)
	assert.Len(t, f.sim().nodes, 4)
	assert.Len(t, f.sim().links, 3)
	assert.Equal(t, 1.0, f.sim().alpha)

	f.apply(tupleA, tupleB)
	f.apply(tupleB)
	assert.Equal(t, 1, f.created)
	assert.Len(t, f.sim().nodes, 4)
	assert.Len(t, f.sim().links, 3)
}

func TestLinksResolveToStoreNodes(t *testing.T) {
	f := newFixture(t)
	f.apply(tupleA)

	ip, _ := f.store.Node("8.8.8.8")
	found := false
	for _, l := range f.sim().links {
		if l.Target == ip {
			found = true
		}
	}
	assert.True(t, found, "expected links to point at the store's node")
}

func TestBoundedEnergyNudge(t *testing.T) {
	tests := []struct {
		name    string
		alpha   float64
		changed bool
		want    float64
	}{
		{"raises cold layout", 0.001, true, 0.301},
		{"capped at ceiling", 0.4, true, DefaultNudgeCeiling},
		{"never lowers", 0.8, true, 0.8},
		{"no topology change leaves alpha", 0.1, false, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.apply(tupleA)
			f.sim().alpha = tt.alpha

			if tt.changed {
				f.apply(tupleA, tupleB)
			} else {
				f.apply(tupleA)
			}

			assert.InDelta(t, tt.want, f.sim().alpha, 1e-12)
		})
	}
}

func TestStepIdlesAtRest(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.stab.Step(), "no simulation yet")

	f.apply(tupleA)
	assert.True(t, f.stab.Step())

	f.sim().alpha = 0.0001
	assert.False(t, f.stab.Step())
	assert.Equal(t, 1, f.sim().ticks)

	require.NoError(t, f.stab.DragStart("8.8.8.8", 1, 1))
	assert.True(t, f.stab.Step(), "drag keeps the simulation running")
}

func TestStepObservers(t *testing.T) {
	f := newFixture(t)
	var events []StepEvent
	f.stab.Subscribe(StepObserverFunc(func(ev StepEvent) {
		events = append(events, ev)
	}))

	f.apply(tupleA)
	f.stab.Step()
	f.stab.Step()

	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, uint64(2), events[1].Seq)
	assert.Len(t, events[1].Positions, 4)
	assert.False(t, events[1].Settled)

	// positions are copies
	ip, _ := f.store.Node("8.8.8.8")
	for _, p := range events[1].Positions {
		if p.NodeID == ip.ID {
			*p.X = -1
		}
	}
	assert.NotEqual(t, -1.0, ip.X)
}

func TestSettled(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.stab.Settled())

	f.apply(tupleA)
	f.sim().alpha = 0.01
	assert.True(t, f.stab.Settled())

	require.NoError(t, f.stab.DragStart("8.8.8.8", 0, 0))
	assert.False(t, f.stab.Settled(), "dragging is never settled")
}

func TestDragEndReleasesPin(t *testing.T) {
	f := newFixture(t)
	f.apply(tupleA)

	require.NoError(t, f.stab.DragStart("8.8.8.8", 90, 190))
	require.NoError(t, f.stab.DragMove("8.8.8.8", 100, 200))

	ip, _ := f.store.Node("8.8.8.8")
	require.True(t, ip.IsPinned())
	assert.Equal(t, 100.0, *ip.FX)
	assert.Equal(t, 200.0, *ip.FY)

	require.NoError(t, f.stab.DragEnd("8.8.8.8"))
	assert.Nil(t, ip.FX)
	assert.Nil(t, ip.FY)
	assert.Equal(t, 100.0, ip.X)
	assert.Equal(t, 200.0, ip.Y)
	assert.False(t, f.stab.Dragging("8.8.8.8"))
}

func TestDragAlphaTarget(t *testing.T) {
	f := newFixture(t)
	f.apply(tupleA, tupleB)

	require.NoError(t, f.stab.DragStart("8.8.8.8", 0, 0))
	assert.Equal(t, DefaultDragAlphaTarget, f.sim().alphaTarget)

	require.NoError(t, f.stab.DragStart("1.1.1.1", 5, 5))
	require.NoError(t, f.stab.DragEnd("8.8.8.8"))
	assert.Equal(t, DefaultDragAlphaTarget, f.sim().alphaTarget, "other drag still active")

	other, _ := f.store.Node("1.1.1.1")
	assert.True(t, other.IsPinned())

	require.NoError(t, f.stab.DragEnd("1.1.1.1"))
	assert.Zero(t, f.sim().alphaTarget)
}

func TestDragErrors(t *testing.T) {
	f := newFixture(t)
	f.apply(tupleA)

	err := f.stab.DragStart("10.9.9.9", 0, 0)
	assert.ErrorIs(t, err, ErrUnknownNode)

	port, _ := f.store.Node("port-443")
	fx := *port.FX
	err = f.stab.DragStart("port-443", 0, 0)
	assert.ErrorIs(t, err, ErrPinnedNode)
	assert.Equal(t, fx, *port.FX)

	err = f.stab.DragMove("192.168.1.1", 0, 0)
	assert.ErrorIs(t, err, ErrPinnedNode)
}

func TestForget(t *testing.T) {
	f := newFixture(t)
	f.apply(tupleA)
	require.NoError(t, f.stab.DragStart("8.8.8.8", 0, 0))

	f.stab.Forget([]string{"8.8.8.8"})
	assert.False(t, f.stab.Dragging("8.8.8.8"))
	assert.Zero(t, f.sim().alphaTarget)
}

func TestStop(t *testing.T) {
	f := newFixture(t)
	var events int
	f.stab.Subscribe(StepObserverFunc(func(StepEvent) { events++ }))
	f.apply(tupleA)

	f.stab.Stop()
	f.stab.Stop()

	assert.True(t, f.sim().stopped)
	assert.False(t, f.stab.Step())
	assert.Zero(t, events)

	f.apply(tupleA, tupleB)
	assert.Equal(t, 1, f.created)
	assert.Len(t, f.sim().nodes, 4, "no reseed after stop")

	assert.Error(t, f.stab.DragStart("8.8.8.8", 0, 0))
}

func TestWithForceSimulation(t *testing.T) {
	store := graphstore.New("192.168.1.1",
		topology.NewBuilder(topology.Viewport{Width: 1200, Height: 800}), nil)
	differ := snapshot.NewDiffer()
	stab := New(store, ForceSimulation(forcesim.DefaultConfig()), DefaultConfig(), nil)

	current := []domain.Connection{tupleA, tupleB}
	store.Apply(graphstore.Update{Current: current, Diff: differ.Next(current)})
	stab.Update(true)

	hub, _ := store.Hub()
	hx, hy := hub.X, hub.Y

	steps := 0
	for stab.Step() {
		steps++
		require.Less(t, steps, 1000)
	}

	assert.True(t, stab.Settled())
	assert.Equal(t, hx, hub.X)
	assert.Equal(t, hy, hub.Y)
	assert.Less(t, stab.Alpha(), forcesim.DefaultAlphaMin)
}
