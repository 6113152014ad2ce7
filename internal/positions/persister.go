package positions

import (
	"context"
	"time"

	"netbloom/internal/layout"
)

// Persister saves positions each time the layout transitions into the
// settled state. It implements layout.StepObserver.
type Persister struct {
	bridge  *Bridge
	timeout time.Duration
	settled bool
	saves   int
	onSave  func(ok bool)
}

// NewPersister creates a persister writing through bridge
func NewPersister(bridge *Bridge, timeout time.Duration) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{bridge: bridge, timeout: timeout}
}

// OnSaved registers a callback invoked after every save attempt
func (p *Persister) OnSaved(f func(ok bool)) {
	p.onSave = f
}

// OnStep saves on the first settled step after an unsettled one
func (p *Persister) OnStep(ev layout.StepEvent) {
	if !ev.Settled {
		p.settled = false
		return
	}
	if p.settled {
		return
	}
	p.settled = true

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ok := p.bridge.Save(ctx, ev.Positions)
	p.saves++
	if p.onSave != nil {
		p.onSave(ok)
	}
}

// Saves returns the number of save attempts
func (p *Persister) Saves() int {
	return p.saves
}
