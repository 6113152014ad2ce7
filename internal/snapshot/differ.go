package snapshot

import (
	"github.com/samber/lo"

	"netbloom/internal/domain"
)

// Key returns the diff identity of a tuple
func Key(c domain.Connection) string {
	return c.Key()
}

// Diff is the set difference between two consecutive snapshots
type Diff struct {
	Added   []domain.Connection
	Removed []domain.Connection
}

// Empty reports whether the diff carries no changes
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Differ remembers the last accepted snapshot and diffs each new one
// against it. A Differ is not safe for concurrent use.
type Differ struct {
	previous []domain.Connection
}

// NewDiffer creates a differ with an empty previous snapshot
func NewDiffer() *Differ {
	return &Differ{}
}

// Next diffs current against the previous snapshot and then makes current
// the previous one. Duplicate keys inside one snapshot count once.
func (d *Differ) Next(current []domain.Connection) Diff {
	diff := Compute(d.previous, current)
	d.previous = lo.UniqBy(current, Key)
	return diff
}

// Previous returns a copy of the last accepted snapshot
func (d *Differ) Previous() []domain.Connection {
	out := make([]domain.Connection, len(d.previous))
	copy(out, d.previous)
	return out
}

// Reset forgets the previous snapshot
func (d *Differ) Reset() {
	d.previous = nil
}

// Compute returns the tuples added and removed between previous and current
func Compute(previous, current []domain.Connection) Diff {
	prevKeys := lo.SliceToMap(previous, func(c domain.Connection) (string, struct{}) {
		return Key(c), struct{}{}
	})
	currKeys := lo.SliceToMap(current, func(c domain.Connection) (string, struct{}) {
		return Key(c), struct{}{}
	})

	added := lo.Filter(lo.UniqBy(current, Key), func(c domain.Connection, _ int) bool {
		_, ok := prevKeys[Key(c)]
		return !ok
	})
	removed := lo.Filter(lo.UniqBy(previous, Key), func(c domain.Connection, _ int) bool {
		_, ok := currKeys[Key(c)]
		return !ok
	})

	return Diff{Added: added, Removed: removed}
}
