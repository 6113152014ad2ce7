// Package bootstrap inspects the host at startup to fill in settings the
// operator left to detection: the hub address and a default data source.
// Every finding is recorded as Evidence with a confidence score so the
// choice can be logged and explained.
package bootstrap

import (
	"time"

	"github.com/samber/lo"
)

// Category classifies types of evidence
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryCapability Category = "capability"
)

// Evidence represents a single piece of discovered knowledge
type Evidence struct {
	Category   Category       `json:"category"`
	Property   string         `json:"property"`
	Value      any            `json:"value"`
	Confidence float64        `json:"confidence"` // 0.0-1.0
	Source     string         `json:"source"`     // e.g. "procfs", "gopsutil"
	Method     string         `json:"method"`     // e.g. "/proc/net/route default route"
	Timestamp  time.Time      `json:"timestamp"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// NewEvidence creates a timestamped piece of evidence
func NewEvidence(cat Category, prop string, value any, conf float64, source, method string) Evidence {
	return Evidence{
		Category:   cat,
		Property:   prop,
		Value:      value,
		Confidence: conf,
		Source:     source,
		Method:     method,
		Timestamp:  time.Now(),
	}
}

// WithRaw adds raw data to evidence and returns it (for chaining)
func (e Evidence) WithRaw(raw map[string]any) Evidence {
	e.Raw = raw
	return e
}

// EvidenceSet aggregates evidence from every probe
type EvidenceSet struct {
	items []Evidence
}

// NewEvidenceSet creates an empty evidence set
func NewEvidenceSet() *EvidenceSet {
	return &EvidenceSet{}
}

// AddAll appends evidence
func (es *EvidenceSet) AddAll(items ...Evidence) {
	es.items = append(es.items, items...)
}

// All returns all evidence
func (es *EvidenceSet) All() []Evidence {
	return es.items
}

// Count returns the number of evidence items
func (es *EvidenceSet) Count() int {
	return len(es.items)
}

// ByProperty returns all evidence for a property
func (es *EvidenceSet) ByProperty(cat Category, prop string) []Evidence {
	return lo.Filter(es.items, func(e Evidence, _ int) bool {
		return e.Category == cat && e.Property == prop
	})
}

// Best returns the highest-confidence evidence for a property. Ties go to
// the earliest finding.
func (es *EvidenceSet) Best(cat Category, prop string) (Evidence, bool) {
	found := es.ByProperty(cat, prop)
	if len(found) == 0 {
		return Evidence{}, false
	}
	return lo.MaxBy(found, func(a, b Evidence) bool {
		return a.Confidence > b.Confidence
	}), true
}

// String returns the best value of a string property
func (es *EvidenceSet) String(cat Category, prop string) (string, float64, bool) {
	e, ok := es.Best(cat, prop)
	if !ok {
		return "", 0, false
	}
	s, ok := e.Value.(string)
	return s, e.Confidence, ok
}

// Bool returns the best value of a boolean property, false when unknown
func (es *EvidenceSet) Bool(cat Category, prop string) bool {
	e, ok := es.Best(cat, prop)
	if !ok {
		return false
	}
	b, _ := e.Value.(bool)
	return b
}
