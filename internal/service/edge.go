package service

import (
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

// ErrorEdgePolicy decides whether an Error scan replaces the tracked tag.
type ErrorEdgePolicy string

const (
	// ErrorEdgeTransparent ignores Error outcomes, so a glitch between two
	// matches does not re-fire the door.
	ErrorEdgeTransparent ErrorEdgePolicy = config.ErrorEdgePolicyTransparent
	// ErrorEdgeOverwrite tracks Error like any other tag.
	ErrorEdgeOverwrite ErrorEdgePolicy = config.ErrorEdgePolicyOverwrite
)

func ParseErrorEdgePolicy(s string) ErrorEdgePolicy {
	if ErrorEdgePolicy(s) == ErrorEdgeOverwrite {
		return ErrorEdgeOverwrite
	}
	return ErrorEdgeTransparent
}

// EdgeTracker remembers the previous scan tag. Only tags are compared, never
// payloads: a second match for the same person is not an edge.
type EdgeTracker struct {
	previous model.ScanTag
	policy   ErrorEdgePolicy
}

func NewEdgeTracker(policy ErrorEdgePolicy) *EdgeTracker {
	return &EdgeTracker{previous: model.ScanNoFinger, policy: policy}
}

// Observe reports whether tag differs from the previous tag and records it.
func (t *EdgeTracker) Observe(tag model.ScanTag) bool {
	edge := tag != t.previous
	if tag == model.ScanError && t.policy == ErrorEdgeTransparent {
		return edge
	}
	t.previous = tag
	return edge
}

func (t *EdgeTracker) Previous() model.ScanTag {
	return t.previous
}

func (t *EdgeTracker) Reset() {
	t.previous = model.ScanNoFinger
}
