package artifact

import (
	"context"
	"fmt"
)

// Policy decides which stored artifacts a stage consumes.
type Policy int

const (
	// LatestOnly picks the single most recently dated artifact, ignoring
	// older ones even if they were never processed.
	LatestOnly Policy = iota + 1
	// AllPending picks every artifact, oldest first, so a batch load can
	// catch up on anything not yet merged.
	AllPending
)

func (p Policy) String() string {
	switch p {
	case LatestOnly:
		return "latest-only"
	case AllPending:
		return "all-pending"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Apply narrows a date-ascending list according to the policy.
func (p Policy) Apply(list []Artifact) []Artifact {
	if len(list) == 0 {
		return nil
	}
	if p == LatestOnly {
		return list[len(list)-1:]
	}
	return list
}

// Select lists artifacts of kind from s and applies the policy.
func (p Policy) Select(ctx context.Context, s Store, kind Kind) ([]Artifact, error) {
	list, err := s.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s artifacts: %w", kind, err)
	}
	return p.Apply(list), nil
}
