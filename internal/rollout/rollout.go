// Package rollout picks the environment a fresh session is split to.
//
// Two selectors are provided:
//   - WeightedSelector: independent weighted sampling. Over N picks the share
//     of environment e converges to weight(e)/sum(weights). This is the
//     default and carries no state besides the table.
//   - CycleSelector: fair-share sampling. Every window of sum(quota) picks
//     contains exactly quota(e) picks of e, in random order. It holds mutable
//     state and must be owned by a single process-wide instance.
//
// Neither selector ever returns a name that is not in the table, and
// neither can fail once constructed from a validated table.
package rollout

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/hollowverse/releasemanager/internal/environments"
)

// Selector produces an environment name for a session that has no valid pin.
type Selector interface {
	Pick() string
}

// WeightedSelector implements i.i.d. weighted sampling over a weight table.
// It is safe for concurrent use.
type WeightedSelector struct {
	names      []string
	cumulative []float64
	total      float64
	random     func() float64
}

// NewWeightedSelector builds a selector from a validated table.
func NewWeightedSelector(table *environments.WeightTable) *WeightedSelector {
	entries := table.Entries()
	s := &WeightedSelector{
		names:      make([]string, len(entries)),
		cumulative: make([]float64, len(entries)),
		random:     rand.Float64,
	}
	for i, e := range entries {
		s.total += e.Weight
		s.names[i] = e.Name
		s.cumulative[i] = s.total
	}
	return s
}

// Pick returns a random environment name weighted by the table.
//
// Algorithm:
//  1. r = uniform[0,1) * sum(weights)
//  2. return the first entry whose cumulative weight exceeds r
//
// Example: {master: 0.75, beta: 0.25}
//   - r in [0, 0.75)    → master
//   - r in [0.75, 1.0)  → beta
func (s *WeightedSelector) Pick() string {
	if len(s.names) == 1 {
		return s.names[0]
	}
	r := s.random() * s.total
	i := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > r })
	if i >= len(s.names) {
		// Only reachable through float rounding at the upper edge.
		return s.names[len(s.names)-1]
	}
	return s.names[i]
}

// Selector names accepted by NewSelector.
const (
	NameWeighted = "weighted"
	NameFair     = "fair"
)

// NewSelector builds the selector called name over table.
func NewSelector(name string, table *environments.WeightTable) (Selector, error) {
	switch name {
	case NameWeighted:
		return NewWeightedSelector(table), nil
	case NameFair:
		return NewCycleSelector(table), nil
	default:
		return nil, fmt.Errorf("unknown selector %q (expected %s or %s)", name, NameWeighted, NameFair)
	}
}
