package rollout

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hollowverse/releasemanager/internal/environments"
)

// fractionScale converts fractional weights into integer quotas.
const fractionScale = 100

// CycleSelector hands out environments from a shuffled window of quota slots.
// When every slot has been used the window is refilled from the original
// quotas. For {master: 4, beta: 1}, every 5 consecutive picks contain exactly
// 4 master and 1 beta, in an order that differs between windows.
//
// The selector is safe for concurrent use. Its state is process-local, so
// tests should construct their own instance rather than share one.
type CycleSelector struct {
	mu        sync.Mutex
	names     []string
	quota     []int
	remaining []int
	left      int
	intN      func(n int) int
}

// NewCycleSelector builds a fair-share selector from a validated table.
func NewCycleSelector(table *environments.WeightTable) *CycleSelector {
	entries := table.Entries()
	s := &CycleSelector{
		names:     make([]string, len(entries)),
		quota:     quotas(entries),
		remaining: make([]int, len(entries)),
		intN:      rand.IntN,
	}
	for i, e := range entries {
		s.names[i] = e.Name
	}
	s.reset()
	return s
}

// quotas converts weights into positive integer slot counts. Integral
// weights are used as-is; otherwise every weight is scaled by fractionScale
// and rounded, with a minimum of one slot so no environment is starved.
func quotas(entries []environments.Weight) []int {
	integral := true
	for _, e := range entries {
		if e.Weight != math.Trunc(e.Weight) {
			integral = false
			break
		}
	}

	out := make([]int, len(entries))
	for i, e := range entries {
		w := e.Weight
		if !integral {
			w = math.Round(w * fractionScale)
		}
		out[i] = max(int(w), 1)
	}
	return out
}

// WindowSize returns the number of picks after which the quotas reset.
func (s *CycleSelector) WindowSize() int {
	n := 0
	for _, q := range s.quota {
		n += q
	}
	return n
}

// Pick consumes one slot of the current window and returns its environment.
func (s *CycleSelector) Pick() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.left == 0 {
		s.reset()
	}

	slot := s.intN(s.left)
	for i, r := range s.remaining {
		if slot < r {
			s.remaining[i]--
			s.left--
			return s.names[i]
		}
		slot -= r
	}

	// Unreachable: slot < left == sum(remaining).
	return s.names[0]
}

func (s *CycleSelector) reset() {
	copy(s.remaining, s.quota)
	s.left = 0
	for _, q := range s.quota {
		s.left += q
	}
}
