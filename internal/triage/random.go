package triage

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source supplies the bounded perturbation used by scoring.
type Source interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

// LockedSource is a PCG generator safe for concurrent use.
type LockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a seeded source. A zero seed seeds from the clock.
func NewSource(seed int64) *LockedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := uint64(seed)
	return &LockedSource{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (s *LockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// between returns a uniform integer in [lo, hi].
func between(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}
