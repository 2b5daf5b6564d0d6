package weighted

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrEmpty = errors.New("weighted: no candidates")

// Item pairs a candidate with its relative weight.
type Item[T any] struct {
	Value  T
	Weight float64
}

// Selector picks items so that each candidate's selection frequency
// converges to weight/sum(weights). The cumulative boundaries are
// computed once; Pick is a binary search over them.
type Selector[T any] struct {
	items  []Item[T]
	bounds []float64
	total  float64
}

// New validates the candidate list and precomputes cumulative weights.
// It fails on an empty list or any weight <= 0; fallback policy is the
// caller's decision, never this primitive's.
func New[T any](items []Item[T]) (*Selector[T], error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	s := &Selector[T]{
		items:  items,
		bounds: make([]float64, len(items)),
	}
	for i, it := range items {
		if it.Weight <= 0 {
			return nil, fmt.Errorf("weighted: candidate %d has non-positive weight %v", i, it.Weight)
		}
		s.total += it.Weight
		s.bounds[i] = s.total
	}
	return s, nil
}

// Pick draws one item using rng. rng may be shared only if the caller
// serializes access; workers each carry their own *rand.Rand.
func (s *Selector[T]) Pick(rng *rand.Rand) T {
	draw := rng.Float64() * s.total

	// First cumulative boundary strictly greater than the draw.
	lo, hi := 0, len(s.bounds)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if s.bounds[mid] > draw {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return s.items[lo].Value
}

// Len returns the number of candidates.
func (s *Selector[T]) Len() int {
	return len(s.items)
}
