package stats

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// Number is the closed set of element kinds a RankedSelector accepts:
// integers, narrow integers and floating-point values.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 |
		~float32 | ~float64
}

// RankedSelector answers order queries over a numeric array: the ascending
// rank permutation, the index of the largest value and k-th order statistics.
//
// The permutation is computed once with an iterative partition-exchange sort
// and cached. Equal values are ordered by original index, so results are
// reproducible.
type RankedSelector[T Number] struct {
	values []T
	perm   []int
}

// NewRankedSelector creates a selector over a copy of values
func NewRankedSelector[T Number](values []T) (*RankedSelector[T], error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: ranked selector requires at least one value", common.ErrEmptyInput)
	}
	for i, v := range values {
		// Only NaN compares unequal to itself
		if v != v {
			return nil, fmt.Errorf("%w: value at index %d is NaN", common.ErrDomain, i)
		}
	}

	return &RankedSelector[T]{
		values: slices.Clone(values),
	}, nil
}

// SortIndexes returns the indices of the values in ascending value order
func (rs *RankedSelector[T]) SortIndexes() []int {
	if rs.perm == nil {
		rs.perm = rs.quicksort()
	}
	return slices.Clone(rs.perm)
}

// SortIndexesStable returns the same permutation as SortIndexes using a
// merge-based stable sort with a guaranteed O(n log n) bound, for callers
// ranking large untrusted inputs.
func (rs *RankedSelector[T]) SortIndexesStable() []int {
	perm := identity(len(rs.values))
	slices.SortStableFunc(perm, func(a, b int) int {
		return cmp.Compare(rs.values[a], rs.values[b])
	})
	return perm
}

// MaxValueIndex returns the index of the largest value
func (rs *RankedSelector[T]) MaxValueIndex() int {
	perm := rs.sorted()
	return perm[len(perm)-1]
}

// NthOrderedValue returns the value at rank n (1-based), counted from the
// smallest value, or from the largest when descending is set.
func (rs *RankedSelector[T]) NthOrderedValue(n int, descending bool) (T, error) {
	if n < 1 || n > len(rs.values) {
		var zero T
		return zero, fmt.Errorf("%w: rank %d outside [1, %d]", common.ErrInvalidParameter, n, len(rs.values))
	}

	perm := rs.sorted()
	if descending {
		return rs.values[perm[len(perm)-n]], nil
	}
	return rs.values[perm[n-1]], nil
}

// TopIndexes returns the indices of the n largest values, largest first
func (rs *RankedSelector[T]) TopIndexes(n int) ([]int, error) {
	if n < 1 || n > len(rs.values) {
		return nil, fmt.Errorf("%w: top count %d outside [1, %d]", common.ErrInvalidParameter, n, len(rs.values))
	}

	perm := rs.sorted()
	top := make([]int, n)
	for i := 0; i < n; i++ {
		top[i] = perm[len(perm)-1-i]
	}
	return top, nil
}

// Len returns the number of ranked values
func (rs *RankedSelector[T]) Len() int {
	return len(rs.values)
}

func (rs *RankedSelector[T]) sorted() []int {
	if rs.perm == nil {
		rs.perm = rs.quicksort()
	}
	return rs.perm
}

// less orders two positions of the permutation by (value, original index)
func (rs *RankedSelector[T]) less(a, b int) bool {
	if rs.values[a] != rs.values[b] {
		return rs.values[a] < rs.values[b]
	}
	return a < b
}

// quicksort sorts an index overlay with Hoare-style partitioning around the
// last element. Ranges wait on an explicit stack instead of the call stack;
// the smaller side is always handled next, so the stack holds O(log n) ranges.
func (rs *RankedSelector[T]) quicksort() []int {
	perm := identity(len(rs.values))

	type span struct{ lo, hi int }
	stack := []span{{0, len(perm) - 1}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for s.lo < s.hi {
			p := rs.partition(perm, s.lo, s.hi)

			// Defer the larger side, keep working on the smaller one
			if p-s.lo > s.hi-p {
				stack = append(stack, span{s.lo, p - 1})
				s.lo = p + 1
			} else {
				stack = append(stack, span{p + 1, s.hi})
				s.hi = p - 1
			}
		}
	}

	return perm
}

// partition places perm[hi] at its final position and returns that position.
// Keys are unique (ties are broken by index), so every other element is
// strictly on one side of the pivot.
func (rs *RankedSelector[T]) partition(perm []int, lo, hi int) int {
	pivot := perm[hi]
	i, j := lo, hi-1

	for {
		for i <= j && rs.less(perm[i], pivot) {
			i++
		}
		for i <= j && rs.less(pivot, perm[j]) {
			j--
		}
		if i >= j {
			break
		}
		perm[i], perm[j] = perm[j], perm[i]
		i++
		j--
	}

	perm[i], perm[hi] = perm[hi], perm[i]
	return i
}

func identity(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// SortIndexes returns the ascending rank permutation of values
func SortIndexes[T Number](values []T) ([]int, error) {
	rs, err := NewRankedSelector(values)
	if err != nil {
		return nil, err
	}
	return rs.SortIndexes(), nil
}

// MaxValueIndex returns the index of the largest element of values
func MaxValueIndex[T Number](values []T) (int, error) {
	rs, err := NewRankedSelector(values)
	if err != nil {
		return 0, err
	}
	return rs.MaxValueIndex(), nil
}
