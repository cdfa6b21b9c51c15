package stats

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

func TestSortIndexesScenario(t *testing.T) {
	rs, err := NewRankedSelector([]float64{30, 10, 20})
	if err != nil {
		t.Fatalf("NewRankedSelector() error = %v", err)
	}

	if got, want := rs.SortIndexes(), []int{1, 2, 0}; !slices.Equal(got, want) {
		t.Errorf("SortIndexes() = %v, want %v", got, want)
	}
	if got := rs.MaxValueIndex(); got != 0 {
		t.Errorf("MaxValueIndex() = %d, want 0", got)
	}
}

func TestRankedSelectorEmpty(t *testing.T) {
	if _, err := NewRankedSelector([]int{}); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := SortIndexes[float64](nil); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput from SortIndexes, got %v", err)
	}
	if _, err := MaxValueIndex([]int8{}); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput from MaxValueIndex, got %v", err)
	}
}

func TestRankedSelectorRejectsNaN(t *testing.T) {
	if _, err := NewRankedSelector([]float64{1, math.NaN(), 3}); !errors.Is(err, common.ErrDomain) {
		t.Errorf("expected ErrDomain for NaN input, got %v", err)
	}
}

func checkPermutation[T Number](t *testing.T, values []T, perm []int) {
	t.Helper()

	if len(perm) != len(values) {
		t.Fatalf("permutation length %d, want %d", len(perm), len(values))
	}

	seen := make([]bool, len(values))
	for _, idx := range perm {
		if idx < 0 || idx >= len(values) || seen[idx] {
			t.Fatalf("invalid or repeated index %d in %v", idx, perm)
		}
		seen[idx] = true
	}

	for i := 0; i+1 < len(perm); i++ {
		if values[perm[i]] > values[perm[i+1]] {
			t.Fatalf("not ascending at %d: %v > %v", i, values[perm[i]], values[perm[i+1]])
		}
	}
}

func TestSortIndexesPermutationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	tests := []struct {
		name   string
		values []float64
	}{
		{"Single", []float64{7}},
		{"Ascending", []float64{1, 2, 3, 4, 5, 6}},
		{"Descending", []float64{6, 5, 4, 3, 2, 1}},
		{"All equal", []float64{2, 2, 2, 2, 2}},
		{"Negative", []float64{-1.5, 3, -7, 0, 2.25}},
	}

	random := make([]float64, 500)
	for i := range random {
		random[i] = math.Round(rng.Float64()*50) - 25 // plenty of ties
	}
	tests = append(tests, struct {
		name   string
		values []float64
	}{"Random with ties", random})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewRankedSelector(tt.values)
			if err != nil {
				t.Fatalf("NewRankedSelector() error = %v", err)
			}

			perm := rs.SortIndexes()
			checkPermutation(t, tt.values, perm)

			// Ties are broken by original index, which matches a stable sort
			if stable := rs.SortIndexesStable(); !slices.Equal(perm, stable) {
				t.Errorf("SortIndexes() and SortIndexesStable() disagree:\n%v\n%v", perm, stable)
			}
		})
	}
}

func TestSortIndexesNumericKinds(t *testing.T) {
	ints := []int{5, -3, 9, 0}
	perm, err := SortIndexes(ints)
	if err != nil {
		t.Fatalf("SortIndexes(int) error = %v", err)
	}
	checkPermutation(t, ints, perm)

	narrow := []int8{120, -128, 0, 127, -1}
	perm, err = SortIndexes(narrow)
	if err != nil {
		t.Fatalf("SortIndexes(int8) error = %v", err)
	}
	checkPermutation(t, narrow, perm)

	bytes := []uint8{255, 0, 17}
	idx, err := MaxValueIndex(bytes)
	if err != nil || idx != 0 {
		t.Errorf("MaxValueIndex(uint8) = %d, %v, want 0, nil", idx, err)
	}
}

func TestSortIndexesDoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	rs, err := NewRankedSelector(values)
	if err != nil {
		t.Fatalf("NewRankedSelector() error = %v", err)
	}

	perm := rs.SortIndexes()
	perm[0] = 99 // callers own the returned copy

	if !slices.Equal(values, []float64{3, 1, 2}) {
		t.Errorf("input mutated: %v", values)
	}
	if again := rs.SortIndexes(); again[0] != 1 {
		t.Errorf("cached permutation mutated through returned slice: %v", again)
	}
}

func TestNthOrderedValue(t *testing.T) {
	rs, err := NewRankedSelector([]int{40, 10, 30, 20})
	if err != nil {
		t.Fatalf("NewRankedSelector() error = %v", err)
	}

	tests := []struct {
		n          int
		descending bool
		want       int
	}{
		{1, false, 10},
		{2, false, 20},
		{4, false, 40},
		{1, true, 40},
		{2, true, 30},
		{4, true, 10},
	}

	for _, tt := range tests {
		got, err := rs.NthOrderedValue(tt.n, tt.descending)
		if err != nil {
			t.Errorf("NthOrderedValue(%d, %v) error = %v", tt.n, tt.descending, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NthOrderedValue(%d, %v) = %d, want %d", tt.n, tt.descending, got, tt.want)
		}
	}

	for _, n := range []int{0, 5, -1} {
		if _, err := rs.NthOrderedValue(n, false); !errors.Is(err, common.ErrInvalidParameter) {
			t.Errorf("NthOrderedValue(%d) expected ErrInvalidParameter, got %v", n, err)
		}
	}
}

func TestTopIndexes(t *testing.T) {
	rs, err := NewRankedSelector([]float64{0.1, 0.9, 0.5, 0.7})
	if err != nil {
		t.Fatalf("NewRankedSelector() error = %v", err)
	}

	top, err := rs.TopIndexes(3)
	if err != nil {
		t.Fatalf("TopIndexes() error = %v", err)
	}
	if want := []int{1, 3, 2}; !slices.Equal(top, want) {
		t.Errorf("TopIndexes(3) = %v, want %v", top, want)
	}

	if _, err := rs.TopIndexes(5); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func BenchmarkSortIndexes(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	values := make([]float64, 1024)
	for i := range values {
		values[i] = rng.Float64()
	}

	b.ReportAllocs()

	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		rs, _ := NewRankedSelector(values)
		_ = rs.SortIndexes()
	}
}
