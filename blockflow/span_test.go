package blockflow

import "testing"

// enumerate returns all coordinates produced by a span.
func enumerate(s Span) []int32 {
	var coords []int32
	n := s.Len()
	for i := int32(0); i < n; i++ {
		coords = append(coords, s.Start+i*s.Step)
	}
	return coords
}

// bruteContains checks containment by full enumeration.
func bruteContains(inner, outer Span) bool {
	for _, v := range enumerate(inner) {
		member := false
		for _, w := range enumerate(outer) {
			if v == w {
				member = true
				break
			}
		}
		if !member {
			return false
		}
	}
	return true
}

func TestSpanLen(t *testing.T) {
	tests := []struct {
		span Span
		want int32
	}{
		{Span{0, 10, 1}, 10},
		{Span{0, 10, 3}, 4},
		{Span{0, 0, 1}, 0},
		{Span{5, 2, 1}, 0},
		{Span{10, 0, -2}, 5},
		{Span{10, 0, -3}, 4},
		{Span{0, 10, -1}, 0},
		{Span{3, 4, 7}, 1},
		{Span{0, 10, 0}, 0},
	}
	for _, tc := range tests {
		if got := tc.span.Len(); got != tc.want {
			t.Errorf("Len(%v) = %d, want %d", tc.span, got, tc.want)
		}
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{2, 20, 3} // 2, 5, 8, 11, 14, 17
	for _, v := range []int32{2, 5, 8, 11, 14, 17} {
		if !s.Contains(v) {
			t.Errorf("%v should contain %d", s, v)
		}
	}
	for _, v := range []int32{-1, 0, 1, 3, 4, 18, 20, 23} {
		if s.Contains(v) {
			t.Errorf("%v should not contain %d", s, v)
		}
	}

	neg := Span{10, 0, -2} // 10, 8, 6, 4, 2
	for _, v := range []int32{10, 8, 6, 4, 2} {
		if !neg.Contains(v) {
			t.Errorf("%v should contain %d", neg, v)
		}
	}
	for _, v := range []int32{0, 1, 3, 11, 12} {
		if neg.Contains(v) {
			t.Errorf("%v should not contain %d", neg, v)
		}
	}
}

// TestRangeContainsAgainstEnumeration checks RangeContains against
// enumeration-based containment across sampled spans, including
// negative-step and zero-length spans.
func TestRangeContainsAgainstEnumeration(t *testing.T) {
	starts := []int32{-6, -1, 0, 1, 4}
	stops := []int32{-6, 0, 1, 5, 12}
	steps := []int32{-4, -2, -1, 1, 2, 3}

	var spans []Span
	for _, start := range starts {
		for _, stop := range stops {
			for _, step := range steps {
				spans = append(spans, Span{start, stop, step})
			}
		}
	}

	for _, inner := range spans {
		for _, outer := range spans {
			want := bruteContains(inner, outer)
			got := RangeContains(inner, outer)
			if got != want {
				t.Errorf("RangeContains(%v, %v) = %v, want %v", inner, outer, got, want)
			}
		}
	}
}

func TestRangeContainsEdgeCases(t *testing.T) {
	// Empty inner is contained even in an empty outer.
	if !RangeContains(Span{0, 0, 1}, Span{5, 5, 1}) {
		t.Errorf("empty span should be contained in empty span")
	}
	// Single element.
	if !RangeContains(Span{3, 4, 1}, Span{0, 10, 1}) {
		t.Errorf("single element span should be contained")
	}
	// Endpoints in outer but stride misses outer's lattice.
	if RangeContains(Span{0, 13, 3}, Span{0, 14, 2}) {
		t.Errorf("stride 3 should not be contained in stride 2 lattice")
	}
	// Stride that is an exact multiple of outer's.
	if !RangeContains(Span{0, 13, 4}, Span{0, 14, 2}) {
		t.Errorf("stride 4 should be contained in stride 2 lattice")
	}
}
