package tiling

import (
	"testing"

	"github.com/janelia-flyem/blockflow/blockflow"
)

func mustPlan(t *testing.T, origin, extent, chunkSize, overlap blockflow.TZYX) *Plan {
	t.Helper()
	p, err := NewPlan(origin, extent, chunkSize, overlap)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return p
}

func TestGridDims(t *testing.T) {
	tests := []struct {
		extent, chunkSize, want blockflow.TZYX
	}{
		{blockflow.TZYX{20, 10, 500, 500}, blockflow.TZYX{1, 5, 250, 250}, blockflow.TZYX{20, 2, 2, 2}},
		{blockflow.TZYX{7, 7, 7, 7}, blockflow.TZYX{3, 3, 3, 3}, blockflow.TZYX{3, 3, 3, 3}},
		{blockflow.TZYX{1, 1, 1, 1}, blockflow.TZYX{5, 5, 5, 5}, blockflow.TZYX{1, 1, 1, 1}},
	}
	for _, tc := range tests {
		p := mustPlan(t, blockflow.TZYX{}, tc.extent, tc.chunkSize, blockflow.TZYX{})
		if got := p.GridDims(); got != tc.want {
			t.Errorf("GridDims(extent %v, chunks %v) = %v, want %v", tc.extent, tc.chunkSize, got, tc.want)
		}
	}
}

// TestChunkExtentsCoverAxis verifies that the per-axis chunk extents sum to
// the axis extent and that every chunk has positive extent.
func TestChunkExtentsCoverAxis(t *testing.T) {
	p := mustPlan(t, blockflow.TZYX{},
		blockflow.TZYX{17, 23, 101, 99},
		blockflow.TZYX{5, 7, 25, 33},
		blockflow.TZYX{1, 2, 4, 8})

	dims := p.GridDims()
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		var sum int32
		var idx blockflow.TZYX
		for i := int32(0); i < dims[axis]; i++ {
			idx[axis] = i
			ext := p.ChunkExtent(idx)
			if ext[axis] <= 0 {
				t.Errorf("axis %d chunk %d has non-positive extent %d", axis, i, ext[axis])
			}
			sum += ext[axis]
		}
		if sum != p.Extent[axis] {
			t.Errorf("axis %d chunk extents sum to %d, want %d", axis, sum, p.Extent[axis])
		}
	}
}

// TestSourceSpanClipping verifies halo-extended spans stay inside the axis
// domain and are clipped only at the two boundary chunks.
func TestSourceSpanClipping(t *testing.T) {
	p := mustPlan(t, blockflow.TZYX{},
		blockflow.TZYX{20, 10, 500, 500},
		blockflow.TZYX{1, 5, 250, 250},
		blockflow.TZYX{0, 0, 16, 16})

	dims := p.GridDims()
	for _, idx := range p.Chunks() {
		for axis := 0; axis < blockflow.NumAxes; axis++ {
			span := p.SourceSpan(idx, axis)
			domain := blockflow.NewSpan(0, p.Extent[axis])
			if !blockflow.RangeContains(span, domain) {
				t.Errorf("chunk %v axis %d span %v escapes domain %v", idx, axis, span, domain)
			}

			start := idx[axis]*p.ChunkSize[axis] - p.Overlap[axis]
			stop := (idx[axis]+1)*p.ChunkSize[axis] + p.Overlap[axis]
			clippedLow := start < 0
			clippedHigh := stop > p.Extent[axis]
			if clippedLow && idx[axis] != 0 {
				t.Errorf("chunk %v axis %d clipped low away from boundary", idx, axis)
			}
			if clippedHigh && idx[axis] != dims[axis]-1 {
				t.Errorf("chunk %v axis %d clipped high away from boundary", idx, axis)
			}
			if !clippedLow && span.Start != start {
				t.Errorf("chunk %v axis %d span start %d, want %d", idx, axis, span.Start, start)
			}
			if !clippedHigh && span.Stop != stop {
				t.Errorf("chunk %v axis %d span stop %d, want %d", idx, axis, span.Stop, stop)
			}
		}
	}
}

// TestTrimInvertsHalo verifies that trim offsets plus core extents exactly
// recover the halo-extended span on every axis of every chunk.
func TestTrimInvertsHalo(t *testing.T) {
	p := mustPlan(t, blockflow.TZYX{},
		blockflow.TZYX{6, 11, 300, 270},
		blockflow.TZYX{2, 4, 100, 90},
		blockflow.TZYX{1, 2, 16, 16})

	dims := p.GridDims()
	for _, idx := range p.Chunks() {
		off := p.TrimOffsets(idx)
		ext := p.ChunkExtent(idx)
		for axis := 0; axis < blockflow.NumAxes; axis++ {
			src := p.SourceSpan(idx, axis)
			if idx[axis] == 0 && off[axis] != 0 {
				t.Errorf("chunk %v axis %d: first chunk should not trim low side, got %d", idx, axis, off[axis])
			}
			if idx[axis] > 0 && off[axis] != p.Overlap[axis] {
				t.Errorf("chunk %v axis %d: trim %d, want overlap %d", idx, axis, off[axis], p.Overlap[axis])
			}
			trimmedStop := src.Start + off[axis] + ext[axis]
			if idx[axis] == dims[axis]-1 {
				if trimmedStop != src.Stop {
					t.Errorf("chunk %v axis %d: last chunk should keep high side", idx, axis)
				}
			} else if src.Stop-trimmedStop != p.Overlap[axis] {
				t.Errorf("chunk %v axis %d: high trim %d, want overlap %d", idx, axis, src.Stop-trimmedStop, p.Overlap[axis])
			}
		}
	}
}

// TestDestDisjoint verifies that all pairs of distinct logical chunks map
// to non-overlapping destination regions.
func TestDestDisjoint(t *testing.T) {
	p := mustPlan(t, blockflow.TZYX{},
		blockflow.TZYX{4, 9, 120, 130},
		blockflow.TZYX{2, 4, 50, 60},
		blockflow.TZYX{1, 2, 10, 10})

	chunks := p.Chunks()
	for i, a := range chunks {
		for _, b := range chunks[i+1:] {
			if p.Dest(a).Overlaps(p.Dest(b)) {
				t.Errorf("chunks %v and %v have overlapping destinations %v and %v",
					a, b, p.Dest(a), p.Dest(b))
			}
		}
	}
}

// TestSceneOriginOffset verifies source spans honor a scene origin while
// destination regions stay origin-free.
func TestSceneOriginOffset(t *testing.T) {
	origin := blockflow.TZYX{0, 0, 1000, 2000}
	p := mustPlan(t, origin,
		blockflow.TZYX{2, 4, 500, 500},
		blockflow.TZYX{1, 2, 250, 250},
		blockflow.TZYX{0, 0, 16, 16})

	first := blockflow.TZYX{0, 0, 0, 0}
	if span := p.SourceSpan(first, blockflow.AxisY); span.Start != 1000 || span.Stop != 1266 {
		t.Errorf("first chunk Y span = %v, want [1000,1266)", span)
	}
	if dest := p.Dest(first); dest.Offset != (blockflow.TZYX{}) {
		t.Errorf("first chunk dest offset = %v, want origin-free zero", dest.Offset)
	}

	second := blockflow.TZYX{0, 0, 1, 1}
	if span := p.SourceSpan(second, blockflow.AxisX); span.Start != 2234 || span.Stop != 2500 {
		t.Errorf("second chunk X span = %v, want [2234,2500)", span)
	}
	if dest := p.Dest(second); dest.Offset[blockflow.AxisX] != 250 {
		t.Errorf("second chunk dest X offset = %d, want 250", dest.Offset[blockflow.AxisX])
	}
}

// TestEndToEndScenarioGeometry pins the geometry of the reference
// 20x1x10x500x500 scenario: chunk (0,0,0,0) loads Y and X [0,266) and
// writes exactly Y and X [0,250).
func TestEndToEndScenarioGeometry(t *testing.T) {
	p := mustPlan(t, blockflow.TZYX{},
		blockflow.TZYX{20, 10, 500, 500},
		blockflow.TZYX{1, 5, 250, 250},
		blockflow.TZYX{0, 0, 16, 16})

	if got := p.GridDims(); got != (blockflow.TZYX{20, 2, 2, 2}) {
		t.Fatalf("grid dims = %v, want (20,2,2,2)", got)
	}

	first := blockflow.TZYX{0, 0, 0, 0}
	if span := p.SourceSpan(first, blockflow.AxisY); span.Start != 0 || span.Stop != 266 {
		t.Errorf("Y span = %v, want [0,266)", span)
	}
	if span := p.SourceSpan(first, blockflow.AxisX); span.Start != 0 || span.Stop != 266 {
		t.Errorf("X span = %v, want [0,266)", span)
	}

	dest := p.Dest(first)
	if dest.Offset != (blockflow.TZYX{}) || dest.Extent != (blockflow.TZYX{1, 5, 250, 250}) {
		t.Errorf("dest = %+v, want offset (0,0,0,0) extent (1,5,250,250)", dest)
	}
}

func TestNewPlanRejectsBadGeometry(t *testing.T) {
	ok := blockflow.TZYX{4, 4, 4, 4}
	if _, err := NewPlan(blockflow.TZYX{}, ok, blockflow.TZYX{0, 4, 4, 4}, blockflow.TZYX{}); err == nil {
		t.Errorf("expected error for zero chunk size")
	}
	if _, err := NewPlan(blockflow.TZYX{}, ok, ok, blockflow.TZYX{5, 0, 0, 0}); err == nil {
		t.Errorf("expected error for overlap exceeding chunk size")
	}
	if _, err := NewPlan(blockflow.TZYX{}, blockflow.TZYX{-1, 4, 4, 4}, ok, blockflow.TZYX{}); err == nil {
		t.Errorf("expected error for negative extent")
	}
}
