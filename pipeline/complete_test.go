package pipeline

import (
	"testing"

	"github.com/janelia-flyem/blockflow/blockflow"
)

func TestChunkRatios(t *testing.T) {
	chunk := blockflow.TZYX{1, 5, 250, 250}
	output := blockflow.TCZYX{1, 1, 1, 250, 250}
	ratio, err := ChunkRatios(chunk, output)
	if err != nil {
		t.Fatalf("ChunkRatios: %v", err)
	}
	if ratio != (blockflow.TZYX{1, 5, 1, 1}) {
		t.Errorf("ratio = %s, want (1,5,1,1)", ratio)
	}

	// A chunk size that is not an exact multiple of the output chunk size
	// must be rejected before any work is planned.
	if _, err := ChunkRatios(blockflow.TZYX{1, 5, 7, 250}, blockflow.TCZYX{1, 1, 1, 5, 250}); err == nil {
		t.Error("expected error for 7 not divisible by 5")
	}
	if _, err := ChunkRatios(chunk, blockflow.TCZYX{1, 1, 0, 250, 250}); err == nil {
		t.Error("expected error for zero output chunk size")
	}
	if _, err := ChunkRatios(blockflow.TZYX{1, 5, 250, 250}, blockflow.TCZYX{1, 1, 10, 250, 250}); err == nil {
		t.Error("expected error for output chunk larger than logical chunk")
	}
}

func TestCompletenessIndex(t *testing.T) {
	// Logical chunks are (1,2,1,1) physical chunks.  The store's physical
	// grid is 2x2x4x2x2 in TCZYX order, so each logical chunk's footprint
	// is 2 z chunks times 2 channel chunks.
	ratio := blockflow.TZYX{1, 2, 1, 1}
	physDims := blockflow.TCZYX{2, 2, 4, 2, 2}

	coords := make(map[blockflow.TCZYX]struct{})
	// Logical chunk (0,0,0,0) fully persisted.
	for c := int32(0); c < 2; c++ {
		for z := int32(0); z < 2; z++ {
			coords[blockflow.TCZYX{0, c, z, 0, 0}] = struct{}{}
		}
	}
	// Logical chunk (1,0,0,0) only partially persisted.
	coords[blockflow.TCZYX{1, 0, 0, 0, 0}] = struct{}{}

	ci := NewCompletenessIndex(coords, ratio, physDims)
	if ci.NumPresent() != 5 {
		t.Errorf("NumPresent = %d, want 5", ci.NumPresent())
	}

	if !ci.IsComplete(blockflow.TZYX{0, 0, 0, 0}) {
		t.Error("fully persisted chunk reported incomplete")
	}
	if ci.IsComplete(blockflow.TZYX{1, 0, 0, 0}) {
		t.Error("partially persisted chunk reported complete")
	}
	if ci.IsComplete(blockflow.TZYX{0, 1, 0, 0}) {
		t.Error("absent chunk reported complete")
	}
}

func TestCompletenessIndexRequiresAllChannels(t *testing.T) {
	// A crash between channel-chunk writes can leave one channel persisted
	// and the other missing; the logical chunk must stay incomplete.
	ratio := blockflow.TZYX{1, 1, 1, 1}
	physDims := blockflow.TCZYX{1, 2, 1, 1, 1}
	coords := map[blockflow.TCZYX]struct{}{
		{0, 1, 0, 0, 0}: {},
	}
	ci := NewCompletenessIndex(coords, ratio, physDims)
	if ci.IsComplete(blockflow.TZYX{0, 0, 0, 0}) {
		t.Error("chunk missing channel 0 reported complete")
	}
	coords[blockflow.TCZYX{0, 0, 0, 0, 0}] = struct{}{}
	ci = NewCompletenessIndex(coords, ratio, physDims)
	if !ci.IsComplete(blockflow.TZYX{0, 0, 0, 0}) {
		t.Error("chunk with both channels persisted reported incomplete")
	}
}

func TestCompletenessIndexRemainderChunk(t *testing.T) {
	// 5 physical z chunks with ratio 2: the last logical chunk covers only
	// physical chunk 4, not an out-of-grid chunk 5.
	ratio := blockflow.TZYX{1, 2, 1, 1}
	physDims := blockflow.TCZYX{1, 1, 5, 1, 1}
	coords := map[blockflow.TCZYX]struct{}{
		{0, 0, 4, 0, 0}: {},
	}
	ci := NewCompletenessIndex(coords, ratio, physDims)
	if !ci.IsComplete(blockflow.TZYX{0, 2, 0, 0}) {
		t.Error("remainder chunk with its single physical chunk persisted reported incomplete")
	}
}
