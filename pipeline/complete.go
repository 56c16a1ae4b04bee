package pipeline

import (
	"fmt"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// ChunkRatios returns the per-axis ratio of logical chunk size to the
// output store's physical chunk size.  Each ratio must be a positive
// integer; a violation is a fatal configuration error detected once at
// startup, before any work is planned.
func ChunkRatios(chunkSize blockflow.TZYX, outputChunkSize blockflow.TCZYX) (blockflow.TZYX, error) {
	proj := outputChunkSize.TZYX()
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		if proj[axis] <= 0 {
			return blockflow.TZYX{}, fmt.Errorf("output chunk size must be positive on axis %d, got %d", axis, proj[axis])
		}
		if proj[axis] > chunkSize[axis] {
			return blockflow.TZYX{}, fmt.Errorf("output chunk size %d exceeds logical chunk size %d on axis %d",
				proj[axis], chunkSize[axis], axis)
		}
		if chunkSize[axis]%proj[axis] != 0 {
			return blockflow.TZYX{}, fmt.Errorf("logical chunk size %d is not a multiple of output chunk size %d on axis %d",
				chunkSize[axis], proj[axis], axis)
		}
	}
	return chunkSize.Div(proj), nil
}

// CompletenessIndex answers whether a logical chunk's full physical
// storage-chunk footprint is already durably persisted.  It is built once
// per run from the store's chunk listing and read-only afterward.
//
// A logical chunk always spans every channel, so its footprint includes
// all channel chunks of the store's grid.  Footprints are clamped to the
// physical grid since remainder chunks cover fewer physical chunks than
// the ratio suggests.
type CompletenessIndex struct {
	present    map[blockflow.TCZYX]struct{}
	ratio      blockflow.TZYX
	physDims   blockflow.TZYX
	chanChunks int32
}

// NewCompletenessIndex builds the index from the physical chunk
// coordinates listed by the store.  ratio is the logical-to-physical
// chunk-size ratio per axis; physDims is the store's physical chunk-grid
// size with the channel axis included.
func NewCompletenessIndex(coords map[blockflow.TCZYX]struct{}, ratio blockflow.TZYX, physDims blockflow.TCZYX) *CompletenessIndex {
	present := make(map[blockflow.TCZYX]struct{}, len(coords))
	for coord := range coords {
		present[coord] = struct{}{}
	}
	return &CompletenessIndex{
		present:    present,
		ratio:      ratio,
		physDims:   physDims.TZYX(),
		chanChunks: physDims.C(),
	}
}

// NumPresent returns the number of distinct persisted chunk coordinates.
func (ci *CompletenessIndex) NumPresent() int {
	return len(ci.present)
}

// IsComplete returns true only if every physical storage chunk covered by
// the logical chunk at idx is present, across all channel chunks.
// Membership tests short-circuit on the first missing chunk, since most
// chunks are either fully absent or fully present.  A false result forces
// full recomputation of the logical chunk; partial patching is not
// supported.
func (ci *CompletenessIndex) IsComplete(idx blockflow.TZYX) bool {
	var lo, hi blockflow.TZYX
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		lo[axis] = idx[axis] * ci.ratio[axis]
		hi[axis] = (idx[axis] + 1) * ci.ratio[axis]
		if hi[axis] > ci.physDims[axis] {
			hi[axis] = ci.physDims[axis]
		}
		if lo[axis] >= hi[axis] {
			return false
		}
	}
	var c blockflow.TZYX
	for c[0] = lo[0]; c[0] < hi[0]; c[0]++ {
		for c[1] = lo[1]; c[1] < hi[1]; c[1]++ {
			for c[2] = lo[2]; c[2] < hi[2]; c[2]++ {
				for c[3] = lo[3]; c[3] < hi[3]; c[3]++ {
					for chanIdx := int32(0); chanIdx < ci.chanChunks; chanIdx++ {
						if _, found := ci.present[c.WithC(chanIdx)]; !found {
							return false
						}
					}
				}
			}
		}
	}
	return true
}
