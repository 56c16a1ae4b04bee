package tiling

import "github.com/janelia-flyem/blockflow/blockflow"

// TrimOffsets returns, per axis, how many leading coordinates to drop from
// a halo-extended block so that only the chunk's core remains.  The low
// side loses the overlap amount unless the chunk is first along that axis;
// the trim is derived from the same spans used to build the plan, so it is
// the exact inverse of halo extension even when a halo was clamped at the
// image boundary.
func (p *Plan) TrimOffsets(idx blockflow.TZYX) blockflow.TZYX {
	var off blockflow.TZYX
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		off[axis] = p.CoreSpan(idx, axis).Start - p.SourceSpan(idx, axis).Start
	}
	return off
}

// DestRegion describes the destination hyper-rectangle of a trimmed chunk
// in the output array, per axis, in origin-free output coordinates.
type DestRegion struct {
	Offset blockflow.TZYX
	Extent blockflow.TZYX
}

// Dest returns the output region of the chunk at idx:
// [idx*chunkSize, idx*chunkSize + coreExtent) on each axis.  Distinct
// chunk indices map to disjoint regions by construction, which is what
// lets concurrent writers proceed without cross-chunk coordination.
func (p *Plan) Dest(idx blockflow.TZYX) DestRegion {
	return DestRegion{
		Offset: idx.Mult(p.ChunkSize),
		Extent: p.ChunkExtent(idx),
	}
}

// Overlaps returns true if two destination regions share any coordinates.
func (r DestRegion) Overlaps(other DestRegion) bool {
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		if r.Offset[axis]+r.Extent[axis] <= other.Offset[axis] {
			return false
		}
		if other.Offset[axis]+other.Extent[axis] <= r.Offset[axis] {
			return false
		}
	}
	return true
}
