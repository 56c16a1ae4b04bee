/*
Package tiling computes the chunk-overlap geometry used to split a large
image volume into logical chunks, extend each chunk by a halo for
processing context, and map trimmed results back onto disjoint regions of
an output array.
*/
package tiling

import (
	"fmt"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// Plan holds the chunk grid for one processing run.  It is computed once,
// performs no I/O, and is read-only afterward.
//
// Origin is the scene origin per axis.  T and Z origins are normally zero
// but Y and X may be offset when a scene's bounding rectangle does not
// start at the image origin.  Source spans are expressed in absolute scene
// coordinates; destination regions are origin-free.
type Plan struct {
	Origin    blockflow.TZYX
	Extent    blockflow.TZYX
	ChunkSize blockflow.TZYX
	Overlap   blockflow.TZYX

	gridDims blockflow.TZYX
}

// NewPlan validates the geometry inputs and returns a chunk plan.
// The overlap on each axis must not exceed the chunk size, so that interior
// chunks always receive a full halo.
func NewPlan(origin, extent, chunkSize, overlap blockflow.TZYX) (*Plan, error) {
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		if extent[axis] < 0 {
			return nil, fmt.Errorf("axis %d extent must be non-negative, got %d", axis, extent[axis])
		}
		if chunkSize[axis] <= 0 {
			return nil, fmt.Errorf("axis %d chunk size must be positive, got %d", axis, chunkSize[axis])
		}
		if overlap[axis] < 0 {
			return nil, fmt.Errorf("axis %d overlap must be non-negative, got %d", axis, overlap[axis])
		}
		if overlap[axis] > chunkSize[axis] {
			return nil, fmt.Errorf("axis %d overlap %d exceeds chunk size %d", axis, overlap[axis], chunkSize[axis])
		}
	}
	return &Plan{
		Origin:    origin,
		Extent:    extent,
		ChunkSize: chunkSize,
		Overlap:   overlap,
		gridDims:  extent.CeilDiv(chunkSize),
	}, nil
}

// GridDims returns the number of logical chunks along each axis.
func (p *Plan) GridDims() blockflow.TZYX {
	return p.gridDims
}

// NumChunks returns the total number of logical chunks in the grid.
func (p *Plan) NumChunks() int64 {
	return p.gridDims.Prod()
}

// Chunks enumerates every logical chunk index in row-major order, the
// outermost (T) axis varying slowest.
func (p *Plan) Chunks() []blockflow.TZYX {
	indices := make([]blockflow.TZYX, 0, p.NumChunks())
	var idx blockflow.TZYX
	for idx[0] = 0; idx[0] < p.gridDims[0]; idx[0]++ {
		for idx[1] = 0; idx[1] < p.gridDims[1]; idx[1]++ {
			for idx[2] = 0; idx[2] < p.gridDims[2]; idx[2]++ {
				for idx[3] = 0; idx[3] < p.gridDims[3]; idx[3]++ {
					indices = append(indices, idx)
				}
			}
		}
	}
	return indices
}

// ChunkExtent returns the size of the logical chunk at the given index.
// The final chunk along an axis may be a smaller remainder chunk.
func (p *Plan) ChunkExtent(idx blockflow.TZYX) blockflow.TZYX {
	var ext blockflow.TZYX
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		ext[axis] = p.ChunkSize[axis]
		if rest := p.Extent[axis] - idx[axis]*p.ChunkSize[axis]; rest < ext[axis] {
			ext[axis] = rest
		}
	}
	return ext
}

// CoreSpan returns the halo-free span of the chunk on one axis in absolute
// scene coordinates.
func (p *Plan) CoreSpan(idx blockflow.TZYX, axis int) blockflow.Span {
	start := p.Origin[axis] + idx[axis]*p.ChunkSize[axis]
	stop := start + p.ChunkSize[axis]
	if limit := p.Origin[axis] + p.Extent[axis]; stop > limit {
		stop = limit
	}
	return blockflow.NewSpan(start, stop)
}

// SourceSpan returns the halo-extended span of the chunk on one axis,
// clamped to the valid axis domain.  Boundary chunks simply receive a
// smaller halo; the plan never requests coordinates outside the image.
func (p *Plan) SourceSpan(idx blockflow.TZYX, axis int) blockflow.Span {
	core := p.CoreSpan(idx, axis)
	start := core.Start - p.Overlap[axis]
	if min := p.Origin[axis]; start < min {
		start = min
	}
	stop := core.Stop + p.Overlap[axis]
	if max := p.Origin[axis] + p.Extent[axis]; stop > max {
		stop = max
	}
	return blockflow.NewSpan(start, stop)
}

// SourceSpans returns the halo-extended spans for all axes of a chunk.
func (p *Plan) SourceSpans(idx blockflow.TZYX) (spans [blockflow.NumAxes]blockflow.Span) {
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		spans[axis] = p.SourceSpan(idx, axis)
	}
	return
}

// ValidIndex returns true if idx addresses a chunk within the grid.
func (p *Plan) ValidIndex(idx blockflow.TZYX) bool {
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		if idx[axis] < 0 || idx[axis] >= p.gridDims[axis] {
			return false
		}
	}
	return true
}
