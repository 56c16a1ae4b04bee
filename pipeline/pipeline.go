/*
Package pipeline drives the per-chunk denoising work: computing the work
list of logical chunks not yet durably written, then running each chunk
through load, process, trim, and write stages.

Each stage is a pure transform from one buffer to the next with side
effects scoped to a single chunk, so an external scheduler may run any
number of chunk pipelines concurrently.  Distinct logical chunks write to
disjoint output regions by construction, and safety within one physical
storage chunk rests on the store's guarantee that a persisted chunk is
never observably partial.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/denoise"
	"github.com/janelia-flyem/blockflow/reader"
	"github.com/janelia-flyem/blockflow/storage"
	"github.com/janelia-flyem/blockflow/tiling"
)

// ErrOutOfBounds is returned by the load stage when a requested
// halo-extended Y/X range lies outside the source image's declared
// bounding rectangle.  It fails the single chunk, not the run.
var ErrOutOfBounds = errors.New("input range lies outside image")

// Block is a dense in-memory TCZYX buffer tagged with the logical chunk
// index and the grid it was cut from.  Ownership transfers stage to
// stage; each stage exclusively owns its input until it produces output.
type Block struct {
	Index blockflow.TZYX
	Grid  blockflow.TZYX
	Shape blockflow.TCZYX
	Data  []uint16
}

// Pipeline binds the collaborators needed to run chunk pipelines: the
// chunk plan, the image source, the denoising routine, and the output
// store.  The store is shared across concurrent write stages, which is
// safe because the integer chunk-size ratio guarantees no physical
// storage chunk straddles two logical chunks.
type Pipeline struct {
	Plan     *tiling.Plan
	Source   reader.Source
	Scene    int
	Denoiser denoise.Denoiser
	Params   denoise.Params
	Store    storage.ChunkStore

	// RunID tags activity records so events from interleaved or resumed
	// runs can be told apart downstream.
	RunID string
}

// Load validates the halo-extended Y/X ranges against the scene's
// declared bounds, then reads the hyper-rectangle into a fresh block in
// TCZYX order.  This is the only stage permitted to perform
// format-specific I/O.
func (p *Pipeline) Load(ctx context.Context, idx blockflow.TZYX) (*Block, error) {
	spans := p.Plan.SourceSpans(idx)
	bounds := reader.Bounds(p.Source, p.Scene)
	if !blockflow.RangeContains(spans[blockflow.AxisY], bounds.YSpan()) ||
		!blockflow.RangeContains(spans[blockflow.AxisX], bounds.XSpan()) {
		return nil, fmt.Errorf("%w: chunk %s wants y %s x %s but scene %d bounds are %+v",
			ErrOutOfBounds, idx, spans[blockflow.AxisY], spans[blockflow.AxisX], p.Scene, bounds)
	}

	data, err := p.Source.ReadRegion(ctx, p.Scene,
		spans[blockflow.AxisT], spans[blockflow.AxisZ],
		spans[blockflow.AxisY], spans[blockflow.AxisX])
	if err != nil {
		return nil, err
	}
	shape := reader.RegionShape(p.Source,
		spans[blockflow.AxisT], spans[blockflow.AxisZ],
		spans[blockflow.AxisY], spans[blockflow.AxisX])
	if int64(len(data)) != shape.Prod() {
		return nil, fmt.Errorf("source returned %d samples for chunk %s, want %d", len(data), idx, shape.Prod())
	}
	return &Block{
		Index: idx,
		Grid:  p.Plan.GridDims(),
		Shape: shape,
		Data:  data,
	}, nil
}

// Process invokes the denoising routine on the full block including its
// halo.  It holds no cross-block state and is safe to invoke concurrently
// on independent blocks.
func (p *Pipeline) Process(ctx context.Context, b *Block) (*Block, error) {
	out, err := p.Denoiser.Denoise(ctx, b.Data, b.Shape, p.Params)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) != b.Shape.Prod() {
		return nil, fmt.Errorf("denoiser returned %d samples for chunk %s, want %d", len(out), b.Index, b.Shape.Prod())
	}
	return &Block{
		Index: b.Index,
		Grid:  b.Grid,
		Shape: b.Shape,
		Data:  out,
	}, nil
}

// Trim removes the halo, exactly reversing the extension computed by the
// plan: the low side loses the overlap amount unless the chunk is first
// along that axis, the high side unless it is last.  The channel axis is
// passed through whole.  The trimmed block's shape always equals the
// chunk's core extent, remainder chunks included.
func (p *Pipeline) Trim(b *Block) (*Block, error) {
	off := p.Plan.TrimOffsets(b.Index)
	ext := p.Plan.ChunkExtent(b.Index)
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		loaded := p.Plan.SourceSpan(b.Index, axis).Len()
		if b.Shape.TZYX()[axis] != loaded {
			return nil, fmt.Errorf("chunk %s axis %d has %d samples but plan loaded %d",
				b.Index, axis, b.Shape.TZYX()[axis], loaded)
		}
	}

	srcShape := b.Shape
	dstShape := ext.WithC(srcShape.C())
	dst := make([]uint16, dstShape.Prod())

	nx := int64(ext[blockflow.AxisX])
	srcYStride := int64(srcShape[4])
	srcZStride := srcYStride * int64(srcShape[3])
	srcCStride := srcZStride * int64(srcShape[2])
	srcTStride := srcCStride * int64(srcShape[1])

	i := int64(0)
	for t := int64(0); t < int64(ext[blockflow.AxisT]); t++ {
		for c := int64(0); c < int64(srcShape.C()); c++ {
			for z := int64(0); z < int64(ext[blockflow.AxisZ]); z++ {
				for y := int64(0); y < int64(ext[blockflow.AxisY]); y++ {
					si := (t+int64(off[blockflow.AxisT]))*srcTStride +
						c*srcCStride +
						(z+int64(off[blockflow.AxisZ]))*srcZStride +
						(y+int64(off[blockflow.AxisY]))*srcYStride +
						int64(off[blockflow.AxisX])
					copy(dst[i:i+nx], b.Data[si:si+nx])
					i += nx
				}
			}
		}
	}

	return &Block{
		Index: b.Index,
		Grid:  b.Grid,
		Shape: dstShape,
		Data:  dst,
	}, nil
}

// Write assigns the trimmed block into its destination hyper-rectangle
// of the output store.  Distinct logical chunks map to disjoint
// destinations, so concurrent writers need no cross-chunk coordination.
func (p *Pipeline) Write(ctx context.Context, b *Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := p.Plan.Dest(b.Index)
	if b.Shape.TZYX() != dest.Extent {
		return fmt.Errorf("chunk %s trimmed shape %s does not match destination extent %s",
			b.Index, b.Shape.TZYX(), dest.Extent)
	}
	region := storage.Region{
		Offset: dest.Offset.WithC(0),
		Extent: b.Shape,
	}

	blockflow.Debugf("Saving section %s for chunk %s\n", region, b.Index)
	return p.Store.WriteRegion(region, b.Data)
}

// Unit is one logical chunk's pipeline with bound arguments, ready for
// submission to a scheduler.
type Unit struct {
	Index    blockflow.TZYX
	pipeline *Pipeline
}

// Run executes the four stages for this unit's chunk.  A failure aborts
// only this chunk; a later run will re-detect the chunk as incomplete and
// redo it from scratch, so Run is safe to restart after cancellation.
func (u *Unit) Run(ctx context.Context) error {
	timedLog := blockflow.NewTimeLog()

	block, err := u.pipeline.Load(ctx, u.Index)
	if err != nil {
		return fmt.Errorf("load chunk %s: %v", u.Index, err)
	}
	block, err = u.pipeline.Process(ctx, block)
	if err != nil {
		return fmt.Errorf("process chunk %s: %v", u.Index, err)
	}
	block, err = u.pipeline.Trim(block)
	if err != nil {
		return fmt.Errorf("trim chunk %s: %v", u.Index, err)
	}
	if err := u.pipeline.Write(ctx, block); err != nil {
		return fmt.Errorf("write chunk %s: %v", u.Index, err)
	}

	timedLog.Infof("Completed chunk %s of grid %s", u.Index, block.Grid)
	storage.LogActivityToKafka(map[string]interface{}{
		"Action": "chunk-complete",
		"RunID":  u.pipeline.RunID,
		"Chunk":  u.Index.String(),
		"Bytes":  block.Shape.Prod() * blockflow.BytesPerElement,
	})
	return nil
}

// BuildUnits returns the work list: one unit per logical chunk whose
// physical storage footprint is not already fully persisted, in row-major
// order.  All units are built up front so the scheduler receives the
// whole batch at once.
func (p *Pipeline) BuildUnits(ci *CompletenessIndex) []*Unit {
	var units []*Unit
	for _, idx := range p.Plan.Chunks() {
		if ci.IsComplete(idx) {
			blockflow.Debugf("Skipping already complete chunk %s\n", idx)
			continue
		}
		blockflow.Debugf("Added %s\n", idx)
		units = append(units, &Unit{Index: idx, pipeline: p})
	}
	return units
}
