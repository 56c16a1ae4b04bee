/*
Package reader defines the boundary to the image-file collaborator that
supplies raw sample data.  A Source exposes the image's total extent, an
optional bounding rectangle per scene, and hyper-rectangle reads returning
dense uint16 buffers in TCZYX order.

Format-specific decoding lives behind this interface; the pipeline only
performs shape and bounds adaptation on top of it.
*/
package reader

import (
	"context"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// Rect is a bounding rectangle in image coordinates.  X and Y locate the
// rectangle's origin, which need not be zero for multi-scene images.
type Rect struct {
	X int32
	Y int32
	W int32
	H int32
}

// XSpan returns the rectangle's X extent as a span.
func (r Rect) XSpan() blockflow.Span {
	return blockflow.NewSpan(r.X, r.X+r.W)
}

// YSpan returns the rectangle's Y extent as a span.
func (r Rect) YSpan() blockflow.Span {
	return blockflow.NewSpan(r.Y, r.Y+r.H)
}

// Source is an image file open for reading.
type Source interface {
	// Extents returns the image's total size per axis in TCZYX order.
	Extents() blockflow.TCZYX

	// TotalBounds returns the image's overall bounding rectangle.
	TotalBounds() Rect

	// SceneBounds returns the bounding rectangle of a scene, with
	// found == false if the image records no rectangle for that scene.
	SceneBounds(scene int) (Rect, bool)

	// ReadRegion reads the requested hyper-rectangle of one scene into a
	// freshly allocated buffer in TCZYX order.  All channels are read.
	// The t and z spans are in [0, extent) coordinates; y and x are in
	// absolute scene coordinates.  Requests outside the image's declared
	// bounds fail with a domain error.
	ReadRegion(ctx context.Context, scene int, t, z, y, x blockflow.Span) ([]uint16, error)
}

// Bounds returns the bounding rectangle for a scene, falling back to the
// image's total bounding rectangle if the scene has none.
func Bounds(src Source, scene int) Rect {
	if r, found := src.SceneBounds(scene); found {
		return r
	}
	return src.TotalBounds()
}

// RegionShape returns the TCZYX shape of a region read with the given
// spans, with all channels included.
func RegionShape(src Source, t, z, y, x blockflow.Span) blockflow.TCZYX {
	return blockflow.TCZYX{t.Len(), src.Extents().C(), z.Len(), y.Len(), x.Len()}
}
