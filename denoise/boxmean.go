package denoise

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// BoxMean is a reference Denoiser that applies a separable box-mean
// filter, using the patch window as per-axis half-width.  The channel
// axis is never smoothed.  It stands in for the external routine in
// tests and lets the full pipeline run without native dependencies.
type BoxMean struct{}

func (BoxMean) Denoise(ctx context.Context, data []uint16, shape blockflow.TCZYX, p Params) ([]uint16, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if int64(len(data)) != shape.Prod() {
		return nil, fmt.Errorf("buffer has %d samples but shape %s has %d", len(data), shape, shape.Prod())
	}

	cur := make([]uint16, len(data))
	copy(cur, data)
	next := make([]uint16, len(data))

	for axis := 0; axis < 5; axis++ {
		if p.Patch[axis] == 0 || axis == 1 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		boxFilterAxis(next, cur, shape, axis, p.Patch[axis])
		cur, next = next, cur
	}
	return cur, nil
}

// boxFilterAxis writes into dst the mean of src over a clamped window of
// half-width radius along one axis.
func boxFilterAxis(dst, src []uint16, shape blockflow.TCZYX, axis int, radius int32) {
	var strides [5]int64
	strides[4] = 1
	for i := 3; i >= 0; i-- {
		strides[i] = strides[i+1] * int64(shape[i+1])
	}

	n := shape[axis]
	stride := strides[axis]

	var it blockflow.TCZYX
	var walk func(dim int, base int64)
	walk = func(dim int, base int64) {
		if dim == 5 {
			// base addresses the line's first element along axis.
			for i := int32(0); i < n; i++ {
				lo := i - radius
				if lo < 0 {
					lo = 0
				}
				hi := i + radius
				if hi > n-1 {
					hi = n - 1
				}
				var sum int64
				for j := lo; j <= hi; j++ {
					sum += int64(src[base+int64(j)*stride])
				}
				dst[base+int64(i)*stride] = uint16(sum / int64(hi-lo+1))
			}
			return
		}
		if dim == axis {
			walk(dim+1, base)
			return
		}
		for it[dim] = 0; it[dim] < shape[dim]; it[dim]++ {
			walk(dim+1, base+int64(it[dim])*strides[dim])
		}
	}
	walk(0, 0)
}
