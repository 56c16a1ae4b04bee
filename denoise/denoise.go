/*
Package denoise defines the boundary to the denoising routine applied to
each block.  The routine is opaque to the pipeline: it consumes a dense
TCZYX buffer plus a fixed numeric configuration and returns a denoised
buffer of the same shape.

Implementations must be safe to invoke concurrently on independent blocks
and must not depend on the order in which neighboring blocks are
processed.
*/
package denoise

import (
	"context"
	"fmt"
	"runtime"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// Params is the fixed numeric configuration of the denoising routine.
type Params struct {
	// Mode names the noise model, e.g. "poisson-gaussian".
	Mode string `toml:"mode"`

	// Gains and Offsets hold per-channel detector calibration.
	Gains   []float64 `toml:"gains"`
	Offsets []float64 `toml:"offsets"`

	// Patch is the patch-window size per axis in TCZYX order.
	Patch blockflow.TCZYX `toml:"-"`

	// MaxIter bounds the number of refinement iterations.
	MaxIter int `toml:"max_iter"`

	// PValue is the significance threshold for patch acceptance.
	PValue float64 `toml:"pvalue"`

	// NThreads is the thread count handed to the routine.
	NThreads int `toml:"nthreads"`

	// Axes tags the buffer's axis ordering.
	Axes string `toml:"axes"`
}

// DefaultParams returns the production lattice-lightsheet configuration.
func DefaultParams() Params {
	return Params{
		Mode:     "poisson-gaussian",
		Gains:    []float64{3.92},
		Offsets:  []float64{-388},
		Patch:    blockflow.TCZYX{0, 0, 1, 3, 3},
		MaxIter:  4,
		PValue:   0.1,
		NThreads: runtime.NumCPU(),
		Axes:     "TCZYX",
	}
}

// Validate checks params for obvious misconfiguration.
func (p Params) Validate() error {
	if p.Mode == "" {
		return fmt.Errorf("denoise mode must be specified")
	}
	if p.MaxIter <= 0 {
		return fmt.Errorf("denoise max_iter must be positive, got %d", p.MaxIter)
	}
	if p.PValue <= 0 || p.PValue >= 1 {
		return fmt.Errorf("denoise pvalue must be in (0,1), got %g", p.PValue)
	}
	if p.Axes != "TCZYX" {
		return fmt.Errorf("only TCZYX axis ordering is supported, got %q", p.Axes)
	}
	for i := 0; i < 5; i++ {
		if p.Patch[i] < 0 {
			return fmt.Errorf("patch window must be non-negative per axis, got %s", p.Patch)
		}
	}
	return nil
}

// Denoiser runs the denoising routine on one block.
type Denoiser interface {
	// Denoise returns a denoised buffer with the same shape as the
	// input.  The input buffer must not be modified.
	Denoise(ctx context.Context, data []uint16, shape blockflow.TCZYX, p Params) ([]uint16, error)
}

// Identity is a pass-through Denoiser used for dry runs and tests.
type Identity struct{}

func (Identity) Denoise(ctx context.Context, data []uint16, shape blockflow.TCZYX, p Params) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]uint16, len(data))
	copy(out, data)
	return out, nil
}
