package pipeline

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// UnitResult records the outcome of one chunk pipeline.
type UnitResult struct {
	Index   blockflow.TZYX
	Err     error
	Elapsed time.Duration
}

// Scheduler runs a batch of chunk pipelines to completion.  A unit failure
// must not cancel sibling units: each chunk is independently restartable,
// so the scheduler drains the whole batch and reports per-unit outcomes.
type Scheduler interface {
	Submit(ctx context.Context, units []*Unit) []UnitResult
}

// Local runs chunk pipelines on in-process worker goroutines.
//
// Workers bounds how many units run at once.  Saturation additionally
// bounds how many units may hold loaded data concurrently: a unit acquires
// a data slot before loading and releases it after its write lands, which
// keeps memory proportional to the slot count rather than to however many
// loads the workers could race ahead on.
type Local struct {
	Workers    int
	Saturation float64
}

// NewLocal returns a local scheduler.  Zero workers means one per CPU;
// saturation at or below zero defaults to 1.0, one held-data unit per
// worker.
func NewLocal(workers int, saturation float64) *Local {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if saturation <= 0 {
		saturation = 1.0
	}
	return &Local{Workers: workers, Saturation: saturation}
}

func (s *Local) dataSlots() int64 {
	slots := int64(float64(s.Workers) * s.Saturation)
	if slots < 1 {
		slots = 1
	}
	return slots
}

// Submit runs the units and blocks until all have finished or the context
// is canceled.  Cancellation stops units that have not started; units
// already running finish their current stage chain.  A progress heartbeat
// logs counts on its own goroutine so long-running process stages cannot
// starve it.
func (s *Local) Submit(ctx context.Context, units []*Unit) []UnitResult {
	results := make([]UnitResult, len(units))
	slots := semaphore.NewWeighted(s.dataSlots())

	var done int64
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				blockflow.Infof("Processed %d of %d chunks\n", atomic.LoadInt64(&done), len(units))
			}
		}
	}()

	eg := &errgroup.Group{}
	eg.SetLimit(s.Workers)
	for i, unit := range units {
		i, unit := i, unit
		eg.Go(func() error {
			start := time.Now()
			err := s.runOne(ctx, unit, slots)
			results[i] = UnitResult{Index: unit.Index, Err: err, Elapsed: time.Since(start)}
			atomic.AddInt64(&done, 1)
			if err != nil {
				blockflow.Errorf("Chunk %s failed: %v\n", unit.Index, err)
			}
			// Always nil: a failed chunk must not cancel its siblings.
			return nil
		})
	}
	eg.Wait()

	return results
}

func (s *Local) runOne(ctx context.Context, unit *Unit, slots *semaphore.Weighted) error {
	if err := slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer slots.Release(1)
	return unit.Run(ctx)
}
