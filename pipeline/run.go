package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/denoise"
	"github.com/janelia-flyem/blockflow/reader"
	"github.com/janelia-flyem/blockflow/storage"
	"github.com/janelia-flyem/blockflow/tiling"
)

// RunStats summarizes one run over a scene.
type RunStats struct {
	RunID     string
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Bytes     int64
	Elapsed   time.Duration
}

// Run executes one denoising run per the job configuration: plan the
// chunk grid over the scene's bounding rectangle, open or create the
// output store, skip chunks whose output already persists, and schedule
// the rest.  Individual chunk failures are counted, not fatal; rerunning
// with the same configuration retries exactly the unfinished chunks.
func Run(ctx context.Context, c *JobConfig, src reader.Source, denoiser denoise.Denoiser, sched Scheduler) (*RunStats, error) {
	start := time.Now()
	runID := uuid.NewV4().String()
	timedLog := blockflow.NewTimeLog()

	plan, err := PlanScene(c, src)
	if err != nil {
		return nil, err
	}
	blockflow.Infof("Run %s: scene %d grid %s, %d chunks\n",
		runID, c.Input.Scene, plan.GridDims(), plan.NumChunks())

	shape := src.Extents()
	bounds := reader.Bounds(src, c.Input.Scene)
	outShape := blockflow.TCZYX{shape[0], shape.C(), shape[2], bounds.H, bounds.W}
	outputChunk, err := c.OutputChunkSize()
	if err != nil {
		return nil, err
	}
	store, err := storage.OpenOrCreate(c.Output.Engine, c.StoreConfig(), outShape, outputChunk)
	if err != nil {
		return nil, fmt.Errorf("could not open output store: %v", err)
	}
	defer store.Close()

	if store.Shape() != outShape {
		return nil, fmt.Errorf("existing store shape %s does not match scene shape %s", store.Shape(), outShape)
	}
	// Validate the ratio against what the store actually persists, not
	// just the configuration, in case an existing array was created with
	// different chunking.
	ratio, err := ChunkRatios(plan.ChunkSize, store.ChunkSize())
	if err != nil {
		return nil, err
	}

	coords, err := store.ListChunks()
	if err != nil {
		return nil, fmt.Errorf("could not list persisted chunks: %v", err)
	}
	physDims := outShape.CeilDiv(store.ChunkSize())
	ci := NewCompletenessIndex(coords, ratio, physDims)
	blockflow.Infof("Run %s: store lists %d persisted chunks\n", runID, ci.NumPresent())

	p := &Pipeline{
		Plan:     plan,
		Source:   src,
		Scene:    c.Input.Scene,
		Denoiser: denoiser,
		Params:   c.Denoise,
		Store:    store,
		RunID:    runID,
	}
	units := p.BuildUnits(ci)
	stats := &RunStats{
		RunID:   runID,
		Total:   int(plan.NumChunks()),
		Skipped: int(plan.NumChunks()) - len(units),
	}
	if len(units) == 0 {
		stats.Elapsed = time.Since(start)
		timedLog.Infof("Run %s: all %d chunks already complete", runID, stats.Total)
		return stats, nil
	}
	blockflow.Infof("Run %s: %d of %d chunks need processing\n", runID, len(units), stats.Total)

	results := sched.Submit(ctx, units)
	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		stats.Bytes += plan.ChunkExtent(r.Index).Prod() * int64(shape.C()) * blockflow.BytesPerElement
	}
	stats.Elapsed = time.Since(start)

	storage.LogActivityToKafka(map[string]interface{}{
		"Action":    "run-complete",
		"RunID":     runID,
		"Total":     stats.Total,
		"Skipped":   stats.Skipped,
		"Succeeded": stats.Succeeded,
		"Failed":    stats.Failed,
		"Bytes":     stats.Bytes,
	})
	timedLog.Infof("Run %s: wrote %s in %d chunks, %d skipped, %d failed",
		runID, humanize.Bytes(uint64(stats.Bytes)), stats.Succeeded, stats.Skipped, stats.Failed)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d of %d chunks failed; rerun to retry them", stats.Failed, stats.Total)
	}
	return stats, nil
}

// PlanScene builds the chunk plan for the configured scene.  The plan
// covers the scene's bounding rectangle in Y and X, which for multi-scene
// images need not start at the image origin, and the full T and Z extents.
func PlanScene(c *JobConfig, src reader.Source) (*tiling.Plan, error) {
	chunkSize, err := c.ChunkSize()
	if err != nil {
		return nil, err
	}
	overlap, err := c.Overlap()
	if err != nil {
		return nil, err
	}
	shape := src.Extents()
	bounds := reader.Bounds(src, c.Input.Scene)
	origin := blockflow.TZYX{0, 0, bounds.Y, bounds.X}
	extent := blockflow.TZYX{shape[0], shape[2], bounds.H, bounds.W}
	return tiling.NewPlan(origin, extent, chunkSize, overlap)
}
