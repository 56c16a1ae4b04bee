package pipeline

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/denoise"
	"github.com/janelia-flyem/blockflow/storage"
)

// JobConfig is the TOML description of one denoising run.
type JobConfig struct {
	Input     InputConfig     `toml:"input"`
	Chunks    ChunkConfig     `toml:"chunks"`
	Output    OutputConfig    `toml:"output"`
	Denoise   denoise.Params  `toml:"denoise"`
	Scheduler SchedulerConfig `toml:"scheduler"`

	Logging blockflow.LogConfig  `toml:"logging"`
	Kafka   *storage.KafkaConfig `toml:"kafka"`
}

// InputConfig locates the source image and selects the scene to process.
type InputConfig struct {
	Path    string `toml:"path"`
	Scene   int    `toml:"scene"`
	CacheMB int    `toml:"cache_mb"`

	// Extents declares the image size in TCZYX order for sources that do
	// not carry their own metadata, like the synthetic test source.
	Extents []int64 `toml:"extents"`

	// SceneBounds optionally declares the scene's bounding rectangle as
	// x, y, w, h.  Sources without one fall back to the total bounds.
	SceneBounds []int64 `toml:"scene_bounds"`
}

// ChunkConfig sets the logical chunk geometry in TZYX order.
type ChunkConfig struct {
	Size    []int64 `toml:"size"`
	Overlap []int64 `toml:"overlap"`

	// Patch is the denoiser's patch-window size in TCZYX order.  It lives
	// with the chunk geometry because the overlap must cover it.
	Patch []int64 `toml:"patch"`
}

// OutputConfig names the storage engine and array layout for results.
type OutputConfig struct {
	Engine     string  `toml:"engine"`
	Path       string  `toml:"path"`
	ChunkSize  []int64 `toml:"chunk_size"` // TCZYX
	Compressor string  `toml:"compressor"`
}

// SchedulerConfig sets worker parallelism for the local scheduler.
type SchedulerConfig struct {
	Workers    int     `toml:"workers"`
	Saturation float64 `toml:"saturation"`
}

// LoadConfig reads and validates a TOML job configuration.
func LoadConfig(path string) (*JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %q: %v", path, err)
	}
	var c JobConfig
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("could not decode config file %q: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration before any planning or I/O happens.
// Geometry errors here are fatal: a chunk size that is not an exact
// multiple of the output chunk size would make completeness undecidable,
// so the run must not start.
func (c *JobConfig) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input path must be specified")
	}
	if c.Input.Scene < 0 {
		return fmt.Errorf("input scene must be non-negative, got %d", c.Input.Scene)
	}
	chunkSize, err := c.ChunkSize()
	if err != nil {
		return err
	}
	if c.Output.Engine == "" {
		c.Output.Engine = "zarr"
	}
	if _, err := storage.GetEngine(c.Output.Engine); err != nil {
		return fmt.Errorf("output engine %q: %v", c.Output.Engine, err)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output path must be specified")
	}
	outputChunk, err := c.OutputChunkSize()
	if err != nil {
		return err
	}
	if _, err := ChunkRatios(chunkSize, outputChunk); err != nil {
		return err
	}

	if c.Denoise.Mode == "" {
		c.Denoise = denoise.DefaultParams()
	}
	if len(c.Chunks.Patch) != 0 {
		patch, err := blockflow.SliceToTCZYX(c.Chunks.Patch)
		if err != nil {
			return fmt.Errorf("chunks.patch: %v", err)
		}
		c.Denoise.Patch = patch
	}
	if err := c.Denoise.Validate(); err != nil {
		return err
	}
	// The halo must cover the denoiser's patch reach or chunk seams would
	// show.  An absent overlap defaults to exactly the patch size.
	patchReach := c.Denoise.Patch.TZYX()
	if len(c.Chunks.Overlap) == 0 {
		c.Chunks.Overlap = make([]int64, blockflow.NumAxes)
		for axis := 0; axis < blockflow.NumAxes; axis++ {
			c.Chunks.Overlap[axis] = int64(patchReach[axis])
		}
	}
	overlap, err := c.Overlap()
	if err != nil {
		return err
	}
	for axis := 0; axis < blockflow.NumAxes; axis++ {
		if overlap[axis] < patchReach[axis] {
			return fmt.Errorf("axis %d overlap %d is smaller than the denoise patch %d, so chunk seams would show",
				axis, overlap[axis], patchReach[axis])
		}
		if overlap[axis] > chunkSize[axis] {
			return fmt.Errorf("axis %d overlap %d exceeds chunk size %d", axis, overlap[axis], chunkSize[axis])
		}
	}

	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler workers must be non-negative, got %d", c.Scheduler.Workers)
	}
	return nil
}

// ChunkSize returns the logical chunk size in TZYX order.
func (c *JobConfig) ChunkSize() (blockflow.TZYX, error) {
	size, err := blockflow.SliceToTZYX(c.Chunks.Size)
	if err != nil {
		return blockflow.TZYX{}, fmt.Errorf("chunks.size: %v", err)
	}
	return size, nil
}

// Overlap returns the halo size in TZYX order.  An absent overlap means
// no halo.
func (c *JobConfig) Overlap() (blockflow.TZYX, error) {
	if len(c.Chunks.Overlap) == 0 {
		return blockflow.TZYX{}, nil
	}
	overlap, err := blockflow.SliceToTZYX(c.Chunks.Overlap)
	if err != nil {
		return blockflow.TZYX{}, fmt.Errorf("chunks.overlap: %v", err)
	}
	return overlap, nil
}

// OutputChunkSize returns the output array's chunk size in TCZYX order.
func (c *JobConfig) OutputChunkSize() (blockflow.TCZYX, error) {
	size, err := blockflow.SliceToTCZYX(c.Output.ChunkSize)
	if err != nil {
		return blockflow.TCZYX{}, fmt.Errorf("output.chunk_size: %v", err)
	}
	return size, nil
}

// StoreConfig returns the engine-specific configuration used to create or
// open the output store.
func (c *JobConfig) StoreConfig() blockflow.Config {
	config := blockflow.Config{
		"path": c.Output.Path,
	}
	if c.Output.Compressor != "" {
		config["compressor"] = c.Output.Compressor
	}
	return config
}
