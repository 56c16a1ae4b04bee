// Command-line interface to the blockflow denoising engine.
// Provides commands to inspect a job's chunk plan and to run it.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/denoise"
	"github.com/janelia-flyem/blockflow/pipeline"
	"github.com/janelia-flyem/blockflow/reader"
	"github.com/janelia-flyem/blockflow/storage"

	_ "github.com/janelia-flyem/blockflow/storage/badger"
	_ "github.com/janelia-flyem/blockflow/storage/zarr"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Denoising routine to apply: "boxmean" or "identity".
	denoiser = flag.String("denoiser", "boxmean", "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")

	// Profile memory usage using standard gotest system.
	memprofile = flag.String("memprofile", "", "")

	// Number of logical CPUs to use.
	useCPU = flag.Int("numcpu", 0, "")
)

const helpMessage = `
blockflow is a resumable chunk-overlap denoising engine for large microscopy volumes

Usage: blockflow [options] <command>

      -denoiser   =string   Denoising routine: "boxmean" or "identity".
      -cpuprofile =string   Write CPU profile to this file.
      -memprofile =string   Write memory profile to this file on ctrl-C.
      -numcpu     =number   Number of logical CPUs to use.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	plan <config.toml>
	run  <config.toml>

The "plan" command prints the chunk grid and how many chunks a run would
actually process, without reading or writing any image data.  The "run"
command processes every incomplete chunk; rerunning after a failure or
interruption redoes only the chunks whose output is not fully persisted.
`

var usage = func() {
	fmt.Printf(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}

	if *runVerbose {
		blockflow.Verbose = true
		blockflow.SetLogMode(blockflow.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *useCPU != 0 {
		blockflow.NumCPU = *useCPU
	} else {
		blockflow.NumCPU = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(blockflow.NumCPU)

	// Capture ctrl+c and other interrupts, then handle graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	stopSig := make(chan os.Signal, 1)
	go func() {
		for sig := range stopSig {
			log.Printf("Stop signal captured: %q.  Shutting down...\n", sig)
			if *memprofile != "" {
				log.Printf("Storing memory profiling to %s...\n", *memprofile)
				f, err := os.Create(*memprofile)
				if err != nil {
					log.Fatal(err)
				}
				pprof.WriteHeapProfile(f)
				f.Close()
			}
			if *cpuprofile != "" {
				log.Printf("Stopping CPU profiling to %s...\n", *cpuprofile)
				pprof.StopCPUProfile()
			}
			cancel()
			time.Sleep(1 * time.Second)
			storage.KafkaShutdown()
			blockflow.Shutdown()
			os.Exit(1)
		}
	}()
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)

	if err := doCommand(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func doCommand(ctx context.Context, args []string) error {
	switch args[0] {
	case "about":
		fmt.Printf("blockflow version %s\n", blockflow.Version)
		fmt.Printf("Storage engines available: %s\n", storage.EnginesAvailable())
		return nil
	case "plan":
		return doPlan(args)
	case "run":
		return doRun(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func loadJob(args []string) (*pipeline.JobConfig, reader.Source, error) {
	if len(args) < 2 {
		return nil, nil, fmt.Errorf("%s command must be followed by the path to a TOML config", args[0])
	}
	c, err := pipeline.LoadConfig(args[1])
	if err != nil {
		return nil, nil, err
	}
	src, err := newSource(c)
	if err != nil {
		return nil, nil, err
	}
	return c, src, nil
}

// newSource opens the configured image source.  Only the built-in
// synthetic source is wired here; file-format drivers plug in behind
// reader.Source.
func newSource(c *pipeline.JobConfig) (reader.Source, error) {
	if c.Input.Path != "synthetic" {
		return nil, fmt.Errorf("no reader driver for input %q; only the \"synthetic\" source is built in", c.Input.Path)
	}
	extents, err := blockflow.SliceToTCZYX(c.Input.Extents)
	if err != nil {
		return nil, fmt.Errorf("input.extents: %v", err)
	}
	syn := reader.NewSynthetic(extents)
	if len(c.Input.SceneBounds) == 4 {
		syn.SetScene(c.Input.Scene, reader.Rect{
			X: int32(c.Input.SceneBounds[0]),
			Y: int32(c.Input.SceneBounds[1]),
			W: int32(c.Input.SceneBounds[2]),
			H: int32(c.Input.SceneBounds[3]),
		})
	} else if len(c.Input.SceneBounds) != 0 {
		return nil, fmt.Errorf("input.scene_bounds must have 4 components (x, y, w, h), got %d", len(c.Input.SceneBounds))
	}

	var src reader.Source = syn
	if c.Input.CacheMB > 0 {
		src = reader.NewCached(src, c.Input.CacheMB)
	}
	return src, nil
}

func newDenoiser() (denoise.Denoiser, error) {
	switch *denoiser {
	case "boxmean":
		return denoise.BoxMean{}, nil
	case "identity":
		return denoise.Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown denoiser %q", *denoiser)
	}
}

// doPlan prints the chunk grid and pending work for a job without reading
// or writing image data.
func doPlan(args []string) error {
	c, src, err := loadJob(args)
	if err != nil {
		return err
	}
	plan, err := pipeline.PlanScene(c, src)
	if err != nil {
		return err
	}
	fmt.Printf("Scene %d of %s\n", c.Input.Scene, c.Input.Path)
	fmt.Printf("Origin %s, extent %s\n", plan.Origin, plan.Extent)
	fmt.Printf("Chunk size %s with overlap %s\n", plan.ChunkSize, plan.Overlap)
	fmt.Printf("Grid %s = %d logical chunks\n", plan.GridDims(), plan.NumChunks())

	e, err := storage.GetEngine(c.Output.Engine)
	if err != nil {
		return err
	}
	store, err := e.OpenStore(c.StoreConfig())
	if err != nil {
		fmt.Printf("Output store not created yet; all %d chunks pending.\n", plan.NumChunks())
		return nil
	}
	defer store.Close()

	ratio, err := pipeline.ChunkRatios(plan.ChunkSize, store.ChunkSize())
	if err != nil {
		return err
	}
	coords, err := store.ListChunks()
	if err != nil {
		return err
	}
	physDims := store.Shape().CeilDiv(store.ChunkSize())
	ci := pipeline.NewCompletenessIndex(coords, ratio, physDims)
	var pending int64
	for _, idx := range plan.Chunks() {
		if !ci.IsComplete(idx) {
			pending++
		}
	}
	fmt.Printf("Output store lists %d persisted chunks; %d of %d logical chunks pending.\n",
		ci.NumPresent(), pending, plan.NumChunks())
	return nil
}

func doRun(ctx context.Context, args []string) error {
	c, src, err := loadJob(args)
	if err != nil {
		return err
	}
	c.Logging.SetLogger()
	defer blockflow.Shutdown()

	if c.Kafka != nil {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		if err := c.Kafka.Initialize(hostname); err != nil {
			return fmt.Errorf("could not initialize kafka: %v", err)
		}
		defer storage.KafkaShutdown()
	}

	dn, err := newDenoiser()
	if err != nil {
		return err
	}
	sched := pipeline.NewLocal(c.Scheduler.Workers, c.Scheduler.Saturation)

	stats, err := pipeline.Run(ctx, c, src, dn, sched)
	if stats != nil {
		fmt.Printf("Run %s: %d chunks total, %d skipped, %d succeeded, %d failed in %s\n",
			stats.RunID, stats.Total, stats.Skipped, stats.Succeeded, stats.Failed, stats.Elapsed)
	}
	return err
}
