/*
Package storage provides a unified interface to chunked array stores used
as denoising output targets.  Each store persists a fixed-shape array of
uint16 samples as physical chunks and supports hyper-rectangular region
writes addressed by per-axis offsets.

Stores must uphold one guarantee that the resumable pipeline depends on:
a physical chunk coordinate returned by ListChunks corresponds to a fully
written chunk body, never a partially written one.  Drivers achieve this
with atomic rename or transactional puts.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blang/semver"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// ErrStoreNotFound is returned when opening a store that does not exist.
// Callers recover by creating a new store with the declared shape and
// chunking, then proceeding with zero pre-completed chunks.
var ErrStoreNotFound = errors.New("chunked store not found")

// Region is a hyper-rectangle of the output array in TCZYX element
// coordinates, addressed by per-axis offset and extent.
type Region struct {
	Offset blockflow.TCZYX
	Extent blockflow.TCZYX
}

// NumElements returns the number of samples covered by the region.
func (r Region) NumElements() int64 {
	return r.Extent.Prod()
}

func (r Region) String() string {
	return fmt.Sprintf("offset %s extent %s", r.Offset, r.Extent)
}

// ChunkStore is a chunked array store open for reading and writing.
type ChunkStore interface {
	// Shape returns the full array extents in TCZYX order.
	Shape() blockflow.TCZYX

	// ChunkSize returns the physical chunk size in TCZYX order.
	ChunkSize() blockflow.TCZYX

	// ListChunks returns the coordinates of every durably persisted
	// physical chunk, excluding metadata keys.
	ListChunks() (map[blockflow.TCZYX]struct{}, error)

	// ReadRegion reads the given hyper-rectangle into a dense TCZYX
	// buffer.  Unwritten samples read as zero.
	ReadRegion(r Region) ([]uint16, error)

	// WriteRegion assigns a dense TCZYX buffer into the given
	// hyper-rectangle.
	WriteRegion(r Region, data []uint16) error

	Close() error
}

// Engine is a storage driver capable of creating and opening chunked
// array stores.
type Engine interface {
	// GetName returns the driver identifier used in configurations.
	GetName() string

	// GetDescription returns a human-readable driver description.
	GetDescription() string

	// GetSemVer returns the driver version.
	GetSemVer() semver.Version

	// CreateStore creates a new store with the given shape and physical
	// chunk size.  The passed Config holds driver-specific settings such
	// as a filesystem path.
	CreateStore(config blockflow.Config, shape, chunkSize blockflow.TCZYX) (ChunkStore, error)

	// OpenStore opens an existing store, returning ErrStoreNotFound if
	// no store exists at the configured location.
	OpenStore(config blockflow.Config) (ChunkStore, error)
}

var (
	enginesMu sync.Mutex
	engines   map[string]Engine
)

// RegisterEngine registers a storage driver under its name.  Drivers call
// this from their init function.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if engines == nil {
		engines = make(map[string]Engine)
	}
	engines[e.GetName()] = e
}

// GetEngine returns the registered driver with the given name.
func GetEngine(name string) (Engine, error) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	e, found := engines[name]
	if !found {
		return nil, fmt.Errorf("no storage engine %q is registered", name)
	}
	return e, nil
}

// EnginesAvailable returns a description of all registered drivers.
func EnginesAvailable() string {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	var desc string
	for _, e := range engines {
		if desc != "" {
			desc += "; "
		}
		desc += fmt.Sprintf("%s [%s]", e.GetName(), e.GetSemVer())
	}
	return desc
}

// OpenOrCreate opens the store described by config with the named engine,
// creating it with the declared shape and chunking if it does not exist.
func OpenOrCreate(engine string, config blockflow.Config, shape, chunkSize blockflow.TCZYX) (ChunkStore, error) {
	e, err := GetEngine(engine)
	if err != nil {
		return nil, err
	}
	store, err := e.OpenStore(config)
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, ErrStoreNotFound) {
		return nil, err
	}
	blockflow.Infof("Output store not found, creating new store with shape %s, chunks %s\n", shape, chunkSize)
	return e.CreateStore(config, shape, chunkSize)
}
