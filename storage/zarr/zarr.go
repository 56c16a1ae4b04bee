/*
Package zarr implements a chunked array store driver following the zarr v2
directory layout: a ".zarray" JSON metadata key plus one key per physical
chunk, named by dot-separated TCZYX chunk coordinates.

Region writes are performed by rewriting every physical chunk the region
touches.  Combined with atomic key puts in the backend, a persisted chunk
is either fully present or absent, which is the completeness guarantee the
resumable pipeline relies on.
*/
package zarr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blang/semver"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/storage"
)

func init() {
	ver, err := semver.Make("1.0.0")
	if err != nil {
		blockflow.Errorf("Unable to make semver in zarr: %v\n", err)
	}
	storage.RegisterEngine(Engine{"zarr", "zarr v2 directory store", ver})
}

// --- Engine implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

func parseConfig(config blockflow.Config) (path, compressor string, err error) {
	path, found, err := config.GetString("path")
	if err != nil {
		return
	}
	if !found {
		err = fmt.Errorf("%q must be specified for zarr store configuration", "path")
		return
	}
	compressor, _, err = config.GetString("compressor")
	return
}

// CreateStore creates a new zarr array directory with the given shape and
// physical chunk size.
func (e Engine) CreateStore(config blockflow.Config, shape, chunkSize blockflow.TCZYX) (storage.ChunkStore, error) {
	path, compressor, err := parseConfig(config)
	if err != nil {
		return nil, err
	}
	codec, err := CodecByName(compressor)
	if err != nil {
		return nil, err
	}
	backend, err := NewLocalStore(path)
	if err != nil {
		return nil, err
	}
	return NewArray(backend, shape, chunkSize, codec)
}

// OpenStore opens an existing zarr array directory, returning
// storage.ErrStoreNotFound if the directory or its metadata is missing.
func (e Engine) OpenStore(config blockflow.Config) (storage.ChunkStore, error) {
	path, _, err := parseConfig(config)
	if err != nil {
		return nil, err
	}
	backend, found, err := OpenLocalStore(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no directory at %q", storage.ErrStoreNotFound, path)
	}
	return OpenArray(backend)
}

// --- Array ------

// Array is a zarr array open for reading and writing.  It implements
// storage.ChunkStore.
type Array struct {
	backend  Backend
	meta     *ArrayMeta
	codec    Codec
	shape    blockflow.TCZYX
	chunks   blockflow.TCZYX
	gridDims blockflow.TCZYX
}

// NewArray initializes a new array on the given backend, writing its
// metadata key.
func NewArray(backend Backend, shape, chunkSize blockflow.TCZYX, codec Codec) (*Array, error) {
	meta := newArrayMeta(shape, chunkSize, codec)
	if err := meta.validate(); err != nil {
		return nil, err
	}
	encoded, err := meta.encode()
	if err != nil {
		return nil, err
	}
	if err := backend.Put(MetadataKey, encoded); err != nil {
		return nil, fmt.Errorf("cannot write array metadata: %v", err)
	}
	return arrayFromMeta(backend, meta)
}

// OpenArray opens an array already present on the backend.
func OpenArray(backend Backend) (*Array, error) {
	data, err := backend.Get(MetadataKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: missing %s key", storage.ErrStoreNotFound, MetadataKey)
	}
	if err != nil {
		return nil, err
	}
	meta, err := decodeArrayMeta(data)
	if err != nil {
		return nil, err
	}
	return arrayFromMeta(backend, meta)
}

func arrayFromMeta(backend Backend, meta *ArrayMeta) (*Array, error) {
	codec, err := codecFromMeta(meta.Compressor)
	if err != nil {
		return nil, err
	}
	a := &Array{
		backend: backend,
		meta:    meta,
		codec:   codec,
		shape:   meta.shapeTCZYX(),
		chunks:  meta.chunksTCZYX(),
	}
	for i := 0; i < 5; i++ {
		a.gridDims[i] = (a.shape[i] + a.chunks[i] - 1) / a.chunks[i]
	}
	return a, nil
}

// --- storage.ChunkStore implementation ------

func (a *Array) Shape() blockflow.TCZYX {
	return a.shape
}

func (a *Array) ChunkSize() blockflow.TCZYX {
	return a.chunks
}

func (a *Array) Close() error {
	return nil
}

// ListChunks returns every persisted physical chunk coordinate, excluding
// the metadata key and any key that does not parse as a chunk coordinate.
func (a *Array) ListChunks() (map[blockflow.TCZYX]struct{}, error) {
	keys, err := a.backend.List()
	if err != nil {
		return nil, err
	}
	coords := make(map[blockflow.TCZYX]struct{}, len(keys))
	for _, key := range keys {
		if key == MetadataKey {
			continue
		}
		coord, ok := parseChunkKey(key)
		if !ok {
			continue
		}
		coords[coord] = struct{}{}
	}
	return coords, nil
}

func (a *Array) checkRegion(r storage.Region) error {
	for i := 0; i < 5; i++ {
		if r.Offset[i] < 0 || r.Extent[i] < 0 || r.Offset[i]+r.Extent[i] > a.shape[i] {
			return fmt.Errorf("region %s exceeds array shape %s", r, a.shape)
		}
	}
	return nil
}

// ReadRegion reads a hyper-rectangle into a dense TCZYX buffer.  Samples
// in chunks that were never written read as zero.
func (a *Array) ReadRegion(r storage.Region) ([]uint16, error) {
	if err := a.checkRegion(r); err != nil {
		return nil, err
	}
	data := make([]uint16, r.NumElements())
	err := a.forEachChunk(r, func(coord blockflow.TCZYX, lo, hi blockflow.TCZYX) error {
		chunk, found, err := a.getChunk(coord)
		if err != nil {
			return err
		}
		if !found {
			return nil // fill value is zero
		}
		origin := coord.Mult(a.chunks)
		copyBlock(data, r.Extent, r.Offset, chunk, a.chunks, origin, lo, hi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteRegion assigns a dense TCZYX buffer into a hyper-rectangle.  Every
// physical chunk the region touches is rebuilt and atomically rewritten;
// chunks only partially covered are read first so untouched samples
// survive.
func (a *Array) WriteRegion(r storage.Region, data []uint16) error {
	if err := a.checkRegion(r); err != nil {
		return err
	}
	if int64(len(data)) != r.NumElements() {
		return fmt.Errorf("buffer has %d elements but region %s has %d", len(data), r, r.NumElements())
	}
	return a.forEachChunk(r, func(coord blockflow.TCZYX, lo, hi blockflow.TCZYX) error {
		origin := coord.Mult(a.chunks)

		var chunk []uint16
		full := true
		for i := 0; i < 5; i++ {
			if hi[i]-lo[i] != a.chunks[i] {
				full = false
				break
			}
		}
		if full {
			chunk = make([]uint16, a.chunks.Prod())
		} else {
			existing, found, err := a.getChunk(coord)
			if err != nil {
				return err
			}
			if found {
				chunk = existing
			} else {
				chunk = make([]uint16, a.chunks.Prod())
			}
		}

		copyBlock(chunk, a.chunks, origin, data, r.Extent, r.Offset, lo, hi)
		return a.putChunk(coord, chunk)
	})
}

// forEachChunk invokes fn for every physical chunk overlapping the region,
// passing the chunk coordinate and the absolute [lo, hi) intersection.
func (a *Array) forEachChunk(r storage.Region, fn func(coord, lo, hi blockflow.TCZYX) error) error {
	var c0, c1 blockflow.TCZYX
	for i := 0; i < 5; i++ {
		if r.Extent[i] == 0 {
			return nil
		}
		c0[i] = r.Offset[i] / a.chunks[i]
		c1[i] = (r.Offset[i] + r.Extent[i] - 1) / a.chunks[i]
	}
	var coord blockflow.TCZYX
	for coord[0] = c0[0]; coord[0] <= c1[0]; coord[0]++ {
		for coord[1] = c0[1]; coord[1] <= c1[1]; coord[1]++ {
			for coord[2] = c0[2]; coord[2] <= c1[2]; coord[2]++ {
				for coord[3] = c0[3]; coord[3] <= c1[3]; coord[3]++ {
					for coord[4] = c0[4]; coord[4] <= c1[4]; coord[4]++ {
						var lo, hi blockflow.TCZYX
						for i := 0; i < 5; i++ {
							lo[i] = coord[i] * a.chunks[i]
							if r.Offset[i] > lo[i] {
								lo[i] = r.Offset[i]
							}
							hi[i] = (coord[i] + 1) * a.chunks[i]
							if end := r.Offset[i] + r.Extent[i]; end < hi[i] {
								hi[i] = end
							}
						}
						if err := fn(coord, lo, hi); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

func (a *Array) getChunk(coord blockflow.TCZYX) ([]uint16, bool, error) {
	raw, err := a.backend.Get(chunkKey(coord))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	decoded, err := a.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("cannot decode chunk %s: %v", chunkKey(coord), err)
	}
	want := a.chunks.Prod() * blockflow.BytesPerElement
	if int64(len(decoded)) != want {
		return nil, false, fmt.Errorf("chunk %s has %d bytes, want %d", chunkKey(coord), len(decoded), want)
	}
	return bytesToU16(decoded), true, nil
}

func (a *Array) putChunk(coord blockflow.TCZYX, chunk []uint16) error {
	encoded, err := a.codec.Encode(u16ToBytes(chunk))
	if err != nil {
		return fmt.Errorf("cannot encode chunk %s: %v", chunkKey(coord), err)
	}
	return a.backend.Put(chunkKey(coord), encoded)
}

// copyBlock copies the absolute hyper-rectangle [lo, hi) from src into
// dst, where each buffer is dense TCZYX with the given shape and the
// absolute coordinate of its first element.
func copyBlock(dst []uint16, dstShape, dstOrigin blockflow.TCZYX, src []uint16, srcShape, srcOrigin blockflow.TCZYX, lo, hi blockflow.TCZYX) {
	nx := int64(hi[4] - lo[4])
	if nx <= 0 {
		return
	}
	dstStrides := strides(dstShape)
	srcStrides := strides(srcShape)
	for t := lo[0]; t < hi[0]; t++ {
		for c := lo[1]; c < hi[1]; c++ {
			for z := lo[2]; z < hi[2]; z++ {
				for y := lo[3]; y < hi[3]; y++ {
					di := offset5(dstStrides, dstOrigin, t, c, z, y, lo[4])
					si := offset5(srcStrides, srcOrigin, t, c, z, y, lo[4])
					copy(dst[di:di+nx], src[si:si+nx])
				}
			}
		}
	}
}

func strides(shape blockflow.TCZYX) [5]int64 {
	var s [5]int64
	s[4] = 1
	for i := 3; i >= 0; i-- {
		s[i] = s[i+1] * int64(shape[i+1])
	}
	return s
}

func offset5(strides [5]int64, origin blockflow.TCZYX, t, c, z, y, x int32) int64 {
	return int64(t-origin[0])*strides[0] +
		int64(c-origin[1])*strides[1] +
		int64(z-origin[2])*strides[2] +
		int64(y-origin[3])*strides[3] +
		int64(x-origin[4])*strides[4]
}

func u16ToBytes(data []uint16) []byte {
	b := make([]byte, len(data)*blockflow.BytesPerElement)
	for i, v := range data {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func bytesToU16(b []byte) []uint16 {
	data := make([]uint16, len(b)/blockflow.BytesPerElement)
	for i := range data {
		data[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return data
}
