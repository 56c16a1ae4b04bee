package zarr

import (
	"errors"
	"testing"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/storage"
)

func testShape() blockflow.TCZYX {
	return blockflow.TCZYX{2, 1, 3, 8, 8}
}

func testChunks() blockflow.TCZYX {
	return blockflow.TCZYX{1, 1, 1, 4, 4}
}

func newTestArray(t *testing.T, codecName string) (*Array, *MemoryStore) {
	t.Helper()
	codec, err := CodecByName(codecName)
	if err != nil {
		t.Fatalf("CodecByName(%q): %v", codecName, err)
	}
	backend := NewMemoryStore()
	a, err := NewArray(backend, testShape(), testChunks(), codec)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	return a, backend
}

func fillPattern(r storage.Region) []uint16 {
	data := make([]uint16, r.NumElements())
	for i := range data {
		data[i] = uint16(i*7 + 13)
	}
	return data
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, codec := range []string{"raw", "zlib", "snappy"} {
		a, _ := newTestArray(t, codec)
		r := storage.Region{
			Offset: blockflow.TCZYX{0, 0, 1, 2, 3},
			Extent: blockflow.TCZYX{2, 1, 2, 5, 5},
		}
		want := fillPattern(r)
		if err := a.WriteRegion(r, want); err != nil {
			t.Fatalf("[%s] WriteRegion: %v", codec, err)
		}
		got, err := a.ReadRegion(r)
		if err != nil {
			t.Fatalf("[%s] ReadRegion: %v", codec, err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("[%s] element %d = %d, want %d", codec, i, got[i], want[i])
			}
		}
	}
}

func TestUnwrittenReadsZero(t *testing.T) {
	a, _ := newTestArray(t, "raw")
	r := storage.Region{Offset: blockflow.TCZYX{1, 0, 0, 0, 0}, Extent: blockflow.TCZYX{1, 1, 1, 4, 4}}
	got, err := a.ReadRegion(r)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("element %d = %d, want fill value 0", i, v)
		}
	}
}

// TestPartialChunkWritePreservesNeighbors checks read-modify-write: two
// region writes that share a physical chunk must not clobber each other.
func TestPartialChunkWritePreservesNeighbors(t *testing.T) {
	a, _ := newTestArray(t, "raw")

	left := storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 0, 0}, Extent: blockflow.TCZYX{1, 1, 1, 4, 2}}
	right := storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 0, 2}, Extent: blockflow.TCZYX{1, 1, 1, 4, 2}}

	leftData := make([]uint16, left.NumElements())
	rightData := make([]uint16, right.NumElements())
	for i := range leftData {
		leftData[i] = 100
		rightData[i] = 200
	}
	if err := a.WriteRegion(left, leftData); err != nil {
		t.Fatalf("WriteRegion left: %v", err)
	}
	if err := a.WriteRegion(right, rightData); err != nil {
		t.Fatalf("WriteRegion right: %v", err)
	}

	got, err := a.ReadRegion(storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 0, 0}, Extent: blockflow.TCZYX{1, 1, 1, 4, 4}})
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint16(100)
			if x >= 2 {
				want = 200
			}
			if got[y*4+x] != want {
				t.Errorf("sample (y=%d,x=%d) = %d, want %d", y, x, got[y*4+x], want)
			}
		}
	}
}

func TestListChunksExcludesMetadata(t *testing.T) {
	a, _ := newTestArray(t, "raw")
	coords, err := a.ListChunks()
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(coords) != 0 {
		t.Fatalf("new array should have no chunks, got %d", len(coords))
	}

	r := storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 0, 0}, Extent: blockflow.TCZYX{1, 1, 1, 4, 4}}
	if err := a.WriteRegion(r, make([]uint16, r.NumElements())); err != nil {
		t.Fatalf("WriteRegion: %v", err)
	}
	coords, err = a.ListChunks()
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(coords) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(coords))
	}
	if _, found := coords[blockflow.TCZYX{0, 0, 0, 0, 0}]; !found {
		t.Errorf("expected chunk (0,0,0,0,0) present, got %v", coords)
	}
}

func TestOpenMissingArray(t *testing.T) {
	backend := NewMemoryStore()
	if _, err := OpenArray(backend); !errors.Is(err, storage.ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestReopenPreservesMetadata(t *testing.T) {
	a, backend := newTestArray(t, "zlib")
	reopened, err := OpenArray(backend)
	if err != nil {
		t.Fatalf("OpenArray: %v", err)
	}
	if reopened.Shape() != a.Shape() {
		t.Errorf("shape = %v, want %v", reopened.Shape(), a.Shape())
	}
	if reopened.ChunkSize() != a.ChunkSize() {
		t.Errorf("chunk size = %v, want %v", reopened.ChunkSize(), a.ChunkSize())
	}
	if reopened.meta.Compressor == nil || reopened.meta.Compressor.ID != "zlib" {
		t.Errorf("compressor = %+v, want zlib", reopened.meta.Compressor)
	}
}

func TestRegionBoundsChecked(t *testing.T) {
	a, _ := newTestArray(t, "raw")
	bad := storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 6, 0}, Extent: blockflow.TCZYX{1, 1, 1, 4, 4}}
	if err := a.WriteRegion(bad, make([]uint16, bad.NumElements())); err == nil {
		t.Errorf("expected write out of bounds to fail")
	}
	if _, err := a.ReadRegion(bad); err == nil {
		t.Errorf("expected read out of bounds to fail")
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	a, err := NewArray(backend, testShape(), testChunks(), rawCodec{})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	r := storage.Region{Offset: blockflow.TCZYX{0, 0, 0, 4, 4}, Extent: blockflow.TCZYX{1, 1, 1, 4, 4}}
	want := fillPattern(r)
	if err := a.WriteRegion(r, want); err != nil {
		t.Fatalf("WriteRegion: %v", err)
	}

	reopened, found, err := OpenLocalStore(dir)
	if err != nil || !found {
		t.Fatalf("OpenLocalStore: found=%v err=%v", found, err)
	}
	b, err := OpenArray(reopened)
	if err != nil {
		t.Fatalf("OpenArray: %v", err)
	}
	got, err := b.ReadRegion(r)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %d, want %d", i, got[i], want[i])
		}
	}

	coords, err := b.ListChunks()
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if _, found := coords[blockflow.TCZYX{0, 0, 0, 1, 1}]; !found {
		t.Errorf("expected chunk (0,0,0,1,1), got %v", coords)
	}
}
