package zarr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/janelia-flyem/blockflow/blockflow"
)

const (
	// MetadataKey is the array metadata key within a store.  It is the
	// one key excluded when listing persisted chunks.
	MetadataKey = ".zarray"

	// zarrFormat is the storage specification version written to metadata.
	zarrFormat = 2

	// dtypeUint16LE is the little-endian 16-bit unsigned sample type all
	// blockflow output arrays use.
	dtypeUint16LE = "<u2"

	// dimSeparator joins chunk coordinates into flat store keys like
	// "3.0.1.0.2".
	dimSeparator = "."
)

// ArrayMeta is the JSON configuration stored under the ".zarray" key,
// following the zarr v2 array metadata layout.
type ArrayMeta struct {
	ZarrFormat         int              `json:"zarr_format"`
	Shape              []int32          `json:"shape"`
	Chunks             []int32          `json:"chunks"`
	Dtype              string           `json:"dtype"`
	Compressor         *CompressionMeta `json:"compressor"`
	FillValue          interface{}      `json:"fill_value"`
	Order              string           `json:"order"`
	Filters            interface{}      `json:"filters"`
	DimensionSeparator string           `json:"dimension_separator,omitempty"`
}

func newArrayMeta(shape, chunks blockflow.TCZYX, codec Codec) *ArrayMeta {
	return &ArrayMeta{
		ZarrFormat:         zarrFormat,
		Shape:              shape[:],
		Chunks:             chunks[:],
		Dtype:              dtypeUint16LE,
		Compressor:         codec.Meta(),
		FillValue:          0,
		Order:              "C",
		DimensionSeparator: dimSeparator,
	}
}

func (m *ArrayMeta) validate() error {
	if m.ZarrFormat != zarrFormat {
		return fmt.Errorf("unsupported zarr format %d", m.ZarrFormat)
	}
	if len(m.Shape) != 5 || len(m.Chunks) != 5 {
		return fmt.Errorf("blockflow arrays must be 5-d TCZYX, got shape %v chunks %v", m.Shape, m.Chunks)
	}
	if m.Dtype != dtypeUint16LE {
		return fmt.Errorf("unsupported dtype %q, only %q is handled", m.Dtype, dtypeUint16LE)
	}
	if m.Order != "C" {
		return fmt.Errorf("unsupported chunk layout order %q", m.Order)
	}
	for i := 0; i < 5; i++ {
		if m.Shape[i] < 0 || m.Chunks[i] <= 0 {
			return fmt.Errorf("bad geometry: shape %v chunks %v", m.Shape, m.Chunks)
		}
	}
	return nil
}

func (m *ArrayMeta) shapeTCZYX() (p blockflow.TCZYX) {
	copy(p[:], m.Shape)
	return
}

func (m *ArrayMeta) chunksTCZYX() (p blockflow.TCZYX) {
	copy(p[:], m.Chunks)
	return
}

func (m *ArrayMeta) encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "    ")
}

func decodeArrayMeta(data []byte) (*ArrayMeta, error) {
	m := new(ArrayMeta)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("cannot decode %s metadata: %v", MetadataKey, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// chunkKey returns the flat store key for a physical chunk coordinate.
func chunkKey(coord blockflow.TCZYX) string {
	parts := make([]string, 5)
	for i, c := range coord {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, dimSeparator)
}

// parseChunkKey recovers a physical chunk coordinate from a store key.
// Returns ok == false for keys that are not chunk keys, e.g. metadata.
func parseChunkKey(key string) (coord blockflow.TCZYX, ok bool) {
	parts := strings.Split(key, dimSeparator)
	if len(parts) != 5 {
		return coord, false
	}
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil || v < 0 {
			return coord, false
		}
		coord[i] = int32(v)
	}
	return coord, true
}
