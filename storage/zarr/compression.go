package zarr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
)

// CompressionMeta is the compressor configuration in array metadata.  A nil
// CompressionMeta means chunks are stored raw.
type CompressionMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// Codec encodes and decodes physical chunk bodies.
type Codec interface {
	// Meta returns the compressor metadata, or nil for raw storage.
	Meta() *CompressionMeta

	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// CodecByName returns the codec for a compressor name: "raw", "zlib", or
// "snappy".  An empty name selects raw storage.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "raw":
		return rawCodec{}, nil
	case "zlib":
		return zlibCodec{level: zlib.DefaultCompression}, nil
	case "snappy":
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compressor %q", name)
	}
}

func codecFromMeta(m *CompressionMeta) (Codec, error) {
	if m == nil {
		return rawCodec{}, nil
	}
	switch m.ID {
	case "zlib":
		level := m.Level
		if level == 0 {
			level = zlib.DefaultCompression
		}
		return zlibCodec{level: level}, nil
	case "snappy":
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compressor id %q in array metadata", m.ID)
	}
}

type rawCodec struct{}

func (rawCodec) Meta() *CompressionMeta             { return nil }
func (rawCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (rawCodec) Decode(data []byte) ([]byte, error) { return data, nil }

type zlibCodec struct {
	level int
}

func (c zlibCodec) Meta() *CompressionMeta {
	return &CompressionMeta{ID: "zlib", Level: c.level}
}

func (c zlibCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c zlibCodec) Decode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type snappyCodec struct{}

func (snappyCodec) Meta() *CompressionMeta {
	return &CompressionMeta{ID: "snappy"}
}

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}
