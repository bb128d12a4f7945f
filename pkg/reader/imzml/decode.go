package imzml

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/klauspost/compress/zlib"
)

// decode converts little endian elements of type t to float64.
func decode(b []byte, t core.NumericType) []float64 {
	size := t.Size()
	out := make([]float64, len(b)/size)
	for i := range out {
		chunk := b[i*size:]
		switch t {
		case core.Float32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case core.Float64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case core.Int32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		case core.Int64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(chunk)))
		}
	}
	return out
}

// inflate decompresses a zlib stream that must hold exactly want bytes.
func inflate(b []byte, want int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()
	out := make([]byte, want)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, nil
}

// readArray reads length elements of info's type from r at offset. encoded
// is the stored byte count of compressed arrays.
func readArray(r io.ReaderAt, info ArrayInfo, offset, length, encoded int64) ([]float64, error) {
	size := int64(info.Type.Size())
	if !info.Compressed {
		buf := make([]byte, length*size)
		if _, err := r.ReadAt(buf, offset); err != nil {
			return nil, err
		}
		return decode(buf, info.Type), nil
	}
	buf := make([]byte, encoded)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	raw, err := inflate(buf, length*size)
	if err != nil {
		return nil, err
	}
	return decode(raw, info.Type), nil
}
