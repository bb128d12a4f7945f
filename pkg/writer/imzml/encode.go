package imzml

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/klauspost/compress/zlib"
)

// binaryWriter appends arrays to the ibd stream.
type binaryWriter struct {
	out      *countingWriter
	compress bool
	raw      []byte
	packed   bytes.Buffer
}

// encode appends values as little endian elements of type t to dst.
func encode(dst []byte, values []float64, t core.NumericType) []byte {
	for _, v := range values {
		switch t {
		case core.Float32:
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
		case core.Float64:
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
		case core.Int32:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(math.Round(v))))
		case core.Int64:
			dst = binary.LittleEndian.AppendUint64(dst, uint64(int64(math.Round(v))))
		}
	}
	return dst
}

// write stores values and returns their offset and stored byte count.
func (w *binaryWriter) write(values []float64, t core.NumericType) (offset, encoded int64, err error) {
	offset = w.out.n
	w.raw = encode(w.raw[:0], values, t)
	data := w.raw
	if w.compress {
		w.packed.Reset()
		zw := zlib.NewWriter(&w.packed)
		if _, err := zw.Write(w.raw); err != nil {
			return 0, 0, err
		}
		if err := zw.Close(); err != nil {
			return 0, 0, err
		}
		data = w.packed.Bytes()
	}
	if _, err := w.out.Write(data); err != nil {
		return 0, 0, err
	}
	return offset, int64(len(data)), nil
}
