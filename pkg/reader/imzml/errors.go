package imzml

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBinary is returned when the .ibd file next to the .imzML
	// file does not exist.
	ErrMissingBinary = errors.New("imzml: binary file not found")

	// ErrNoSpectrumList is returned when the document has no spectrumList
	// element.
	ErrNoSpectrumList = errors.New("imzml: no spectrumList element")

	// ErrDataRange is the sentinel wrapped by every DataRangeError.
	ErrDataRange = errors.New("imzml: data range outside binary file")

	// ErrChecksum is returned by Verify when the ibd file does not match the
	// declared SHA-1 or UUID.
	ErrChecksum = errors.New("imzml: checksum mismatch")
)

// FormatError reports a malformed value in the imzML document.
type FormatError struct {
	Line      int // 1-based line, 0 when unknown
	Accession string
	Err       error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("imzml: line %d: %s: %v", e.Line, e.Accession, e.Err)
	}
	return fmt.Sprintf("imzml: %s: %v", e.Accession, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DataRangeError reports a declared array whose bytes do not lie inside the
// binary file.
type DataRangeError struct {
	Spectrum int
	Array    string // "m/z" or "intensity"
	Offset   int64
	Length   int64 // bytes
	FileSize int64
}

func (e *DataRangeError) Error() string {
	return fmt.Sprintf("imzml: spectrum %d: %s array [%d, %d) outside binary file of %d bytes",
		e.Spectrum, e.Array, e.Offset, e.Offset+e.Length, e.FileSize)
}

func (e *DataRangeError) Unwrap() error { return ErrDataRange }
