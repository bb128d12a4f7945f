// Package core provides the data model shared by the imzML reader, writer and
// the signal-processing pipeline: spectra, source records, peaks, intervals and
// the enumerated processing strategies.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Index is a 0-based pixel position.
type Index struct {
	X, Y, Z int
}

// Point is a physical position.
type Point struct {
	X, Y, Z float64
}

// Geometry is the image grid. Spacing and Origin are in mm.
type Geometry struct {
	Dims    [3]int
	Spacing [3]float64
	Origin  [3]float64
}

// Pixels returns the number of grid positions.
func (g Geometry) Pixels() int { return g.Dims[0] * g.Dims[1] * g.Dims[2] }

// SourceRecord locates one pixel's arrays inside the binary file.
type SourceRecord struct {
	Index Index
	World Point // SciLs 3D position, zero when absent

	MzOffset        int64
	MzLength        int64 // number of elements
	MzEncodedLength int64 // number of bytes, 0 when not declared

	IntOffset        int64
	IntLength        int64
	IntEncodedLength int64

	InFileNormalization float64 // MS:1000285, 1 when absent
	NormalizationFactor float64 // computed by image access initialization
}

// Spectrum is one decoded pixel spectrum.
type Spectrum struct {
	ID        int // position in the source table
	Index     Index
	MZ        []float64
	Intensity []float64

	// Optional metadata
	NormalizationFactor float64 // divisor not yet applied to Intensity, 0 or 1 for none
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum can be written or processed.
func (s *Spectrum) Validate() error {
	var errs []string

	if len(s.MZ) != len(s.Intensity) {
		errs = append(errs, fmt.Sprintf("m/z length %d does not match intensity length %d", len(s.MZ), len(s.Intensity)))
	}
	if s.Index.X < 0 || s.Index.Y < 0 || s.Index.Z < 0 {
		errs = append(errs, "pixel index must be non-negative")
	}

	for i, mz := range s.MZ {
		if math.IsNaN(mz) || math.IsInf(mz, 0) {
			errs = append(errs, fmt.Sprintf("value %d has invalid m/z", i))
		}
	}
	for i, v := range s.Intensity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("value %d has invalid intensity", i))
		}
	}

	if !s.IsSorted() {
		errs = append(errs, "m/z values must be sorted")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Spectrum %d", s.ID),
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// IsSorted checks if m/z values are in ascending order.
func (s *Spectrum) IsSorted() bool {
	return sort.Float64sAreSorted(s.MZ)
}

// Sort sorts the m/z and intensity pairs by m/z.
func (s *Spectrum) Sort() {
	sort.Sort(byMZ{s})
}

type byMZ struct{ s *Spectrum }

func (b byMZ) Len() int           { return len(b.s.MZ) }
func (b byMZ) Less(i, j int) bool { return b.s.MZ[i] < b.s.MZ[j] }
func (b byMZ) Swap(i, j int) {
	b.s.MZ[i], b.s.MZ[j] = b.s.MZ[j], b.s.MZ[i]
	b.s.Intensity[i], b.s.Intensity[j] = b.s.Intensity[j], b.s.Intensity[i]
}

// Name returns the spectrum name in format "x,y,z"
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%d,%d,%d", s.Index.X, s.Index.Y, s.Index.Z)
}
