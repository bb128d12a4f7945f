package core

import (
	"fmt"
	"strings"
)

// SpectrumFormat is the storage layout of an imzML file. Values are bit flags
// so that callers can test for a family of formats with Has.
type SpectrumFormat uint8

const (
	FormatNone               SpectrumFormat = 0
	FormatContinuousProfile  SpectrumFormat = 1
	FormatProcessedProfile   SpectrumFormat = 2
	FormatContinuousCentroid SpectrumFormat = 4
	FormatProcessedCentroid  SpectrumFormat = 8

	FormatContinuous = FormatContinuousProfile | FormatContinuousCentroid
	FormatProcessed  = FormatProcessedProfile | FormatProcessedCentroid
	FormatProfile    = FormatContinuousProfile | FormatProcessedProfile
	FormatCentroid   = FormatContinuousCentroid | FormatProcessedCentroid
)

var formatNames = []struct {
	format SpectrumFormat
	name   string
}{
	{FormatContinuousProfile, "ContinuousProfile"},
	{FormatProcessedProfile, "ProcessedProfile"},
	{FormatContinuousCentroid, "ContinuousCentroid"},
	{FormatProcessedCentroid, "ProcessedCentroid"},
}

// Has reports whether f shares any flag with mask.
func (f SpectrumFormat) Has(mask SpectrumFormat) bool { return f&mask != 0 }

// IsContinuous reports whether all pixels share one m/z axis.
func (f SpectrumFormat) IsContinuous() bool { return f.Has(FormatContinuous) }

// IsProcessed reports whether each pixel has its own m/z axis.
func (f SpectrumFormat) IsProcessed() bool { return f.Has(FormatProcessed) }

// IsCentroid reports whether spectra are peak lists.
func (f SpectrumFormat) IsCentroid() bool { return f.Has(FormatCentroid) }

// IsProfile reports whether spectra are dense profiles.
func (f SpectrumFormat) IsProfile() bool { return f.Has(FormatProfile) }

func (f SpectrumFormat) String() string {
	for _, fn := range formatNames {
		if fn.format == f {
			return fn.name
		}
	}
	if f == FormatNone {
		return "None"
	}
	return fmt.Sprintf("SpectrumFormat(%d)", uint8(f))
}

// ParseFormat parses one of the four storage format names.
func ParseFormat(s string) (SpectrumFormat, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	var valid []string
	for _, fn := range formatNames {
		if strings.ToLower(fn.name) == key {
			return fn.format, nil
		}
		valid = append(valid, fn.name)
	}
	return FormatNone, fmt.Errorf("unknown format %q (valid: %s)", s, strings.Join(valid, ", "))
}

// NumericType is the element type of a binary array in the ibd file.
type NumericType uint8

const (
	Float32 NumericType = iota
	Float64
	Int32
	Int64
)

// Size returns the element size in bytes.
func (t NumericType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	default:
		return 8
	}
}

// Accession returns the PSI-MS accession of the type.
func (t NumericType) Accession() string {
	switch t {
	case Float32:
		return "MS:1000521"
	case Float64:
		return "MS:1000523"
	case Int32:
		return "MS:1000519"
	case Int64:
		return "MS:1000522"
	}
	return ""
}

func (t NumericType) String() string { return name(KindNumericType, int(t)) }

// ParseNumericType accepts the PSI-MS names ("32-bit float") and the short
// forms float, double, float32 and float64.
func ParseNumericType(s string) (NumericType, error) {
	v, err := Lookup(KindNumericType, s)
	return NumericType(v), err
}
