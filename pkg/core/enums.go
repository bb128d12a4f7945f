package core

import (
	"fmt"
	"strings"
)

// NormalizationStrategy selects the per-spectrum normalization divisor.
type NormalizationStrategy uint8

const (
	NormalizationNone NormalizationStrategy = iota
	NormalizationTIC
	NormalizationSum
	NormalizationMean
	NormalizationMax
	NormalizationRMS
	NormalizationMedian
	NormalizationInFile   // factor stored in the imzML file (MS:1000285)
	NormalizationExternal // factor supplied by a normalization raster
)

// BaselineCorrection selects the baseline subtraction method.
type BaselineCorrection uint8

const (
	BaselineNone BaselineCorrection = iota
	BaselineTopHat
	BaselineMedian
)

// Smoothing selects the smoothing kernel.
type Smoothing uint8

const (
	SmoothingNone Smoothing = iota
	SmoothingSavitzkyGolay
	SmoothingGaussian
)

// RangePooling selects how a mass window collapses into one ion image value.
type RangePooling uint8

const (
	PoolingNone RangePooling = iota
	PoolingMean
	PoolingMedian
	PoolingMaximum
	PoolingSum
)

// IntensityTransform selects the intensity transformation applied last.
type IntensityTransform uint8

const (
	TransformNone IntensityTransform = iota
	TransformLog2
	TransformLog10
	TransformSquareRoot
)

// SpectrumType names an overview spectrum computed over all pixels.
type SpectrumType uint8

const (
	SpectrumNone SpectrumType = iota
	SpectrumMean
	SpectrumMedian
	SpectrumMaximum
	SpectrumSum
	SpectrumVariance
)

// Kind identifies one enumeration in the name registry.
type Kind string

const (
	KindNormalization Kind = "normalization"
	KindBaseline      Kind = "baseline"
	KindSmoothing     Kind = "smoothing"
	KindPooling       Kind = "pooling"
	KindTransform     Kind = "transform"
	KindSpectrumType  Kind = "spectrum type"
	KindNumericType   Kind = "numeric type"
)

// registry maps every enumeration to its names, indexed by value.
// It is built once and never modified.
var registry = map[Kind][]string{
	KindNormalization: {"None", "TIC", "Sum", "Mean", "Max", "RMS", "Median", "InFile", "External"},
	KindBaseline:      {"None", "TopHat", "Median"},
	KindSmoothing:     {"None", "SavitzkyGolay", "Gaussian"},
	KindPooling:       {"None", "Mean", "Median", "Maximum", "Sum"},
	KindTransform:     {"None", "Log2", "Log10", "SquareRoot"},
	KindSpectrumType:  {"None", "Mean", "Median", "Maximum", "Sum", "Variance"},
	KindNumericType:   {"32-bit float", "64-bit float", "32-bit integer", "64-bit integer"},
}

// aliases are accepted by Lookup in addition to the canonical names.
var aliases = map[Kind]map[string]int{
	KindNormalization: {"internal": int(NormalizationInFile), "totalioncurrent": int(NormalizationTIC)},
	KindSmoothing:     {"sg": int(SmoothingSavitzkyGolay), "savitzky-golay": int(SmoothingSavitzkyGolay)},
	KindPooling:       {"max": int(PoolingMaximum)},
	KindTransform:     {"sqrt": int(TransformSquareRoot)},
	KindNumericType:   {"float": int(Float32), "double": int(Float64), "float32": int(Float32), "float64": int(Float64)},
}

// Names returns the canonical names of an enumeration in value order.
func Names(k Kind) []string {
	names := registry[k]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Name returns the canonical name of value v in enumeration k.
func Name(k Kind, v int) (string, bool) {
	names := registry[k]
	if v < 0 || v >= len(names) {
		return "", false
	}
	return names[v], true
}

// Lookup returns the value of name in enumeration k. Matching ignores case.
func Lookup(k Kind, name string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range registry[k] {
		if strings.ToLower(n) == key {
			return i, nil
		}
	}
	if v, ok := aliases[k][key]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown %s %q (valid: %s)", k, name, strings.Join(Names(k), ", "))
}

func name(k Kind, v int) string {
	if n, ok := Name(k, v); ok {
		return n
	}
	return fmt.Sprintf("%s(%d)", k, v)
}

func (s NormalizationStrategy) String() string { return name(KindNormalization, int(s)) }
func (b BaselineCorrection) String() string    { return name(KindBaseline, int(b)) }
func (s Smoothing) String() string             { return name(KindSmoothing, int(s)) }
func (p RangePooling) String() string          { return name(KindPooling, int(p)) }
func (t IntensityTransform) String() string    { return name(KindTransform, int(t)) }
func (t SpectrumType) String() string          { return name(KindSpectrumType, int(t)) }

// ParseNormalization parses a normalization strategy name.
func ParseNormalization(s string) (NormalizationStrategy, error) {
	v, err := Lookup(KindNormalization, s)
	return NormalizationStrategy(v), err
}

// ParseBaseline parses a baseline correction name.
func ParseBaseline(s string) (BaselineCorrection, error) {
	v, err := Lookup(KindBaseline, s)
	return BaselineCorrection(v), err
}

// ParseSmoothing parses a smoothing name.
func ParseSmoothing(s string) (Smoothing, error) {
	v, err := Lookup(KindSmoothing, s)
	return Smoothing(v), err
}

// ParsePooling parses a range pooling name.
func ParsePooling(s string) (RangePooling, error) {
	v, err := Lookup(KindPooling, s)
	return RangePooling(v), err
}

// ParseTransform parses an intensity transform name.
func ParseTransform(s string) (IntensityTransform, error) {
	v, err := Lookup(KindTransform, s)
	return IntensityTransform(v), err
}

// ParseSpectrumType parses an overview spectrum name.
func ParseSpectrumType(s string) (SpectrumType, error) {
	v, err := Lookup(KindSpectrumType, s)
	return SpectrumType(v), err
}
