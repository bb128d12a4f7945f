// Package transform turns the configured strategy enums into the operations
// applied to every spectrum: baseline correction, smoothing, normalization,
// intensity transformation and range pooling.
//
// Each strategy is a small value type with an Apply method. All of them are a
// no-op on empty input.
package transform

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/signal"
	"github.com/cwbudde/algo-vecmath"
)

// SavitzkyGolayOrder is the number of polynomial coefficients used by the
// Savitzky-Golay smoother.
const SavitzkyGolayOrder = 3

// Baseline subtracts an estimated baseline from a spectrum.
type Baseline struct {
	Strategy   core.BaselineCorrection
	HalfWindow int
}

// Apply subtracts the baseline from y in place.
func (b Baseline) Apply(y []float64) {
	if len(y) == 0 {
		return
	}
	switch b.Strategy {
	case core.BaselineTopHat:
		signal.TopHatInPlace(y, b.HalfWindow)
	case core.BaselineMedian:
		signal.RunningMedianInPlace(y, b.HalfWindow)
	case core.BaselineNone:
	}
}

// Padding returns the number of samples the baseline estimate needs on each
// side of a window to match the result of processing the whole spectrum. The
// top-hat opening chains two filters of the half window; the median window
// trails by twice the half window.
func (b Baseline) Padding() int {
	if b.Strategy == core.BaselineNone {
		return 0
	}
	return 2 * b.HalfWindow
}

// Smoother convolves a spectrum with a kernel built once at construction.
type Smoother struct {
	Strategy   core.Smoothing
	HalfWindow int
	kernel     []float64
}

// NewSmoother builds the kernel for strategy.
func NewSmoother(strategy core.Smoothing, hws int) (*Smoother, error) {
	s := &Smoother{Strategy: strategy, HalfWindow: hws}
	switch strategy {
	case core.SmoothingSavitzkyGolay:
		k, err := signal.SavitzkyGolayKernel(hws, SavitzkyGolayOrder)
		if err != nil {
			return nil, fmt.Errorf("smoothing: %w", err)
		}
		s.kernel = k
	case core.SmoothingGaussian:
		s.kernel = signal.GaussianKernel(hws)
	case core.SmoothingNone:
	default:
		return nil, fmt.Errorf("smoothing: unsupported strategy %v", strategy)
	}
	return s, nil
}

// Kernel returns a copy of the convolution kernel, nil for SmoothingNone.
func (s *Smoother) Kernel() []float64 {
	if s == nil || s.kernel == nil {
		return nil
	}
	out := make([]float64, len(s.kernel))
	copy(out, s.kernel)
	return out
}

// Apply smooths y in place. A nil smoother does nothing.
func (s *Smoother) Apply(y []float64) {
	if s == nil || s.kernel == nil || len(y) == 0 {
		return
	}
	signal.Filter(y, s.kernel, true)
}

// Normalizer computes the per-spectrum normalization divisor.
type Normalizer struct {
	Strategy core.NormalizationStrategy
}

// Factor returns the divisor of the spectrum (x, y). InFile and External use
// the supplied constant, which comes from the file metadata or from a
// normalization image respectively.
func (n Normalizer) Factor(x, y []float64, constant float64) float64 {
	switch n.Strategy {
	case core.NormalizationTIC:
		return signal.TotalIonCurrent(x, y)
	case core.NormalizationSum:
		return signal.Sum(y)
	case core.NormalizationMean:
		return signal.Mean(y)
	case core.NormalizationMax:
		return signal.Max(y)
	case core.NormalizationRMS:
		return signal.RootMeanSquare(y)
	case core.NormalizationMedian:
		return signal.Median(y)
	case core.NormalizationInFile, core.NormalizationExternal:
		return constant
	}
	return 1
}

// Normalize divides y by its factor in place and returns the factor. A zero
// or non-finite factor leaves y unchanged and reports 1.
func (n Normalizer) Normalize(x, y []float64, constant float64) float64 {
	f := n.Factor(x, y, constant)
	if !usableFactor(f) {
		return 1
	}
	Scale(y, f)
	return f
}

func usableFactor(f float64) bool {
	return f != 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Scale divides y by f in place.
func Scale(y []float64, f float64) {
	if len(y) == 0 || f == 1 || !usableFactor(f) {
		return
	}
	vecmath.ScaleBlock(y, y, 1/f)
}

// Transformer applies a monotone intensity transformation. Values below zero
// are clamped to zero first; the logarithms are taken of 1+v.
type Transformer struct {
	Strategy core.IntensityTransform
}

// Apply transforms y in place.
func (t Transformer) Apply(y []float64) {
	var fn func(float64) float64
	switch t.Strategy {
	case core.TransformLog2:
		fn = func(v float64) float64 { return math.Log2(1 + v) }
	case core.TransformLog10:
		fn = func(v float64) float64 { return math.Log10(1 + v) }
	case core.TransformSquareRoot:
		fn = math.Sqrt
	default:
		return
	}
	for i, v := range y {
		y[i] = fn(math.Max(v, 0))
	}
}

// Pool collapses the intensities of a mass window into one value. PoolingNone
// pools like PoolingMaximum. Empty input pools to 0.
func Pool(strategy core.RangePooling, ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	switch strategy {
	case core.PoolingMean:
		return signal.Mean(ys)
	case core.PoolingMedian:
		return signal.Median(ys)
	case core.PoolingSum:
		return signal.Sum(ys)
	default:
		return signal.Max(ys)
	}
}
