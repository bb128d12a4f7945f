package signal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultMADConstant makes the median absolute deviation a consistent
// estimator of the standard deviation for normally distributed data.
const DefaultMADConstant = 1.4826

// MedianAbsoluteDeviation returns c * median(|x - median(x)|). Both medians
// use the upper middle element, without averaging. Empty input returns 0.
func MedianAbsoluteDeviation(x []float64, c float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := upperMedian(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - m)
	}
	return c * upperMedian(dev)
}

// MAD is MedianAbsoluteDeviation with the default constant.
func MAD(x []float64) float64 { return MedianAbsoluteDeviation(x, DefaultMADConstant) }

func upperMedian(x []float64) float64 {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return s[len(s)/2]
}

// Median returns the median of x, averaging the two middle elements of an
// even sized input. Empty input returns 0.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, x)
	sort.Float64s(s)
	if n%2 == 0 {
		return 0.5 * (s[n/2-1] + s[n/2])
	}
	return s[n/2]
}

// TotalIonCurrent integrates y over x with the trapezoidal rule.
func TotalIonCurrent(x, y []float64) float64 {
	n := min(len(x), len(y))
	tic := 0.0
	for i := 1; i < n; i++ {
		tic += (y[i-1] + y[i]) * 0.5 * (x[i] - x[i-1])
	}
	return tic
}

// Sum returns the sum of y.
func Sum(y []float64) float64 { return floats.Sum(y) }

// Mean returns the arithmetic mean of y, or 0 when empty.
func Mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return stat.Mean(y, nil)
}

// Max returns the largest value of y, or 0 when empty.
func Max(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return floats.Max(y)
}

// RootMeanSquare returns sqrt(sum(y²)/n), or 0 when empty.
func RootMeanSquare(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return floats.Norm(y, 2) / math.Sqrt(float64(len(y)))
}

// Subrange returns the first index and the number of elements of the sorted
// axis xs that fall into [lo, hi).
func Subrange(xs []float64, lo, hi float64) (start, length int) {
	start = sort.SearchFloat64s(xs, lo)
	end := sort.SearchFloat64s(xs, hi)
	if end < start {
		return start, 0
	}
	return start, end - start
}
