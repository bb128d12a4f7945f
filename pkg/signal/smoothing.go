package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolayCoefficients returns the (2*hws+1)×(2*hws+1) filter matrix of a
// least-squares polynomial fit with order coefficients (degree order-1).
// Row i holds the weights that estimate sample i of the window from the whole
// window, so rows 0..hws-1 and hws+1.. serve the left and right borders and
// row hws is the usual centered kernel.
func SavitzkyGolayCoefficients(hws, order int) (*mat.Dense, error) {
	if hws < 0 || order < 1 {
		return nil, fmt.Errorf("savitzky-golay: invalid half window %d or order %d", hws, order)
	}
	nm := 2*hws + 1
	if order > nm {
		return nil, fmt.Errorf("savitzky-golay: order %d needs a window of at least %d samples, got %d", order, order, nm)
	}

	F := mat.NewDense(nm, nm, nil)
	X := mat.NewDense(nm, order, nil)
	for i := 0; i < nm; i++ {
		for p := 0; p < nm; p++ {
			for k := 0; k < order; k++ {
				X.Set(p, k, math.Pow(float64(p-i), float64(k)))
			}
		}

		var xtx, inv, t mat.Dense
		xtx.Mul(X.T(), X)
		if err := inv.Inverse(&xtx); err != nil {
			return nil, fmt.Errorf("savitzky-golay: fit for row %d: %w", i, err)
		}
		t.Mul(&inv, X.T())
		F.SetRow(i, mat.Row(nil, 0, &t))
	}
	return F, nil
}

// SavitzkyGolayKernel returns the centered row of the filter matrix.
func SavitzkyGolayKernel(hws, order int) ([]float64, error) {
	if hws == 0 {
		return []float64{1}, nil
	}
	F, err := SavitzkyGolayCoefficients(hws, order)
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, hws, F), nil
}

// GaussianKernel returns a normalized Gaussian kernel of 2*hws+1 weights with
// sigma = hws/4.
func GaussianKernel(hws int) []float64 {
	if hws <= 0 {
		return []float64{1}
	}
	kernel := make([]float64, 2*hws+1)
	sigma := float64(hws) / 4.0
	sigma2 := sigma * sigma
	for x := -hws; x <= hws; x++ {
		kernel[x+hws] = math.Exp(-0.5 / sigma2 * float64(x*x))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// Filter convolves y with an odd-sized kernel in place.
//
// With extend set, y is conceptually padded by replicating its end samples
// and every output uses a full window. Otherwise only interior samples are
// convolved and the border samples are copied from the nearest interior
// output; sequences shorter than the kernel always use extend.
func Filter(y, kernel []float64, extend bool) {
	k := len(kernel)
	n := len(y)
	if n == 0 || k < 2 {
		return
	}
	hws := k / 2

	if !extend && n >= k {
		yy := make([]float64, n)
		copy(yy, y)
		for j := hws; j < n-hws; j++ {
			y[j] = floats.Dot(kernel, yy[j-hws:j+hws+1])
		}
		for i := 0; i < hws; i++ {
			y[i] = y[hws]
			y[n-1-i] = y[n-1-hws]
		}
		return
	}

	yy := make([]float64, n+2*hws)
	copy(yy[hws:], y)
	for i := 0; i < hws; i++ {
		yy[i] = y[0]
		yy[n+hws+i] = y[n-1]
	}
	for j := 0; j < n; j++ {
		y[j] = floats.Dot(kernel, yy[j:j+k])
	}
}
