// Package signal implements the numeric kernels applied to a single spectrum:
// morphological filters, running median, smoothing kernels and the summary
// statistics used for normalization and noise estimation.
//
// Every function operates on an ordered sequence and a half-window size s,
// where the window is 2s+1 samples wide.
package signal

import "golang.org/x/exp/constraints"

// Dilation returns the maximum over the centered window at every position.
// The sequence is extended by replicating its first and last sample.
func Dilation[T constraints.Integer | constraints.Float](y []T, hws int) []T {
	return morphology(y, hws, func(a, b T) bool { return a > b })
}

// Erosion returns the minimum over the centered window at every position.
func Erosion[T constraints.Integer | constraints.Float](y []T, hws int) []T {
	return morphology(y, hws, func(a, b T) bool { return a < b })
}

// morphology is the van Herk/Gil-Werman running extremum. better(a, b)
// reports whether a replaces b as the running extremum. It needs three
// comparisons per sample regardless of window size.
func morphology[T constraints.Integer | constraints.Float](y []T, hws int, better func(a, b T) bool) []T {
	n := len(y)
	out := make([]T, n)
	if n == 0 {
		return out
	}
	if hws <= 0 {
		copy(out, y)
		return out
	}

	q := hws
	k := 2*q + 1

	// q samples left and right, padded so that the blocks tile the buffer
	fn := n + 2*q + (k - n%k)
	f := make([]T, fn)
	g := make([]T, fn)
	h := make([]T, fn)

	copy(f[q:], y)
	for i := 0; i < q; i++ {
		f[i] = f[q]
		h[i] = f[q]
	}
	last := q + n - 1
	for i := q + n; i < fn; i++ {
		f[i] = f[last]
		g[i] = f[last]
	}

	// block-prefix (g) and block-suffix (h) extrema
	for i := q; i < n+q; i += k {
		r := i + k - 1
		g[i] = f[i]
		h[r] = f[r]
		for j, gi, hi := 1, i+1, r-1; j < k; j, gi, hi = j+1, gi+1, hi-1 {
			if better(f[gi], g[gi-1]) {
				g[gi] = f[gi]
			} else {
				g[gi] = g[gi-1]
			}
			if better(f[hi], h[hi+1]) {
				h[hi] = f[hi]
			} else {
				h[hi] = h[hi+1]
			}
		}
	}

	for i := 0; i < n; i++ {
		gv, hv := g[i+k-1], h[i]
		if better(hv, gv) {
			out[i] = hv
		} else {
			out[i] = gv
		}
	}
	return out
}

// TopHat returns y minus its morphological opening, dilation(erosion(y)).
func TopHat(y []float64, hws int) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	TopHatInPlace(out, hws)
	return out
}

// TopHatInPlace subtracts the morphological opening from y.
func TopHatInPlace(y []float64, hws int) {
	if len(y) == 0 {
		return
	}
	baseline := Dilation(Erosion(y, hws), hws)
	for i := range y {
		y[i] -= baseline[i]
	}
}
