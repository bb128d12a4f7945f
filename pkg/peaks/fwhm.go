package peaks

import (
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/signal"
	"github.com/mkmik/argsort"
)

const (
	fwhmHalfWindow = 50
	fwhmSNR        = 3
	fwhmSampleSize = 1000
)

// EstimateFWHM measures the full width at half maximum of the peaks of a
// profile spectrum. Peaks are detected above 3×MAD within ±50 samples; at most
// the 1000 most intense are measured. Each half maximum crossing is linearly
// interpolated. When one side is more than twice as wide as the other, the
// narrow side doubled is reported, which discards shoulders of overlapping
// peaks. The peaks are returned in mass order.
func EstimateFWHM(x, y []float64) []core.Peak {
	n := min(len(x), len(y))
	x, y = x[:n], y[:n]
	detected := LocalMaxima(x, y, fwhmHalfWindow, fwhmSNR*signal.MAD(y))
	if len(detected) > fwhmSampleSize {
		order := argsort.SortSlice(detected, func(i, j int) bool {
			return detected[i].Intensity > detected[j].Intensity
		})
		sample := make([]core.MassValue, fwhmSampleSize)
		for i := range sample {
			sample[i] = detected[order[i]]
		}
		core.SortMassValues(sample)
		detected = sample
	}

	out := make([]core.Peak, 0, len(detected))
	for _, mv := range detected {
		p := core.NewPeak(mv.Index, mv.Mass, mv.Intensity)
		p.InsertFWHM(halfMaximumWidth(x, y, mv.Index))
		out = append(out, p)
	}
	return out
}

func halfMaximumWidth(x, y []float64, peak int) float64 {
	hm := y[peak] * 0.5

	j := peak
	for j > 0 && y[j] > hm {
		j--
	}
	left := x[j]
	if y[j] <= hm && j < peak {
		left = interpolateX(x[j], x[j+1], y[j], y[j+1], hm)
	}

	j = peak
	for j < len(y)-1 && y[j] > hm {
		j++
	}
	right := x[j]
	if y[j] <= hm && j > peak {
		right = interpolateX(x[j], x[j-1], y[j], y[j-1], hm)
	}

	dl := x[peak] - left
	dr := right - x[peak]
	switch {
	case dl > 2*dr:
		return 2 * dr
	case dr > 2*dl:
		return 2 * dl
	}
	return right - left
}

func interpolateX(x1, x2, y1, y2, t float64) float64 {
	if y2 == y1 {
		return x1
	}
	q := (t - y1) / (y2 - y1)
	return x1*(1-q) + x2*q
}

// MeanFWHM returns the mean width over peaks with a width estimate.
func MeanFWHM(peaks []core.Peak) float64 {
	sum, n := 0.0, 0
	for _, p := range peaks {
		if w := p.FWHM(); w > 0 {
			sum += w
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
