// Package peaks detects, groups and characterizes peaks of spectra.
package peaks

import (
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/signal"
)

// LocalMaxima returns every sample of y that is above threshold and strictly
// greater than all other samples within ±hws (clipped at the borders). The
// result is ordered by position. A flat sequence has no peaks.
func LocalMaxima(x, y []float64, hws int, threshold float64) []core.MassValue {
	n := min(len(x), len(y))
	if n == 0 {
		return nil
	}
	if hws < 1 {
		hws = 1
	}
	y = y[:n]
	windowMax := signal.Dilation(y, hws)

	var out []core.MassValue
	for i := 0; i < n; i++ {
		if y[i] <= threshold || y[i] != windowMax[i] {
			continue
		}
		if isStrictMaximum(y, i, hws) {
			out = append(out, core.NewMassValue(i, x[i], y[i]))
		}
	}
	return out
}

func isStrictMaximum(y []float64, i, hws int) bool {
	lo := max(0, i-hws)
	hi := min(len(y)-1, i+hws)
	for j := lo; j <= hi; j++ {
		if j != i && y[j] >= y[i] {
			return false
		}
	}
	return true
}

// PickOptions configures PickPeaks.
type PickOptions struct {
	SNR          float64 // threshold in multiples of the MAD noise level
	HalfWindow   int
	BinningTol   float64 // ppm, 0 disables binning
	Monoisotopic bool
	Isotopes     MonoisotopicOptions
}

// DefaultPickOptions returns SNR 10, half window 20 and 50 ppm binning.
func DefaultPickOptions() PickOptions {
	return PickOptions{
		SNR:        10,
		HalfWindow: 20,
		BinningTol: 50,
		Isotopes:   DefaultMonoisotopicOptions(),
	}
}

// PickPeaks detects peaks above SNR times the noise level, optionally bins
// peaks closer than BinningTol and keeps only monoisotopic peaks.
func PickPeaks(x, y []float64, opts PickOptions) []core.MassValue {
	noise := signal.MAD(y)
	peaks := LocalMaxima(x, y, opts.HalfWindow, opts.SNR*noise)

	if opts.BinningTol > 0 {
		intervals := BinPeaks(peaks, core.PartPerMillionToFactor(opts.BinningTol), false)
		peaks = MassValues(intervals)
	}
	if opts.Monoisotopic {
		peaks = Monoisotopic(peaks, opts.Isotopes)
	}
	return peaks
}

// MassValues converts accumulated intervals to mass values: the mass is the
// mean x and the intensity the largest y of every interval.
func MassValues(intervals []core.Interval) []core.MassValue {
	out := make([]core.MassValue, len(intervals))
	for i, iv := range intervals {
		out[i] = core.MassValue{
			Mass:         iv.X.Mean(),
			Intensity:    iv.Y.Max(),
			IntensityMax: iv.Y.Max(),
			IntensitySum: iv.Y.Sum(),
			Count:        int(iv.X.Count()),
			Index:        int(iv.Index.Mean() + 0.5),
		}
	}
	return out
}
