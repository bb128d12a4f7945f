// Package filter provides peak list filtering functions
package filter

import (
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/mkmik/argsort"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MinMZ           float64 // Keep only peaks at or above this m/z (0 = no lower bound)
	MaxMZ           float64 // Keep only peaks at or below this m/z (0 = no upper bound)
	MassShift       float64 // Added to every mass after filtering, for recalibration
}

// Apply applies all configured filters to a peak list and returns the kept
// peaks in mass order. The input slice is not modified.
func (c *Config) Apply(peaks []core.MassValue) []core.MassValue {
	out := RemoveZeroIntensityPeaks(peaks)

	// Restrict the mass window first so the base peak is found inside it
	if c.MinMZ > 0 || c.MaxMZ > 0 {
		out = c.filterByMass(out)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		out = c.filterByIntensity(out)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		out = c.filterTopN(out)
	}

	if c.MassShift != 0 {
		for i := range out {
			out[i].Mass += c.MassShift
		}
	}

	// Ensure peaks are sorted after all filtering
	core.SortMassValues(out)

	return out
}

// ApplySpectrum filters a centroid spectrum in place.
func (c *Config) ApplySpectrum(spec *core.Spectrum) {
	peaks := make([]core.MassValue, len(spec.MZ))
	for i := range spec.MZ {
		peaks[i] = core.NewMassValue(i, spec.MZ[i], spec.Intensity[i])
	}
	peaks = c.Apply(peaks)
	spec.MZ = make([]float64, len(peaks))
	spec.Intensity = make([]float64, len(peaks))
	for i, p := range peaks {
		spec.MZ[i] = p.Mass
		spec.Intensity[i] = p.Intensity
	}
}

// filterByMass keeps peaks inside [MinMZ, MaxMZ]
func (c *Config) filterByMass(peaks []core.MassValue) []core.MassValue {
	var filtered []core.MassValue
	for _, p := range peaks {
		if c.MinMZ > 0 && p.Mass < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && p.Mass > c.MaxMZ {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(peaks []core.MassValue) []core.MassValue {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, p := range peaks {
		if p.Intensity > maxIntensity {
			maxIntensity = p.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	var filtered []core.MassValue
	for _, p := range peaks {
		if p.Intensity >= threshold {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(peaks []core.MassValue) []core.MassValue {
	if len(peaks) <= c.TopN {
		return peaks
	}

	order := argsort.SortSlice(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	kept := make([]core.MassValue, c.TopN)
	for i := range kept {
		kept[i] = peaks[order[i]]
	}
	return kept
}

// RemoveZeroIntensityPeaks returns the peaks with positive intensity
func RemoveZeroIntensityPeaks(peaks []core.MassValue) []core.MassValue {
	filtered := make([]core.MassValue, 0, len(peaks))
	for _, p := range peaks {
		if p.Intensity > 0 {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
