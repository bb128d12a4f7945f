package core

import "math"

// Mass constants (Da)
const (
	ProtonMass = 1.00727646688

	// Mean spacing of isotope peaks in an averagine pattern
	IsotopeDistance = 1.00235

	// Mass difference between 13C and 12C
	C13Shift = 1.0033548378
)

// Averagine Poisson model coefficients, lambda = slope*mass + intercept.
const (
	averagineSlope     = 0.000594
	averagineIntercept = 0.03091
)

// PartPerMillionToFactor converts a ppm value to the relative factor used for
// tolerance windows.
func PartPerMillionToFactor(ppm float64) float64 {
	return ppm * 10e-6
}

// Tolerance returns the half-width of the mass window around mz. When ppm is
// set tol is a part-per-million value relative to mz.
func Tolerance(mz, tol float64, ppm bool) float64 {
	if ppm {
		return mz * PartPerMillionToFactor(tol)
	}
	return tol
}

// MicroMeterToMilliMeter converts µm to mm.
func MicroMeterToMilliMeter(v float64) float64 { return v * 1e-3 }

// MilliMeterToMicroMeter converts mm to µm.
func MilliMeterToMicroMeter(v float64) float64 { return v * 1e3 }

// NeutralMass returns the neutral mass of an ion observed at mz with the given
// charge. A charge of zero or less returns mz unchanged.
func NeutralMass(mz float64, charge int) float64 {
	if charge <= 0 {
		return mz
	}
	return (mz - ProtonMass) * float64(charge)
}

// AveragineLambda returns the Poisson rate of the isotope distribution of a
// molecule of the given mass.
func AveragineLambda(mass float64) float64 {
	return averagineSlope*mass + averagineIntercept
}

// IsotopePattern returns the normalized Poisson isotope intensities for the
// first size isotopes of a molecule of the given mass.
func IsotopePattern(mass float64, size int) []float64 {
	lambda := AveragineLambda(mass)
	p := make([]float64, size)
	sum := 0.0
	for k := 0; k < size; k++ {
		lg, _ := math.Lgamma(float64(k + 1))
		p[k] = math.Exp(float64(k)*math.Log(lambda) - lambda - lg)
		sum += p[k]
	}
	if sum > 0 {
		for k := range p {
			p[k] /= sum
		}
	}
	return p
}
