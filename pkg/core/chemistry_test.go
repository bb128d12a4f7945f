package core

import (
	"math"
	"testing"
)

func TestTolerance(t *testing.T) {
	tests := []struct {
		name string
		mz   float64
		tol  float64
		ppm  bool
		want float64
	}{
		{"absolute", 500.0, 0.05, false, 0.05},
		{"ppm", 500.0, 10.0, true, 500.0 * 10.0 * 10e-6},
		{"zero ppm", 500.0, 0.0, true, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tolerance(tt.mz, tt.tol, tt.ppm)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Tolerance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeutralMass(t *testing.T) {
	tests := []struct {
		name   string
		mz     float64
		charge int
		want   float64
	}{
		{"charge 1", 500.0, 1, 500.0 - ProtonMass},
		{"charge 2", 500.0, 2, (500.0 - ProtonMass) * 2},
		{"unknown charge", 500.0, 0, 500.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeutralMass(tt.mz, tt.charge)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NeutralMass() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsotopePattern(t *testing.T) {
	tests := []struct {
		name string
		mass float64
		size int
	}{
		{"small molecule", 300.0, 3},
		{"lipid", 760.0, 5},
		{"peptide", 2400.0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := IsotopePattern(tt.mass, tt.size)
			if len(p) != tt.size {
				t.Fatalf("IsotopePattern() length = %d, want %d", len(p), tt.size)
			}
			sum := 0.0
			for _, v := range p {
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("IsotopePattern() sum = %v, want 1", sum)
			}
			if tt.mass < 1000 && p[0] < p[1] {
				t.Errorf("IsotopePattern() monoisotopic peak should dominate below 1 kDa: %v", p)
			}
		})
	}
}

func TestUnitConversion(t *testing.T) {
	if got := MicroMeterToMilliMeter(50); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("MicroMeterToMilliMeter(50) = %v, want 0.05", got)
	}
	if got := MilliMeterToMicroMeter(0.05); math.Abs(got-50) > 1e-9 {
		t.Errorf("MilliMeterToMicroMeter(0.05) = %v, want 50", got)
	}
}
