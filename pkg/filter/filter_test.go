package filter

import (
	"math"
	"testing"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
)

func peakList(pairs ...float64) []core.MassValue {
	out := make([]core.MassValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.NewMassValue(i/2, pairs[i], pairs[i+1]))
	}
	return out
}

func masses(peaks []core.MassValue) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.Mass
	}
	return out
}

func TestApply(t *testing.T) {
	input := func() []core.MassValue {
		return peakList(
			300, 50,
			100, 10,
			250, 0,
			200, 100,
			400, 5,
			150, 80,
		)
	}

	tests := []struct {
		name   string
		config Config
		want   []float64
	}{
		{
			name:   "no filters removes zeros and sorts",
			config: Config{},
			want:   []float64{100, 150, 200, 300, 400},
		},
		{
			name:   "top 3",
			config: Config{TopN: 3},
			want:   []float64{150, 200, 300},
		},
		{
			name:   "top N larger than list",
			config: Config{TopN: 10},
			want:   []float64{100, 150, 200, 300, 400},
		},
		{
			name:   "intensity cutoff 50 percent",
			config: Config{IntensityCutoff: 50},
			want:   []float64{150, 200, 300},
		},
		{
			name:   "mass window",
			config: Config{MinMZ: 150, MaxMZ: 300},
			want:   []float64{150, 200, 300},
		},
		{
			name:   "cutoff relative to base peak inside window",
			config: Config{MaxMZ: 160, IntensityCutoff: 50},
			want:   []float64{150},
		},
		{
			name:   "lower bound only",
			config: Config{MinMZ: 250},
			want:   []float64{300, 400},
		},
		{
			name:   "mass shift",
			config: Config{TopN: 2, MassShift: 0.5},
			want:   []float64{150.5, 200.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks := input()
			got := masses(tt.config.Apply(peaks))
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("Apply()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
			if peaks[0].Mass != 300 || peaks[2].Intensity != 0 {
				t.Errorf("Apply() modified its input: %v", peaks)
			}
		})
	}
}

func TestApplyEmpty(t *testing.T) {
	c := Config{TopN: 5, IntensityCutoff: 10, MinMZ: 1}
	if got := c.Apply(nil); len(got) != 0 {
		t.Errorf("Apply(nil) = %v, want empty", got)
	}
}

func TestApplySpectrum(t *testing.T) {
	spec := &core.Spectrum{
		MZ:        []float64{100, 200, 300, 400},
		Intensity: []float64{5, 0, 20, 10},
	}
	c := Config{TopN: 2}
	c.ApplySpectrum(spec)

	wantMZ := []float64{300, 400}
	wantInt := []float64{20, 10}
	if len(spec.MZ) != len(wantMZ) || len(spec.Intensity) != len(wantInt) {
		t.Fatalf("ApplySpectrum() = %v / %v, want %v / %v", spec.MZ, spec.Intensity, wantMZ, wantInt)
	}
	for i := range wantMZ {
		if spec.MZ[i] != wantMZ[i] || spec.Intensity[i] != wantInt[i] {
			t.Errorf("peak %d = (%v, %v), want (%v, %v)", i, spec.MZ[i], spec.Intensity[i], wantMZ[i], wantInt[i])
		}
	}
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	got := RemoveZeroIntensityPeaks(peakList(1, 0, 2, 3, 3, -1, 4, 1))
	want := []float64{2, 4}
	if len(got) != len(want) {
		t.Fatalf("RemoveZeroIntensityPeaks() = %v, want masses %v", got, want)
	}
	for i := range want {
		if got[i].Mass != want[i] {
			t.Errorf("RemoveZeroIntensityPeaks()[%d].Mass = %v, want %v", i, got[i].Mass, want[i])
		}
	}
}
