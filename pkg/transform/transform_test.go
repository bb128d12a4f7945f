package transform

import (
	"math"
	"testing"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
)

func TestStrategiesEmptyInput(t *testing.T) {
	s, err := NewSmoother(core.SmoothingSavitzkyGolay, 3)
	if err != nil {
		t.Fatal(err)
	}
	var y []float64

	Baseline{Strategy: core.BaselineTopHat, HalfWindow: 5}.Apply(y)
	Baseline{Strategy: core.BaselineMedian, HalfWindow: 5}.Apply(y)
	s.Apply(y)
	Transformer{Strategy: core.TransformLog10}.Apply(y)
	if f := (Normalizer{Strategy: core.NormalizationTIC}).Normalize(nil, y, 1); f != 1 {
		t.Errorf("Normalize(empty) = %v, want 1", f)
	}
	if v := Pool(core.PoolingMean, y); v != 0 {
		t.Errorf("Pool(empty) = %v, want 0", v)
	}
}

func TestNormalizerFactor(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 4, 6}

	tests := []struct {
		strategy core.NormalizationStrategy
		constant float64
		want     float64
	}{
		{core.NormalizationNone, 0, 1},
		{core.NormalizationTIC, 0, 3 + 4 + 5},
		{core.NormalizationSum, 0, 16},
		{core.NormalizationMean, 0, 4},
		{core.NormalizationMax, 0, 6},
		{core.NormalizationRMS, 0, math.Sqrt((4 + 16 + 16 + 36) / 4.0)},
		{core.NormalizationMedian, 0, 4},
		{core.NormalizationInFile, 7.5, 7.5},
		{core.NormalizationExternal, 2.5, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			got := Normalizer{Strategy: tt.strategy}.Factor(x, y, tt.constant)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Factor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	y := []float64{2, 4, 4, 6}
	f := Normalizer{Strategy: core.NormalizationMax}.Normalize(nil, y, 0)
	if f != 6 {
		t.Fatalf("Normalize() factor = %v, want 6", f)
	}
	if math.Abs(y[3]-1) > 1e-12 || math.Abs(y[0]-1.0/3) > 1e-12 {
		t.Errorf("Normalize() = %v, want values divided by 6", y)
	}

	zeros := []float64{0, 0, 0}
	if f := (Normalizer{Strategy: core.NormalizationSum}).Normalize(nil, zeros, 0); f != 1 {
		t.Errorf("Normalize() of a zero spectrum factor = %v, want 1", f)
	}
	for _, v := range zeros {
		if v != 0 {
			t.Errorf("Normalize() changed a zero spectrum: %v", zeros)
		}
	}
}

func TestTransformer(t *testing.T) {
	tests := []struct {
		strategy core.IntensityTransform
		in       float64
		want     float64
	}{
		{core.TransformNone, 15, 15},
		{core.TransformLog2, 15, 4},
		{core.TransformLog2, 0, 0},
		{core.TransformLog10, 99, 2},
		{core.TransformLog10, -5, 0},
		{core.TransformSquareRoot, 16, 4},
		{core.TransformSquareRoot, -4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			y := []float64{tt.in}
			Transformer{Strategy: tt.strategy}.Apply(y)
			if math.Abs(y[0]-tt.want) > 1e-12 {
				t.Errorf("Apply(%v) = %v, want %v", tt.in, y[0], tt.want)
			}
		})
	}
}

func TestPool(t *testing.T) {
	ys := []float64{1, 5, 2, 4}
	tests := []struct {
		strategy core.RangePooling
		want     float64
	}{
		{core.PoolingNone, 5},
		{core.PoolingMaximum, 5},
		{core.PoolingMean, 3},
		{core.PoolingMedian, 3},
		{core.PoolingSum, 12},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			if got := Pool(tt.strategy, ys); got != tt.want {
				t.Errorf("Pool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaselineTopHat(t *testing.T) {
	y := []float64{3, 3, 3, 10, 3, 3, 3}
	b := Baseline{Strategy: core.BaselineTopHat, HalfWindow: 2}
	b.Apply(y)
	want := []float64{0, 0, 0, 7, 0, 0, 0}
	for i := range want {
		if y[i] != want[i] {
			t.Fatalf("Apply() = %v, want %v", y, want)
		}
	}
	if b.Padding() != 4 {
		t.Errorf("Padding() = %d, want 4", b.Padding())
	}
	if m := (Baseline{Strategy: core.BaselineMedian, HalfWindow: 3}); m.Padding() != 6 {
		t.Errorf("Padding() of median = %d, want 6", m.Padding())
	}
	if (Baseline{HalfWindow: 9}).Padding() != 0 {
		t.Errorf("Padding() of BaselineNone must be 0")
	}
}

func TestPipelineProcess(t *testing.T) {
	p, err := NewPipeline(Options{
		Normalization:       core.NormalizationSum,
		Smoothing:           core.SmoothingNone,
		Baseline:            core.BaselineTopHat,
		BaselineHalfWindow:  1,
		Transform:           core.TransformSquareRoot,
		SmoothingHalfWindow: 0,
	})
	if err != nil {
		t.Fatal(err)
	}

	// divided by 2: {1, 1, 9, 1, 1}, top hat: {0, 0, 8, 0, 0}, sqrt
	y := []float64{2, 2, 18, 2, 2}
	p.Process(y, 2)
	want := []float64{0, 0, math.Sqrt(8), 0, 0}
	for i := range want {
		if math.Abs(y[i]-want[i]) > 1e-12 {
			t.Fatalf("Process() = %v, want %v", y, want)
		}
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		want    Options
		wantErr bool
	}{
		{
			name:   "defaults",
			values: nil,
			want:   DefaultOptions(),
		},
		{
			name: "all keys",
			values: map[string]string{
				"normalization": "RMS",
				"smoothing":     "Gaussian",
				"smoothing-hws": "4",
				"baseline":      "median",
				"baseline-hws":  "20",
				"transform":     "log2",
				"pooling":       "Sum",
			},
			want: Options{
				Normalization:       core.NormalizationRMS,
				Smoothing:           core.SmoothingGaussian,
				SmoothingHalfWindow: 4,
				Baseline:            core.BaselineMedian,
				BaselineHalfWindow:  20,
				Transform:           core.TransformLog2,
				Pooling:             core.PoolingSum,
			},
		},
		{name: "bad enum", values: map[string]string{"baseline": "rolling"}, wantErr: true},
		{name: "negative window", values: map[string]string{"baseline-hws": "-1"}, wantErr: true},
		{name: "unknown key", values: map[string]string{"colour": "red"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseOptions() = %v, want %v", got, tt.want)
			}
		})
	}
}
