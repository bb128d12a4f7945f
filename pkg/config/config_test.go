package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/writer/imzml"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	p, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	if p.Normalizer.Strategy != core.NormalizationTIC || p.Pooling != core.PoolingMaximum {
		t.Errorf("Pipeline() = %v, want TIC normalization with maximum pooling", p.Options())
	}

	out, err := cfg.WriterOptions()
	if err != nil {
		t.Fatalf("WriterOptions() error = %v", err)
	}
	if out.Format != core.FormatContinuousProfile || out.MZType != core.Float32 || out.Compression {
		t.Errorf("WriterOptions() = %+v, want uncompressed 32-bit continuous profile", out)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Processing.Bins != DefaultConfig().Processing.Bins {
		t.Errorf("Load() bins = %d, want default", cfg.Processing.Bins)
	}
}

func TestLoad(t *testing.T) {
	yamlText := `
processing:
  normalization: rms
  smoothing:
    strategy: Gaussian
    halfWindow: 3
  baseline:
    strategy: TopHat
    halfWindow: 20
  pooling: sum
peaks:
  snr: 4
  monoisotopic: true
filter:
  topN: 100
export:
  format: ProcessedCentroid
  mzType: double
  compression: true
  polarity: Negative
`
	path := filepath.Join(t.TempDir(), "imzkey.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts, err := cfg.PipelineOptions()
	if err != nil {
		t.Fatalf("PipelineOptions() error = %v", err)
	}
	if opts.Normalization != core.NormalizationRMS || opts.Smoothing != core.SmoothingGaussian ||
		opts.SmoothingHalfWindow != 3 || opts.Baseline != core.BaselineTopHat || opts.BaselineHalfWindow != 20 ||
		opts.Pooling != core.PoolingSum {
		t.Errorf("PipelineOptions() = %v", opts)
	}

	pick := cfg.PickOptions()
	if pick.SNR != 4 || !pick.Monoisotopic || pick.HalfWindow != DefaultConfig().Peaks.HalfWindow {
		t.Errorf("PickOptions() = %+v, want snr 4 monoisotopic with default half window", pick)
	}
	if f := cfg.FilterConfig(); f.TopN != 100 {
		t.Errorf("FilterConfig().TopN = %d, want 100", f.TopN)
	}

	out, err := cfg.WriterOptions()
	if err != nil {
		t.Fatalf("WriterOptions() error = %v", err)
	}
	if out.Format != core.FormatProcessedCentroid || out.MZType != core.Float64 || !out.Compression ||
		out.Polarity != "negative" || out.Pooling != core.PoolingSum {
		t.Errorf("WriterOptions() = %+v", out)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{name: "unknown normalization", modify: func(c *Config) { c.Processing.Normalization = "zscore" }},
		{name: "negative half window", modify: func(c *Config) { c.Processing.Baseline.HalfWindow = -1 }},
		{name: "unknown format", modify: func(c *Config) { c.Export.Format = "mzML" }},
		{name: "unknown numeric type", modify: func(c *Config) { c.Export.IntensityType = "16-bit float" }},
		{name: "unknown polarity", modify: func(c *Config) { c.Export.Polarity = "both" }},
		{
			name:   "compressed continuous",
			modify: func(c *Config) { c.Export.Compression = true },
			target: imzml.ErrCompression,
		},
		{name: "zero bins", modify: func(c *Config) { c.Processing.Bins = 0 }},
		{name: "cutoff above 100", modify: func(c *Config) { c.Filter.IntensityCutoff = 150 }},
		{name: "inverted mass window", modify: func(c *Config) { c.Filter.MinMZ, c.Filter.MaxMZ = 500, 400 }},
		{name: "zero peak half window", modify: func(c *Config) { c.Peaks.HalfWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Validate() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "imzkey.yaml")
	cfg := DefaultConfig()
	cfg.Processing.Normalization = "Median"
	cfg.Image.Tolerance = 0.01
	cfg.Image.PPM = false

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Processing.Normalization != "Median" || got.Image.Tolerance != 0.01 || got.Image.PPM {
		t.Errorf("Load() after Save() = %+v", got)
	}
}
