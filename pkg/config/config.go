// Package config provides configuration loading and management for imzkey.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/filter"
	"github.com/ChrisMcGann/ImzKey/pkg/peaks"
	"github.com/ChrisMcGann/ImzKey/pkg/transform"
	"github.com/ChrisMcGann/ImzKey/pkg/writer/imzml"
	"gopkg.in/yaml.v3"
)

// Window is a strategy with a half window size
type Window struct {
	Strategy   string `yaml:"strategy"`
	HalfWindow int    `yaml:"halfWindow"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Spectrum processing parameters
	Processing struct {
		// Normalization names the per-spectrum divisor (TIC, RMS, InFile, ...)
		Normalization string `yaml:"normalization"`

		Smoothing Window `yaml:"smoothing"`
		Baseline  Window `yaml:"baseline"`

		// Transform is applied last (None, Log2, Log10, SquareRoot)
		Transform string `yaml:"transform"`

		// Pooling collapses an m/z window into one ion image value
		Pooling string `yaml:"pooling"`

		// Bins is the number of overview bins of processed data
		Bins int `yaml:"bins"`

		// Threads specifies how many CPU cores to use for parallel processing
		Threads int `yaml:"threads"`
	} `yaml:"processing"`

	// Peak picking parameters
	Peaks struct {
		SNR        float64 `yaml:"snr"`
		HalfWindow int     `yaml:"halfWindow"`

		// Tolerance bins peaks closer than this, in ppm unless Absolute is set.
		// 0 disables binning
		Tolerance float64 `yaml:"tolerance"`
		Absolute  bool    `yaml:"absolute"`

		Monoisotopic   bool    `yaml:"monoisotopic"`
		MinCorrelation float64 `yaml:"minCorrelation"`
	} `yaml:"peaks"`

	// Peak list filters
	Filter struct {
		TopN            int     `yaml:"topN"`
		IntensityCutoff float64 `yaml:"intensityCutoff"`
		MinMZ           float64 `yaml:"minMZ"`
		MaxMZ           float64 `yaml:"maxMZ"`
		MassShift       float64 `yaml:"massShift"`
	} `yaml:"filter"`

	// Ion image parameters
	Image struct {
		Tolerance float64 `yaml:"tolerance"`
		PPM       bool    `yaml:"ppm"`
	} `yaml:"image"`

	// imzML output parameters
	Export struct {
		Format        string  `yaml:"format"`
		MZType        string  `yaml:"mzType"`
		IntensityType string  `yaml:"intensityType"`
		Compression   bool    `yaml:"compression"`
		Indexed       bool    `yaml:"indexed"`
		Polarity      string  `yaml:"polarity"`
		Tolerance     float64 `yaml:"tolerance"`
		PPM           bool    `yaml:"ppm"`
	} `yaml:"export"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	opts := transform.DefaultOptions()

	// Set default processing parameters
	cfg.Processing.Normalization = opts.Normalization.String()
	cfg.Processing.Smoothing = Window{Strategy: opts.Smoothing.String(), HalfWindow: opts.SmoothingHalfWindow}
	cfg.Processing.Baseline = Window{Strategy: opts.Baseline.String(), HalfWindow: opts.BaselineHalfWindow}
	cfg.Processing.Transform = opts.Transform.String()
	cfg.Processing.Pooling = opts.Pooling.String()
	cfg.Processing.Bins = 1500
	cfg.Processing.Threads = runtime.NumCPU() // Use all available cores by default

	// Set default peak picking parameters
	pick := peaks.DefaultPickOptions()
	cfg.Peaks.SNR = pick.SNR
	cfg.Peaks.HalfWindow = pick.HalfWindow
	cfg.Peaks.Tolerance = pick.BinningTol
	cfg.Peaks.MinCorrelation = pick.Isotopes.MinCor

	// Set default ion image parameters
	cfg.Image.Tolerance = 50
	cfg.Image.PPM = true

	// Set default output parameters
	out := imzml.DefaultOptions()
	cfg.Export.Format = out.Format.String()
	cfg.Export.MZType = out.MZType.String()
	cfg.Export.IntensityType = out.IntensityType.String()
	cfg.Export.Tolerance = out.Tolerance
	cfg.Export.PPM = out.PPM

	return cfg
}

// Load loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks every strategy name and numeric range. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.PipelineOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.WriterOptions(); err != nil {
		errs = append(errs, err)
	}
	if c.Processing.Bins < 1 {
		errs = append(errs, fmt.Errorf("processing.bins must be positive, got %d", c.Processing.Bins))
	}
	if c.Processing.Threads < 0 {
		errs = append(errs, fmt.Errorf("processing.threads must be non-negative, got %d", c.Processing.Threads))
	}
	if c.Peaks.SNR < 0 || c.Peaks.HalfWindow < 1 || c.Peaks.Tolerance < 0 {
		errs = append(errs, errors.New("peaks: snr and tolerance must be non-negative and halfWindow positive"))
	}
	if c.Filter.IntensityCutoff < 0 || c.Filter.IntensityCutoff > 100 {
		errs = append(errs, fmt.Errorf("filter.intensityCutoff must be a percentage, got %g", c.Filter.IntensityCutoff))
	}
	if c.Filter.MaxMZ > 0 && c.Filter.MinMZ > c.Filter.MaxMZ {
		errs = append(errs, fmt.Errorf("filter.minMZ %g exceeds maxMZ %g", c.Filter.MinMZ, c.Filter.MaxMZ))
	}
	if c.Image.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("image.tolerance must be non-negative, got %g", c.Image.Tolerance))
	}
	return errors.Join(errs...)
}

// PipelineOptions converts the processing section into pipeline options
func (c *Config) PipelineOptions() (transform.Options, error) {
	p := c.Processing
	values := map[string]string{
		transform.KeyNormalization:       p.Normalization,
		transform.KeySmoothing:           p.Smoothing.Strategy,
		transform.KeySmoothingHalfWindow: fmt.Sprint(p.Smoothing.HalfWindow),
		transform.KeyBaseline:            p.Baseline.Strategy,
		transform.KeyBaselineHalfWindow:  fmt.Sprint(p.Baseline.HalfWindow),
		transform.KeyTransform:           p.Transform,
		transform.KeyPooling:             p.Pooling,
	}
	opts, err := transform.ParseOptions(values)
	if err != nil {
		return transform.Options{}, fmt.Errorf("processing: %w", err)
	}
	return opts, nil
}

// Pipeline builds the spectrum processing pipeline
func (c *Config) Pipeline() (*transform.Pipeline, error) {
	opts, err := c.PipelineOptions()
	if err != nil {
		return nil, err
	}
	return transform.NewPipeline(opts)
}

// PickOptions converts the peaks section into peak picking options
func (c *Config) PickOptions() peaks.PickOptions {
	opts := peaks.DefaultPickOptions()
	opts.SNR = c.Peaks.SNR
	opts.HalfWindow = c.Peaks.HalfWindow
	opts.BinningTol = c.Peaks.Tolerance
	opts.Monoisotopic = c.Peaks.Monoisotopic
	if c.Peaks.MinCorrelation > 0 {
		opts.Isotopes.MinCor = c.Peaks.MinCorrelation
	}
	return opts
}

// FilterConfig converts the filter section
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		TopN:            c.Filter.TopN,
		IntensityCutoff: c.Filter.IntensityCutoff,
		MinMZ:           c.Filter.MinMZ,
		MaxMZ:           c.Filter.MaxMZ,
		MassShift:       c.Filter.MassShift,
	}
}

// WriterOptions converts the export section into imzML writer options
func (c *Config) WriterOptions() (imzml.Options, error) {
	e := c.Export
	opts := imzml.DefaultOptions()
	var err error
	if opts.Format, err = core.ParseFormat(e.Format); err != nil {
		return imzml.Options{}, fmt.Errorf("export.format: %w", err)
	}
	if opts.MZType, err = core.ParseNumericType(e.MZType); err != nil {
		return imzml.Options{}, fmt.Errorf("export.mzType: %w", err)
	}
	if opts.IntensityType, err = core.ParseNumericType(e.IntensityType); err != nil {
		return imzml.Options{}, fmt.Errorf("export.intensityType: %w", err)
	}
	switch p := strings.ToLower(strings.TrimSpace(e.Polarity)); p {
	case "", "positive", "negative":
		opts.Polarity = p
	default:
		return imzml.Options{}, fmt.Errorf("export.polarity: unknown polarity %q (valid: positive, negative)", e.Polarity)
	}
	if e.Compression && opts.Format.IsContinuous() {
		return imzml.Options{}, fmt.Errorf("export.compression: %w", imzml.ErrCompression)
	}
	opts.Compression = e.Compression
	opts.Indexed = e.Indexed
	opts.Tolerance = e.Tolerance
	opts.PPM = e.PPM
	if pooling, err := core.ParsePooling(c.Processing.Pooling); err == nil {
		opts.Pooling = pooling
	}
	return opts, nil
}
