// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/config"
	"github.com/ChrisMcGann/ImzKey/pkg/image"
	"github.com/ChrisMcGann/ImzKey/pkg/transform"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
	threads    int

	// Flags shared by the processing commands
	normalization string
	smoothing     string
	baseline      string
	intensityTf   string
	pooling       string

	// Loaded before every command runs
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "imzkey",
	Short: "ImzKey - imzML mass spectrometry imaging tool",
	Long: `ImzKey reads, processes and writes imzML mass spectrometry imaging data.

Fast, memory-efficient, and cross-platform processing with support for:
- Continuous and processed, profile and centroid imzML files
- Normalization, smoothing, baseline correction and intensity transforms
- Ion images, overview spectra and peak lists
- Multi-slice stacks`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = logger.NewConsole(logger.Level(verbose))

		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("threads") {
			cfg.Processing.Threads = threads
		}
		overrideString(cmd, "normalization", normalization, &cfg.Processing.Normalization)
		overrideString(cmd, "smoothing", smoothing, &cfg.Processing.Smoothing.Strategy)
		overrideString(cmd, "baseline", baseline, &cfg.Processing.Baseline.Strategy)
		overrideString(cmd, "transform", intensityTf, &cfg.Processing.Transform)
		overrideString(cmd, "pooling", pooling, &cfg.Processing.Pooling)
		return cfg.Validate()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(peaksCmd)
	rootCmd.AddCommand(ionImageCmd)
	rootCmd.AddCommand(stackCmd)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "imzkey.yaml", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&threads, "threads", 0, "Number of worker threads (0 = all CPUs)")

	for _, c := range []*cobra.Command{convertCmd, peaksCmd, ionImageCmd, stackCmd} {
		addProcessingFlags(c)
	}
}

func addProcessingFlags(c *cobra.Command) {
	c.Flags().StringVar(&normalization, "normalization", "", "Normalization: None, TIC, Sum, Mean, Max, RMS, Median, InFile")
	c.Flags().StringVar(&smoothing, "smoothing", "", "Smoothing: None, SavitzkyGolay, Gaussian")
	c.Flags().StringVar(&baseline, "baseline", "", "Baseline correction: None, TopHat, Median")
	c.Flags().StringVar(&intensityTf, "transform", "", "Intensity transform: None, Log2, Log10, SquareRoot")
	c.Flags().StringVar(&pooling, "pooling", "", "Ion image pooling: Mean, Median, Maximum, Sum")
}

// overrideString replaces a config value with a flag the user set
func overrideString(cmd *cobra.Command, flag, value string, target *string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		*target = value
	}
}

// openImage opens an imzML file and initializes image access with the
// configured pipeline
func openImage(ctx context.Context, path string, pipeline *transform.Pipeline) (*image.ImzMLImage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}
	img, err := image.Open(ctx, path, image.Options{
		Pipeline:  pipeline,
		Threads:   cfg.Processing.Threads,
		Tolerance: cfg.Image.Tolerance,
		PPM:       cfg.Image.PPM,
		Bins:      cfg.Processing.Bins,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := img.InitializeImageAccess(ctx); err != nil {
		img.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", path, err)
	}
	return img, nil
}

// processingPipeline builds the pipeline from the loaded configuration
func processingPipeline() (*transform.Pipeline, error) {
	p, err := cfg.Pipeline()
	if err != nil {
		return nil, err
	}
	log.Debug("cmd", "pipeline", logger.Fields{"options": p.Options().String()})
	return p, nil
}
