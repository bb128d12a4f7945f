package cmd

import (
	"fmt"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/image"
	"github.com/ChrisMcGann/ImzKey/pkg/peaks"
	"github.com/ChrisMcGann/ImzKey/pkg/writer/sqlite"
	"github.com/spf13/cobra"
)

var (
	// Flags for peaks command
	inputFile     string
	outputFile    string
	overviewName  string
	topN          int
	cutoffPercent float64
	minMZ         float64
	maxMZ         float64
	monoisotopic  bool
	snr           float64
)

var peaksCmd = &cobra.Command{
	Use:   "peaks",
	Short: "Pick peaks of an overview spectrum and export them to SQLite",
	Long: `Compute an overview spectrum over all pixels, detect and bin its peaks,
optionally keep only monoisotopic peaks, filter the peak list and write it to
an SQLite database together with the overview spectra.

Examples:
  # Peak list of the mean spectrum
  imzkey peaks --in tissue.imzML --out peaks.db

  # Top 200 peaks of the maximum spectrum between m/z 400 and 1000
  imzkey peaks --in tissue.imzML --out peaks.db --overview Maximum --top-n 200 --min-mz 400 --max-mz 1000`,
	RunE: runPeaks,
}

func init() {
	peaksCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input imzML file (required)")
	peaksCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	peaksCmd.Flags().StringVar(&overviewName, "overview", "Mean", "Overview spectrum: Mean, Sum, Maximum, Variance")
	peaksCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	peaksCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	peaksCmd.Flags().Float64Var(&minMZ, "min-mz", 0, "Lower m/z bound (0 = none)")
	peaksCmd.Flags().Float64Var(&maxMZ, "max-mz", 0, "Upper m/z bound (0 = none)")
	peaksCmd.Flags().BoolVar(&monoisotopic, "monoisotopic", false, "Keep only monoisotopic peaks")
	peaksCmd.Flags().Float64Var(&snr, "snr", 0, "Signal to noise threshold (0 = from config)")

	peaksCmd.MarkFlagRequired("in")
	peaksCmd.MarkFlagRequired("out")
}

func runPeaks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := core.ParseSpectrumType(overviewName)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("top-n") {
		cfg.Filter.TopN = topN
	}
	if cmd.Flags().Changed("cutoff") {
		cfg.Filter.IntensityCutoff = cutoffPercent
	}
	if cmd.Flags().Changed("min-mz") {
		cfg.Filter.MinMZ = minMZ
	}
	if cmd.Flags().Changed("max-mz") {
		cfg.Filter.MaxMZ = maxMZ
	}
	if cmd.Flags().Changed("monoisotopic") {
		cfg.Peaks.Monoisotopic = monoisotopic
	}
	if snr > 0 {
		cfg.Peaks.SNR = snr
	}

	pipeline, err := processingPipeline()
	if err != nil {
		return err
	}
	img, err := openImage(ctx, inputFile, pipeline)
	if err != nil {
		return err
	}
	defer img.Close()

	picked, intervals, err := overviewPeaks(img, kind)
	if err != nil {
		return err
	}
	filterConfig := cfg.FilterConfig()
	picked = filterConfig.Apply(picked)

	// Create SQLite writer
	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}

	writer.SetHeader(sqlite.Header{
		Source:   inputFile,
		UUID:     img.File().UUID,
		Format:   img.Format(),
		Spectra:  img.Count(),
		Pipeline: pipeline.Options().String(),
	})
	if err := writer.WritePeaks(picked); err != nil {
		writer.Close()
		return err
	}
	if err := writer.WriteIntervals(intervals); err != nil {
		writer.Close()
		return err
	}
	x := img.XAxis()
	for _, t := range []core.SpectrumType{core.SpectrumMean, core.SpectrumSum, core.SpectrumMaximum, core.SpectrumVariance} {
		y, err := img.Overview(t)
		if err != nil {
			continue
		}
		if err := writer.WriteSpectrum(t.String(), x, y); err != nil {
			writer.Close()
			return err
		}
	}

	// Finalize database
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	log.Info("peaks", "export complete", logger.Fields{
		"peaks":     len(picked),
		"intervals": len(intervals),
		"output":    outputFile,
	})
	return nil
}

// overviewPeaks picks the peaks of an overview spectrum. Profile data goes
// through peak detection; every non-zero point of centroid data is a peak.
// Peaks are binned with the configured tolerance and the bins are returned
// as intervals.
func overviewPeaks(img *image.ImzMLImage, kind core.SpectrumType) ([]core.MassValue, []core.Interval, error) {
	x := img.XAxis()
	y, err := img.Overview(kind)
	if err != nil {
		return nil, nil, err
	}

	var picked []core.MassValue
	if img.Format().IsProfile() {
		opts := cfg.PickOptions()
		opts.BinningTol = 0
		opts.Monoisotopic = false
		picked = peaks.PickPeaks(x, y, opts)
	} else {
		for i := range x {
			if y[i] > 0 {
				picked = append(picked, core.NewMassValue(i, x[i], y[i]))
			}
		}
	}

	tol := cfg.Peaks.Tolerance
	if !cfg.Peaks.Absolute {
		tol = core.PartPerMillionToFactor(tol)
	}
	var intervals []core.Interval
	if cfg.Peaks.Tolerance > 0 {
		intervals = peaks.BinPeaks(picked, tol, cfg.Peaks.Absolute)
		picked = peaks.MassValues(intervals)
	} else {
		intervals = make([]core.Interval, len(picked))
		for i, p := range picked {
			intervals[i] = p.Interval()
		}
	}

	if cfg.Peaks.Monoisotopic {
		picked = peaks.Monoisotopic(picked, cfg.PickOptions().Isotopes)
	}

	log.Debug("peaks", "picked overview peaks", logger.Fields{
		"overview": kind.String(),
		"points":   len(x),
		"peaks":    len(picked),
	})
	return picked, intervals, nil
}
