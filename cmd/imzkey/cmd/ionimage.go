package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/image"
	"github.com/spf13/cobra"
)

var (
	// Flags for ionimage and stack commands
	mz        float64
	tolerance float64
	ppm       bool
	maskFile  string
)

var ionImageCmd = &cobra.Command{
	Use:   "ionimage",
	Short: "Write the ion image of an m/z window as a 16-bit TIFF",
	Long: `Pool the processed intensities of every pixel within m/z ± tolerance and
write the resulting image as a 16-bit grayscale TIFF, one file per z plane.

Examples:
  # Ion image of m/z 760.58 ± 50 ppm
  imzkey ionimage --in tissue.imzML --mz 760.58 --tol 50 --ppm --out pc34.tif

  # Ion image inside a tissue mask
  imzkey ionimage --in tissue.imzML --mz 760.58 --tol 0.01 --mask tissue-mask.tif --out pc34.tif`,
	RunE: runIonImage,
}

func init() {
	ionImageCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input imzML file (required)")
	ionImageCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output TIFF file (required)")
	ionImageCmd.Flags().Float64Var(&mz, "mz", 0, "Center m/z of the window (required)")
	ionImageCmd.Flags().Float64Var(&tolerance, "tol", 0, "Half window width (Da, or ppm with --ppm)")
	ionImageCmd.Flags().BoolVar(&ppm, "ppm", false, "Interpret --tol in ppm")
	ionImageCmd.Flags().StringVar(&maskFile, "mask", "", "TIFF mask; pixels where it is 0 are left out")

	ionImageCmd.MarkFlagRequired("in")
	ionImageCmd.MarkFlagRequired("out")
	ionImageCmd.MarkFlagRequired("mz")
}

// imageWindow applies the --tol and --ppm flags on top of the config
func imageWindow(cmd *cobra.Command) float64 {
	if cmd.Flags().Changed("tol") {
		cfg.Image.Tolerance = tolerance
	}
	if cmd.Flags().Changed("ppm") {
		cfg.Image.PPM = ppm
	}
	return core.Tolerance(mz, cfg.Image.Tolerance, cfg.Image.PPM)
}

func runIonImage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if mz <= 0 {
		return fmt.Errorf("invalid m/z %g, must be positive", mz)
	}
	tol := imageWindow(cmd)

	pipeline, err := processingPipeline()
	if err != nil {
		return err
	}
	img, err := openImage(ctx, inputFile, pipeline)
	if err != nil {
		return err
	}
	defer img.Close()

	var mask *image.Raster
	if maskFile != "" {
		f, err := os.Open(maskFile)
		if err != nil {
			return fmt.Errorf("failed to open mask: %w", err)
		}
		mask, err = image.ReadMask(f, img.Geometry())
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read mask %s: %w", maskFile, err)
		}
	}

	r, err := img.IonImage(ctx, mz, tol, mask)
	if err != nil {
		return err
	}
	if err := writeRaster(outputFile, r); err != nil {
		return err
	}

	log.Info("ionimage", "ion image written", logger.Fields{
		"mz":     mz,
		"tol":    tol,
		"max":    r.Max(),
		"output": outputFile,
	})
	return nil
}

// writeRaster writes every z plane of r as a TIFF. With more than one plane
// the plane number is inserted before the extension of path.
func writeRaster(path string, r *image.Raster) error {
	for z := 0; z < r.Dims[2]; z++ {
		name := path
		if r.Dims[2] > 1 {
			ext := filepath.Ext(path)
			name = fmt.Sprintf("%s_z%d%s", strings.TrimSuffix(path, ext), z, ext)
		}
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := image.WriteTIFF(f, r, z); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
