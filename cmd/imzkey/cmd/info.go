package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	reader "github.com/ChrisMcGann/ImzKey/pkg/reader/imzml"
	"github.com/spf13/cobra"
)

var (
	// Flags for info and validate commands
	noIndex    bool
	properties bool
	checksum   bool
)

var infoCmd = &cobra.Command{
	Use:   "info [file.imzML]",
	Short: "Print format, geometry and metadata of an imzML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file.imzML]",
	Short: "Validate an imzML file and its binary data",
	Long: `Load an imzML document, check that every declared array lies inside the
binary file and, unless --checksum=false, verify the binary file against the
declared UUID and SHA-1 checksum.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	infoCmd.Flags().BoolVar(&noIndex, "no-index", false, "Ignore the spectrum offset index")
	infoCmd.Flags().BoolVarP(&properties, "properties", "p", false, "Print every metadata property")

	validateCmd.Flags().BoolVar(&noIndex, "no-index", false, "Ignore the spectrum offset index")
	validateCmd.Flags().BoolVar(&checksum, "checksum", true, "Verify UUID and SHA-1 of the binary file")
}

func openFile(path string) (*reader.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}
	return reader.Open(path, &reader.Options{Logger: log, Threads: cfg.Processing.Threads, NoIndex: noIndex})
}

func runInfo(cmd *cobra.Command, args []string) error {
	f, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	g := f.Geometry
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", f.Path)
	fmt.Fprintf(out, "Binary:      %s\n", f.BinaryPath)
	fmt.Fprintf(out, "Format:      %s\n", f.Format)
	fmt.Fprintf(out, "Spectra:     %d\n", f.Count())
	fmt.Fprintf(out, "Dimensions:  %d x %d x %d\n", g.Dims[0], g.Dims[1], g.Dims[2])
	fmt.Fprintf(out, "Spacing:     %g x %g x %g µm\n",
		core.MilliMeterToMicroMeter(g.Spacing[0]), core.MilliMeterToMicroMeter(g.Spacing[1]), core.MilliMeterToMicroMeter(g.Spacing[2]))
	fmt.Fprintf(out, "Origin:      %g, %g, %g mm\n", g.Origin[0], g.Origin[1], g.Origin[2])
	fmt.Fprintf(out, "m/z array:   %s%s\n", f.MZ.Type, compressedSuffix(f.MZ.Compressed))
	fmt.Fprintf(out, "Intensities: %s%s\n", f.Intensity.Type, compressedSuffix(f.Intensity.Compressed))
	if f.UUID != "" {
		fmt.Fprintf(out, "UUID:        %s\n", f.UUID)
	}
	if f.SHA1 != "" {
		fmt.Fprintf(out, "SHA-1:       %s\n", f.SHA1)
	}
	fmt.Fprintf(out, "Indexed:     %t\n", f.Indexed)

	if properties {
		fmt.Fprintf(out, "\nProperties:\n")
		for _, key := range slices.Sorted(maps.Keys(f.Properties)) {
			fmt.Fprintf(out, "  %s: %s\n", key, f.Properties[key])
		}
	}
	return nil
}

func compressedSuffix(compressed bool) string {
	if compressed {
		return " (zlib)"
	}
	return ""
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := openFile(args[0])
	if err != nil {
		return fmt.Errorf("invalid file: %w", err)
	}
	defer f.Close()

	if checksum {
		if err := f.Verify(); err != nil {
			return fmt.Errorf("invalid file: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%s, %d spectra)\n", args[0], f.Format, f.Count())
	return nil
}
