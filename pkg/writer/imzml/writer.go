// Package imzml writes spectra as an imzML document with its binary (.ibd)
// file in one of the four storage formats.
package imzml

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/signal"
	"github.com/ChrisMcGann/ImzKey/pkg/transform"
	"github.com/google/uuid"
)

// Version is written as the software version of generated documents.
const Version = "0.1.0"

var (
	// ErrUnsupportedFormat is returned for FormatNone or combined formats.
	ErrUnsupportedFormat = errors.New("imzml: unsupported spectrum format")

	// ErrNoIntervals is returned when a continuous centroid file is
	// requested without intervals.
	ErrNoIntervals = errors.New("imzml: continuous centroid output needs intervals")

	// ErrAxisMismatch is returned when continuous profile spectra do not
	// share one m/z axis.
	ErrAxisMismatch = errors.New("imzml: spectra do not share one m/z axis")

	// ErrCompression is returned when compression is requested for a
	// continuous format.
	ErrCompression = errors.New("imzml: compression is only supported for processed formats")
)

// Source provides the spectra to write.
type Source interface {
	Count() int
	Geometry() core.Geometry
	Spectrum(ctx context.Context, i int) (*core.Spectrum, error)
}

// Options configures Write.
type Options struct {
	Format        core.SpectrumFormat
	MZType        core.NumericType
	IntensityType core.NumericType

	// Compression stores arrays zlib compressed. Processed formats only.
	Compression bool

	// Intervals, Tolerance, PPM and Pooling define the shared m/z axis of
	// continuous centroid output: one value per interval, pooled from the
	// intensities within mean ± tolerance.
	Intervals []core.Interval
	Tolerance float64
	PPM       bool
	Pooling   core.RangePooling

	// Indexed wraps the document in indexedmzML with a spectrum offset index.
	Indexed bool

	// Polarity is "positive", "negative" or empty.
	Polarity string
	RunID    string

	// UUID identifies the file pair; a random one is generated when zero.
	UUID uuid.UUID

	Logger logger.Logger
}

// DefaultOptions returns continuous profile output with 32-bit floats.
func DefaultOptions() Options {
	return Options{
		Format:        core.FormatContinuousProfile,
		MZType:        core.Float32,
		IntensityType: core.Float32,
		Tolerance:     50,
		PPM:           true,
		Pooling:       core.PoolingMaximum,
	}
}

// entry is the binary layout of one written spectrum.
type entry struct {
	index  core.Index
	factor float64

	mzOffset, mzLen, mzEnc    int64
	intOffset, intLen, intEnc int64
}

// Write writes src to path and to the .ibd file next to it.
func Write(path string, src Source, opts Options) error {
	return WriteContext(context.Background(), path, src, opts)
}

// WriteContext is Write with a context checked between spectra.
func WriteContext(ctx context.Context, path string, src Source, opts Options) error {
	switch opts.Format {
	case core.FormatContinuousProfile, core.FormatContinuousCentroid,
		core.FormatProcessedProfile, core.FormatProcessedCentroid:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, opts.Format)
	}
	if opts.Compression && opts.Format.IsContinuous() {
		return ErrCompression
	}
	if opts.Format == core.FormatContinuousCentroid && len(opts.Intervals) == 0 {
		return ErrNoIntervals
	}
	log := logger.OrNop(opts.Logger)
	id := opts.UUID
	if id == uuid.Nil {
		id = uuid.New()
	}

	entries, sum, err := writeBinary(ctx, binaryPath(path), src, opts, id)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeDocument(f, src.Geometry(), opts, id, sum, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("imzml", "written", logger.Fields{
		"path":    path,
		"format":  opts.Format.String(),
		"spectra": len(entries),
	})
	return nil
}

func binaryPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".ibd"
}

// countingWriter tracks the byte offset of the stream.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeBinary writes the UUID header and all arrays and returns the layout
// and the hex SHA-1 of the file.
func writeBinary(ctx context.Context, path string, src Source, opts Options, id uuid.UUID) ([]entry, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	h := sha1.New()
	buf := bufio.NewWriterSize(f, 1<<20)
	out := &countingWriter{w: io.MultiWriter(buf, h)}
	if _, err := out.Write(id[:]); err != nil {
		return nil, "", err
	}

	bw := &binaryWriter{out: out, compress: opts.Compression}
	var entries []entry
	switch opts.Format {
	case core.FormatContinuousProfile:
		entries, err = writeContinuousProfile(ctx, bw, src, opts)
	case core.FormatContinuousCentroid:
		entries, err = writeContinuousCentroid(ctx, bw, src, opts)
	default:
		entries, err = writeProcessed(ctx, bw, src, opts)
	}
	if err != nil {
		return nil, "", err
	}
	if err := buf.Flush(); err != nil {
		return nil, "", err
	}
	if err := f.Close(); err != nil {
		return nil, "", err
	}
	return entries, hex.EncodeToString(h.Sum(nil)), nil
}

func newEntry(s *core.Spectrum) entry {
	return entry{index: s.Index, factor: s.NormalizationFactor}
}

func writeContinuousProfile(ctx context.Context, bw *binaryWriter, src Source, opts Options) ([]entry, error) {
	entries := make([]entry, 0, src.Count())
	var axis entry
	var mzs []float64
	for i := 0; i < src.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := src.Spectrum(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		if i == 0 {
			mzs = slices.Clone(s.MZ)
			if axis.mzOffset, axis.mzEnc, err = bw.write(mzs, opts.MZType); err != nil {
				return nil, err
			}
		}
		if len(s.Intensity) != len(mzs) {
			return nil, fmt.Errorf("%w: spectrum %d has %d values, want %d", ErrAxisMismatch, i, len(s.Intensity), len(mzs))
		}
		if !slices.Equal(s.MZ, mzs) {
			return nil, fmt.Errorf("%w: m/z values of spectrum %d differ from spectrum 0", ErrAxisMismatch, i)
		}
		e := newEntry(s)
		e.mzOffset, e.mzLen, e.mzEnc = axis.mzOffset, int64(len(mzs)), axis.mzEnc
		if e.intOffset, e.intEnc, err = bw.write(s.Intensity, opts.IntensityType); err != nil {
			return nil, err
		}
		e.intLen = int64(len(s.Intensity))
		entries = append(entries, e)
	}
	return entries, nil
}

func writeContinuousCentroid(ctx context.Context, bw *binaryWriter, src Source, opts Options) ([]entry, error) {
	centers := core.XMeans(opts.Intervals)
	mzOffset, mzEnc, err := bw.write(centers, opts.MZType)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, src.Count())
	pooled := make([]float64, len(centers))
	for i := 0; i < src.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := src.Spectrum(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		for k, c := range centers {
			tol := core.Tolerance(c, opts.Tolerance, opts.PPM)
			start, n := signal.Subrange(s.MZ, c-tol, c+tol)
			pooled[k] = transform.Pool(opts.Pooling, s.Intensity[start:start+n])
		}
		e := newEntry(s)
		e.mzOffset, e.mzLen, e.mzEnc = mzOffset, int64(len(centers)), mzEnc
		if e.intOffset, e.intEnc, err = bw.write(pooled, opts.IntensityType); err != nil {
			return nil, err
		}
		e.intLen = int64(len(pooled))
		entries = append(entries, e)
	}
	return entries, nil
}

func writeProcessed(ctx context.Context, bw *binaryWriter, src Source, opts Options) ([]entry, error) {
	entries := make([]entry, 0, src.Count())
	for i := 0; i < src.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := src.Spectrum(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		if len(s.MZ) != len(s.Intensity) {
			return nil, fmt.Errorf("spectrum %d: %d m/z values but %d intensities", i, len(s.MZ), len(s.Intensity))
		}
		e := newEntry(s)
		if e.mzOffset, e.mzEnc, err = bw.write(s.MZ, opts.MZType); err != nil {
			return nil, err
		}
		if e.intOffset, e.intEnc, err = bw.write(s.Intensity, opts.IntensityType); err != nil {
			return nil, err
		}
		e.mzLen, e.intLen = int64(len(s.MZ)), int64(len(s.Intensity))
		entries = append(entries, e)
	}
	return entries, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func headerValues(g core.Geometry, opts Options, id uuid.UUID, sum string, n int) map[string]string {
	mode, modeAcc := "continuous", core.AccContinuous
	if opts.Format.IsProcessed() {
		mode, modeAcc = "processed", core.AccProcessed
	}
	spectrumType, typeAcc := "profile spectrum", core.AccProfile
	if opts.Format.IsCentroid() {
		spectrumType, typeAcc = "centroid spectrum", core.AccCentroid
	}
	compression, compressionAcc := "no compression", core.AccNoCompression
	if opts.Compression {
		compression, compressionAcc = "zlib compression", core.AccZlib
	}

	xs := core.MilliMeterToMicroMeter(g.Spacing[0])
	ys := core.MilliMeterToMicroMeter(g.Spacing[1])
	v := map[string]string{
		"version":              Version,
		"mode":                 mode,
		"mode_code":            core.AccessionCode(modeAcc),
		"spectrumtype":         spectrumType,
		"spectrumtype_code":    core.AccessionCode(typeAcc),
		"uuid":                 id.String(),
		"sha1sum":              sum,
		"mz_data_type":         opts.MZType.String(),
		"mz_data_type_code":    core.AccessionCode(opts.MZType.Accession()),
		"int_data_type":        opts.IntensityType.String(),
		"int_data_type_code":   core.AccessionCode(opts.IntensityType.Accession()),
		"mz_compression":       compression,
		"mz_compression_code":  core.AccessionCode(compressionAcc),
		"int_compression":      compression,
		"int_compression_code": core.AccessionCode(compressionAcc),
		"size_x":               strconv.Itoa(g.Dims[0]),
		"size_y":               strconv.Itoa(g.Dims[1]),
		"max dimension x":      strconv.Itoa(int(float64(g.Dims[0]) * xs)),
		"max dimension y":      strconv.Itoa(int(float64(g.Dims[1]) * ys)),
		"pixel size x":         formatFloat(xs),
		"pixel size y":         formatFloat(ys),
		"run_id":               opts.RunID,
		"num_spectra":          strconv.Itoa(n),
	}
	if g.Origin[0] != 0 {
		v["origin x"] = formatFloat(core.MilliMeterToMicroMeter(g.Origin[0]))
	}
	if g.Origin[1] != 0 {
		v["origin y"] = formatFloat(core.MilliMeterToMicroMeter(g.Origin[1]))
	}
	switch opts.Polarity {
	case "positive":
		v["polarity"], v["polarity_code"] = "positive scan", core.AccessionCode(core.AccPositiveScan)
	case "negative":
		v["polarity"], v["polarity_code"] = "negative scan", core.AccessionCode(core.AccNegativeScan)
	}
	if opts.Indexed {
		v["indexed"] = ""
	}
	return v
}

func spectrumValues(i int, e entry, planes int) map[string]string {
	v := map[string]string{
		"index":       strconv.Itoa(i),
		"x":           strconv.Itoa(e.index.X + 1),
		"y":           strconv.Itoa(e.index.Y + 1),
		"mz_len":      strconv.FormatInt(e.mzLen, 10),
		"mz_enc_len":  strconv.FormatInt(e.mzEnc, 10),
		"mz_offset":   strconv.FormatInt(e.mzOffset, 10),
		"int_len":     strconv.FormatInt(e.intLen, 10),
		"int_enc_len": strconv.FormatInt(e.intEnc, 10),
		"int_offset":  strconv.FormatInt(e.intOffset, 10),
	}
	if planes > 1 {
		v["z"] = strconv.Itoa(e.index.Z + 1)
	}
	if e.factor != 0 && e.factor != 1 && !math.IsNaN(e.factor) {
		v["tic"] = formatFloat(e.factor)
	}
	return v
}

func writeDocument(w io.Writer, g core.Geometry, opts Options, id uuid.UUID, sum string, entries []entry) error {
	buf := bufio.NewWriter(w)
	out := &countingWriter{w: buf}

	if _, err := io.WriteString(out, RenderBraces(headerTemplate, headerValues(g, opts, id, sum, len(entries)))); err != nil {
		return err
	}
	offsets := make([]int64, len(entries))
	for i, e := range entries {
		offsets[i] = out.n
		if _, err := io.WriteString(out, RenderBraces(spectrumTemplate, spectrumValues(i, e, g.Dims[2]))); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(out, footerTemplate); err != nil {
		return err
	}
	if opts.Indexed {
		if err := writeIndex(out, offsets); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func writeIndex(out *countingWriter, offsets []int64) error {
	listStart := out.n
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "<indexList count=\"1\">\n<index name=\"spectrum\">\n")
	for i, off := range offsets {
		fmt.Fprintf(bw, "<offset idRef=\"spectrum=%d\">%d</offset>\n", i, off)
	}
	fmt.Fprintf(bw, "</index>\n</indexList>\n<indexListOffset>%d</indexListOffset>\n</indexedmzML>\n", listStart)
	return bw.Flush()
}
