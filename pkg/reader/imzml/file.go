// Package imzml loads imzML documents and reads spectra from the binary
// (.ibd) file that accompanies them.
package imzml

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/google/uuid"
)

// Options configures Open.
type Options struct {
	Logger logger.Logger

	// Threads parses indexed documents concurrently. 0 uses all CPUs.
	Threads int

	// NoIndex forces the line by line spectrum pass even when the document
	// carries an indexList.
	NoIndex bool
}

// File is a loaded imzML document with an open binary file. The source
// table is immutable after Open, except for the NormalizationFactor of each
// record, which image initialization writes once. Read methods are safe for
// concurrent use.
type File struct {
	Path       string
	BinaryPath string

	Format     core.SpectrumFormat
	Geometry   core.Geometry
	MZ         ArrayInfo
	Intensity  ArrayInfo
	UUID       string
	SHA1       string
	Properties map[string]string
	Spectra    []core.SourceRecord

	// Indexed is set when the spectra were read through the indexList.
	Indexed bool

	bin     *os.File
	binSize int64
}

// BinaryPath returns the .ibd path of an .imzML path.
func BinaryPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".ibd"
}

// Open loads the metadata and source table of an imzML document and opens
// its binary file. Every declared array is checked to lie inside the binary
// file; a violation aborts the load with a *DataRangeError. A document with
// an empty spectrumList loads successfully with Count() == 0.
func Open(path string, opts *Options) (*File, error) {
	return OpenContext(context.Background(), path, opts)
}

// OpenContext is Open with a context for the concurrent indexed pass.
func OpenContext(ctx context.Context, path string, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := logger.OrNop(opts.Logger)
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	started := time.Now()

	binPath := BinaryPath(path)
	st, err := os.Stat(binPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingBinary, binPath)
		}
		return nil, err
	}

	doc, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	docInfo, err := doc.Stat()
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(doc)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)

	meta, line, err := readMetadata(sc, log)
	if err != nil {
		return nil, err
	}
	mz, intensity, err := meta.arrays()
	if err != nil {
		return nil, err
	}
	count, line, err := findSpectrumList(sc, line)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:       path,
		BinaryPath: binPath,
		Format:     meta.format(log),
		MZ:         mz,
		Intensity:  intensity,
		UUID:       meta.uuid,
		SHA1:       meta.sha1,
		Properties: meta.props,
		binSize:    st.Size(),
	}
	f.Properties["number of measurements"] = fmt.Sprint(count)

	table := newSpectrumTable(count, mz.Group, intensity.Group, log)
	indexed := false
	if !opts.NoIndex && count > 0 {
		if idx, ok := readSpectrumIndex(doc, docInfo.Size()); ok && len(idx.offsets) == count {
			if err := readIndexed(ctx, doc, idx, table, threads); err != nil {
				return nil, err
			}
			indexed = true
		} else {
			log.Debug("imzml", "no usable spectrum index, reading line by line", logger.Fields{"path": path})
		}
	}
	if !indexed {
		c := cursor{t: table, base: line}
		if err := c.scanLines(sc); err != nil {
			return nil, err
		}
	}
	f.Indexed = indexed

	if table.oneBased.Load() {
		log.Warning("imzml", "spectrum index counting starts at 1", nil)
	}
	planes, zSpacing := table.finishZ()
	f.Spectra = table.records
	f.Geometry = meta.geometry(f.Spectra, planes, zSpacing)

	if err := f.validateRanges(); err != nil {
		return nil, err
	}

	if f.bin, err = os.Open(binPath); err != nil {
		return nil, err
	}
	log.Info("imzml", "loaded", logger.Fields{
		"path":    path,
		"format":  f.Format.String(),
		"spectra": count,
		"indexed": indexed,
		"elapsed": time.Since(started).String(),
	})
	return f, nil
}

func (m *metadata) geometry(records []core.SourceRecord, planes int, zSpacing float64) core.Geometry {
	g := core.Geometry{
		Dims:    [3]int{m.counts[0], m.counts[1], max(planes, 1)},
		Spacing: m.spacing(),
		Origin: [3]float64{
			core.MicroMeterToMilliMeter(m.origin[0]),
			core.MicroMeterToMilliMeter(m.origin[1]),
			core.MicroMeterToMilliMeter(m.origin[2]),
		},
	}
	if zSpacing > 0 {
		g.Spacing[2] = zSpacing
	}
	for _, r := range records {
		g.Dims[0] = max(g.Dims[0], r.Index.X+1)
		g.Dims[1] = max(g.Dims[1], r.Index.Y+1)
	}
	g.Dims[0] = max(g.Dims[0], 1)
	g.Dims[1] = max(g.Dims[1], 1)
	return g
}

func (f *File) byteLength(info ArrayInfo, length, encoded int64) int64 {
	if info.Compressed {
		return encoded
	}
	return length * int64(info.Type.Size())
}

func (f *File) validateRanges() error {
	check := func(i int, array string, offset, n int64) error {
		if offset < 0 || n < 0 || offset+n > f.binSize {
			return &DataRangeError{Spectrum: i, Array: array, Offset: offset, Length: n, FileSize: f.binSize}
		}
		return nil
	}
	for i, r := range f.Spectra {
		if r.Index.X < 0 || r.Index.Y < 0 {
			return &FormatError{Accession: core.AccPositionX, Err: fmt.Errorf("spectrum %d has position (%d, %d) below 1", i, r.Index.X+1, r.Index.Y+1)}
		}
		if err := check(i, "m/z", r.MzOffset, f.byteLength(f.MZ, r.MzLength, r.MzEncodedLength)); err != nil {
			return err
		}
		if err := check(i, "intensity", r.IntOffset, f.byteLength(f.Intensity, r.IntLength, r.IntEncodedLength)); err != nil {
			return err
		}
		if f.Format.IsContinuous() && r.MzLength != r.IntLength {
			return &FormatError{Accession: core.AccExternalLength,
				Err: fmt.Errorf("spectrum %d: m/z length %d differs from intensity length %d", i, r.MzLength, r.IntLength)}
		}
	}
	return nil
}

// Close closes the binary file.
func (f *File) Close() error {
	if f.bin == nil {
		return nil
	}
	err := f.bin.Close()
	f.bin = nil
	return err
}

// Count returns the number of spectra.
func (f *File) Count() int { return len(f.Spectra) }

func (f *File) record(i int) (*core.SourceRecord, error) {
	if i < 0 || i >= len(f.Spectra) {
		return nil, fmt.Errorf("imzml: spectrum %d out of range [0, %d)", i, len(f.Spectra))
	}
	return &f.Spectra[i], nil
}

// ReadMZ decodes the m/z array of spectrum i.
func (f *File) ReadMZ(i int) ([]float64, error) {
	r, err := f.record(i)
	if err != nil {
		return nil, err
	}
	return readArray(f.bin, f.MZ, r.MzOffset, r.MzLength, r.MzEncodedLength)
}

// ReadIntensities decodes the intensity array of spectrum i.
func (f *File) ReadIntensities(i int) ([]float64, error) {
	r, err := f.record(i)
	if err != nil {
		return nil, err
	}
	return readArray(f.bin, f.Intensity, r.IntOffset, r.IntLength, r.IntEncodedLength)
}

// ReadIntensityRange decodes n intensities of spectrum i starting at element
// start. The range is clipped to the array. Uncompressed arrays read only the
// requested bytes.
func (f *File) ReadIntensityRange(i, start, n int) ([]float64, error) {
	r, err := f.record(i)
	if err != nil {
		return nil, err
	}
	first := min(max(int64(start), 0), r.IntLength)
	count := min(max(int64(n), 0), r.IntLength-first)
	if f.Intensity.Compressed {
		all, err := f.ReadIntensities(i)
		if err != nil {
			return nil, err
		}
		return all[first : first+count], nil
	}
	size := int64(f.Intensity.Type.Size())
	return readArray(f.bin, f.Intensity, r.IntOffset+first*size, count, 0)
}

// ReadSpectrum decodes both arrays of spectrum i.
func (f *File) ReadSpectrum(i int) (*core.Spectrum, error) {
	mzs, err := f.ReadMZ(i)
	if err != nil {
		return nil, err
	}
	ints, err := f.ReadIntensities(i)
	if err != nil {
		return nil, err
	}
	r := f.Spectra[i]
	return &core.Spectrum{
		ID:                  i,
		Index:               r.Index,
		MZ:                  mzs,
		Intensity:           ints,
		NormalizationFactor: r.NormalizationFactor,
	}, nil
}

// Verify checks the binary file against the declared UUID and SHA-1. Either
// check is skipped when the document does not declare the value.
func (f *File) Verify() error {
	if f.UUID != "" {
		want, err := uuid.Parse(f.UUID)
		if err != nil {
			return &FormatError{Accession: core.AccUUID, Err: err}
		}
		head := make([]byte, 16)
		if _, err := f.bin.ReadAt(head, 0); err != nil {
			return fmt.Errorf("imzml: reading uuid: %w", err)
		}
		got, err := uuid.FromBytes(head)
		if err != nil || got != want {
			return fmt.Errorf("%w: binary uuid %s, declared %s", ErrChecksum, got, want)
		}
	}
	if f.SHA1 != "" {
		h := sha1.New()
		if _, err := io.Copy(h, io.NewSectionReader(f.bin, 0, f.binSize)); err != nil {
			return fmt.Errorf("imzml: hashing binary file: %w", err)
		}
		if got := hex.EncodeToString(h.Sum(nil)); got != f.SHA1 {
			return fmt.Errorf("%w: binary sha1 %s, declared %s", ErrChecksum, got, f.SHA1)
		}
	}
	return nil
}
