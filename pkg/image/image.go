// Package image gives pixel and ion image access to imzML spectrum images:
// per-pixel processed spectra, ion images over a mass window, overview
// spectra over all pixels, and stacks of several images along z.
package image

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/parallel"
	reader "github.com/ChrisMcGann/ImzKey/pkg/reader/imzml"
	"github.com/ChrisMcGann/ImzKey/pkg/signal"
	"github.com/ChrisMcGann/ImzKey/pkg/transform"
	"github.com/cwbudde/algo-vecmath"
)

// DefaultBins is the number of bins of overview spectra of processed data.
const DefaultBins = 1500

var (
	ErrNotInitialized      = errors.New("image: image access is not initialized")
	ErrUnsupportedFormat   = errors.New("image: unsupported spectrum format")
	ErrOverviewUnavailable = errors.New("image: overview spectrum not available")
	ErrNoNormalization     = errors.New("image: external normalization needs a normalization raster")
)

// SpectrumImage is a spectrum per pixel on a regular grid.
type SpectrumImage interface {
	Format() core.SpectrumFormat
	Geometry() core.Geometry
	Count() int

	// InitializeImageAccess computes normalization factors and overview
	// spectra. It must complete before any other access.
	InitializeImageAccess(ctx context.Context) error

	Spectrum(ctx context.Context, i int) (*core.Spectrum, error)
	IonImage(ctx context.Context, mz, tol float64, mask *Raster) (*Raster, error)
	XAxis() []float64
	Overview(t core.SpectrumType) ([]float64, error)
}

// Options configures an ImzMLImage.
type Options struct {
	// Pipeline processes every spectrum. nil leaves spectra unchanged.
	Pipeline *transform.Pipeline

	// Threads is the number of workers. 0 uses all CPUs.
	Threads int

	// Tolerance is the default ion image window: ppm of the mass when PPM is
	// set, Da otherwise.
	Tolerance float64
	PPM       bool

	// Bins is the number of overview bins of processed data.
	Bins int

	// Normalization holds the divisor of every pixel for
	// NormalizationExternal.
	Normalization *Raster

	Logger logger.Logger
}

// ImzMLImage is the SpectrumImage of one imzML file.
type ImzMLImage struct {
	file      *reader.File
	format    core.SpectrumFormat
	pipeline  *transform.Pipeline
	threads   int
	bins      int
	tolerance float64
	ppm       bool
	external  *Raster
	log       logger.Logger

	initialized bool
	index       *Raster // spectrum id of every pixel, -1 where none
	norm        *Raster
	xAxis       []float64
	overviews   map[core.SpectrumType][]float64
	cache       *core.IonImageCache[*Raster]
}

// Open loads path and wraps it in an ImzMLImage.
func Open(ctx context.Context, path string, opts Options) (*ImzMLImage, error) {
	f, err := reader.OpenContext(ctx, path, &reader.Options{Logger: opts.Logger, Threads: opts.Threads})
	if err != nil {
		return nil, err
	}
	img, err := New(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return img, nil
}

// New wraps a loaded file. The image takes ownership of f.
func New(f *reader.File, opts Options) (*ImzMLImage, error) {
	switch f.Format {
	case core.FormatContinuousProfile, core.FormatContinuousCentroid,
		core.FormatProcessedProfile, core.FormatProcessedCentroid:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f.Format)
	}
	img := &ImzMLImage{
		file:      f,
		format:    f.Format,
		pipeline:  opts.Pipeline,
		threads:   opts.Threads,
		bins:      opts.Bins,
		tolerance: opts.Tolerance,
		ppm:       opts.PPM,
		external:  opts.Normalization,
		log:       logger.OrNop(opts.Logger),
		cache:     core.NewIonImageCache[*Raster](),
	}
	if img.pipeline == nil {
		img.pipeline = transform.Identity()
	}
	if img.threads <= 0 {
		img.threads = runtime.NumCPU()
	}
	if img.bins <= 0 {
		img.bins = DefaultBins
	}
	if img.pipeline.Normalizer.Strategy == core.NormalizationExternal {
		if img.external == nil {
			return nil, ErrNoNormalization
		}
		if img.external.Dims != NewRaster(f.Geometry).Dims {
			return nil, fmt.Errorf("image: normalization raster dimensions %v differ from image dimensions %v", img.external.Dims, f.Geometry.Dims)
		}
	}
	return img, nil
}

// Close closes the underlying file.
func (img *ImzMLImage) Close() error { return img.file.Close() }

func (img *ImzMLImage) Format() core.SpectrumFormat { return img.format }
func (img *ImzMLImage) Geometry() core.Geometry     { return img.file.Geometry }
func (img *ImzMLImage) Count() int                  { return img.file.Count() }

// File returns the underlying imzML file.
func (img *ImzMLImage) File() *reader.File { return img.file }

// Window returns the half width of the default ion image window at mz.
func (img *ImzMLImage) Window(mz float64) float64 {
	return core.Tolerance(mz, img.tolerance, img.ppm)
}

// IndexRaster returns the spectrum id of every pixel, -1 where the file has
// no spectrum.
func (img *ImzMLImage) IndexRaster() *Raster { return img.index }

// NormalizationRaster returns the normalization factor of every pixel.
func (img *ImzMLImage) NormalizationRaster() *Raster { return img.norm }

// XAxis returns the mass axis of the overview spectra.
func (img *ImzMLImage) XAxis() []float64 {
	out := make([]float64, len(img.xAxis))
	copy(out, img.xAxis)
	return out
}

// Overview returns the overview spectrum of kind t on XAxis. Variance is
// available for continuous files only; median overviews are not computed.
func (img *ImzMLImage) Overview(t core.SpectrumType) ([]float64, error) {
	if !img.initialized {
		return nil, ErrNotInitialized
	}
	y, ok := img.overviews[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrOverviewUnavailable, t)
	}
	out := make([]float64, len(y))
	copy(out, y)
	return out, nil
}

// InitializeImageAccess builds the index and normalization rasters and the
// overview spectra. Continuous files accumulate on their shared mass axis;
// processed files are binned into Bins equal bins over the global mass range
// and only non-empty bins are kept.
func (img *ImzMLImage) InitializeImageAccess(ctx context.Context) error {
	started := time.Now()
	g := img.Geometry()
	img.index = NewRaster(g)
	img.index.Fill(-1)
	img.norm = NewRaster(g)
	for i, r := range img.file.Spectra {
		img.index.Set(r.Index, float64(i))
	}
	img.overviews = make(map[core.SpectrumType][]float64)
	img.xAxis = nil

	var err error
	switch img.format {
	case core.FormatContinuousProfile, core.FormatContinuousCentroid:
		err = img.initializeContinuous(ctx)
	case core.FormatProcessedProfile, core.FormatProcessedCentroid:
		err = img.initializeProcessed(ctx)
	}
	if err != nil {
		return fmt.Errorf("image: initializing %s: %w", img.file.Path, err)
	}
	img.initialized = true
	img.log.Info("image", "image access initialized", logger.Fields{
		"format":   img.format.String(),
		"spectra":  img.Count(),
		"axis":     len(img.xAxis),
		"pipeline": img.pipeline.Options().String(),
		"elapsed":  time.Since(started).String(),
	})
	return nil
}

// factor computes the normalization divisor of spectrum i and records it.
func (img *ImzMLImage) factor(i int, x, y []float64) float64 {
	r := &img.file.Spectra[i]
	constant := r.InFileNormalization
	if img.pipeline.Normalizer.Strategy == core.NormalizationExternal {
		constant = img.external.At(r.Index)
	}
	f := img.pipeline.Normalizer.Factor(x, y, constant)
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		f = 1
	}
	r.NormalizationFactor = f
	img.norm.Set(r.Index, f)
	return f
}

// process applies the pipeline to the intensities y of one spectrum. Peak
// lists are only normalized and transformed.
func (img *ImzMLImage) process(y []float64, factor float64) {
	if img.format.IsProfile() {
		img.pipeline.Process(y, factor)
		return
	}
	transform.Scale(y, factor)
	img.pipeline.Transformer.Apply(y)
}

// padding returns the number of samples smoothing and baseline correction
// read beyond each side of a window.
func (img *ImzMLImage) padding() int {
	pad := img.pipeline.Baseline.Padding()
	if s := img.pipeline.Smoother; s != nil && s.Strategy != core.SmoothingNone {
		pad += s.HalfWindow
	}
	return pad
}

func (img *ImzMLImage) initializeContinuous(ctx context.Context) error {
	n := img.Count()
	if n == 0 {
		return nil
	}
	axis, err := img.file.ReadMZ(0)
	if err != nil {
		return err
	}
	k := len(axis)

	sums := make([][]float64, img.threads)
	squares := make([][]float64, img.threads)
	tops := make([][]float64, img.threads)
	err = parallel.Map(ctx, n, img.threads, func(ctx context.Context, t, start, end int) error {
		sum := make([]float64, k)
		square := make([]float64, k)
		top := make([]float64, k)
		for j := range top {
			top[j] = math.Inf(-1)
		}
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			y, err := img.file.ReadIntensities(i)
			if err != nil {
				return fmt.Errorf("spectrum %d: %w", i, err)
			}
			if len(y) != k {
				return fmt.Errorf("spectrum %d: %d intensities on a %d value axis", i, len(y), k)
			}
			img.process(y, img.factor(i, axis, y))
			vecmath.AddBlockInPlace(sum, y)
			for j, v := range y {
				square[j] += v * v
				top[j] = math.Max(top[j], v)
			}
		}
		sums[t], squares[t], tops[t] = sum, square, top
		return nil
	})
	if err != nil {
		return err
	}

	add := func(a, b float64) float64 { return a + b }
	count := float64(n)
	mean := parallel.Reduce(sums, add, func(v float64) float64 { return v / count })
	meanSquare := parallel.Reduce(squares, add, func(v float64) float64 { return v / count })
	variance := make([]float64, k)
	for j := range variance {
		variance[j] = math.Max(0, meanSquare[j]-mean[j]*mean[j])
	}

	img.xAxis = axis
	img.overviews[core.SpectrumSum] = parallel.Reduce(sums, add, nil)
	img.overviews[core.SpectrumMean] = mean
	img.overviews[core.SpectrumMaximum] = parallel.Reduce(tops, math.Max, nil)
	img.overviews[core.SpectrumVariance] = variance
	return nil
}

func (img *ImzMLImage) initializeProcessed(ctx context.Context) error {
	n := img.Count()
	if n == 0 {
		return nil
	}
	los := make([]float64, img.threads)
	his := make([]float64, img.threads)
	for t := range los {
		los[t], his[t] = math.Inf(1), math.Inf(-1)
	}
	err := parallel.Map(ctx, n, img.threads, func(ctx context.Context, t, start, end int) error {
		for i := start; i < end; i++ {
			x, err := img.file.ReadMZ(i)
			if err != nil {
				return fmt.Errorf("spectrum %d: %w", i, err)
			}
			if len(x) > 0 {
				los[t] = math.Min(los[t], x[0])
				his[t] = math.Max(his[t], x[len(x)-1])
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for t := range los {
		lo, hi = math.Min(lo, los[t]), math.Max(hi, his[t])
	}
	if lo > hi {
		return nil
	}
	width := (hi - lo) / float64(img.bins)

	partials := make([][]core.Interval, img.threads)
	err = parallel.Map(ctx, n, img.threads, func(ctx context.Context, t, start, end int) error {
		bins := make([]core.Interval, img.bins)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, err := img.file.ReadMZ(i)
			if err != nil {
				return fmt.Errorf("spectrum %d: %w", i, err)
			}
			y, err := img.file.ReadIntensities(i)
			if err != nil {
				return fmt.Errorf("spectrum %d: %w", i, err)
			}
			img.process(y, img.factor(i, x, y))
			for j := range min(len(x), len(y)) {
				b := 0
				if width > 0 {
					b = min(max(int((x[j]-lo)/width), 0), img.bins-1)
				}
				bins[b].Add(i, x[j], y[j])
			}
		}
		partials[t] = bins
		return nil
	})
	if err != nil {
		return err
	}

	merged := parallel.Reduce(partials, func(a, b core.Interval) core.Interval {
		a.Merge(b)
		return a
	}, nil)
	var axis, sum, mean, top []float64
	for _, b := range merged {
		if b.X.Count() == 0 {
			continue
		}
		axis = append(axis, b.X.Mean())
		sum = append(sum, b.Y.Sum())
		mean = append(mean, b.Y.Mean())
		top = append(top, b.Y.Max())
	}
	img.xAxis = axis
	img.overviews[core.SpectrumSum] = sum
	img.overviews[core.SpectrumMean] = mean
	img.overviews[core.SpectrumMaximum] = top
	return nil
}

// Spectrum returns the processed spectrum i. Its intensities are already
// normalized, so its NormalizationFactor is 1.
func (img *ImzMLImage) Spectrum(_ context.Context, i int) (*core.Spectrum, error) {
	if !img.initialized {
		return nil, ErrNotInitialized
	}
	s, err := img.file.ReadSpectrum(i)
	if err != nil {
		return nil, err
	}
	img.process(s.Intensity, s.NormalizationFactor)
	s.NormalizationFactor = 1
	return s, nil
}

// IonImage pools the processed intensities within [mz-tol, mz+tol) of every
// pixel. Profile spectra are read over the window padded by the smoothing half
// window plus twice the baseline half window, so that the processed window
// matches the processed full spectrum. Pixels outside mask, where it is 0, are 0.
// Results without mask are cached per (mz, tol).
func (img *ImzMLImage) IonImage(ctx context.Context, mz, tol float64, mask *Raster) (*Raster, error) {
	if !img.initialized {
		return nil, ErrNotInitialized
	}
	if mask == nil {
		if r, ok := img.cache.Get(mz, tol); ok {
			return r.Clone(), nil
		}
	}
	out := NewRaster(img.Geometry())
	if mask != nil && mask.Dims != out.Dims {
		return nil, fmt.Errorf("image: mask dimensions %v differ from image dimensions %v", mask.Dims, out.Dims)
	}

	err := parallel.Map(ctx, img.Count(), img.threads, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := img.file.Spectra[i].Index
			if mask != nil && mask.At(p) == 0 {
				continue
			}
			axis := img.xAxis
			if img.format.IsProcessed() {
				var err error
				if axis, err = img.file.ReadMZ(i); err != nil {
					return fmt.Errorf("spectrum %d: %w", i, err)
				}
			}
			v, err := img.pooledWindow(i, axis, mz-tol, mz+tol)
			if err != nil {
				return fmt.Errorf("spectrum %d: %w", i, err)
			}
			out.Set(p, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mask == nil {
		img.cache.Put(img.cache.Reference(mz, tol, ""), out.Clone())
	}
	return out, nil
}

func (img *ImzMLImage) pooledWindow(i int, axis []float64, lo, hi float64) (float64, error) {
	start, n := signal.Subrange(axis, lo, hi)
	if n == 0 {
		return 0, nil
	}
	pad := 0
	if img.format.IsProfile() {
		pad = img.padding()
	}
	left := min(pad, start)
	right := min(pad, len(axis)-start-n)
	y, err := img.file.ReadIntensityRange(i, start-left, n+left+right)
	if err != nil {
		return 0, err
	}
	img.process(y, img.file.Spectra[i].NormalizationFactor)
	return img.pipeline.Pool(y[left : left+n]), nil
}
