package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
)

// Options selects the strategies of a Pipeline.
type Options struct {
	Normalization       core.NormalizationStrategy
	Smoothing           core.Smoothing
	SmoothingHalfWindow int
	Baseline            core.BaselineCorrection
	BaselineHalfWindow  int
	Transform           core.IntensityTransform
	Pooling             core.RangePooling
}

// DefaultOptions returns TIC normalization without smoothing, baseline
// correction or intensity transformation, pooling by maximum.
func DefaultOptions() Options {
	return Options{
		Normalization:       core.NormalizationTIC,
		SmoothingHalfWindow: 2,
		BaselineHalfWindow:  50,
		Pooling:             core.PoolingMaximum,
	}
}

// Option keys accepted by ParseOptions.
const (
	KeyNormalization       = "normalization"
	KeySmoothing           = "smoothing"
	KeySmoothingHalfWindow = "smoothing-hws"
	KeyBaseline            = "baseline"
	KeyBaselineHalfWindow  = "baseline-hws"
	KeyTransform           = "transform"
	KeyPooling             = "pooling"
)

// ParseOptions reads named string keys on top of DefaultOptions. Unknown keys
// are rejected.
func ParseOptions(values map[string]string) (Options, error) {
	opts := DefaultOptions()
	for key, value := range values {
		var err error
		switch strings.ToLower(key) {
		case KeyNormalization:
			opts.Normalization, err = core.ParseNormalization(value)
		case KeySmoothing:
			opts.Smoothing, err = core.ParseSmoothing(value)
		case KeySmoothingHalfWindow:
			opts.SmoothingHalfWindow, err = parseHalfWindow(value)
		case KeyBaseline:
			opts.Baseline, err = core.ParseBaseline(value)
		case KeyBaselineHalfWindow:
			opts.BaselineHalfWindow, err = parseHalfWindow(value)
		case KeyTransform:
			opts.Transform, err = core.ParseTransform(value)
		case KeyPooling:
			opts.Pooling, err = core.ParsePooling(value)
		default:
			err = errors.New("unknown option")
		}
		if err != nil {
			return Options{}, fmt.Errorf("option %q: %w", key, err)
		}
	}
	return opts, nil
}

func parseHalfWindow(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("half window must be non-negative, got %d", v)
	}
	return v, nil
}

// Pipeline processes one spectrum: divide by the normalization factor, smooth,
// subtract the baseline, then transform intensities.
type Pipeline struct {
	Normalizer  Normalizer
	Smoother    *Smoother
	Baseline    Baseline
	Transformer Transformer
	Pooling     core.RangePooling
}

// NewPipeline builds a pipeline, including its smoothing kernel.
func NewPipeline(opts Options) (*Pipeline, error) {
	smoother, err := NewSmoother(opts.Smoothing, opts.SmoothingHalfWindow)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Normalizer:  Normalizer{Strategy: opts.Normalization},
		Smoother:    smoother,
		Baseline:    Baseline{Strategy: opts.Baseline, HalfWindow: opts.BaselineHalfWindow},
		Transformer: Transformer{Strategy: opts.Transform},
		Pooling:     opts.Pooling,
	}, nil
}

// Identity returns a pipeline that leaves spectra unchanged.
func Identity() *Pipeline {
	return &Pipeline{Pooling: core.PoolingMaximum}
}

// Options reports the strategies of the pipeline.
func (p *Pipeline) Options() Options {
	opts := Options{
		Normalization:      p.Normalizer.Strategy,
		Baseline:           p.Baseline.Strategy,
		BaselineHalfWindow: p.Baseline.HalfWindow,
		Transform:          p.Transformer.Strategy,
		Pooling:            p.Pooling,
	}
	if p.Smoother != nil {
		opts.Smoothing = p.Smoother.Strategy
		opts.SmoothingHalfWindow = p.Smoother.HalfWindow
	}
	return opts
}

// Process applies the pipeline to y in place using a precomputed
// normalization factor.
func (p *Pipeline) Process(y []float64, factor float64) {
	if len(y) == 0 {
		return
	}
	Scale(y, factor)
	p.Smoother.Apply(y)
	p.Baseline.Apply(y)
	p.Transformer.Apply(y)
}

// Pool collapses a processed window into one value.
func (p *Pipeline) Pool(ys []float64) float64 { return Pool(p.Pooling, ys) }

func (o Options) String() string {
	return fmt.Sprintf("normalization=%v smoothing=%v(%d) baseline=%v(%d) transform=%v pooling=%v",
		o.Normalization, o.Smoothing, o.SmoothingHalfWindow, o.Baseline, o.BaselineHalfWindow, o.Transform, o.Pooling)
}
