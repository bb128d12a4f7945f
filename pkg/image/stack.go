package image

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/cwbudde/algo-vecmath"
)

var (
	ErrMixedFormats = errors.New("image: stack slices have different spectrum formats")
	ErrEmptyStack   = errors.New("image: stack has no slices")
)

// Transform maps the ion image of one slice into the stack frame, for
// example a registration warp.
type Transform interface {
	Apply(r *Raster) (*Raster, error)
}

// IdentityTransform returns rasters unchanged.
type IdentityTransform struct{}

func (IdentityTransform) Apply(r *Raster) (*Raster, error) { return r, nil }

type stackSlice struct {
	image     SpectrumImage
	transform Transform
}

// Stack arranges several spectrum images as the z planes of one volume, in
// ascending slice id order.
type Stack struct {
	// SliceMaxNormalization divides every plane of an ion image by its
	// maximum.
	SliceMaxNormalization bool

	spacingZ float64
	bins     int
	slices   map[int]stackSlice
	format   core.SpectrumFormat
	xMin     float64
	xMax     float64

	xAxis     []float64
	overviews map[core.SpectrumType][]float64
}

// NewStack returns an empty stack with planes spacingZ mm apart.
func NewStack(spacingZ float64) *Stack {
	return &Stack{
		spacingZ: spacingZ,
		bins:     DefaultBins,
		slices:   make(map[int]stackSlice),
		xMin:     math.Inf(1),
		xMax:     math.Inf(-1),
	}
}

// Insert places img at slice id, replacing a previous slice with the same
// id. The image must be initialized. A nil transform is the identity.
func (s *Stack) Insert(id int, img SpectrumImage, tr Transform) error {
	if len(s.slices) > 0 && img.Format() != s.format {
		return fmt.Errorf("%w: slice %d is %v, stack is %v", ErrMixedFormats, id, img.Format(), s.format)
	}
	if tr == nil {
		tr = IdentityTransform{}
	}
	s.format = img.Format()
	s.slices[id] = stackSlice{image: img, transform: tr}
	if x := img.XAxis(); len(x) > 0 {
		s.xMin = math.Min(s.xMin, x[0])
		s.xMax = math.Max(s.xMax, x[len(x)-1])
	}
	return nil
}

// Format returns the spectrum format shared by all slices.
func (s *Stack) Format() core.SpectrumFormat { return s.format }

// Len returns the number of slices.
func (s *Stack) Len() int { return len(s.slices) }

// XRange returns the union of the mass ranges of all slices.
func (s *Stack) XRange() (lo, hi float64) { return s.xMin, s.xMax }

func (s *Stack) ids() []int {
	ids := make([]int, 0, len(s.slices))
	for id := range s.slices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Geometry returns the grid of the first slice with one plane per slice.
func (s *Stack) Geometry() core.Geometry {
	ids := s.ids()
	if len(ids) == 0 {
		return core.Geometry{}
	}
	g := s.slices[ids[0]].image.Geometry()
	g.Dims[2] = len(ids)
	g.Spacing[2] = s.spacingZ
	return g
}

// InitializeImageAccess bins the overview spectra of all slices over the
// union mass range. The binned sum and mean are averaged over the
// contributing values and the maximum is the largest.
func (s *Stack) InitializeImageAccess() error {
	if len(s.slices) == 0 {
		return ErrEmptyStack
	}
	s.overviews = make(map[core.SpectrumType][]float64)
	s.xAxis = nil
	if s.xMin > s.xMax {
		return nil
	}
	width := (s.xMax - s.xMin) / float64(s.bins)

	x := make([]core.Accumulator, s.bins)
	sum := make([]core.Accumulator, s.bins)
	mean := make([]core.Accumulator, s.bins)
	top := make([]core.Accumulator, s.bins)
	for _, id := range s.ids() {
		img := s.slices[id].image
		axis := img.XAxis()
		sums, err := img.Overview(core.SpectrumSum)
		if err != nil {
			return fmt.Errorf("slice %d: %w", id, err)
		}
		means, err := img.Overview(core.SpectrumMean)
		if err != nil {
			return fmt.Errorf("slice %d: %w", id, err)
		}
		maxs, err := img.Overview(core.SpectrumMaximum)
		if err != nil {
			return fmt.Errorf("slice %d: %w", id, err)
		}
		for k, v := range axis {
			b := 0
			if width > 0 {
				b = min(max(int((v-s.xMin)/width), 0), s.bins-1)
			}
			x[b].Add(v)
			sum[b].Add(sums[k])
			mean[b].Add(means[k])
			top[b].Add(maxs[k])
		}
	}

	var ySum, yMean, yMax []float64
	for b := range x {
		if x[b].Count() == 0 {
			continue
		}
		s.xAxis = append(s.xAxis, x[b].Mean())
		ySum = append(ySum, sum[b].Mean())
		yMean = append(yMean, mean[b].Mean())
		yMax = append(yMax, top[b].Max())
	}
	s.overviews[core.SpectrumSum] = ySum
	s.overviews[core.SpectrumMean] = yMean
	s.overviews[core.SpectrumMaximum] = yMax
	return nil
}

// XAxis returns the mass axis of the stack overview spectra.
func (s *Stack) XAxis() []float64 { return slices.Clone(s.xAxis) }

// Overview returns the binned overview spectrum of kind t.
func (s *Stack) Overview(t core.SpectrumType) ([]float64, error) {
	y, ok := s.overviews[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrOverviewUnavailable, t)
	}
	return slices.Clone(y), nil
}

// IonImage generates the ion image of every slice, maps it through the
// slice transform and copies it into its z plane. Slices with a transform
// other than the identity must pass ValidateRegistrationInput first.
func (s *Stack) IonImage(ctx context.Context, mz, tol float64) (*Raster, error) {
	if len(s.slices) == 0 {
		return nil, ErrEmptyStack
	}
	out := NewRaster(s.Geometry())
	plane := out.Dims[0] * out.Dims[1]
	for z, id := range s.ids() {
		sl := s.slices[id]
		r, err := sl.image.IonImage(ctx, mz, tol, nil)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", id, err)
		}
		if _, identity := sl.transform.(IdentityTransform); !identity {
			if err := ValidateRegistrationInput(r); err != nil {
				return nil, fmt.Errorf("slice %d: %w", id, err)
			}
		}
		if r, err = sl.transform.Apply(r); err != nil {
			return nil, fmt.Errorf("slice %d: transform: %w", id, err)
		}
		if len(r.Data) != plane {
			return nil, fmt.Errorf("slice %d: %d pixels, stack planes have %d", id, len(r.Data), plane)
		}
		dst := out.Plane(z)
		if m := r.Max(); s.SliceMaxNormalization && m > 0 {
			vecmath.ScaleBlock(dst, r.Data, 1/m)
		} else {
			copy(dst, r.Data)
		}
	}
	return out, nil
}
