package image

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/cwbudde/algo-vecmath"
)

// ErrNoUnitDimension is returned by ValidateRegistrationInput for a volume
// that has no single-voxel dimension to register along.
var ErrNoUnitDimension = errors.New("image: registration input needs exactly one dimension of size 1")

// Raster is a dense float image on the pixel grid of a spectrum image. Data is
// stored x fastest, then y, then z.
type Raster struct {
	Dims    [3]int
	Spacing [3]float64 // mm
	Origin  [3]float64 // mm
	Data    []float64
}

// NewRaster returns a zero raster on the grid g.
func NewRaster(g core.Geometry) *Raster {
	dims := g.Dims
	for i := range dims {
		dims[i] = max(dims[i], 1)
	}
	return &Raster{
		Dims:    dims,
		Spacing: g.Spacing,
		Origin:  g.Origin,
		Data:    make([]float64, dims[0]*dims[1]*dims[2]),
	}
}

// Geometry returns the grid of the raster.
func (r *Raster) Geometry() core.Geometry {
	return core.Geometry{Dims: r.Dims, Spacing: r.Spacing, Origin: r.Origin}
}

// Index returns the offset of the pixel p in Data.
func (r *Raster) Index(p core.Index) int {
	return (p.Z*r.Dims[1]+p.Y)*r.Dims[0] + p.X
}

// Contains reports whether p lies on the grid.
func (r *Raster) Contains(p core.Index) bool {
	return p.X >= 0 && p.Y >= 0 && p.Z >= 0 && p.X < r.Dims[0] && p.Y < r.Dims[1] && p.Z < r.Dims[2]
}

func (r *Raster) At(p core.Index) float64     { return r.Data[r.Index(p)] }
func (r *Raster) Set(p core.Index, v float64) { r.Data[r.Index(p)] = v }

// Fill sets every pixel to v.
func (r *Raster) Fill(v float64) {
	for i := range r.Data {
		r.Data[i] = v
	}
}

// Plane returns the pixels of z plane z. The slice aliases Data.
func (r *Raster) Plane(z int) []float64 {
	n := r.Dims[0] * r.Dims[1]
	return r.Data[z*n : (z+1)*n]
}

// Max returns the largest pixel value, 0 for an empty raster.
func (r *Raster) Max() float64 {
	if len(r.Data) == 0 {
		return 0
	}
	m := r.Data[0]
	for _, v := range r.Data[1:] {
		m = max(m, v)
	}
	return m
}

// ApplyMask multiplies r pixel by pixel with the mask, which holds 1 for
// pixels to keep and 0 for pixels to clear.
func (r *Raster) ApplyMask(mask *Raster) error {
	if mask.Dims != r.Dims {
		return fmt.Errorf("image: mask dimensions %v differ from image dimensions %v", mask.Dims, r.Dims)
	}
	vecmath.MulBlockInPlace(r.Data, mask.Data)
	return nil
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	c := *r
	c.Data = make([]float64, len(r.Data))
	copy(c.Data, r.Data)
	return &c
}

// ValidateRegistrationInput checks that r can be handed to a 2D
// registration: exactly one of its dimensions must be 1. A single plane
// image therefore passes while its x and y extents exceed 1.
func ValidateRegistrationInput(r *Raster) error {
	units := 0
	for _, d := range r.Dims {
		if d == 1 {
			units++
		}
	}
	if units != 1 {
		return fmt.Errorf("%w: dimensions %v", ErrNoUnitDimension, r.Dims)
	}
	return nil
}
