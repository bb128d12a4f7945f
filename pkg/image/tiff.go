package image

import (
	"fmt"
	goimage "image"
	"image/color"
	"io"
	"math"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"golang.org/x/image/tiff"
)

// WriteTIFF writes z plane z of r as a 16-bit grayscale TIFF. Values are
// scaled linearly so that the plane maximum maps to 65535; negative values
// map to 0. A plane without positive values is written black.
func WriteTIFF(w io.Writer, r *Raster, z int) error {
	if z < 0 || z >= r.Dims[2] {
		return fmt.Errorf("image: plane %d out of range [0, %d)", z, r.Dims[2])
	}
	plane := r.Plane(z)
	top := 0.0
	for _, v := range plane {
		top = max(top, v)
	}
	scale := 0.0
	if top > 0 {
		scale = 65535 / top
	}

	width, height := r.Dims[0], r.Dims[1]
	img := goimage.NewGray16(goimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := math.Max(0, math.Min(65535, plane[y*width+x]*scale))
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v))})
		}
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// ReadMask decodes a TIFF into a single plane mask on the grid g: every
// pixel with a non-zero gray value is 1, all others 0.
func ReadMask(rd io.Reader, g core.Geometry) (*Raster, error) {
	img, err := tiff.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("image: decoding mask: %w", err)
	}
	b := img.Bounds()
	g.Dims[2] = 1
	if b.Dx() != g.Dims[0] || b.Dy() != g.Dims[1] {
		return nil, fmt.Errorf("image: mask is %dx%d, image is %dx%d", b.Dx(), b.Dy(), g.Dims[0], g.Dims[1])
	}
	mask := NewRaster(g)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if gray := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16); gray.Y != 0 {
				mask.Data[y*g.Dims[0]+x] = 1
			}
		}
	}
	return mask, nil
}
