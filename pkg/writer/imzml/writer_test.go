package imzml

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	reader "github.com/ChrisMcGann/ImzKey/pkg/reader/imzml"
	"github.com/google/uuid"
)

var testUUID = uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")

type memorySource struct {
	geometry core.Geometry
	spectra  []core.Spectrum
}

func (m *memorySource) Count() int              { return len(m.spectra) }
func (m *memorySource) Geometry() core.Geometry { return m.geometry }
func (m *memorySource) Spectrum(_ context.Context, i int) (*core.Spectrum, error) {
	s := m.spectra[i]
	return &s, nil
}

// grid returns a 2×2 source sharing one m/z axis.
func grid() *memorySource {
	mz := []float64{100, 150.5, 200.25, 300}
	src := &memorySource{geometry: core.Geometry{
		Dims:    [3]int{2, 2, 1},
		Spacing: [3]float64{0.025, 0.025, 0.01},
	}}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			id := len(src.spectra)
			ints := make([]float64, len(mz))
			for k := range ints {
				ints[k] = float64(id*10 + k)
			}
			src.spectra = append(src.spectra, core.Spectrum{
				ID:        id,
				Index:     core.Index{X: x, Y: y},
				MZ:        mz,
				Intensity: ints,
			})
		}
	}
	return src
}

func write(t *testing.T, src Source, opts Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.imzML")
	if opts.UUID == uuid.Nil {
		opts.UUID = testUUID
	}
	if err := Write(path, src, opts); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return path
}

func load(t *testing.T, path string) *reader.File {
	t.Helper()
	f, err := reader.Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		view   string
		values map[string]string
		want   string
	}{
		{"plain", "a{x}b", map[string]string{"x": "1"}, "a1b"},
		{"missing key", "a{x}b", nil, "ab"},
		{"block kept", "[{#k}in {v}{/k}]", map[string]string{"k": "", "v": "2"}, "[in 2]"},
		{"block dropped", "[{#k}in {v}{/k}]", map[string]string{"v": "2"}, "[]"},
		{"first close ends block", "{#a}1{/b}2{/a}3", nil, "23"},
		{"unclosed block", "x{#a}rest {v}", map[string]string{"v": "1"}, "x"},
		{"values not rescanned", "{a}", map[string]string{"a": "{b}", "b": "no"}, "{b}"},
		{"unterminated placeholder", "a{b", nil, "a{b"},
		{"spaces in key", "{pixel size x}", map[string]string{"pixel size x": "20"}, "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderBraces(tt.view, tt.values); got != tt.want {
				t.Errorf("RenderBraces() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDelimiters(t *testing.T) {
	got := Render("<#b>x<v></b>", map[string]string{"b": "", "v": "1"}, '<', '>')
	if got != "x1" {
		t.Errorf("Render() = %q, want %q", got, "x1")
	}
}

func TestWriteContinuousProfile(t *testing.T) {
	src := grid()
	path := write(t, src, DefaultOptions())
	f := load(t, path)

	if f.Format != core.FormatContinuousProfile {
		t.Errorf("Format = %v, want ContinuousProfile", f.Format)
	}
	if f.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", f.Count())
	}
	if f.Geometry.Dims != [3]int{2, 2, 1} {
		t.Errorf("Dims = %v, want [2 2 1]", f.Geometry.Dims)
	}
	if math.Abs(f.Geometry.Spacing[0]-0.025) > 1e-12 || math.Abs(f.Geometry.Spacing[1]-0.025) > 1e-12 {
		t.Errorf("Spacing = %v, want 0.025 mm", f.Geometry.Spacing)
	}
	if f.UUID != testUUID.String() {
		t.Errorf("UUID = %q, want %q", f.UUID, testUUID)
	}

	// one shared m/z array after the 16 byte uuid
	for i, r := range f.Spectra {
		if r.MzOffset != 16 {
			t.Errorf("spectrum %d: MzOffset = %d, want 16", i, r.MzOffset)
		}
		if want := int64(16 + 16 + i*16); r.IntOffset != want {
			t.Errorf("spectrum %d: IntOffset = %d, want %d", i, r.IntOffset, want)
		}
	}
	for i, want := range src.spectra {
		got, err := f.ReadSpectrum(i)
		if err != nil {
			t.Fatalf("ReadSpectrum(%d) error = %v", i, err)
		}
		if got.Index != want.Index {
			t.Errorf("spectrum %d: Index = %v, want %v", i, got.Index, want.Index)
		}
		if !reflect.DeepEqual(got.MZ, want.MZ) || !reflect.DeepEqual(got.Intensity, want.Intensity) {
			t.Errorf("spectrum %d = %v/%v, want %v/%v", i, got.MZ, got.Intensity, want.MZ, want.Intensity)
		}
	}
	if err := f.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestWriteProcessedCompressed(t *testing.T) {
	src := &memorySource{
		geometry: core.Geometry{Dims: [3]int{3, 1, 1}, Spacing: [3]float64{0.05, 0.05, 0.01}},
		spectra: []core.Spectrum{
			{Index: core.Index{X: 0}, MZ: []float64{100.123456789, 200.5}, Intensity: []float64{1.5, 2.25}},
			{Index: core.Index{X: 1}, MZ: []float64{101.1, 150, 250, 350}, Intensity: []float64{4, 3, 2, 1}},
			{Index: core.Index{X: 2}},
		},
	}
	opts := DefaultOptions()
	opts.Format = core.FormatProcessedCentroid
	opts.MZType = core.Float64
	opts.IntensityType = core.Float64
	opts.Compression = true
	f := load(t, write(t, src, opts))

	if f.Format != core.FormatProcessedCentroid {
		t.Errorf("Format = %v, want ProcessedCentroid", f.Format)
	}
	if !f.MZ.Compressed || !f.Intensity.Compressed {
		t.Errorf("Compressed = %v/%v, want true", f.MZ.Compressed, f.Intensity.Compressed)
	}
	if f.MZ.Type != core.Float64 {
		t.Errorf("MZ.Type = %v, want 64-bit float", f.MZ.Type)
	}
	for i, want := range src.spectra {
		got, err := f.ReadSpectrum(i)
		if err != nil {
			t.Fatalf("ReadSpectrum(%d) error = %v", i, err)
		}
		if len(got.MZ) != len(want.MZ) {
			t.Fatalf("spectrum %d: len(MZ) = %d, want %d", i, len(got.MZ), len(want.MZ))
		}
		for k := range want.MZ {
			if got.MZ[k] != want.MZ[k] || got.Intensity[k] != want.Intensity[k] {
				t.Errorf("spectrum %d value %d = (%v, %v), want (%v, %v)", i, k, got.MZ[k], got.Intensity[k], want.MZ[k], want.Intensity[k])
			}
		}
	}
	if err := f.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestWriteIndexed(t *testing.T) {
	opts := DefaultOptions()
	opts.Indexed = true
	path := write(t, grid(), opts)

	indexed := load(t, path)
	if !indexed.Indexed {
		t.Fatal("Indexed = false, want the indexList to be used")
	}
	plain, err := reader.Open(path, &reader.Options{NoIndex: true})
	if err != nil {
		t.Fatalf("Open(NoIndex) error = %v", err)
	}
	defer plain.Close()
	if !reflect.DeepEqual(indexed.Spectra, plain.Spectra) {
		t.Errorf("indexed records = %v, want %v", indexed.Spectra, plain.Spectra)
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(doc, []byte("\n<indexedmzML ")) {
		t.Error("document does not open an indexedmzML element")
	}
	if !bytes.HasSuffix(doc, []byte("</indexedmzML>\n")) {
		t.Error("document does not end with </indexedmzML>")
	}
}

func TestWriteContinuousCentroid(t *testing.T) {
	src := &memorySource{
		geometry: core.Geometry{Dims: [3]int{2, 1, 1}, Spacing: [3]float64{0.05, 0.05, 0.01}},
		spectra: []core.Spectrum{
			{Index: core.Index{X: 0}, MZ: []float64{99.9, 100, 100.1, 200, 300}, Intensity: []float64{1, 5, 2, 7, 9}},
			{Index: core.Index{X: 1}, MZ: []float64{100.05, 199.95, 200.05}, Intensity: []float64{3, 4, 6}},
		},
	}
	intervals := []core.Interval{
		core.NewInterval(0, 100, 0),
		core.NewInterval(1, 200, 0),
	}
	opts := DefaultOptions()
	opts.Format = core.FormatContinuousCentroid
	opts.Intervals = intervals
	opts.Tolerance = 0.2
	opts.PPM = false

	tests := []struct {
		name    string
		pooling core.RangePooling
		want    [][]float64
	}{
		{"maximum", core.PoolingMaximum, [][]float64{{5, 7}, {3, 6}}},
		{"sum", core.PoolingSum, [][]float64{{8, 7}, {3, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts.Pooling = tt.pooling
			f := load(t, write(t, src, opts))
			if f.Format != core.FormatContinuousCentroid {
				t.Errorf("Format = %v, want ContinuousCentroid", f.Format)
			}
			for i, want := range tt.want {
				got, err := f.ReadSpectrum(i)
				if err != nil {
					t.Fatalf("ReadSpectrum(%d) error = %v", i, err)
				}
				if !reflect.DeepEqual(got.MZ, []float64{100, 200}) {
					t.Errorf("spectrum %d: MZ = %v, want [100 200]", i, got.MZ)
				}
				if !reflect.DeepEqual(got.Intensity, want) {
					t.Errorf("spectrum %d: Intensity = %v, want %v", i, got.Intensity, want)
				}
			}
		})
	}
}

func TestWriteReproducible(t *testing.T) {
	a := write(t, grid(), DefaultOptions())
	b := write(t, grid(), DefaultOptions())
	for _, ext := range []string{".imzML", ".ibd"} {
		da, err := os.ReadFile(strings.TrimSuffix(a, ".imzML") + ext)
		if err != nil {
			t.Fatal(err)
		}
		db, err := os.ReadFile(strings.TrimSuffix(b, ".imzML") + ext)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(da, db) {
			t.Errorf("%s files differ between identical writes", ext)
		}
	}
}

func TestWriteMetadata(t *testing.T) {
	src := grid()
	src.geometry.Origin = [3]float64{1.5, 2, 0}
	src.spectra[1].NormalizationFactor = 42.5
	src.spectra[2].NormalizationFactor = 1
	opts := DefaultOptions()
	opts.Polarity = "negative"
	path := write(t, src, opts)
	f := load(t, path)

	wantTIC := []float64{1, 42.5, 1, 1}
	for i, r := range f.Spectra {
		if r.InFileNormalization != wantTIC[i] {
			t.Errorf("spectrum %d: InFileNormalization = %v, want %v", i, r.InFileNormalization, wantTIC[i])
		}
	}
	if f.Geometry.Origin[0] != 1.5 || f.Geometry.Origin[1] != 2 {
		t.Errorf("Origin = %v, want [1.5 2 0]", f.Geometry.Origin)
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`accession="MS:1000129" name="negative scan"`, `accession="IMS:1000053"`, `value="1500"`} {
		if !bytes.Contains(doc, []byte(want)) {
			t.Errorf("document does not contain %s", want)
		}
	}
	if bytes.Contains(doc, []byte("IMS:1000052")) {
		t.Error("single plane document declares position z")
	}
}

func TestWriteErrors(t *testing.T) {
	mismatched := grid()
	mismatched.spectra[3].MZ = mismatched.spectra[3].MZ[:2]
	mismatched.spectra[3].Intensity = mismatched.spectra[3].Intensity[:2]

	shifted := grid()
	shifted.spectra[2].MZ = []float64{100, 150.5, 200.5, 300}

	processed := &memorySource{
		geometry: core.Geometry{Dims: [3]int{2, 1, 1}},
		spectra: []core.Spectrum{
			{Index: core.Index{X: 0}, MZ: []float64{100, 200}, Intensity: []float64{1, 2}},
			{Index: core.Index{X: 1}, MZ: []float64{150, 300}, Intensity: []float64{3, 4}},
		},
	}

	tests := []struct {
		name   string
		src    Source
		modify func(*Options)
		want   error
	}{
		{"no format", grid(), func(o *Options) { o.Format = core.FormatNone }, ErrUnsupportedFormat},
		{"format family", grid(), func(o *Options) { o.Format = core.FormatContinuous }, ErrUnsupportedFormat},
		{"continuous compression", grid(), func(o *Options) { o.Compression = true }, ErrCompression},
		{"centroid without intervals", grid(), func(o *Options) { o.Format = core.FormatContinuousCentroid }, ErrNoIntervals},
		{"axis mismatch", mismatched, func(o *Options) {}, ErrAxisMismatch},
		{"shifted axis", shifted, func(o *Options) {}, ErrAxisMismatch},
		{"processed source", processed, func(o *Options) {}, ErrAxisMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := Write(filepath.Join(t.TempDir(), "out.imzML"), tt.src, opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Write() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBinaryPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a/b.imzML", "a/b.ibd"},
		{"a.b/c", "a.b/c.ibd"},
		{"plain", "plain.ibd"},
	}
	for _, tt := range tests {
		if got := binaryPath(tt.in); got != tt.want {
			t.Errorf("binaryPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
