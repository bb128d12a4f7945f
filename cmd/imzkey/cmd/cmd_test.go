package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/ChrisMcGann/ImzKey/pkg/writer/imzml"
)

// lineSource is a 4x1 continuous profile dataset with two Gaussian peaks
type lineSource struct{}

func (lineSource) Count() int { return 4 }

func (lineSource) Geometry() core.Geometry {
	return core.Geometry{Dims: [3]int{4, 1, 1}, Spacing: [3]float64{0.05, 0.05, 0.01}}
}

func (lineSource) Spectrum(_ context.Context, i int) (*core.Spectrum, error) {
	const n = 200
	s := &core.Spectrum{ID: i, Index: core.Index{X: i}, MZ: make([]float64, n), Intensity: make([]float64, n)}
	for k := 0; k < n; k++ {
		s.MZ[k] = 500 + float64(k)*0.1
		d1 := float64(k - 50)
		d2 := float64(k - 150)
		s.Intensity[k] = 1 + float64(i+1)*100*gauss(d1) + 50*gauss(d2)
	}
	return s, nil
}

func gauss(d float64) float64 {
	switch {
	case d == 0:
		return 1
	case d == 1 || d == -1:
		return 0.5
	case d == 2 || d == -2:
		return 0.1
	}
	return 0
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "line.imzML")
	opts := imzml.DefaultOptions()
	opts.MZType = core.Float64
	opts.IntensityType = core.Float64
	if err := imzml.Write(path, lineSource{}, opts); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateAndInfo(t *testing.T) {
	path := writeDataset(t)

	out, err := run(t, "validate", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "OK (ContinuousProfile, 4 spectra)") {
		t.Errorf("validate output = %q", out)
	}

	out, err = run(t, "info", path)
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	for _, want := range []string{"Format:      ContinuousProfile", "Dimensions:  4 x 1 x 1", "Spectra:     4"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "validate", filepath.Join(t.TempDir(), "missing.imzML")); err == nil {
		t.Error("validate of a missing file, want error")
	}
}

func TestPeaksAndConvert(t *testing.T) {
	path := writeDataset(t)
	dir := t.TempDir()

	db := filepath.Join(dir, "peaks.db")
	if _, err := run(t, "peaks", "--in", path, "--out", db, "--snr", "2", "--normalization", "None"); err != nil {
		t.Fatalf("peaks error = %v", err)
	}
	conn, err := sql.Open("sqlite3", db)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var count int
	var mass float64
	if err := conn.QueryRow("SELECT COUNT(*), MIN(Mass) FROM PeakTable").Scan(&count, &mass); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if count != 2 || mass < 504.9 || mass > 505.1 {
		t.Errorf("PeakTable = %d peaks, first at %v, want 2 peaks starting at 505", count, mass)
	}

	out := filepath.Join(dir, "centroid.imzML")
	if _, err := run(t, "convert", "--in", path, "--out", out, "--format", "ContinuousCentroid", "--normalization", "None"); err != nil {
		t.Fatalf("convert error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "centroid.ibd")); err != nil {
		t.Errorf("convert did not write the binary file: %v", err)
	}
	text, err := run(t, "info", out)
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	if !strings.Contains(text, "ContinuousCentroid") {
		t.Errorf("info of converted file = %q, want ContinuousCentroid", text)
	}
}

func TestIonImage(t *testing.T) {
	path := writeDataset(t)
	out := filepath.Join(t.TempDir(), "ion.tif")
	if _, err := run(t, "ionimage", "--in", path, "--mz", "505", "--tol", "0.05", "--ppm=false", "--out", out); err != nil {
		t.Fatalf("ionimage error = %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Errorf("ionimage output = %v, %v", st, err)
	}
}
