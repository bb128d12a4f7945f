// Package sqlite provides SQLite database writing for peak lists, m/z
// intervals and overview spectra of an MSI dataset
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Schema version stored in HeaderTable
	schemaVersion = 1
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
)

// Header describes the dataset the exported lists were computed from
type Header struct {
	Source      string // path of the imzML document
	UUID        string
	Format      core.SpectrumFormat
	Spectra     int
	Pipeline    string // processing options, as printed by transform.Options.String
	Description string
}

// Writer handles writing peak and interval lists to SQLite database files
type Writer struct {
	db           *sql.DB
	outputPath   string
	peakStmt     *sql.Stmt
	intervalStmt *sql.Stmt
	spectrumStmt *sql.Stmt
	peakID       int
	intervalID   int
	spectrumID   int
	header       Header
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		peakID:     1,
		intervalID: 1,
		spectrumID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PeakTable (
		PeakId INTEGER PRIMARY KEY,
		Mass DOUBLE,
		Intensity DOUBLE,
		IntensityMax DOUBLE,
		IntensitySum DOUBLE,
		Count INTEGER,
		Charge INTEGER,
		NeutralMass DOUBLE,
		AxisIndex INTEGER
	);

	CREATE TABLE IF NOT EXISTS IntervalTable (
		IntervalId INTEGER PRIMARY KEY,
		Center DOUBLE,
		MassMin DOUBLE,
		MassMax DOUBLE,
		Intensity DOUBLE,
		IntensityMax DOUBLE,
		Count INTEGER,
		SourceId INTEGER,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		Name TEXT,
		Points INTEGER,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Source TEXT,
		UUID TEXT,
		Format TEXT,
		Spectra INTEGER,
		Pipeline TEXT,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.peakStmt, err = w.db.Prepare(`
		INSERT INTO PeakTable (
			PeakId, Mass, Intensity, IntensityMax, IntensitySum, Count, Charge, NeutralMass, AxisIndex
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peak statement: %w", err)
	}

	w.intervalStmt, err = w.db.Prepare(`
		INSERT INTO IntervalTable (
			IntervalId, Center, MassMin, MassMax, Intensity, IntensityMax, Count, SourceId, Description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare interval statement: %w", err)
	}

	w.spectrumStmt, err = w.db.Prepare(`
		INSERT INTO SpectrumTable (SpectrumId, Name, Points, blobMass, blobIntensity)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	return nil
}

// SetHeader sets the dataset description written by Finalize
func (w *Writer) SetHeader(h Header) {
	w.header = h
}

// WritePeaks writes a peak list to the database, in mass order
func (w *Writer) WritePeaks(peaks []core.MassValue) error {
	if !core.MassValuesSorted(peaks) {
		peaks = append([]core.MassValue(nil), peaks...)
		core.SortMassValues(peaks)
	}

	for _, p := range peaks {
		// Charge and neutral mass are only known for isotope clusters
		var charge, neutralMass interface{} = nil, nil
		if p.Charge > 0 {
			charge = p.Charge
			neutralMass = core.NeutralMass(p.Mass, p.Charge)
		}
		_, err := w.peakStmt.Exec(
			w.peakID,       // PeakId
			p.Mass,         // Mass
			p.Intensity,    // Intensity
			p.IntensityMax, // IntensityMax
			p.IntensitySum, // IntensitySum
			p.Count,        // Count
			charge,         // Charge
			neutralMass,    // NeutralMass
			p.Index,        // AxisIndex
		)
		if err != nil {
			return fmt.Errorf("failed to insert peak: %w", err)
		}
		w.peakID++
	}
	return nil
}

// WriteIntervals writes accumulated m/z intervals to the database
func (w *Writer) WriteIntervals(intervals []core.Interval) error {
	for _, iv := range intervals {
		_, err := w.intervalStmt.Exec(
			w.intervalID,   // IntervalId
			iv.X.Mean(),    // Center
			iv.X.Min(),     // MassMin
			iv.X.Max(),     // MassMax
			iv.Y.Mean(),    // Intensity
			iv.Y.Max(),     // IntensityMax
			iv.X.Count(),   // Count
			iv.SourceID,    // SourceId
			iv.Description, // Description
		)
		if err != nil {
			return fmt.Errorf("failed to insert interval: %w", err)
		}
		w.intervalID++
	}
	return nil
}

// WriteSpectrum writes a named spectrum, such as an overview, as binary blobs
func (w *Writer) WriteSpectrum(name string, mz, intensity []float64) error {
	if len(mz) != len(intensity) {
		return &core.ValidationError{
			Field:   name,
			Message: fmt.Sprintf("m/z length %d does not match intensity length %d", len(mz), len(intensity)),
		}
	}

	// Encode arrays as binary blobs (little-endian float64)
	_, err := w.spectrumStmt.Exec(
		w.spectrumID,             // SpectrumId
		name,                     // Name
		len(mz),                  // Points
		encodeFloat64(mz),        // blobMass
		encodeFloat64(intensity), // blobIntensity
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.spectrumID++
	return nil
}

// encodeFloat64 encodes values as little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a little-endian float64 blob
func DecodeFloat64(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	h := w.header
	format := ""
	if h.Format != core.FormatNone {
		format = h.Format.String()
	}

	// Write HeaderTable
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Source, UUID, Format, Spectra, Pipeline, Description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), h.Source, h.UUID, format, h.Spectra, h.Pipeline, h.Description)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	for _, stmt := range []*sql.Stmt{w.peakStmt, w.intervalStmt, w.spectrumStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
