package imzml

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
)

type recordHandler func(r *core.SourceRecord, value string) error

// spectrumTable receives the per spectrum cvParams. Cursors running on
// different goroutines write disjoint records.
type spectrumTable struct {
	records  []core.SourceRecord
	handlers map[string]recordHandler
	scils    atomic.Bool
	oneBased atomic.Bool
	log      logger.Logger
}

func parseInt64(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) }

func position(set func(r *core.SourceRecord, v int)) recordHandler {
	return func(r *core.SourceRecord, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(r, n-1)
		return nil
	}
}

func world(set func(r *core.SourceRecord, v float64)) recordHandler {
	return func(r *core.SourceRecord, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		set(r, f)
		return nil
	}
}

func field(set func(r *core.SourceRecord, v int64)) recordHandler {
	return func(r *core.SourceRecord, v string) error {
		n, err := parseInt64(v)
		if err != nil {
			return err
		}
		set(r, n)
		return nil
	}
}

func newSpectrumTable(count int, mzGroup, intGroup string, log logger.Logger) *spectrumTable {
	t := &spectrumTable{records: make([]core.SourceRecord, count), log: log}
	for i := range t.records {
		t.records[i].InFileNormalization = 1
	}
	t.handlers = map[string]recordHandler{
		core.AccPositionX: position(func(r *core.SourceRecord, v int) { r.Index.X = v }),
		core.AccPositionY: position(func(r *core.SourceRecord, v int) { r.Index.Y = v }),
		core.AccPositionZ: position(func(r *core.SourceRecord, v int) { r.Index.Z = v }),
		"3DPositionX":     world(func(r *core.SourceRecord, v float64) { r.World.X = v }),
		"3DPositionY":     world(func(r *core.SourceRecord, v float64) { r.World.Y = v }),
		"3DPositionZ":     world(func(r *core.SourceRecord, v float64) { r.World.Z = v }),
		core.AccTotalIonCurrent: world(func(r *core.SourceRecord, v float64) {
			r.InFileNormalization = v
		}),

		qualified(core.AccExternalLength, mzGroup):   field(func(r *core.SourceRecord, v int64) { r.MzLength = v }),
		qualified(core.AccExternalOffset, mzGroup):   field(func(r *core.SourceRecord, v int64) { r.MzOffset = v }),
		qualified(core.AccExternalEncoded, mzGroup):  field(func(r *core.SourceRecord, v int64) { r.MzEncodedLength = v }),
		qualified(core.AccExternalLength, intGroup):  field(func(r *core.SourceRecord, v int64) { r.IntLength = v }),
		qualified(core.AccExternalOffset, intGroup):  field(func(r *core.SourceRecord, v int64) { r.IntOffset = v }),
		qualified(core.AccExternalEncoded, intGroup): field(func(r *core.SourceRecord, v int64) { r.IntEncodedLength = v }),
	}
	return t
}

// cursor walks the lines of one or more spectrum elements.
type cursor struct {
	t       *spectrumTable
	current *core.SourceRecord
	context string
	line    int // lines consumed by this cursor
	base    int // document line before the cursor start, -1 when unknown
}

// scan consumes spectrum lines until EOF.
func (c *cursor) scan(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)
	return c.scanLines(sc)
}

func (c *cursor) scanLines(sc *bufio.Scanner) error {
	for sc.Scan() {
		c.line++
		if err := c.handle(strings.TrimSpace(sc.Text())); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *cursor) lineNumber() int {
	if c.base < 0 {
		return 0
	}
	return c.base + c.line
}

func (c *cursor) handle(line string) error {
	switch classify(line) {
	case lineEmpty:
		if tagName(line) == "referenceableParamGroupRef" {
			c.context = attrOr(line, "ref")
			return nil
		}
		accession := attrOr(line, "accession")
		if accession == "" {
			// SciLs writes its 3D coordinates as userParams without accession
			name := attrOr(line, "name")
			if !strings.HasPrefix(name, "3DPosition") {
				return nil
			}
			if name == "3DPositionZ" {
				c.t.scils.Store(true)
			}
			accession = name
		}
		return c.param(accession, line)
	case lineStart:
		if tagName(line) == "spectrum" {
			return c.startSpectrum(line)
		}
	}
	return nil
}

func (c *cursor) startSpectrum(line string) error {
	v := attrOr(line, "index")
	var idx int
	if strings.ContainsAny(v, "+.eE") {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &FormatError{Line: c.lineNumber(), Accession: "spectrum index", Err: err}
		}
		idx = int(f)
	} else {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &FormatError{Line: c.lineNumber(), Accession: "spectrum index", Err: err}
		}
		idx = n
	}

	n := len(c.t.records)
	switch {
	case idx == n:
		// one-based index counting
		c.t.oneBased.Store(true)
		idx = 0
	case idx > n || idx < 0:
		return &FormatError{Line: c.lineNumber(), Accession: "spectrum index",
			Err: fmt.Errorf("index %d not in [0, %d)", idx, n)}
	}
	c.current = &c.t.records[idx]
	c.current.Index.Z = 0
	c.context = ""
	return nil
}

func (c *cursor) param(accession, line string) error {
	if c.current == nil {
		return nil
	}
	h, ok := c.t.handlers[accession]
	if c.context != "" {
		if qh, qok := c.t.handlers[qualified(accession, c.context)]; qok {
			h, ok = qh, true
		}
	}
	if !ok {
		return nil
	}
	if err := h(c.current, attrOr(line, "value")); err != nil {
		return &FormatError{Line: c.lineNumber(), Accession: accession, Err: err}
	}
	return nil
}

// findSpectrumList consumes lines until the spectrumList start tag and
// returns its count.
func findSpectrumList(sc *bufio.Scanner, line int) (count, lines int, err error) {
	for sc.Scan() {
		line++
		l := strings.TrimSpace(sc.Text())
		if classify(l) != lineStart || tagName(l) != "spectrumList" {
			continue
		}
		v, ok := attr(l, "count")
		if !ok {
			return 0, line, &FormatError{Line: line, Accession: "spectrumList count", Err: fmt.Errorf("missing attribute")}
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			if err == nil {
				err = fmt.Errorf("negative count %d", n)
			}
			return 0, line, &FormatError{Line: line, Accession: "spectrumList count", Err: err}
		}
		return n, line, nil
	}
	if err := sc.Err(); err != nil {
		return 0, line, err
	}
	return 0, line, ErrNoSpectrumList
}

// finishZ maps z positions to dense indices. SciLs world z values take
// precedence over IMS:1000052; the z spacing of SciLs data is the distance of
// the two lowest planes. It returns the number of planes and the spacing in
// mm, 0 when unchanged.
func (t *spectrumTable) finishZ() (planes int, spacing float64) {
	if len(t.records) == 0 {
		return 1, 0
	}
	if t.scils.Load() {
		var zs []float64
		for _, r := range t.records {
			zs = append(zs, r.World.Z)
		}
		slices.Sort(zs)
		zs = slices.Compact(zs)
		if len(zs) < 2 {
			return 1, 0
		}
		for i := range t.records {
			z, _ := slices.BinarySearch(zs, t.records[i].World.Z)
			t.records[i].Index.Z = z
		}
		t.log.Info("imzml", "SciLs 3D positions found", logger.Fields{"planes": len(zs)})
		return len(zs), core.MicroMeterToMilliMeter(zs[1] - zs[0])
	}

	var zs []int
	for _, r := range t.records {
		zs = append(zs, r.Index.Z)
	}
	slices.Sort(zs)
	zs = slices.Compact(zs)
	if len(zs) < 2 {
		for i := range t.records {
			t.records[i].Index.Z = 0
		}
		return 1, 0
	}
	for i := range t.records {
		z, _ := slices.BinarySearch(zs, t.records[i].Index.Z)
		t.records[i].Index.Z = z
	}
	return len(zs), 0
}
