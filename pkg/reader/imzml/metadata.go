package imzml

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/ImzKey/internal/logger"
	"github.com/ChrisMcGann/ImzKey/pkg/core"
)

// ArrayInfo describes the binary encoding of one array kind, declared in a
// referenceableParamGroup.
type ArrayInfo struct {
	Group      string // referenceableParamGroup id
	Type       core.NumericType
	Compressed bool
}

type paramGroup struct {
	id          string
	mz          bool
	intensity   bool
	typ         core.NumericType
	typeSet     bool
	compression bool
}

// metadata collects everything declared before the run element.
type metadata struct {
	props  map[string]string
	groups map[string]*paramGroup

	continuous, processed bool
	profile, centroid     bool

	uuid string
	sha1 string

	counts    [2]int
	pixelSize [3]float64 // µm, -1 when not declared
	lonePixel float64    // IMS:1000046 named "pixel size", -1 when absent
	origin    [3]float64 // µm
}

type metaHandler func(m *metadata, line, value string) error

// metaHandlers dispatches cvParams by accession. A key of the form
// accession[context] is tried before the plain accession.
var metaHandlers = map[string]metaHandler{
	core.AccContinuous: func(m *metadata, _, _ string) error { m.continuous = true; return nil },
	core.AccProcessed:  func(m *metadata, _, _ string) error { m.processed = true; return nil },
	core.AccProfile:    func(m *metadata, _, _ string) error { m.profile = true; return nil },
	core.AccCentroid:   func(m *metadata, _, _ string) error { m.centroid = true; return nil },
	core.AccUUID: func(m *metadata, _, v string) error {
		m.uuid = strings.Trim(v, "{}")
		return nil
	},
	core.AccSHA1: func(m *metadata, _, v string) error { m.sha1 = strings.ToLower(v); return nil },

	core.AccMaxCountX: intValue(func(m *metadata, v int) { m.counts[0] = v }),
	core.AccMaxCountY: intValue(func(m *metadata, v int) { m.counts[1] = v }),
	core.AccPixelSizeX: func(m *metadata, line, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if attrOr(line, "name") == "pixel size" {
			m.lonePixel = f
		} else {
			m.pixelSize[0] = f
		}
		return nil
	},
	core.AccPixelSizeY: floatValue(func(m *metadata, v float64) { m.pixelSize[1] = v }),
	core.AccOriginX:    floatValue(func(m *metadata, v float64) { m.origin[0] = v }),
	core.AccOriginY:    floatValue(func(m *metadata, v float64) { m.origin[1] = v }),
}

func intValue(set func(*metadata, int)) metaHandler {
	return func(m *metadata, _, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(m, n)
		return nil
	}
}

func floatValue(set func(*metadata, float64)) metaHandler {
	return func(m *metadata, _, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		set(m, f)
		return nil
	}
}

// groupParam handles the cvParams of a referenceableParamGroup.
func (g *paramGroup) param(accession string) bool {
	switch accession {
	case core.AccMZArray:
		g.mz = true
	case core.AccIntensityArray:
		g.intensity = true
	case core.AccZlib:
		g.compression = true
	case core.AccNoCompression:
		g.compression = false
	default:
		t, ok := core.NumericTypeByAccession(accession)
		if !ok {
			return false
		}
		g.typ, g.typeSet = t, true
	}
	return true
}

// metaScanner runs the metadata pass over the lines before the run element.
type metaScanner struct {
	m       *metadata
	log     logger.Logger
	line    int
	stack   []string
	context string
	group   *paramGroup
}

func newMetadata() *metadata {
	return &metadata{
		props:     make(map[string]string),
		groups:    make(map[string]*paramGroup),
		pixelSize: [3]float64{-1, -1, -1},
		lonePixel: -1,
	}
}

// readMetadata consumes lines up to and including the run start tag. It
// returns the number of lines read.
func readMetadata(sc *bufio.Scanner, log logger.Logger) (*metadata, int, error) {
	s := &metaScanner{m: newMetadata(), log: log}
	for sc.Scan() {
		s.line++
		line := strings.TrimSpace(sc.Text())
		if isRunStart(line) {
			return s.m, s.line, nil
		}
		if err := s.handle(line); err != nil {
			return nil, s.line, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, s.line, fmt.Errorf("imzml: reading metadata: %w", err)
	}
	return nil, s.line, ErrNoSpectrumList
}

func (s *metaScanner) handle(line string) error {
	switch classify(line) {
	case lineEnd:
		if len(s.stack) > 0 {
			s.stack = s.stack[:len(s.stack)-1]
		}
		if tagName(strings.Replace(line, "</", "<", 1)) == "referenceableParamGroup" {
			s.group = nil
		}
		s.context = ""
	case lineEmpty:
		return s.param(line)
	case lineStart:
		tag := tagName(line)
		s.stack = append(s.stack, tag)
		s.start(tag, line)
	}
	return nil
}

func (s *metaScanner) start(tag, line string) {
	switch tag {
	case "referenceableParamGroup":
		id := attrOr(line, "id")
		s.group = &paramGroup{id: id}
		s.m.groups[id] = s.group
	case "software":
		s.context = attrOr(line, "id") + " " + attrOr(line, "version")
	case "scanSettings", "instrumentConfiguration", "dataProcessing":
		s.context = attrOr(line, "id")
	case "source", "analyzer", "detector":
		s.context = tag
	case "processingMethod":
		s.context = s.context + "processingMethod (" + attrOr(line, "order") + ")"
	}
}

func (s *metaScanner) param(line string) error {
	accession, ok := attr(line, "accession")
	if !ok || accession == "" {
		return nil
	}
	if s.group != nil && s.group.param(accession) {
		return nil
	}

	value := attrOr(line, "value")
	h, found := metaHandlers[accession]
	if s.context != "" {
		if qh, ok := metaHandlers[qualified(accession, s.context)]; ok {
			h, found = qh, true
		}
	}
	if found {
		if err := h(s.m, line, value); err != nil {
			return &FormatError{Line: s.line, Accession: accession, Err: err}
		}
		return nil
	}

	name := attrOr(line, "name")
	if s.context != "" {
		s.m.props["["+s.context+"] "+name] = value
	}
	s.m.props[name] = value
	return nil
}

// arrays resolves the m/z and intensity parameter groups.
func (m *metadata) arrays() (mz, intensity ArrayInfo, err error) {
	var mzGroup, intGroup *paramGroup
	for _, g := range m.groups {
		if g.mz {
			mzGroup = g
		}
		if g.intensity {
			intGroup = g
		}
	}
	if mzGroup == nil || intGroup == nil {
		return mz, intensity, &FormatError{Accession: core.AccMZArray, Err: fmt.Errorf("missing m/z or intensity array parameter group")}
	}
	mz = ArrayInfo{Group: mzGroup.id, Type: core.Float32, Compressed: mzGroup.compression}
	if mzGroup.typeSet {
		mz.Type = mzGroup.typ
	}
	intensity = ArrayInfo{Group: intGroup.id, Type: core.Float32, Compressed: intGroup.compression}
	if intGroup.typeSet {
		intensity.Type = intGroup.typ
	}
	return mz, intensity, nil
}

// format resolves the storage format. A missing mode falls back to
// continuous; a missing spectrum type falls back to centroid for processed
// and to profile for continuous files.
func (m *metadata) format(log logger.Logger) core.SpectrumFormat {
	continuous, processed := m.continuous, m.processed
	if !continuous && !processed {
		log.Warning("imzml", "file content declares neither continuous (IMS:1000030) nor processed (IMS:1000031); assuming continuous", nil)
		continuous = true
	}
	profile, centroid := m.profile, m.centroid
	if !profile && !centroid {
		if processed {
			log.Warning("imzml", "no spectrum type declared; assuming centroid spectrum (MS:1000127)", nil)
			centroid = true
		} else {
			log.Warning("imzml", "no spectrum type declared; assuming profile spectrum (MS:1000128)", nil)
			profile = true
		}
	}
	if processed && profile {
		log.Warning("imzml", "processed profile spectra are binned for overview spectra", nil)
	}

	switch {
	case processed && profile:
		return core.FormatProcessedProfile
	case processed:
		return core.FormatProcessedCentroid
	case profile:
		return core.FormatContinuousProfile
	}
	return core.FormatContinuousCentroid
}

// DefaultPixelSize is used, in µm, when the file declares no pixel size.
const DefaultPixelSize = 50.0

// DefaultSliceThickness is the z spacing in µm of files without z spacing.
const DefaultSliceThickness = 10.0

// spacing returns the pixel spacing in mm. A lone or x-only pixel size is the
// pixel area, whose square root is the edge length.
func (m *metadata) spacing() [3]float64 {
	x, y := m.pixelSize[0], m.pixelSize[1]
	if m.lonePixel > 0 && x <= 0 {
		x = m.lonePixel
	}
	switch {
	case x > 0 && y <= 0:
		m.props["squared pixel size"] = strconv.FormatFloat(x, 'g', -1, 64)
		x = math.Sqrt(x)
		y = x
	case x <= 0 && y <= 0:
		m.props["pixel size"] = fmt.Sprintf("not declared, using %g µm", DefaultPixelSize)
		x, y = DefaultPixelSize, DefaultPixelSize
	case x <= 0:
		x = y
	}
	z := m.pixelSize[2]
	if z <= 0 {
		z = DefaultSliceThickness
	}
	return [3]float64{
		core.MicroMeterToMilliMeter(x),
		core.MicroMeterToMilliMeter(y),
		core.MicroMeterToMilliMeter(z),
	}
}
