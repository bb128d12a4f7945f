package core

import "sort"

// Peak collapses several (index, x, y, fwhm) observations of the same signal
// into one reported peak.
type Peak struct {
	index Accumulator
	x     Accumulator
	y     Accumulator
	fwhm  Accumulator
}

// NewPeak returns a peak with one observation and unknown FWHM.
func NewPeak(index int, x, y float64) Peak {
	var p Peak
	p.index.Add(float64(index))
	p.x.Add(x)
	p.y.Add(y)
	return p
}

// Insert adds an observation. A non-positive fwhm is not accumulated.
func (p *Peak) Insert(index int, x, y, fwhm float64) {
	p.index.Add(float64(index))
	p.x.Add(x)
	p.y.Add(y)
	if fwhm > 0 {
		p.fwhm.Add(fwhm)
	}
}

// InsertFWHM records a width estimate without adding an observation.
func (p *Peak) InsertFWHM(fwhm float64) {
	if fwhm > 0 {
		p.fwhm.Add(fwhm)
	}
}

// Merge folds all observations of o into p.
func (p *Peak) Merge(o Peak) {
	p.index.Merge(o.index)
	p.x.Merge(o.x)
	p.y.Merge(o.y)
	p.fwhm.Merge(o.fwhm)
}

func (p Peak) X() float64       { return p.x.Mean() }
func (p Peak) Y() float64       { return p.y.Mean() }
func (p Peak) YMax() float64    { return p.y.Max() }
func (p Peak) FWHM() float64    { return p.fwhm.Mean() }
func (p Peak) Count() uint64    { return p.x.Count() }
func (p Peak) Index() int       { return int(p.index.Mean() + 0.5) }
func (p Peak) Less(o Peak) bool { return p.X() < o.X() }

// SortPeaks sorts peaks by mean x.
func SortPeaks(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Less(peaks[j]) })
}

// MassValue is a single detected peak on a mass axis.
type MassValue struct {
	Mass         float64
	Intensity    float64
	IntensityMax float64
	IntensitySum float64
	Count        int
	Index        int // position on the mass axis it was detected on
	Charge       int // 0 when unknown
}

// NewMassValue returns a mass value detected at index of a mass axis.
func NewMassValue(index int, mass, intensity float64) MassValue {
	return MassValue{
		Mass:         mass,
		Intensity:    intensity,
		IntensityMax: intensity,
		IntensitySum: intensity,
		Count:        1,
		Index:        index,
	}
}

// Less orders mass values by mass.
func (m MassValue) Less(o MassValue) bool { return m.Mass < o.Mass }

// Equal compares mass values by mass only.
func (m MassValue) Equal(o MassValue) bool { return m.Mass == o.Mass }

// Interval converts the mass value into a single-observation interval.
func (m MassValue) Interval() Interval { return NewInterval(m.Index, m.Mass, m.Intensity) }

// SortMassValues sorts by mass.
func SortMassValues(values []MassValue) {
	sort.SliceStable(values, func(i, j int) bool { return values[i].Less(values[j]) })
}

// MassValuesSorted reports whether values are in ascending mass order.
func MassValuesSorted(values []MassValue) bool {
	for i := 1; i < len(values); i++ {
		if values[i].Mass < values[i-1].Mass {
			return false
		}
	}
	return true
}
