package core

import (
	"math"
	"sort"
)

// Accumulator keeps running statistics over a stream of values.
// The zero value is an empty accumulator.
type Accumulator struct {
	sum   float64
	min   float64
	max   float64
	count uint64
}

// Add accumulates one value.
func (a *Accumulator) Add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.sum += v
	a.count++
}

// Merge folds o into a. Merging is associative and commutative.
func (a *Accumulator) Merge(o Accumulator) {
	if o.count == 0 {
		return
	}
	if a.count == 0 {
		*a = o
		return
	}
	a.sum += o.sum
	a.min = math.Min(a.min, o.min)
	a.max = math.Max(a.max, o.max)
	a.count += o.count
}

func (a Accumulator) Sum() float64  { return a.sum }
func (a Accumulator) Count() uint64 { return a.count }

// Min returns the smallest value, or 0 when empty.
func (a Accumulator) Min() float64 { return a.min }

// Max returns the largest value, or 0 when empty.
func (a Accumulator) Max() float64 { return a.max }

// Mean returns sum/count, or 0 when empty.
func (a Accumulator) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Interval is one accumulated (mass, intensity) observation, for example a
// bin of peaks collected over many pixels.
type Interval struct {
	Index Accumulator
	X     Accumulator
	Y     Accumulator

	SourceID    int
	Description string
}

// NewInterval returns an interval holding one observation.
func NewInterval(index int, x, y float64) Interval {
	var i Interval
	i.Add(index, x, y)
	return i
}

// Add accumulates one observation.
func (i *Interval) Add(index int, x, y float64) {
	i.Index.Add(float64(index))
	i.X.Add(x)
	i.Y.Add(y)
}

// Merge folds o into i. The statistics merge is associative and commutative;
// SourceID and Description keep the receiver's values unless they are unset.
func (i *Interval) Merge(o Interval) {
	i.Index.Merge(o.Index)
	i.X.Merge(o.X)
	i.Y.Merge(o.Y)
	if i.Description == "" {
		i.Description = o.Description
	}
	if i.SourceID == 0 {
		i.SourceID = o.SourceID
	}
}

// Less orders intervals by mean x.
func (i Interval) Less(o Interval) bool { return i.X.Mean() < o.X.Mean() }

// SortIntervals sorts intervals by mean x.
func SortIntervals(intervals []Interval) {
	sort.SliceStable(intervals, func(a, b int) bool { return intervals[a].Less(intervals[b]) })
}

// XMeans returns the mean x of every interval.
func XMeans(intervals []Interval) []float64 {
	xs := make([]float64, len(intervals))
	for i := range intervals {
		xs[i] = intervals[i].X.Mean()
	}
	return xs
}
