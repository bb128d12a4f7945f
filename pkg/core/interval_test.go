package core

import (
	"math"
	"testing"
)

func sameAccumulator(a, b Accumulator) bool {
	const eps = 1e-9
	return a.Count() == b.Count() &&
		math.Abs(a.Sum()-b.Sum()) < eps &&
		a.Min() == b.Min() && a.Max() == b.Max()
}

func TestAccumulatorEmpty(t *testing.T) {
	var a Accumulator
	if a.Mean() != 0 || a.Max() != 0 || a.Min() != 0 || a.Count() != 0 {
		t.Errorf("empty accumulator = %+v, want all zero", a)
	}

	var b Accumulator
	b.Add(-3)
	a.Merge(b)
	if a.Max() != -3 || a.Min() != -3 {
		t.Errorf("Merge() into empty: max %v min %v, want -3", a.Max(), a.Min())
	}
}

func TestIntervalMerge(t *testing.T) {
	a := NewInterval(1, 100.0, 10.0)
	b := NewInterval(2, 100.2, 30.0)
	c := NewInterval(3, 99.9, 20.0)
	c.Add(4, 100.1, 5.0)

	t.Run("commutative", func(t *testing.T) {
		ab, ba := a, b
		ab.Merge(b)
		ba.Merge(a)
		if !sameAccumulator(ab.X, ba.X) || !sameAccumulator(ab.Y, ba.Y) {
			t.Errorf("a+b = %+v, b+a = %+v", ab, ba)
		}
	})

	t.Run("associative", func(t *testing.T) {
		left := a
		left.Merge(b)
		left.Merge(c)

		bc := b
		bc.Merge(c)
		right := a
		right.Merge(bc)

		if !sameAccumulator(left.X, right.X) || !sameAccumulator(left.Y, right.Y) || !sameAccumulator(left.Index, right.Index) {
			t.Errorf("(a+b)+c = %+v, a+(b+c) = %+v", left, right)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		m := a
		m.Merge(b)
		m.Merge(c)
		if m.Y.Count() != 4 {
			t.Errorf("Count() = %d, want 4", m.Y.Count())
		}
		if m.Y.Max() != 30 || m.Y.Min() != 5 {
			t.Errorf("Y max/min = %v/%v, want 30/5", m.Y.Max(), m.Y.Min())
		}
		if math.Abs(m.Y.Mean()-16.25) > 1e-12 {
			t.Errorf("Y mean = %v, want 16.25", m.Y.Mean())
		}
	})
}

func TestSortIntervals(t *testing.T) {
	intervals := []Interval{
		NewInterval(0, 300, 1),
		NewInterval(0, 100, 1),
		NewInterval(0, 200, 1),
	}
	SortIntervals(intervals)

	xs := XMeans(intervals)
	for i, want := range []float64{100, 200, 300} {
		if xs[i] != want {
			t.Errorf("XMeans()[%d] = %v, want %v", i, xs[i], want)
		}
	}
}

func TestPeakInsert(t *testing.T) {
	p := NewPeak(10, 500.0, 100.0)
	p.Insert(12, 500.2, 300.0, 0.1)
	p.Insert(11, 500.1, 200.0, 0)

	if p.Count() != 3 {
		t.Errorf("Count() = %d, want 3", p.Count())
	}
	if math.Abs(p.X()-500.1) > 1e-9 {
		t.Errorf("X() = %v, want 500.1", p.X())
	}
	if p.YMax() != 300 {
		t.Errorf("YMax() = %v, want 300", p.YMax())
	}
	if p.FWHM() != 0.1 {
		t.Errorf("FWHM() = %v, want 0.1", p.FWHM())
	}
	if p.Index() != 11 {
		t.Errorf("Index() = %d, want 11", p.Index())
	}
}
