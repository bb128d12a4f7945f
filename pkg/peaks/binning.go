package peaks

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"github.com/mkmik/argsort"
)

// span is a half-open run [start, end) of a sorted sequence.
type span struct{ start, end int }

// splitByGap partitions a sorted sequence of n masses into runs whose members
// all lie within tolerance of the run mean. A run that violates the tolerance
// is split at its largest gap between neighbours, the first one when several
// gaps are equal, and both halves are examined again. The tolerance is
// relative to the run mean unless absolute is set.
//
// The divide and conquer uses an explicit stack, so its depth does not grow
// with the input. Runs are returned in mass order.
func splitByGap(n int, mass func(int) float64, tol float64, absolute bool) []span {
	if n == 0 {
		return nil
	}
	var out []span
	stack := []span{{0, n}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		size := s.end - s.start
		mean := 0.0
		for i := s.start; i < s.end; i++ {
			mean += mass(i)
		}
		mean /= float64(size)

		limit := mean * tol
		if absolute {
			limit = tol
		}
		dirty := false
		for i := s.start; i < s.end; i++ {
			if math.Abs(mass(i)-mean) >= limit {
				dirty = true
				break
			}
		}

		if !dirty || size < 2 {
			out = append(out, s)
			continue
		}

		pivot := s.start + 1
		gap := 0.0
		for i := s.start + 1; i < s.end; i++ {
			if d := mass(i) - mass(i-1); d > gap {
				gap = d
				pivot = i
			}
		}
		// right first so the left half is emitted first
		stack = append(stack, span{pivot, s.end}, span{s.start, pivot})
	}
	return out
}

// BinPeaks groups peaks of similar mass into intervals, after MALDIquant's
// binPeaks. tol is relative (for example 50 ppm = 50e-5 through
// core.PartPerMillionToFactor) unless absolute is set. Unsorted input is
// sorted by mass first; the input slice is not modified.
func BinPeaks(peaks []core.MassValue, tol float64, absolute bool) []core.Interval {
	if !core.MassValuesSorted(peaks) {
		sorted := make([]core.MassValue, len(peaks))
		copy(sorted, peaks)
		core.SortMassValues(sorted)
		peaks = sorted
	}

	runs := splitByGap(len(peaks), func(i int) float64 { return peaks[i].Mass }, tol, absolute)
	out := make([]core.Interval, 0, len(runs))
	for _, r := range runs {
		iv := peaks[r.start].Interval()
		for i := r.start + 1; i < r.end; i++ {
			iv.Merge(peaks[i].Interval())
		}
		out = append(out, iv)
	}
	return out
}

// BinIntervals merges intervals of similar mean mass, for example the peaks of
// many pixels into one peak list. Tolerance handling follows BinPeaks.
func BinIntervals(intervals []core.Interval, tol float64, absolute bool) []core.Interval {
	sorted := make([]core.Interval, len(intervals))
	copy(sorted, intervals)
	core.SortIntervals(sorted)

	runs := splitByGap(len(sorted), func(i int) float64 { return sorted[i].X.Mean() }, tol, absolute)
	out := make([]core.Interval, 0, len(runs))
	for _, r := range runs {
		iv := sorted[r.start]
		for i := r.start + 1; i < r.end; i++ {
			iv.Merge(sorted[i])
		}
		out = append(out, iv)
	}
	return out
}

// Binning divides the sorted axis x into bins equally wide buckets between its
// first and last value and accumulates every non-empty bucket into one
// interval. The index accumulator holds positions on x.
func Binning(x, y []float64, bins int) []core.Interval {
	n := min(len(x), len(y))
	if n == 0 || bins < 1 {
		return nil
	}
	lo := x[0]
	width := (x[n-1] - lo) / float64(bins)

	var out []core.Interval
	current := -1
	for i := 0; i < n; i++ {
		b := 0
		if width > 0 {
			b = min(int((x[i]-lo)/width), bins-1)
		}
		if b != current {
			out = append(out, core.Interval{})
			current = b
		}
		out[len(out)-1].Add(i, x[i], y[i])
	}
	return out
}

// Group is one strict group found by GroupBinning.
type Group struct {
	core.Interval
	Sources []int // source id of every member, in mass order
}

// GroupBinning groups observations from many sources (typically pixels) by
// mass. A group is accepted only when every member lies within the relative
// tolerance of the group mean and no source contributes twice; otherwise the
// run is split at its largest gap. It returns the group id of every
// observation, in the order of the input, and the groups in mass order.
func GroupBinning(xs, ys []float64, sources []int, tol float64) ([]int, []Group) {
	n := min(len(xs), len(ys), len(sources))
	if n == 0 {
		return nil, nil
	}
	order := argsort.SortSlice(xs[:n], func(i, j int) bool { return xs[i] < xs[j] })
	x := func(i int) float64 { return xs[order[i]] }

	var runs []span
	stack := []span{{0, n}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.end-s.start == 1 || strictGroup(s, x, func(i int) int { return sources[order[i]] }, tol) {
			runs = append(runs, s)
			continue
		}
		pivot := s.start + 1
		gap := math.Inf(-1)
		for i := s.start + 1; i < s.end; i++ {
			if d := x(i) - x(i-1); d > gap {
				gap = d
				pivot = i
			}
		}
		stack = append(stack, span{pivot, s.end}, span{s.start, pivot})
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].start < runs[b].start })

	assignments := make([]int, n)
	groups := make([]Group, len(runs))
	for g, r := range runs {
		for i := r.start; i < r.end; i++ {
			k := order[i]
			groups[g].Add(k, xs[k], ys[k])
			groups[g].Sources = append(groups[g].Sources, sources[k])
			assignments[k] = g
		}
	}
	return assignments, groups
}

func strictGroup(s span, x func(int) float64, source func(int) int, tol float64) bool {
	seen := make(map[int]struct{}, s.end-s.start)
	mean := 0.0
	for i := s.start; i < s.end; i++ {
		if _, dup := seen[source(i)]; dup {
			return false
		}
		seen[source(i)] = struct{}{}
		mean += x(i)
	}
	mean /= float64(s.end - s.start)
	for i := s.start; i < s.end; i++ {
		if math.Abs(x(i)-mean)/mean > tol {
			return false
		}
	}
	return true
}
