package peaks

import (
	"fmt"
	"math"
	"slices"

	"github.com/ChrisMcGann/ImzKey/pkg/core"
	"gonum.org/v1/gonum/stat"
)

// MonoisotopicOptions configures Monoisotopic.
type MonoisotopicOptions struct {
	MinCor    float64 // minimal correlation with the averagine pattern
	Tolerance float64 // relative mass tolerance of isotope positions
	Distance  float64 // isotope spacing at charge 1
	Sizes     []int   // cluster sizes to try, largest first
	Charges   []int
}

// DefaultMonoisotopicOptions follows MALDIquant's monoisotopicPeaks defaults.
func DefaultMonoisotopicOptions() MonoisotopicOptions {
	return MonoisotopicOptions{
		MinCor:    0.95,
		Tolerance: 1e-4,
		Distance:  core.IsotopeDistance,
		Sizes:     []int{3, 4, 5, 6, 7, 8, 9, 10},
		Charges:   []int{1},
	}
}

// Monoisotopic finds isotope clusters in a mass-sorted peak list whose
// intensities correlate with the Poisson averagine model and returns the
// lowest-mass member of each cluster with its charge set. Clusters are taken
// in lexicographic order of their member indices, so a cluster that is a
// prefix of a larger one is kept instead of it. No peak belongs to two
// clusters.
func Monoisotopic(peaks []core.MassValue, opts MonoisotopicOptions) []core.MassValue {
	if len(peaks) == 0 {
		return nil
	}
	sizes := slices.Clone(opts.Sizes)
	slices.Sort(sizes)
	slices.Reverse(sizes)
	charges := opts.Charges
	if len(charges) == 0 {
		charges = []int{1}
	}

	var patterns [][]int
	charge := make(map[string]int) // cluster members -> charge
	for _, size := range sizes {
		for _, z := range charges {
			if z < 1 {
				continue
			}
			distance := opts.Distance / float64(z)
			for _, p := range monoisotopicPattern(peaks, opts.MinCor, opts.Tolerance, distance, size) {
				if _, ok := charge[fmt.Sprint(p)]; !ok {
					charge[fmt.Sprint(p)] = z
				}
				patterns = append(patterns, p)
			}
		}
	}

	slices.SortFunc(patterns, func(a, b []int) int { return slices.Compare(a, b) })
	var out []core.MassValue
	for _, p := range uniqueMembers(patterns) {
		mono := peaks[p[0]]
		mono.Charge = charge[fmt.Sprint(p)]
		out = append(out, mono)
	}
	return out
}

// pseudoCluster returns the index sets of possible isotope clusters of the
// given size: for each start mass the nearest peak to every expected isotope
// position, when it lies within x*tol.
func pseudoCluster(x []float64, size int, distance, tol float64) [][]int {
	if size < 2 || len(x) < size {
		return nil
	}
	var out [][]int
	for i := 0; i+size <= len(x); i++ {
		indices := []int{i}
		ok := true
		for s := 1; s < size; s++ {
			target := x[i] + float64(s)*distance
			best, bestDist := 0, math.MaxFloat64
			for k := i + 1; k < len(x); k++ {
				d := math.Abs(x[k] - target)
				if d < bestDist {
					best, bestDist = k, d
				} else if d > bestDist {
					break
				}
			}
			if bestDist >= x[i]*tol {
				ok = false
				break
			}
			indices = append(indices, best)
		}
		if ok {
			out = append(out, indices)
		}
	}
	return out
}

func monoisotopicPattern(peaks []core.MassValue, minCor, tol, distance float64, size int) [][]int {
	x := make([]float64, len(peaks))
	for i, p := range peaks {
		x[i] = p.Mass
	}

	var accepted [][]int
	for _, cluster := range pseudoCluster(x, size, distance, tol) {
		observed := make([]float64, len(cluster))
		for j, idx := range cluster {
			observed[j] = peaks[idx].Intensity
		}
		model := core.IsotopePattern(peaks[cluster[0]].Mass, size)
		if stat.Correlation(observed, model, nil) > minCor {
			accepted = append(accepted, cluster)
		}
	}
	return uniqueMembers(accepted)
}

// uniqueMembers keeps, in order, every index set that shares no index with an
// earlier kept set. Sets must be sorted ascending.
func uniqueMembers(sets [][]int) [][]int {
	var out [][]int
	for _, s := range sets {
		clash := false
		for k := 0; k < len(out) && !clash; k++ {
			clash = intersects(s, out[k])
		}
		if !clash {
			out = append(out, s)
		}
	}
	return out
}

func intersects(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}
