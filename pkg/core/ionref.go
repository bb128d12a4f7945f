package core

import (
	"math"
	"sort"
	"sync"
)

// IonImageReference describes one ion image query: a mass and a tolerance
// window, plus display attributes.
type IonImageReference struct {
	MZ        float64
	Tol       float64
	Name      string
	Intensity float64
	Color     [4]float32 // RGBA, -1 when unset
	Scale     [2]float32 // display range, -1 when unset
	Active    bool
}

// NewIonImageReference returns an active reference with unset display attributes.
func NewIonImageReference(mz, tol float64, name string) *IonImageReference {
	return &IonImageReference{
		MZ:     mz,
		Tol:    tol,
		Name:   name,
		Color:  [4]float32{-1, -1, -1, -1},
		Scale:  [2]float32{-1, -1},
		Active: true,
	}
}

// relativeTolerance is used by Equal to compare masses and tolerances.
const relativeTolerance = 1e-5

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= math.Max(math.Abs(a), math.Abs(b))*relativeTolerance
}

// Less orders references by mz, then tolerance.
func (r *IonImageReference) Less(o *IonImageReference) bool {
	return r.MZ < o.MZ || (!(o.MZ < r.MZ) && r.Tol < o.Tol)
}

// Equal reports whether both mz and tolerance agree within a relative 1e-5.
func (r *IonImageReference) Equal(o *IonImageReference) bool {
	return isClose(r.MZ, o.MZ) && isClose(r.Tol, o.Tol)
}

// Matches reports whether the reference describes the query (mz, tol).
func (r *IonImageReference) Matches(mz, tol float64) bool {
	return isClose(r.MZ, mz) && isClose(r.Tol, tol)
}

// IonImageCache deduplicates repeated ion image requests. It is safe for
// concurrent use.
type IonImageCache[V any] struct {
	mu      sync.Mutex
	refs    []*IonImageReference
	entries map[*IonImageReference]V
}

// NewIonImageCache returns an empty cache.
func NewIonImageCache[V any]() *IonImageCache[V] {
	return &IonImageCache[V]{entries: make(map[*IonImageReference]V)}
}

// Reference returns the cached reference matching (mz, tol), creating and
// registering one when none matches.
func (c *IonImageCache[V]) Reference(mz, tol float64, name string) *IonImageReference {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.find(mz, tol); r != nil {
		return r
	}
	r := NewIonImageReference(mz, tol, name)
	c.refs = append(c.refs, r)
	sort.Slice(c.refs, func(i, j int) bool { return c.refs[i].Less(c.refs[j]) })
	return r
}

// Get returns the value cached for (mz, tol).
func (c *IonImageCache[V]) Get(mz, tol float64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	r := c.find(mz, tol)
	if r == nil {
		return zero, false
	}
	v, ok := c.entries[r]
	return v, ok
}

// Put stores v for the reference.
func (c *IonImageCache[V]) Put(r *IonImageReference, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r] = v
}

// References returns the registered references in (mz, tol) order.
func (c *IonImageCache[V]) References() []*IonImageReference {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*IonImageReference, len(c.refs))
	copy(out, c.refs)
	return out
}

func (c *IonImageCache[V]) find(mz, tol float64) *IonImageReference {
	for _, r := range c.refs {
		if r.Matches(mz, tol) {
			return r
		}
	}
	return nil
}
