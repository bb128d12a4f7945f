package signal

// medianNode is one sample held in the running median window.
type medianNode struct {
	value  float32
	rank   int // position of the node in the sorted table
	parent int // node replaced after this one
}

// medianWindow keeps the last samples sorted. A new sample replaces the
// oldest node and is moved into place by swapping with its neighbours, so
// each step costs at most one pass over the window.
type medianWindow struct {
	nodes  []medianNode
	sorted []int // node ids in ascending value order
	oldest int
}

func newMedianWindow(length int, init float32) *medianWindow {
	w := &medianWindow{
		nodes:  make([]medianNode, length),
		sorted: make([]int, length),
		oldest: length - 1,
	}
	for i := range w.nodes {
		w.nodes[i] = medianNode{value: init, rank: i, parent: w.oldest}
		w.sorted[i] = i
		w.oldest = i
	}
	return w
}

func (w *medianWindow) val(rank int) float32 { return w.nodes[w.sorted[rank]].value }

func (w *medianWindow) swap(a, b int) {
	w.sorted[a], w.sorted[b] = w.sorted[b], w.sorted[a]
	na, nb := &w.nodes[w.sorted[a]], &w.nodes[w.sorted[b]]
	na.rank, nb.rank = nb.rank, na.rank
}

// push replaces the oldest sample and returns the window median and maximum.
func (w *medianWindow) push(v float32) (median, top float32) {
	id := w.oldest
	node := &w.nodes[id]
	node.value = v
	w.oldest = node.parent

	n := len(w.sorted)
	for i := node.rank; i < n-1 && w.val(i) > w.val(i+1); i++ {
		w.swap(i, i+1)
	}
	for i := w.nodes[id].rank; i > 0 && w.val(i) < w.val(i-1); i-- {
		w.swap(i, i-1)
	}
	return w.val(n / 2), w.val(n - 1)
}

// RunningMedian returns the median of the trailing window of 2*hws+1 samples
// at every position. The window starts filled with y[0]. A negative median is
// replaced by the window maximum.
func RunningMedian(y []float64, hws int) []float64 {
	out := make([]float64, len(y))
	if len(y) == 0 {
		return out
	}
	if hws < 0 {
		hws = 0
	}
	w := newMedianWindow(2*hws+1, float32(y[0]))
	for i, v := range y {
		mid, top := w.push(float32(v))
		if mid < 0 {
			out[i] = float64(top)
		} else {
			out[i] = float64(mid)
		}
	}
	return out
}

// RunningMedianInPlace subtracts the running median from y.
func RunningMedianInPlace(y []float64, hws int) {
	baseline := RunningMedian(y, hws)
	for i := range y {
		y[i] -= baseline[i]
	}
}
