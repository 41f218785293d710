// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

// Point is one sampled weight with the wall-clock label it was read at.
type Point struct {
	Label string
	Value float64
}

// History is a fixed-capacity ring of points in chronological order. Once
// full, each push evicts the oldest point. It is not safe for concurrent use;
// Session guards it.
type History struct {
	points []Point
	start  int
	size   int
}

// NewHistory creates an empty history holding at most capacity points.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{points: make([]Point, capacity)}
}

// Push appends p and reports whether the oldest point was evicted.
func (h *History) Push(p Point) (evicted bool) {
	capacity := len(h.points)
	if h.size < capacity {
		h.points[(h.start+h.size)%capacity] = p
		h.size++
		return false
	}

	h.points[h.start] = p
	h.start = (h.start + 1) % capacity
	return true
}

// Len returns the number of points held.
func (h *History) Len() int {
	return h.size
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.points)
}

// Points returns a copy of the points, oldest first.
func (h *History) Points() []Point {
	out := make([]Point, h.size)
	for i := range out {
		out[i] = h.points[(h.start+i)%len(h.points)]
	}
	return out
}

// Series returns the labels and values as parallel slices of equal length,
// oldest first, as the chart consumes them.
func (h *History) Series() (labels []string, values []float64) {
	labels = make([]string, h.size)
	values = make([]float64, h.size)
	for i := range h.size {
		p := h.points[(h.start+i)%len(h.points)]
		labels[i] = p.Label
		values[i] = p.Value
	}
	return labels, values
}
