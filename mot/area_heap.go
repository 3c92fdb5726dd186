package mot

type areaDetection struct {
	index int
	area  float64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion

// areaHeap pops largest detection first. Equal areas are popped in input order.
type areaHeap []*areaDetection

func (h areaHeap) Len() int { return len(h) }
func (h areaHeap) Less(i, j int) bool {
	if h[i].area != h[j].area {
		return h[i].area > h[j].area
	}
	return h[i].index < h[j].index
}
func (h areaHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *areaHeap) Push(x *areaDetection) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the top element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *areaHeap) Pop() *areaDetection {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h areaHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h areaHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}

// areaOrder returns indices of detections sorted by bounding box area, largest first
func areaOrder(detections []MappedDetection) []int {
	h := make(areaHeap, 0, len(detections))
	for i := range detections {
		h.Push(&areaDetection{
			index: i,
			area:  detections[i].Position.Area(),
		})
	}
	order := make([]int, 0, len(detections))
	for h.Len() > 0 {
		order = append(order, h.Pop().index)
	}
	return order
}
