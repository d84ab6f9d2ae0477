package cover

import (
	"container/heap"
	"errors"
	"math"
	"sort"

	"github.com/viant/sqlite-hypergraph/vector"
)

// Index implements a kNN index using a VP-tree to prune search. The zero
// value ranks by L2 distance.
type Index struct {
	metric vector.Metric
	ids    []string
	vecs   [][]float32
	dim    int
	root   *node
}

type node struct {
	idx   int // index into ids/vecs
	thr   float32
	left  *node
	right *node
}

// New returns an empty index ranking by metric.
func New(metric vector.Metric) *Index {
	return &Index{metric: metric}
}

func (i *Index) distance(a, b []float32) float32 {
	if i.metric == "" {
		return vector.L2.Distance(a, b)
	}
	return i.metric.Distance(a, b)
}

// Build constructs the VP-tree.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return errors.New("cover: ids/vectors length mismatch")
	}
	i.ids = append([]string(nil), ids...)
	i.vecs = append([][]float32(nil), vectors...)
	i.root = nil
	if len(vectors) == 0 {
		i.dim = 0
		return nil
	}
	i.dim = len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != i.dim {
			return errors.New("cover: inconsistent dims")
		}
	}
	idxs := make([]int, len(vectors))
	for k := range idxs {
		idxs[k] = k
	}
	i.root = i.buildVP(idxs)
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

func (i *Index) buildVP(idxs []int) *node {
	if len(idxs) == 0 {
		return nil
	}
	// last element is the vantage point, keeping builds deterministic
	vp := idxs[len(idxs)-1]
	idxs = idxs[:len(idxs)-1]
	if len(idxs) == 0 {
		return &node{idx: vp}
	}
	dists := make([]float32, len(idxs))
	for k, j := range idxs {
		dists[k] = i.distance(i.vecs[vp], i.vecs[j])
	}
	order := make([]int, len(idxs))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })
	mid := len(order) / 2
	thr := dists[order[mid]]
	leftIdxs := make([]int, 0, mid+1)
	rightIdxs := make([]int, 0, len(idxs)-(mid+1))
	for rank, k := range order {
		if rank <= mid {
			leftIdxs = append(leftIdxs, idxs[k])
		} else {
			rightIdxs = append(rightIdxs, idxs[k])
		}
	}
	return &node{
		idx:   vp,
		thr:   thr,
		left:  i.buildVP(leftIdxs),
		right: i.buildVP(rightIdxs),
	}
}

type candidate struct {
	idx  int
	dist float32
}

// candidates is a max-heap on distance holding the current best k.
type candidates []candidate

func (h candidates) Len() int            { return len(h) }
func (h candidates) Less(a, b int) bool  { return h[a].dist > h[b].dist }
func (h candidates) Swap(a, b int)       { h[a], h[b] = h[b], h[a] }
func (h *candidates) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidates) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Query returns up to k ids ordered by ascending distance.
func (i *Index) Query(query []float32, k int) ([]string, []float32, error) {
	if i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, errors.New("cover: query dim mismatch")
	}
	if k <= 0 || k > len(i.vecs) {
		k = len(i.vecs)
	}
	h := make(candidates, 0, k)
	tau := float32(math.Inf(1))
	var search func(n *node)
	search = func(n *node) {
		if n == nil {
			return
		}
		d := i.distance(query, i.vecs[n.idx])
		if h.Len() < k {
			heap.Push(&h, candidate{idx: n.idx, dist: d})
			if h.Len() == k {
				tau = h[0].dist
			}
		} else if d < tau {
			heap.Pop(&h)
			heap.Push(&h, candidate{idx: n.idx, dist: d})
			tau = h[0].dist
		}
		// prune using triangle inequality
		if d < n.thr {
			if d-tau <= n.thr {
				search(n.left)
			}
			if d+tau >= n.thr {
				search(n.right)
			}
		} else {
			if d+tau >= n.thr {
				search(n.right)
			}
			if d-tau <= n.thr {
				search(n.left)
			}
		}
	}
	search(i.root)
	sort.SliceStable(h, func(a, b int) bool { return h[a].dist < h[b].dist })
	ids := make([]string, len(h))
	dists := make([]float32, len(h))
	for n := range h {
		ids[n] = i.ids[h[n].idx]
		dists[n] = h[n].dist
	}
	return ids, dists, nil
}
