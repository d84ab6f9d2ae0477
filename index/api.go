package index

import (
	"fmt"

	"github.com/viant/sqlite-hypergraph/index/bruteforce"
	"github.com/viant/sqlite-hypergraph/index/cover"
	"github.com/viant/sqlite-hypergraph/vector"
)

// Index defines a generic vector index.
type Index interface {
	// Build constructs the index from the given ids and vectors.
	// ids and vectors must have the same length; vectors must share one dimension.
	Build(ids []string, vectors [][]float32) error

	// Query runs a kNN search against the index with the provided query vector
	// and returns up to k matches as parallel slices of ids and distances,
	// ordered by ascending distance. k <= 0 returns every entry.
	Query(query []float32, k int) (ids []string, distances []float32, err error)
}

var (
	_ Index = (*bruteforce.Index)(nil)
	_ Index = (*cover.Index)(nil)
)

// Kind names an index implementation.
type Kind string

const (
	// KindAuto selects an implementation from corpus size and dimension.
	KindAuto Kind = "auto"
	// KindBrute scans every vector.
	KindBrute Kind = "brute"
	// KindCover uses a vantage-point tree.
	KindCover Kind = "cover"
)

const (
	autoCoverMinDocs            = 4000
	autoCoverMinDim             = 64
	autoCoverMinDensity float64 = 16
)

// ParseKind resolves an index kind name; empty means KindAuto.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case "", KindAuto:
		return KindAuto, nil
	case KindBrute, "bruteforce":
		return KindBrute, nil
	case KindCover, "vptree":
		return KindCover, nil
	}
	return "", fmt.Errorf("index: unsupported kind %q", name)
}

// Resolve returns the concrete kind used for a corpus of docCount vectors
// with dim values each. Explicit kinds are returned unchanged. KindAuto only
// picks the vantage-point tree for metrics that obey the triangle
// inequality; its pruning drops true neighbours otherwise.
func Resolve(kind Kind, metric vector.Metric, docCount, dim int) Kind {
	if kind == KindBrute || kind == KindCover {
		return kind
	}
	if !metric.IsTrueMetric() {
		return KindBrute
	}
	if docCount >= autoCoverMinDocs && dim >= autoCoverMinDim {
		density := float64(docCount) / float64(dim)
		if density >= autoCoverMinDensity {
			return KindCover
		}
	}
	return KindBrute
}

// New constructs an empty index of the given concrete kind.
func New(kind Kind, metric vector.Metric) (Index, error) {
	switch kind {
	case KindBrute:
		return bruteforce.New(metric), nil
	case KindCover:
		return cover.New(metric), nil
	}
	return nil, fmt.Errorf("index: cannot construct kind %q", kind)
}

// Build resolves kind for the corpus, then constructs and builds the index.
func Build(kind Kind, metric vector.Metric, ids []string, vectors [][]float32) (Index, error) {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	idx, err := New(Resolve(kind, metric, len(ids), dim), metric)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(ids, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}
