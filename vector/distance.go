package vector

import (
	"fmt"

	"github.com/viant/vec/search"
)

// Metric names a distance function. Smaller distances mean closer vectors
// for every metric.
type Metric string

const (
	// L2 is the Euclidean distance.
	L2 Metric = "l2"
	// Cosine is the cosine distance, 1 - cosine similarity.
	Cosine Metric = "cosine"
)

// ParseMetric resolves a metric name, accepting a few common aliases.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", "l2", "euclidean":
		return L2, nil
	case "cos", "cosine":
		return Cosine, nil
	}
	return "", fmt.Errorf("vector: unsupported metric %q", name)
}

// IsTrueMetric reports whether m satisfies the triangle inequality. Cosine
// distance does not.
func (m Metric) IsTrueMetric() bool { return m == L2 }

// Distance computes the distance between two vectors of equal length using
// the metric. Callers are expected to have checked dimensions.
func (m Metric) Distance(a, b []float32) float32 {
	if m == Cosine {
		return cosineDistance(a, b)
	}
	return search.Float32s(a).EuclideanDistance(b)
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return search.Float32s(a).EuclideanDistance(b), nil
}

// CosineDistance computes 1 - cosine similarity. It returns an error if the
// vectors have different lengths or if either vector has zero magnitude.
func CosineDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine distance on empty vectors")
	}
	if Magnitude(a) == 0 || Magnitude(b) == 0 {
		return 0, fmt.Errorf("vector: cosine distance with zero-magnitude vector")
	}
	return cosineDistance(a, b), nil
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// zero-magnitude vectors are treated as maximally distant
func cosineDistance(a, b []float32) float32 {
	ma, mb := Magnitude(a), Magnitude(b)
	if ma == 0 || mb == 0 {
		return 1
	}
	return search.Float32s(a).CosineDistanceWithMagnitude(b, ma, mb)
}
