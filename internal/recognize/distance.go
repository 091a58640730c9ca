package recognize

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
)

// Metric selects the distance used to compare descriptors
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ParseMetric validates a metric name. Empty means Euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricEuclidean:
		return MetricEuclidean, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown match metric %q (want euclidean or cosine)", s)
	}
}

// Distance computes the exact distance between a and b in float64.
func (m Metric) Distance(a, b []float64) float64 {
	if m == MetricCosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

func (m Metric) graphDistance() hnsw.DistanceFunc {
	if m == MetricCosine {
		return hnsw.CosineDistance
	}
	return hnsw.EuclideanDistance
}

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
