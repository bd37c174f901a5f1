package index

import (
	"fmt"

	"github.com/semidx/semidx/internal/math32"
)

// Metric identifies a similarity measure. All metrics use the same sign
// convention: higher score means more similar. Euclidean distance is negated
// to fit it.
type Metric uint8

const (
	// MetricCosine is cosine similarity in [-1, 1].
	MetricCosine Metric = iota
	// MetricDot is the inner product.
	MetricDot
	// MetricNegL2 is negated Euclidean distance, at most 0.
	MetricNegL2
)

// String returns a string representation of the Metric.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot_product"
	case MetricNegL2:
		return "euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseMetric maps a metric name to its Metric. Accepted names follow the
// distance-type vocabulary of common vector platforms.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "dot_product", "dot":
		return MetricDot, nil
	case "euclidean", "l2":
		return MetricNegL2, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Score computes the similarity of q and v under m. Higher is more similar.
func (m Metric) Score(q, v []float32) float32 {
	switch m {
	case MetricCosine:
		qn := math32.Norm(q)
		vn := math32.Norm(v)
		if qn == 0 || vn == 0 {
			return 0
		}
		return math32.Dot(q, v) / (qn * vn)
	case MetricDot:
		return math32.Dot(q, v)
	case MetricNegL2:
		return -math32.Sqrt(math32.SquaredL2(q, v))
	default:
		return 0
	}
}

// Distance is -Score: lower means closer under every metric. Graph indexes
// navigate on Distance so one traversal works for all metrics.
func (m Metric) Distance(q, v []float32) float32 {
	return -m.Score(q, v)
}
