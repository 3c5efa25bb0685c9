package embedding

import (
	"context"
	"fmt"
	"math"
)

// EmbeddingProvider turns texts into fixed-size vectors. The i-th vector
// belongs to the i-th text and every vector has Dimension() entries.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// DimensionMismatchError means the model answered with vectors the index
// was not created for.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding has %d dimensions, index expects %d", e.Got, e.Want)
}

func checkDimension(want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return &DimensionMismatchError{Want: want, Got: len(vec)}
	}
	return nil
}

// normalizeVector scales vec to unit length so cosine and dot metrics agree.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
