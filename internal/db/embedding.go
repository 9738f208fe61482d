package db

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// EmbeddingDimensions is the fixed width of the `embedding` column (§3, §6).
const EmbeddingDimensions = 16

// computeEmbedding deterministically folds a row's non-vector column values
// into a fixed-width float32 vector, so `create` (§4.B) can always recompute
// `embedding` from the row without a model call or an external encoder
// dependency. Each column contributes to one bucket via its FNV-1a hash; the
// column's string representation is hashed so the mapping is stable across
// runs and processes.
func computeEmbedding(row map[string]any) []float32 {
	var vec [EmbeddingDimensions]float32

	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte(fmt.Sprintf("%v", row[k])))
		sum := h.Sum32()
		bucket := sum % EmbeddingDimensions
		vec[bucket] += float32(sum%1000) / 1000.0
	}
	return vec[:]
}

// embeddingLiteral renders a vector as the `vector(16)` literal Postgres
// expects, e.g. "[0.1,0.2,...]".
func embeddingLiteral(vec []float32) string {
	s := "["
	for i, v := range vec {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%g", v)
	}
	return s + "]"
}
