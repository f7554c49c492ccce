package embeddings

import (
	"encoding/binary"
	"math"
)

// DefaultDimension is the vector width the index is provisioned with.
const DefaultDimension = 1024

// Sanitize replaces NaN and ±Inf components with 0, in place.
func Sanitize(vec []float32) []float32 {
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			vec[i] = 0
		}
	}
	return vec
}

// Resize returns vec truncated or zero-padded to dim. A vector already of
// length dim is returned unchanged.
func Resize(vec []float32, dim int) []float32 {
	switch {
	case len(vec) == dim:
		return vec
	case len(vec) > dim:
		out := make([]float32, dim)
		copy(out, vec[:dim])
		return out
	default:
		out := make([]float32, dim)
		copy(out, vec)
		return out
	}
}

// Normalize scales vec to unit L2 norm. An all-zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Prepare sanitizes, resizes and normalizes vec for the index.
func Prepare(vec []float32, dim int) []float32 {
	return Normalize(Resize(Sanitize(vec), dim))
}

// SerializeEmbedding converts a float32 vector to bytes for SQLite storage
// Uses little-endian encoding for portability
func SerializeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DeserializeEmbedding converts bytes back to a float32 vector
func DeserializeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// CosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
