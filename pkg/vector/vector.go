// Package vector provides the similarity and storage helpers shared by
// ingestion and retrieval.
package vector

import "math"

// Similarity returns the cosine similarity of a and b.
//
// Vectors of different lengths are compared over their overlapping prefix so
// that memories embedded by different providers can still be ranked. A zero
// norm is replaced by 1, which makes the similarity of an empty or zero vector 0.
func Similarity(a, b []float32) float64 {
	n := min(len(a), len(b))

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	na := math.Sqrt(normA)
	if na == 0 {
		na = 1
	}
	nb := math.Sqrt(normB)
	if nb == 0 {
		nb = 1
	}

	return dot / (na * nb)
}

// MaxSimilarity returns the highest similarity of v against baseline. The scan
// stops as soon as a value above stopAbove is seen.
func MaxSimilarity(v []float32, baseline [][]float32, stopAbove float64) float64 {
	var maxCos float64
	for _, b := range baseline {
		if len(b) == 0 {
			continue
		}
		if c := Similarity(v, b); c > maxCos {
			maxCos = c
			if maxCos > stopAbove {
				break
			}
		}
	}
	return maxCos
}

// Normalize scales v to unit length in place. A zero vector is left untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Round returns a copy of v with every component rounded to the given number of decimals
func Round(v []float32, decimals int) []float32 {
	p := math.Pow(10, float64(decimals))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(math.Round(float64(x)*p) / p)
	}
	return out
}
