package similarity

import (
	"math"
	"strings"
)

// normalizeText lower-cases and collapses all whitespace runs to a
// single space. Both built-in methods share this normalization so the
// embedding method's fallback scores the exact same strings.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

func termFrequencies(tokens []string) map[string]float64 {
	freq := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return freq
}

// jaccard computes |A∩B| / |A∪B| over token sets.
func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// cosineFreq computes cosine similarity between term-frequency maps.
func cosineFreq(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for tok, fa := range a {
		normA += fa * fa
		if fb, ok := b[tok]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range b {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineVec computes cosine similarity between embedding vectors,
// clamped to [0,1] since near-antipodal embeddings would otherwise go
// negative.
func cosineVec(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
