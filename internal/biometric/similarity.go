package biometric

import "math"

// CosineSimilarity returns the cosine similarity of two equal-length vectors,
// clamped to [0, 1]. Negative correlation carries no meaning for match
// decisions, so it clamps to 0 rather than surfacing a signed score.
//
// Undefined inputs fail closed: mismatched lengths, empty vectors, and
// zero-magnitude vectors all score 0.
func CosineSimilarity(a, b FeatureVector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
