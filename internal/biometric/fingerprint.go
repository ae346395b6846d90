package biometric

import (
	"crypto/sha256"
	"math"

	"github.com/Ibrahim99575/authentication-system/internal/models"
)

const fingerprintEnrollmentConfidence = 0.95

// FingerprintExtractor derives exactly one sample per payload. The vector is
// digest-derived: deterministic and stable for identical input, but with no
// gradual similarity between different fingers. Real minutiae extraction
// would slot in behind the same Extractor seam.
type FingerprintExtractor struct{}

func NewFingerprintExtractor() *FingerprintExtractor {
	return &FingerprintExtractor{}
}

func (e *FingerprintExtractor) Modality() string {
	return models.ModalityFingerprint
}

func (e *FingerprintExtractor) EnrollmentConfidence() float64 {
	return fingerprintEnrollmentConfidence
}

// Extract returns a single digest-derived sample, or none for an empty
// payload.
func (e *FingerprintExtractor) Extract(raw []byte) []Sample {
	if len(raw) == 0 {
		return nil
	}

	digest := sha256.Sum256(raw)
	vector := make(FeatureVector, len(digest))
	for i, b := range digest {
		vector[i] = float64(b) / 255.0
	}
	return []Sample{{Vector: vector, Quality: fingerprintQuality(raw)}}
}

// fingerprintQuality averages a size score (saturating at 10KB) and a
// byte-entropy score (saturating at the 8-bit maximum). Tiny or highly
// repetitive payloads score low.
func fingerprintQuality(raw []byte) float64 {
	sizeScore := float64(len(raw)) / 10000.0
	if sizeScore > 1 {
		sizeScore = 1
	}

	entropyScore := shannonEntropy(raw) / 8.0
	if entropyScore > 1 {
		entropyScore = 1
	}

	return (sizeScore + entropyScore) / 2
}

// shannonEntropy computes bits of entropy per byte over the payload's byte
// histogram.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	total := float64(len(data))
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
