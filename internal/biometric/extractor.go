// Package biometric implements the enrollment/verification pipeline core:
// payload decoding, feature extraction, similarity scoring, and template
// payload encryption. Extraction is an explicitly documented stand-in for a
// trained matcher; it preserves the pipeline shape and decision policy, not
// recognition accuracy.
package biometric

// Sample is one usable feature vector pulled out of a payload, paired with
// its [0,1] quality estimate.
type Sample struct {
	Vector  FeatureVector
	Quality float64
}

// Extractor turns a raw decoded payload into zero or more scored samples.
// Implementations never fail on well-formed input: an empty result means no
// usable signal was found and the caller decides what that implies.
type Extractor interface {
	// Extract returns one sample per usable region/reading in the payload.
	Extract(raw []byte) []Sample
	// Modality is the biometric type this extractor handles.
	Modality() string
	// EnrollmentConfidence is the fixed confidence recorded on templates
	// created from this extractor's samples. A documented placeholder, not
	// a computed value.
	EnrollmentConfidence() float64
}
