package biometric

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FeatureVector is a fixed-length numeric embedding of one biometric sample.
// Face vectors are L2-normalized pixel intensities; fingerprint vectors are
// digest-derived. Vectors of different modalities are never compared.
type FeatureVector []float64

// Marshal serializes the vector to its at-rest form. The encoding is
// deterministic: the same vector always produces the same bytes, which is
// what makes template hashes stable.
func (v FeatureVector) Marshal() ([]byte, error) {
	data, err := cbor.Marshal([]float64(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature vector: %w", err)
	}
	return data, nil
}

// UnmarshalVector decodes a serialized feature vector.
func UnmarshalVector(data []byte) (FeatureVector, error) {
	var values []float64
	if err := cbor.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature vector: %w", err)
	}
	return FeatureVector(values), nil
}

// PayloadHash returns the lowercase hex sha256 digest of a byte payload.
// Used both for template hashes (over the serialized vector, pre-encryption)
// and source hashes (over the raw decoded sample).
func PayloadHash(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
