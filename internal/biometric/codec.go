package biometric

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a transport payload is not valid
// base64. Callers treat this as a non-retryable input error, never a system
// fault.
var ErrMalformedPayload = errors.New("malformed base64 payload")

// DecodePayload decodes a base64 transport payload into raw sample bytes.
// A zero-length payload decodes to an empty slice without error.
func DecodePayload(payload string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	return raw, nil
}
