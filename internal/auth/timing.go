package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay equalizes authentication failure latency so "user not found",
// "wrong password" and "below threshold" are indistinguishable from the
// outside.
type TimingDelay struct {
	baseDelayMs   int
	randomDelayMs int
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(baseDelayMs, randomDelayMs int) *TimingDelay {
	return &TimingDelay{
		baseDelayMs:   baseDelayMs,
		randomDelayMs: randomDelayMs,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
// Uses crypto/rand instead of math/rand for security-sensitive operations
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

func (td *TimingDelay) targetDelay() time.Duration {
	baseDelay := time.Duration(td.baseDelayMs) * time.Millisecond
	var randomDelay time.Duration
	if td.randomDelayMs > 0 {
		randomValue, err := cryptoRandIntn(td.randomDelayMs)
		if err == nil {
			randomDelay = time.Duration(randomValue) * time.Millisecond
		}
	}
	return baseDelay + randomDelay
}

// Wait applies the delay on failure. Successful operations return
// immediately: only the failure paths need their timing flattened.
func (td *TimingDelay) Wait(success bool) {
	if success {
		return
	}
	time.Sleep(td.targetDelay())
}

// WaitFrom applies delay relative to a start time, ensuring total elapsed
// time meets the target even when the failing operation already burned some.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success {
		return
	}

	target := td.targetDelay()
	elapsed := time.Since(startTime)
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
}
