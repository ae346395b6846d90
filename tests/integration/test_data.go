package integration

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"
)

// TestAccount generates unique test credentials using a timestamp so
// parallel tests never collide on the unique username or email columns
func TestAccount(suffix string) (username, email, password string) {
	ts := time.Now().UnixNano()
	username = fmt.Sprintf("user%d%s", ts, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// FacePayload returns a base64 PNG with enough texture for the region
// detector to produce a face candidate. Identical payloads extract to
// identical feature vectors, so enroll-then-verify with the same payload
// matches at full similarity.
func FacePayload() string {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			shade := uint8(0)
			if ((x/8)+(y/8))%2 == 0 {
				shade = 255
			}
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	return encodeBase64PNG(img)
}

// BlankPayload returns a base64 PNG of a uniform frame. The detector finds
// no usable region in it, which makes extraction come up empty
func BlankPayload() string {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return encodeBase64PNG(img)
}

// FingerprintPayload returns a base64 fingerprint scan stand-in. Distinct
// seeds produce non-matching prints
func FingerprintPayload(seed byte) string {
	raw := make([]byte, 4096)
	for i := range raw {
		raw[i] = byte(i) ^ seed
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func encodeBase64PNG(img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// ExtractTokenFromEmail extracts the reset token from a captured email body.
// Email format: "Reset token: {token}"
func ExtractTokenFromEmail(emailBody string) string {
	const prefix = "Reset token: "
	if idx := strings.Index(emailBody, prefix); idx >= 0 {
		return emailBody[idx+len(prefix):]
	}
	return ""
}
