package biometric

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

const (
	markerPrefix     = 0xFF
	markerStartImage = 0xD8
	markerEndImage   = 0xD9
)

// SplitFrames materializes grayscale frames from a raw video payload. The
// payload is read as an MJPEG-style stream of concatenated JPEG images,
// decoding at most limit frames. A payload without JPEG frame markers falls
// back to single still-image decoding (JPEG, then PNG), so a lone photo
// still yields one frame. Undecodable payloads yield no frames.
func SplitFrames(raw []byte, limit int) []*image.Gray {
	if limit <= 0 || len(raw) == 0 {
		return nil
	}

	frames := make([]*image.Gray, 0, 8)
	start := -1
	for i := 0; i+1 < len(raw) && len(frames) < limit; i++ {
		if raw[i] != markerPrefix {
			continue
		}
		switch raw[i+1] {
		case markerStartImage:
			if start < 0 {
				start = i
			}
		case markerEndImage:
			if start < 0 {
				continue
			}
			if img, err := jpeg.Decode(bytes.NewReader(raw[start : i+2])); err == nil {
				frames = append(frames, toGray(img))
			}
			start = -1
			i++
		}
	}
	if len(frames) > 0 {
		return frames
	}

	if img := decodeStill(raw); img != nil {
		return []*image.Gray{img}
	}
	return nil
}

// decodeStill tries whole-payload JPEG decoding first, then PNG.
func decodeStill(raw []byte) *image.Gray {
	if img, err := jpeg.Decode(bytes.NewReader(raw)); err == nil {
		return toGray(img)
	}
	if img, err := png.Decode(bytes.NewReader(raw)); err == nil {
		return toGray(img)
	}
	return nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
