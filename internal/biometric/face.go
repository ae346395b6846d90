package biometric

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/Ibrahim99575/authentication-system/internal/models"
)

const (
	// DefaultFrameLimit caps how many frames are materialized from one
	// video payload.
	DefaultFrameLimit = 30
	// DefaultFaceSize is the square side length face crops are resized to
	// before flattening.
	DefaultFaceSize = 128

	faceEnrollmentConfidence = 0.9
)

// FaceExtractor produces one sample per frame that contains a detectable
// face region. Processing per frame: detect, crop the first region, score
// quality on the raw crop, then resize, flatten and L2-normalize.
type FaceExtractor struct {
	frameLimit int
	faceSize   int
	detector   *RegionDetector
}

// NewFaceExtractor builds a face extractor. Non-positive limits fall back to
// the package defaults.
func NewFaceExtractor(frameLimit, faceSize int) *FaceExtractor {
	if frameLimit <= 0 {
		frameLimit = DefaultFrameLimit
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	return &FaceExtractor{
		frameLimit: frameLimit,
		faceSize:   faceSize,
		detector:   NewRegionDetector(),
	}
}

func (e *FaceExtractor) Modality() string {
	return models.ModalityFace
}

func (e *FaceExtractor) EnrollmentConfidence() float64 {
	return faceEnrollmentConfidence
}

// Extract decodes frames from the payload and returns one sample per frame
// with a detected face. Frames without detections and crops that normalize
// to a zero vector are skipped, never failed.
func (e *FaceExtractor) Extract(raw []byte) []Sample {
	frames := SplitFrames(raw, e.frameLimit)
	if len(frames) == 0 {
		return nil
	}

	samples := make([]Sample, 0, len(frames))
	for _, frame := range frames {
		regions := e.detector.Detect(frame)
		if len(regions) == 0 {
			continue
		}

		crop := frame.SubImage(regions[0].Bounds).(*image.Gray)
		quality := faceQuality(crop, frame)
		vector := flattenNormalized(resizeGray(crop, e.faceSize))
		if vector == nil {
			continue
		}
		samples = append(samples, Sample{Vector: vector, Quality: quality})
	}
	return samples
}

// faceQuality estimates usability of a face crop from its share of the frame
// and its sharpness, before any resizing: half weight each, clamped to [0,1].
func faceQuality(crop, frame *image.Gray) float64 {
	cropArea := float64(crop.Bounds().Dx() * crop.Bounds().Dy())
	frameArea := float64(frame.Bounds().Dx() * frame.Bounds().Dy())
	if frameArea == 0 {
		return 0
	}

	sizeScore := (cropArea / frameArea) * 10
	sharpness := laplacianVariance(crop) / 1000

	return clamp01((sizeScore + sharpness) / 2)
}

// laplacianVariance measures sharpness as the variance of a 4-neighbor
// Laplacian over the interior pixels. Blurry crops score near zero.
func laplacianVariance(img *image.Gray) float64 {
	bounds := img.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return 0
	}

	var sum, sumSq float64
	var n int
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(img.GrayAt(x, y).Y)
			lap := float64(img.GrayAt(x-1, y).Y) +
				float64(img.GrayAt(x+1, y).Y) +
				float64(img.GrayAt(x, y-1).Y) +
				float64(img.GrayAt(x, y+1).Y) -
				4*center
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		return 0
	}
	return variance
}

func resizeGray(src *image.Gray, size int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// flattenNormalized converts the image to a row-major [0,1] intensity vector
// and L2-normalizes it. Returns nil for an all-black crop, whose zero norm
// would make every similarity undefined.
func flattenNormalized(img *image.Gray) FeatureVector {
	bounds := img.Bounds()
	vector := make(FeatureVector, 0, bounds.Dx()*bounds.Dy())

	var sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y) / 255.0
			vector = append(vector, v)
			sumSq += v * v
		}
	}

	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return nil
	}
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
