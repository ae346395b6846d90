package biometric

import (
	"image"
	"math"
	"sort"
)

// DetectionConfidence is the fixed confidence reported for every detected
// region. The detector is a stand-in for a trained cascade: it finds locally
// textured windows, which drives the pipeline deterministically but carries
// no learned notion of what a face looks like.
const DetectionConfidence = 0.8

// Region is one detected face candidate inside a frame.
type Region struct {
	Bounds     image.Rectangle
	Confidence float64
}

// RegionDetector locates textured square windows in a grayscale frame.
// Windows flatter than the standard-deviation floor are never candidates,
// so uniform frames produce no detections.
type RegionDetector struct {
	stdDevFloor float64
	scales      []float64
	maxRegions  int
}

// NewRegionDetector returns a detector with the default floor and window
// scales. The floor sits above JPEG compression noise on flat frames.
func NewRegionDetector() *RegionDetector {
	return &RegionDetector{
		stdDevFloor: 12.0,
		scales:      []float64{0.9, 0.7, 0.5},
		maxRegions:  4,
	}
}

// Detect returns candidate regions ordered by texture score, best first.
// Overlapping candidates are suppressed so each returned region covers a
// distinct part of the frame. Frames smaller than 16px per side yield none.
func (d *RegionDetector) Detect(frame *image.Gray) []Region {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 16 || height < 16 {
		return nil
	}

	ii := newIntegralImage(frame)

	type candidate struct {
		rect  image.Rectangle
		score float64
	}
	var candidates []candidate

	minSide := width
	if height < minSide {
		minSide = height
	}
	for _, scale := range d.scales {
		window := int(float64(minSide) * scale)
		if window < 8 {
			continue
		}
		step := window / 4
		if step < 1 {
			step = 1
		}
		for y := 0; y+window <= height; y += step {
			for x := 0; x+window <= width; x += step {
				stdDev := ii.stdDev(x, y, x+window, y+window)
				if stdDev < d.stdDevFloor {
					continue
				}
				rect := image.Rect(
					bounds.Min.X+x,
					bounds.Min.Y+y,
					bounds.Min.X+x+window,
					bounds.Min.Y+y+window,
				)
				candidates = append(candidates, candidate{rect: rect, score: stdDev})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Stable sort keeps scan order for equal scores, so results are
	// deterministic for a given frame.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	regions := make([]Region, 0, d.maxRegions)
	for _, c := range candidates {
		if len(regions) == d.maxRegions {
			break
		}
		overlaps := false
		for _, r := range regions {
			if c.rect.Overlaps(r.Bounds) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		regions = append(regions, Region{Bounds: c.rect, Confidence: DetectionConfidence})
	}
	return regions
}

// integralImage holds running sums of pixel values and squared values so any
// rectangular window's mean and variance come out in constant time.
type integralImage struct {
	width, height int
	sum           []float64
	sumSq         []float64
}

func newIntegralImage(frame *image.Gray) *integralImage {
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	ii := &integralImage{
		width:  w,
		height: h,
		sum:    make([]float64, (w+1)*(h+1)),
		sumSq:  make([]float64, (w+1)*(h+1)),
	}
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum, rowSumSq float64
		for x := 0; x < w; x++ {
			v := float64(frame.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			rowSum += v
			rowSumSq += v * v
			idx := (y+1)*stride + (x + 1)
			ii.sum[idx] = ii.sum[idx-stride] + rowSum
			ii.sumSq[idx] = ii.sumSq[idx-stride] + rowSumSq
		}
	}
	return ii
}

// stdDev computes the population standard deviation of the window
// [x0,y0)..(x1,y1) in frame-local coordinates.
func (ii *integralImage) stdDev(x0, y0, x1, y1 int) float64 {
	stride := ii.width + 1
	area := float64((x1 - x0) * (y1 - y0))
	if area <= 0 {
		return 0
	}
	sum := ii.sum[y1*stride+x1] - ii.sum[y0*stride+x1] - ii.sum[y1*stride+x0] + ii.sum[y0*stride+x0]
	sumSq := ii.sumSq[y1*stride+x1] - ii.sumSq[y0*stride+x1] - ii.sumSq[y1*stride+x0] + ii.sumSq[y0*stride+x0]
	mean := sum / area
	variance := sumSq/area - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
