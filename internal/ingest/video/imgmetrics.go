// imgmetrics.go computes the frame-similarity signals used for scene
// detection. No perceptual-hashing or SSIM library appears anywhere in the
// dependency pack, so these are hand-written against image/draw and
// image/color — the same local precedent the captions ingestor follows for
// SRT/VTT parsing.
package video

import (
	"image"
	"image/draw"
	"math/bits"
)

// grayscale converts any decoded image to 8-bit luma.
func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// ssim computes a simplified single-window structural similarity index
// between two equally-sized grayscale images: global mean/variance/
// covariance rather than the sliding 11x11 windows of the reference
// algorithm, which is sufficient to detect a hard scene cut without pulling
// in an external implementation.
func ssim(a, b *image.Gray) float64 {
	const c1 = (0.01 * 255) * (0.01 * 255)
	const c2 = (0.03 * 255) * (0.03 * 255)

	ra, rb := a.Bounds(), b.Bounds()
	w := minInt(ra.Dx(), rb.Dx())
	h := minInt(ra.Dy(), rb.Dy())
	if w == 0 || h == 0 {
		return 0
	}
	n := float64(w * h)

	var sumA, sumB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sumA += float64(a.GrayAt(ra.Min.X+x, ra.Min.Y+y).Y)
			sumB += float64(b.GrayAt(rb.Min.X+x, rb.Min.Y+y).Y)
		}
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, covAB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			da := float64(a.GrayAt(ra.Min.X+x, ra.Min.Y+y).Y) - meanA
			db := float64(b.GrayAt(rb.Min.X+x, rb.Min.Y+y).Y) - meanB
			varA += da * da
			varB += db * db
			covAB += da * db
		}
	}
	varA /= n
	varB /= n
	covAB /= n

	num := (2*meanA*meanB + c1) * (2*covAB + c2)
	den := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if den == 0 {
		return 1
	}
	return num / den
}

// averageHash computes an 8x8 average-hash (aHash) perceptual fingerprint:
// downscale to 8x8, threshold against the mean, pack into 64 bits.
func averageHash(img image.Image) uint64 {
	const side = 8
	small := image.NewGray(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var sum int
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			sum += int(small.GrayAt(x, y).Y)
		}
	}
	mean := sum / (side * side)

	var hash uint64
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			hash <<= 1
			if int(small.GrayAt(x, y).Y) >= mean {
				hash |= 1
			}
		}
	}
	return hash
}

// hammingDistance counts differing bits between two perceptual hashes.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// laplacianVariance scores image sharpness: convolve with the discrete
// Laplacian kernel and return the variance of the response, the standard
// focus-measure used to pick the sharpest frame in a window.
func laplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	responses := make([]float64, 0, w*h)
	at := func(x, y int) float64 { return float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := -4*at(x, y) + at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)
			responses = append(responses, lap)
		}
	}
	if len(responses) == 0 {
		return 0
	}

	var sum float64
	for _, r := range responses {
		sum += r
	}
	mean := sum / float64(len(responses))

	var sqSum float64
	for _, r := range responses {
		d := r - mean
		sqSum += d * d
	}
	return sqSum / float64(len(responses))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
