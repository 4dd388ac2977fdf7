package extractor

import (
	"image"

	"github.com/disintegration/imaging"
)

// preprocess applies the cleanup chain tuned for phone-photographed
// statements with uneven lighting: grayscale, contrast boost, sharpening,
// then a mild median denoise. Order matters; denoising before sharpening
// blurs the CJK strokes Tesseract needs.
func preprocess(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 50)
	out = imaging.Sharpen(out, 1.0)
	return medianFilter3x3(out)
}

// medianFilter3x3 runs a 3x3 median filter over a grayscale NRGBA image.
// imaging has no median filter, and Gaussian blur smears thin strokes; the
// median kills salt-and-pepper sensor noise while keeping edges.
func medianFilter3x3(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)

	var window [9]uint8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X ||
						ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					// Grayscale input: R carries the value
					window[n] = img.NRGBAAt(nx, ny).R
					n++
				}
			}
			v := medianOf(window[:n])
			i := out.PixOffset(x, y)
			out.Pix[i+0] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

func medianOf(vals []uint8) uint8 {
	// Insertion sort; windows are at most 9 wide
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j-1] > vals[j]; j-- {
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
	return vals[len(vals)/2]
}
