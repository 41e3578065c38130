package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Binarize decodes raw image bytes and produces the black-and-white image
// fed to text recognition: decode, cap the longest side, grayscale, then a
// global Otsu threshold. Identical input bytes yield identical output.
func Binarize(data []byte, maxSide int) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	gray := Grayscale(img)
	return applyThreshold(gray, OtsuThreshold(gray)), nil
}

// Grayscale converts any decoded image to single-channel intensity
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// OtsuThreshold picks the intensity cut that maximizes between-class
// variance over the image histogram. No hand-tuned constants.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}

	total := len(img.Pix)
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB, best float64
	var thresh uint8
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			thresh = uint8(t)
		}
	}
	return thresh
}

// pixels above the threshold become white, the rest black
func applyThreshold(gray *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(gray.Bounds())
	for i, v := range gray.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}
