package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// left half dark, right half light
func bimodalImage(w, h int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := dark
			if x >= w/2 {
				v = light
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestOtsuThresholdSeparatesBimodalClasses(t *testing.T) {
	th := OtsuThreshold(bimodalImage(40, 40, 50, 200))
	if th < 50 || th >= 200 {
		t.Errorf("threshold %d does not separate intensity classes 50 and 200", th)
	}
}

func TestOtsuThresholdEmptyImage(t *testing.T) {
	if th := OtsuThreshold(image.NewGray(image.Rect(0, 0, 0, 0))); th != 0 {
		t.Errorf("expected 0 for empty image, got %d", th)
	}
}

func TestBinarizeProducesBinaryImage(t *testing.T) {
	data := encodePNG(t, bimodalImage(40, 40, 30, 220))

	out, err := Binarize(data, 0)
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	for i, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d has non-binary value %d", i, v)
		}
	}
	if out.GrayAt(0, 0).Y != 0 {
		t.Error("dark half should binarize to black")
	}
	if out.GrayAt(39, 0).Y != 255 {
		t.Error("light half should binarize to white")
	}
}

func TestBinarizeDeterministic(t *testing.T) {
	data := encodePNG(t, bimodalImage(32, 32, 60, 180))

	first, err := Binarize(data, 0)
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}
	second, err := Binarize(data, 0)
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("identical input bytes produced different binarized images")
	}
}

func TestBinarizeCapsLongestSide(t *testing.T) {
	data := encodePNG(t, bimodalImage(128, 32, 10, 240))

	out, err := Binarize(data, 64)
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	if out.Bounds().Dx() > 64 || out.Bounds().Dy() > 64 {
		t.Errorf("image not capped: got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestBinarizeRejectsGarbage(t *testing.T) {
	if _, err := Binarize([]byte("definitely not an image"), 0); err == nil {
		t.Error("expected a decode error for non-image bytes")
	}
}
