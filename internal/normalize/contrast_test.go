package normalize

import (
	"image"
	"testing"
)

func TestStretchContrastExpandsRange(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for i, v := range []uint8{100, 120, 140, 160} {
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = v, v, v, 255
	}

	out := stretchContrast(img)

	if out.Pix[0] != 0 {
		t.Errorf("darkest pixel = %d, want 0", out.Pix[0])
	}
	if out.Pix[12] != 255 {
		t.Errorf("brightest pixel = %d, want 255", out.Pix[12])
	}
	if out.Pix[4] >= out.Pix[8] {
		t.Errorf("ordering not preserved: %d >= %d", out.Pix[4], out.Pix[8])
	}
	if out.Pix[3] != 255 || out.Pix[7] != 255 {
		t.Errorf("alpha must be untouched")
	}
}

func TestStretchContrastFlatImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 255
	}

	out := stretchContrast(img)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 128 {
			t.Fatalf("flat image must pass through unchanged, got %d", out.Pix[i])
		}
	}
}
