package normalize

import "image"

// stretchContrast linearly remaps pixel luminance so the darkest value maps
// to 0 and the brightest to 255. Input is the greyscale NRGBA produced by
// the pipeline, so only one channel needs inspecting.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	min, max := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min >= max {
		return img
	}

	scale := 255.0 / float64(max-min)
	var lut [256]uint8
	for v := int(min); v <= int(max); v++ {
		lut[v] = uint8(float64(v-int(min))*scale + 0.5)
	}

	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		v := lut[out.Pix[i]]
		out.Pix[i] = v
		out.Pix[i+1] = v
		out.Pix[i+2] = v
	}
	return out
}
