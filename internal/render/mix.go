package render

import "math"

// Mix blends canvases a and b into dst using alpha (0..1).
// All three must share dimensions.
func Mix(dst, a, b *Canvas, alpha float64) {
	if alpha <= 0 {
		copy(dst.Pix, a.Pix)
		return
	}
	if alpha >= 1 {
		copy(dst.Pix, b.Pix)
		return
	}
	af := 1.0 - alpha
	for i := range dst.Pix {
		dst.Pix[i] = Color{
			R: lerp8(a.Pix[i].R, b.Pix[i].R, af, alpha),
			G: lerp8(a.Pix[i].G, b.Pix[i].G, af, alpha),
			B: lerp8(a.Pix[i].B, b.Pix[i].B, af, alpha),
		}
	}
}

func lerp8(a, b uint8, af, bf float64) uint8 {
	return uint8(math.Round(float64(a)*af + float64(b)*bf))
}
