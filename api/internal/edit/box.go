package edit

import "math"

// ScaleBox переводит нормализованный бокс в пиксели картинки w×h.
// Координаты упорядочиваются и обрезаются по границам.
func ScaleBox(b BoundingBox, w, h int) BoundingBox {
	x1, x2 := math.Min(b.X1, b.X2), math.Max(b.X1, b.X2)
	y1, y2 := math.Min(b.Y1, b.Y2), math.Max(b.Y1, b.Y2)
	return BoundingBox{
		X1: math.Round(clamp01(x1) * float64(w)),
		Y1: math.Round(clamp01(y1) * float64(h)),
		X2: math.Round(clamp01(x2) * float64(w)),
		Y2: math.Round(clamp01(y2) * float64(h)),
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
