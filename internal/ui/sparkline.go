package ui

// sparkBlocks are the bar glyphs, lowest first. The first one marks an idle
// second.
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// MinSparkScale is the smallest full-height value. A scanner rarely
// completes more than a few scans a second, so scaling to the window's own
// peak would draw a single scan as a full bar.
const MinSparkScale = 3.0

// Sparkline draws the last width samples of scans per second, padding on
// the left with idle seconds. Bars scale to the window's peak, but never
// below MinSparkScale, and a non-zero second is never drawn idle.
func Sparkline(samples []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	scale := MinSparkScale
	for _, v := range samples {
		scale = max(scale, v)
	}

	top := len(sparkBlocks) - 1
	out := make([]rune, width)
	pad := width - len(samples)
	for i := range pad {
		out[i] = sparkBlocks[0]
	}
	for i, v := range samples {
		idx := 0
		if v > 0 {
			idx = max(1, min(top, int(v/scale*float64(top)+0.5)))
		}
		out[pad+i] = sparkBlocks[idx]
	}
	return string(out)
}
