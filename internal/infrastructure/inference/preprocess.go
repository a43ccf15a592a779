package inference

import "math"

// Параметры входа модели.
const (
	Resolution = 256

	huMin          = -1024
	huMax          = 600
	bodyThreshold  = -500
	normalizeScale = huMax - huMin
)

// box прямоугольник среза: [x0, x1) x [y0, y1).
type box struct {
	x0, y0, x1, y1 int
}

func (b box) width() int  { return b.x1 - b.x0 }
func (b box) height() int { return b.y1 - b.y0 }

// clipHU ограничивает значения диапазоном [-1024, 600].
func clipHU(v float32) float32 {
	switch {
	case v < huMin || math.IsNaN(float64(v)):
		return huMin
	case v > huMax:
		return huMax
	}
	return v
}

// normalize переводит HU в [0, 1].
func normalize(v float32) float32 {
	return (clipHU(v) - huMin) / normalizeScale
}

// bodyBox возвращает рамку наибольшей связной области тела (HU > -500).
// Если тело не найдено, возвращается весь срез.
func bodyBox(slice []float32, w, h int) box {
	full := box{0, 0, w, h}
	visited := make([]bool, w*h)
	stack := make([]int, 0, 64)
	best, bestSize := full, 0

	for start := range slice {
		if visited[start] || slice[start] <= bodyThreshold {
			continue
		}
		b := box{w, h, -1, -1}
		size := 0
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			size++
			b.x0, b.y0 = min(b.x0, x), min(b.y0, y)
			b.x1, b.y1 = max(b.x1, x+1), max(b.y1, y+1)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if !visited[j] && slice[j] > bodyThreshold {
						visited[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		if size > bestSize {
			best, bestSize = b, size
		}
	}
	return best
}

// cropResize вырезает рамку и билинейно масштабирует её до dw x dh,
// применяя normalize к каждому пикселю.
func cropResize(slice []float32, w int, b box, dw, dh int, dst []float32) {
	bw, bh := b.width(), b.height()
	at := func(x, y int) float32 {
		x = min(max(x, 0), bw-1)
		y = min(max(y, 0), bh-1)
		return normalize(slice[(b.y0+y)*w+b.x0+x])
	}
	sx := float64(bw) / float64(dw)
	sy := float64(bh) / float64(dh)
	for y := 0; y < dh; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(math.Floor(fy))
		ty := float32(fy - float64(y0))
		for x := 0; x < dw; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(math.Floor(fx))
			tx := float32(fx - float64(x0))
			top := at(x0, y0)*(1-tx) + at(x0+1, y0)*tx
			bottom := at(x0, y0+1)*(1-tx) + at(x0+1, y0+1)*tx
			dst[y*dw+x] = top*(1-ty) + bottom*ty
		}
	}
}

// pasteLabels масштабирует метки sw x sh в рамку b методом ближайшего соседа.
func pasteLabels(src []uint8, sw, sh int, dst []uint8, w int, b box) {
	bw, bh := b.width(), b.height()
	for y := 0; y < bh; y++ {
		sy := min((2*y+1)*sh/(2*bh), sh-1)
		for x := 0; x < bw; x++ {
			sx := min((2*x+1)*sw/(2*bw), sw-1)
			dst[(b.y0+y)*w+b.x0+x] = src[sy*sw+sx]
		}
	}
}

// argmax выбирает класс с наибольшим откликом для каждого пикселя.
// logits в порядке [class][pixel].
func argmax(logits []float32, classes, pixels int, dst []uint8) {
	for p := 0; p < pixels; p++ {
		best, bestV := 0, logits[p]
		for c := 1; c < classes; c++ {
			if v := logits[c*pixels+p]; v > bestV {
				best, bestV = c, v
			}
		}
		dst[p] = uint8(best)
	}
}
