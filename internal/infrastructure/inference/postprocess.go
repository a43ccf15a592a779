package inference

import (
	"sort"

	"lungmask/internal/domain/entity"
)

// component связная область одной метки.
type component struct {
	label  uint8
	voxels []int
}

// neighbours26 перебирает соседей вокселя по 26-связности.
func neighbours26(i int, size [3]int, fn func(j int)) {
	nx, ny, nz := size[0], size[1], size[2]
	x := i % nx
	y := (i / nx) % ny
	z := i / (nx * ny)
	for dz := -1; dz <= 1; dz++ {
		zz := z + dz
		if zz < 0 || zz >= nz {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			yy := y + dy
			if yy < 0 || yy >= ny {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				xx := x + dx
				if xx < 0 || xx >= nx || (dx == 0 && dy == 0 && dz == 0) {
					continue
				}
				fn((zz*ny+yy)*nx + xx)
			}
		}
	}
}

// components находит связные области ненулевых меток.
func components(m *entity.Mask) []component {
	seen := make([]bool, len(m.Labels))
	var out []component
	stack := make([]int, 0, 256)
	for start, l := range m.Labels {
		if l == 0 || seen[start] {
			continue
		}
		c := component{label: l}
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c.voxels = append(c.voxels, i)
			neighbours26(i, m.Size, func(j int) {
				if !seen[j] && m.Labels[j] == l {
					seen[j] = true
					stack = append(stack, j)
				}
			})
		}
		out = append(out, c)
	}
	return out
}

// Postprocess оставляет для каждой метки наибольшую связную область.
// Остальные области, а также области метки spare (если задана), получают
// метку соседа с наибольшей общей границей; без соседей они обнуляются.
// Затем внутри каждой метки заполняются дыры.
func Postprocess(m *entity.Mask, spare ...uint8) {
	isSpare := func(l uint8) bool {
		for _, s := range spare {
			if s == l {
				return true
			}
		}
		return false
	}

	comps := components(m)
	largest := make(map[uint8]int)
	for idx, c := range comps {
		if isSpare(c.label) {
			continue
		}
		if best, ok := largest[c.label]; !ok || len(c.voxels) > len(comps[best].voxels) {
			largest[c.label] = idx
		}
	}

	// мелкие области обрабатываются от меньших к большим
	var small []int
	for idx, c := range comps {
		if best, ok := largest[c.label]; ok && best == idx {
			continue
		}
		small = append(small, idx)
	}
	sort.SliceStable(small, func(a, b int) bool {
		return len(comps[small[a]].voxels) < len(comps[small[b]].voxels)
	})

	for _, idx := range small {
		c := comps[idx]
		votes := make(map[uint8]int)
		for _, i := range c.voxels {
			neighbours26(i, m.Size, func(j int) {
				if l := m.Labels[j]; l != 0 && l != c.label && !isSpare(l) {
					votes[l]++
				}
			})
		}
		var target uint8
		bestVotes := 0
		for l, n := range votes {
			if n > bestVotes || (n == bestVotes && l < target) {
				target, bestVotes = l, n
			}
		}
		for _, i := range c.voxels {
			m.Labels[i] = target
		}
	}

	for _, s := range spare {
		for i, l := range m.Labels {
			if l == s {
				m.Labels[i] = 0
			}
		}
	}

	// дыра внутри вложенных колец достаётся меньшей метке
	labels := make([]uint8, 0, len(largest))
	for l := range largest {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(a, b int) bool { return labels[a] < labels[b] })
	for _, l := range labels {
		fillHoles(m, l)
	}
}

// fillHoles заполняет фон, полностью окружённый меткой label, по срезам.
func fillHoles(m *entity.Mask, label uint8) {
	nx, ny, nz := m.Size[0], m.Size[1], m.Size[2]
	plane := nx * ny
	outside := make([]bool, plane)
	stack := make([]int, 0, 256)

	for z := 0; z < nz; z++ {
		s := m.Labels[z*plane : (z+1)*plane]
		for i := range outside {
			outside[i] = false
		}
		stack = stack[:0]
		push := func(i int) {
			if !outside[i] && s[i] != label {
				outside[i] = true
				stack = append(stack, i)
			}
		}
		for x := 0; x < nx; x++ {
			push(x)
			push((ny-1)*nx + x)
		}
		for y := 0; y < ny; y++ {
			push(y * nx)
			push(y*nx + nx - 1)
		}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%nx, i/nx
			if x > 0 {
				push(i - 1)
			}
			if x < nx-1 {
				push(i + 1)
			}
			if y > 0 {
				push(i - nx)
			}
			if y < ny-1 {
				push(i + nx)
			}
		}
		for i, l := range s {
			if l == 0 && !outside[i] {
				s[i] = label
			}
		}
	}
}
