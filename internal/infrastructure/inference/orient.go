package inference

import "lungmask/internal/domain/entity"

// canonical отражает оси с отрицательной диагональю матрицы направлений,
// чтобы срезы подавались в сеть в одной ориентации.
func canonical(img *entity.Image) ([]float32, [3]bool) {
	d := img.Geometry.Direction
	flips := [3]bool{d[0] < 0, d[4] < 0, d[8] < 0}

	vol := make([]float32, len(img.Voxels))
	copy(vol, img.Voxels)
	flipVolume(vol, img.Size, flips)
	return vol, flips
}

func flipLabels(labels []uint8, size [3]int, flips [3]bool) {
	flipVolume(labels, size, flips)
}

func flipVolume[T any](v []T, size [3]int, flips [3]bool) {
	nx, ny, nz := size[0], size[1], size[2]
	idx := func(x, y, z int) int { return (z*ny+y)*nx + x }

	if flips[0] {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx/2; x++ {
					a, b := idx(x, y, z), idx(nx-1-x, y, z)
					v[a], v[b] = v[b], v[a]
				}
			}
		}
	}
	if flips[1] {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny/2; y++ {
				for x := 0; x < nx; x++ {
					a, b := idx(x, y, z), idx(x, ny-1-y, z)
					v[a], v[b] = v[b], v[a]
				}
			}
		}
	}
	if flips[2] {
		for z := 0; z < nz/2; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					a, b := idx(x, y, z), idx(x, y, nz-1-z)
					v[a], v[b] = v[b], v[a]
				}
			}
		}
	}
}
