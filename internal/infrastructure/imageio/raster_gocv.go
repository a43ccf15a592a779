//go:build gocv
// +build gocv

package imageio

import (
	"fmt"

	"gocv.io/x/gocv"

	"lungmask/internal/domain/entity"
)

// ReadRaster загружает 2D изображение в оттенках серого.
func ReadRaster(path string) (*entity.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: %s: failed to decode image", entity.ErrInvalidImage, path)
	}

	img := entity.NewImage(mat.Cols(), mat.Rows(), 1)
	for y := 0; y < mat.Rows(); y++ {
		for x := 0; x < mat.Cols(); x++ {
			img.Voxels[img.Index(x, y, 0)] = float32(mat.GetUCharAt(y, x))
		}
	}
	return img, nil
}

// WriteRaster сохраняет 2D маску; формат задаётся расширением.
func WriteRaster(path string, img *entity.Image) error {
	if img.Size[2] != 1 {
		return fmt.Errorf("%w: %s: raster output needs a single slice, got %d", entity.ErrUnsupportedFormat, path, img.Size[2])
	}

	mat := gocv.NewMatWithSize(img.Size[1], img.Size[0], gocv.MatTypeCV8U)
	defer mat.Close()
	for y := 0; y < img.Size[1]; y++ {
		for x := 0; x < img.Size[0]; x++ {
			mat.SetUCharAt(y, x, clampUint8(img.At(x, y, 0)))
		}
	}

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
