//go:build !gocv
// +build !gocv

package imageio

import (
	"fmt"

	"lungmask/internal/domain/entity"
)

// ReadRaster возвращает ошибку, если сборка без тега gocv.
func ReadRaster(path string) (*entity.Image, error) {
	return nil, fmt.Errorf("%w: %s: gocv build tag is not enabled", entity.ErrUnsupportedFormat, path)
}

// WriteRaster возвращает ошибку, если сборка без тега gocv.
func WriteRaster(path string, img *entity.Image) error {
	_ = img
	return fmt.Errorf("%w: %s: gocv build tag is not enabled", entity.ErrUnsupportedFormat, path)
}
