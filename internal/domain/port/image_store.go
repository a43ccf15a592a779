package port

import (
	"context"

	"lungmask/internal/domain/entity"
)

// ReadOptions параметры чтения изображения
type ReadOptions struct {
	ReadMetadata bool
}

// WriteOptions параметры записи изображения
type WriteOptions struct {
	// KeepOriginalUID берёт UID из метаданных вместо генерации новых
	KeepOriginalUID bool

	// SourcePath входной файл; его формат используется для путей без расширения
	SourcePath string
}

// ImageReader интерфейс чтения изображений
type ImageReader interface {
	// Read загружает изображение и, по запросу, его DICOM-теги
	Read(ctx context.Context, path string, opts ReadOptions) (*entity.Image, error)
}

// ImageWriter интерфейс записи изображений
type ImageWriter interface {
	// Write сохраняет изображение; формат определяется по пути
	Write(ctx context.Context, path string, img *entity.Image, opts WriteOptions) error
}
