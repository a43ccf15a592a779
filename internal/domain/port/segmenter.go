package port

import (
	"context"

	"lungmask/internal/domain/entity"
)

// Segmenter интерфейс модели сегментации лёгких
type Segmenter interface {
	// Apply строит маску того же размера, что и изображение
	Apply(ctx context.Context, img *entity.Image, filename string) (*entity.Mask, error)

	// Close освобождает ресурсы модели
	Close() error
}

// SegmenterFactory создаёт независимый экземпляр сегментатора.
// Вызывается один раз на каждый обработчик пула.
type SegmenterFactory func(ctx context.Context) (Segmenter, error)
