package port

import (
	"context"

	"lungmask/internal/domain/entity"
)

// ModelLocator интерфейс поиска весов модели
type ModelLocator interface {
	// Locate возвращает путь к файлу весов, при необходимости скачивая его
	Locate(ctx context.Context, model entity.ModelName) (string, error)
}
