package port

import (
	"context"

	"lungmask/internal/domain/entity"
)

// Notifier интерфейс уведомления о завершении запуска
type Notifier interface {
	// Notify отправляет итог запуска
	Notify(ctx context.Context, input string, report entity.RunReport) error
}
