package inference

import "context"

// SliceModel сеть, размечающая пакет срезов Resolution x Resolution.
type SliceModel interface {
	// Predict принимает n срезов [n][1][H][W] и возвращает отклики [n][classes][H][W]
	Predict(ctx context.Context, input []float32, n int) ([]float32, error)

	// Classes число выходных каналов
	Classes() int

	Close() error
}
