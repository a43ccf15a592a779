package entity

import (
	"fmt"
	"time"
)

// Значения по умолчанию для параметров запуска.
const (
	DefaultBatchSize = 20
	DefaultPool      = 0
)

// RunConfig неизменяемый набор параметров запуска.
// Передаётся по значению в каждую обработку образца.
type RunConfig struct {
	Model          ModelName
	ModelPath      string // пусто — веса по умолчанию
	ForceCPU       bool
	NoPostprocess  bool
	BatchSize      int
	Pool           int
	NoProgress     bool
	RemoveMetadata bool
}

// DefaultRunConfig возвращает параметры по умолчанию.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Model:     DefaultModel,
		BatchSize: DefaultBatchSize,
		Pool:      DefaultPool,
	}
}

// Validate проверяет совместимость параметров.
func (c RunConfig) Validate() error {
	if _, err := ParseModelName(string(c.Model)); err != nil {
		return err
	}
	if c.Model.IsComposite() && c.ModelPath != "" {
		return ErrModelPathConflict
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batchsize must be positive, got %d", ErrInvalidOption, c.BatchSize)
	}
	return nil
}

// EffectiveBatchSize возвращает размер пакета с учётом --cpu.
func (c RunConfig) EffectiveBatchSize() int {
	if c.ForceCPU {
		return 1
	}
	return c.BatchSize
}

// KeepMetadata сообщает, нужно ли переносить метаданные пациента.
func (c RunConfig) KeepMetadata() bool {
	return !c.RemoveMetadata
}

// Postprocess сообщает, включена ли очистка маски.
func (c RunConfig) Postprocess() bool {
	return !c.NoPostprocess
}

// Parallel сообщает, нужен ли пул обработчиков.
func (c RunConfig) Parallel() bool {
	return c.Pool > 1
}

// Sample пара входного и выходного файла.
type Sample struct {
	Input  string
	Output string
}

// RunReport итог запуска.
type RunReport struct {
	Total     int
	Processed int
	Skipped   int
	Duration  time.Duration
	Err       error
}

// Succeeded сообщает, завершился ли запуск без ошибок.
func (r RunReport) Succeeded() bool {
	return r.Err == nil
}
