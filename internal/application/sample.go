package app

import (
	"context"
	"fmt"
	"path/filepath"

	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// SampleService обрабатывает один входной файл.
type SampleService struct {
	reader port.ImageReader
	writer port.ImageWriter
	cfg    entity.RunConfig
}

// NewSampleService создаёт сервис обработки образца.
func NewSampleService(reader port.ImageReader, writer port.ImageWriter, cfg entity.RunConfig) *SampleService {
	return &SampleService{reader: reader, writer: writer, cfg: cfg}
}

// Process загружает изображение, строит маску и сохраняет её.
func (s *SampleService) Process(ctx context.Context, seg port.Segmenter, sample entity.Sample) error {
	log := ctxlog.FromContext(ctx)
	keep := s.cfg.KeepMetadata()

	input, err := s.reader.Read(ctx, sample.Input, port.ReadOptions{ReadMetadata: keep})
	if err != nil {
		return fmt.Errorf("load %s: %w", sample.Input, err)
	}

	mask, err := seg.Apply(ctx, input, filepath.Base(sample.Input))
	if err != nil {
		return fmt.Errorf("infer %s: %w", sample.Input, err)
	}

	result := entity.NewImageFromMask(mask)
	if err := result.CopyInformation(input); err != nil {
		return fmt.Errorf("infer %s: %w", sample.Input, err)
	}

	opts := port.WriteOptions{SourcePath: sample.Input}
	if keep {
		opts.KeepOriginalUID = true
		ApplyMetadataPolicy(input, result)
	}

	log.Info("Save result to", "output", sample.Output, "input", sample.Input, "labelled", mask.Count())
	if err := s.writer.Write(ctx, sample.Output, result, opts); err != nil {
		return fmt.Errorf("save %s: %w", sample.Output, err)
	}
	return nil
}
