package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// RunService управляет обработкой файла или каталога.
type RunService struct {
	samples      *SampleService
	newSegmenter port.SegmenterFactory
	notifier     port.Notifier
	progress     port.ProgressFactory
	cfg          entity.RunConfig
}

// NewRunService создаёт сервис запуска. notifier и progress могут быть nil.
func NewRunService(samples *SampleService, newSegmenter port.SegmenterFactory, notifier port.Notifier, progress port.ProgressFactory, cfg entity.RunConfig) *RunService {
	return &RunService{
		samples:      samples,
		newSegmenter: newSegmenter,
		notifier:     notifier,
		progress:     progress,
		cfg:          cfg,
	}
}

// Run обрабатывает входной путь и возвращает итог.
func (s *RunService) Run(ctx context.Context, input, output string) (entity.RunReport, error) {
	started := time.Now()
	report, err := s.run(ctx, input, output)
	report.Duration = time.Since(started)
	report.Err = err
	report.Skipped = report.Total - report.Processed

	if s.notifier != nil {
		if nerr := s.notifier.Notify(ctx, input, report); nerr != nil {
			ctxlog.FromContext(ctx).Warn("notification failed", "error", nerr)
		}
	}
	return report, err
}

func (s *RunService) run(ctx context.Context, input, output string) (entity.RunReport, error) {
	log := ctxlog.FromContext(ctx)

	if err := s.cfg.Validate(); err != nil {
		return entity.RunReport{}, err
	}

	samples, dirMode, err := ResolveSamples(input, output)
	if err != nil {
		return entity.RunReport{}, err
	}
	report := entity.RunReport{Total: len(samples)}
	log.Debug("resolved input", "input", input, "samples", len(samples), "directory", dirMode)

	if dirMode && s.cfg.Parallel() {
		processed, err := s.runPool(ctx, samples)
		report.Processed = processed
		return report, err
	}

	processed, err := s.runSequential(ctx, samples)
	report.Processed = processed
	return report, err
}

func (s *RunService) runSequential(ctx context.Context, samples []entity.Sample) (int, error) {
	log := ctxlog.FromContext(ctx)
	if len(samples) == 0 {
		return 0, nil
	}

	log.Info("Load model", "model", s.cfg.Model)
	seg, err := s.newSegmenter(ctx)
	if err != nil {
		return 0, fmt.Errorf("load model: %w", err)
	}
	defer seg.Close()

	log.Info("Infer lungmask")
	processed := 0
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := s.samples.Process(ctx, seg, sample); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// runPool раздаёт образцы обработчикам. У каждого обработчика свой
// сегментатор. Первая ошибка отменяет контекст: ещё не начатые образцы
// пропускаются, начатые дорабатывают.
func (s *RunService) runPool(ctx context.Context, samples []entity.Sample) (int, error) {
	log := ctxlog.FromContext(ctx)
	workers := s.cfg.Pool
	if workers > len(samples) {
		workers = len(samples)
	}
	if workers == 0 {
		return 0, nil
	}

	var bar port.Progress
	if s.progress != nil {
		bar = s.progress(len(samples), "samples")
		defer bar.Finish()
	}

	log.Info("Load model", "model", s.cfg.Model, "workers", workers)
	log.Info("Infer lungmask")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan entity.Sample)
	var processed atomic.Int64

	g.Go(func() error {
		defer close(jobs)
		for _, sample := range samples {
			select {
			case jobs <- sample:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		wlog := log.With("worker", w)
		g.Go(func() error {
			wctx := ctxlog.WithLogger(gctx, wlog)
			seg, err := s.newSegmenter(wctx)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			defer seg.Close()

			for sample := range jobs {
				if err := wctx.Err(); err != nil {
					return nil
				}
				if err := s.samples.Process(wctx, seg, sample); err != nil {
					return err
				}
				processed.Add(1)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return int(processed.Load()), err
}
