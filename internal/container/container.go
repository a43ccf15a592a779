package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"lungmask/config"
	app "lungmask/internal/application"
	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
	"lungmask/internal/infrastructure/imageio"
	"lungmask/internal/infrastructure/inference"
	"lungmask/internal/infrastructure/modelstore"
	"lungmask/internal/infrastructure/notify"
	"lungmask/internal/infrastructure/progress"
)

type Container struct {
	RunService *app.RunService
	Models     *modelstore.Store
	Notifier   port.Notifier
}

// New собирает сервисы приложения. progressW — куда рисовать индикаторы.
func New(cfg *config.Config, run entity.RunConfig, progressW io.Writer) (*Container, error) {
	dir := cfg.ModelsDir
	if dir == "" {
		var err error
		if dir, err = modelstore.DefaultDir(); err != nil {
			return nil, fmt.Errorf("models dir: %w", err)
		}
	}

	sources := make(map[entity.ModelName]modelstore.Source, len(cfg.Models))
	for name, src := range cfg.Models {
		model, err := entity.ParseModelName(name)
		if err != nil {
			return nil, fmt.Errorf("config models: %w", err)
		}
		sources[model] = modelstore.Source{Path: src.Path, URL: src.URL, SHA256: src.SHA256}
	}
	models := modelstore.New(dir, sources, &http.Client{Timeout: 30 * time.Minute})

	var notifier port.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		notifier = tg
	}

	var bars port.ProgressFactory
	if !run.NoProgress {
		bars = progress.NewFactory(progressW)
	}

	// В пуле построчные индикаторы перемешались бы, поэтому остаётся только общий.
	sliceBars := bars
	if run.Parallel() {
		sliceBars = nil
	}

	store := imageio.NewStore()
	samples := app.NewSampleService(store, store, run)
	newSegmenter := segmenterFactory(models, cfg.ONNXRuntime.Library, cfg.Inference.Threads, run, sliceBars)

	return &Container{
		RunService: app.NewRunService(samples, newSegmenter, notifier, bars, run),
		Models:     models,
		Notifier:   notifier,
	}, nil
}

func segmenterFactory(locator port.ModelLocator, library string, threads int, run entity.RunConfig, bars port.ProgressFactory) port.SegmenterFactory {
	return func(ctx context.Context) (port.Segmenter, error) {
		log := ctxlog.FromContext(ctx)

		spec := run.Model.Spec()
		path := run.ModelPath
		if path == "" {
			var err error
			if path, err = locator.Locate(ctx, spec.Name); err != nil {
				return nil, err
			}
		}
		fillSpec, composite := run.Model.FillModel()
		var fillPath string
		if composite {
			var err error
			if fillPath, err = locator.Locate(ctx, fillSpec.Name); err != nil {
				return nil, err
			}
		}

		if err := inference.InitRuntime(library); err != nil {
			return nil, fmt.Errorf("%w: onnxruntime: %v", entity.ErrModelUnavailable, err)
		}

		model, err := inference.NewONNXModel(path, inference.ONNXOptions{
			ForceCPU: run.ForceCPU,
			Threads:  threads,
			Classes:  spec.Classes,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
		}
		log.Debug("model loaded", "model", spec.Name, "path", path, "device", model.Device())

		var fill inference.SliceModel
		if composite {
			fm, err := inference.NewONNXModel(fillPath, inference.ONNXOptions{
				ForceCPU: run.ForceCPU,
				Threads:  threads,
				Classes:  fillSpec.Classes,
			})
			if err != nil {
				_ = model.Close()
				return nil, fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
			}
			log.Debug("model loaded", "model", fillSpec.Name, "path", fillPath, "device", fm.Device())
			fill = fm
		}

		return inference.NewInferer(model, fill, inference.Options{
			BatchSize:   run.EffectiveBatchSize(),
			Postprocess: run.Postprocess(),
			Progress:    bars,
		}), nil
	}
}
