package inference

import (
	"context"
	"errors"
	"fmt"

	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// Options параметры вывода.
type Options struct {
	BatchSize   int
	Postprocess bool
	Progress    port.ProgressFactory // nil — без индикатора
}

// Inferer строит маску лёгких по срезам изображения.
// Если задана модель дозаполнения, её разметка дополняет основную:
// воксели лёгкого без доли присоединяются к соседней доле.
type Inferer struct {
	model SliceModel
	fill  SliceModel
	opts  Options
}

// NewInferer создаёт сегментатор. fill может быть nil.
func NewInferer(model, fill SliceModel, opts Options) *Inferer {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	return &Inferer{model: model, fill: fill, opts: opts}
}

// Apply размечает изображение; маска совпадает с ним по размеру и ориентации.
func (in *Inferer) Apply(ctx context.Context, img *entity.Image, filename string) (*entity.Mask, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)

	vol, flips := canonical(img)

	mask, err := in.segment(ctx, in.model, vol, img.Size, filename)
	if err != nil {
		return nil, err
	}

	if in.fill != nil {
		log.Debug("apply fill model", "file", filename)
		fill, err := in.segment(ctx, in.fill, vol, img.Size, filename)
		if err != nil {
			return nil, fmt.Errorf("fill model: %w", err)
		}
		spare := uint8(in.model.Classes())
		for i, l := range fill.Labels {
			switch {
			case l == 0:
				mask.Labels[i] = 0
			case mask.Labels[i] == 0:
				mask.Labels[i] = spare
			}
		}
		if in.opts.Postprocess {
			Postprocess(mask, spare)
		} else {
			for i, l := range mask.Labels {
				if l == spare {
					mask.Labels[i] = 0
				}
			}
		}
	} else if in.opts.Postprocess {
		Postprocess(mask)
	}

	flipLabels(mask.Labels, img.Size, flips)
	return mask, nil
}

// segment прогоняет срезы пакетами размера BatchSize.
func (in *Inferer) segment(ctx context.Context, model SliceModel, vol []float32, size [3]int, filename string) (*entity.Mask, error) {
	nx, ny, nz := size[0], size[1], size[2]
	plane := nx * ny
	const px = Resolution * Resolution
	classes := model.Classes()

	batches := (nz + in.opts.BatchSize - 1) / in.opts.BatchSize
	var bar port.Progress
	if in.opts.Progress != nil {
		bar = in.opts.Progress(batches, filename)
		defer bar.Finish()
	}

	mask := entity.NewMask(size)
	boxes := make([]box, nz)
	for z := 0; z < nz; z++ {
		boxes[z] = bodyBox(vol[z*plane:(z+1)*plane], nx, ny)
	}

	input := make([]float32, in.opts.BatchSize*px)
	labels := make([]uint8, px)
	for start := 0; start < nz; start += in.opts.BatchSize {
		n := min(in.opts.BatchSize, nz-start)
		for k := 0; k < n; k++ {
			z := start + k
			cropResize(vol[z*plane:(z+1)*plane], nx, boxes[z], Resolution, Resolution, input[k*px:(k+1)*px])
		}

		out, err := model.Predict(ctx, input[:n*px], n)
		if err != nil {
			return nil, err
		}
		if len(out) != n*classes*px {
			return nil, errors.New("model output has unexpected size")
		}

		for k := 0; k < n; k++ {
			z := start + k
			argmax(out[k*classes*px:(k+1)*classes*px], classes, px, labels)
			pasteLabels(labels, Resolution, Resolution, mask.Labels[z*plane:(z+1)*plane], nx, boxes[z])
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return mask, nil
}

// Close освобождает модели.
func (in *Inferer) Close() error {
	err := in.model.Close()
	if in.fill != nil {
		err = errors.Join(err, in.fill.Close())
	}
	return err
}

var _ port.Segmenter = (*Inferer)(nil)
