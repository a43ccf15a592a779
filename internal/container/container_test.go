package container

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lungmask/config"
	"lungmask/internal/domain/entity"
)

type stubLocator struct {
	asked []entity.ModelName
}

func (l *stubLocator) Locate(ctx context.Context, model entity.ModelName) (string, error) {
	l.asked = append(l.asked, model)
	return "", entity.ErrModelUnavailable
}

func TestNew_WithoutTelegram(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = t.TempDir()

	c, err := New(cfg, entity.DefaultRunConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, c.RunService)
	require.Nil(t, c.Notifier)
	require.Equal(t, cfg.ModelsDir, c.Models.Dir())
}

func TestNew_UnknownModelInConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = t.TempDir()
	cfg.Models["R999"] = config.ModelSource{Path: "/tmp/r999.onnx"}

	_, err := New(cfg, entity.DefaultRunConfig(), &bytes.Buffer{})
	require.ErrorIs(t, err, entity.ErrUnknownModel)
}

func TestSegmenterFactory_MissingWeights(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = t.TempDir()

	c, err := New(cfg, entity.DefaultRunConfig(), &bytes.Buffer{})
	require.NoError(t, err)

	_, err = segmenterFactory(c.Models, "", 0, entity.DefaultRunConfig(), nil)(context.Background())
	require.ErrorIs(t, err, entity.ErrModelUnavailable)
}

func TestSegmenterFactory_CompositeLocatesBoth(t *testing.T) {
	run := entity.DefaultRunConfig()
	run.Model = entity.ModelLTRCLobesR231

	loc := &stubLocator{}
	_, err := segmenterFactory(loc, "", 0, run, nil)(context.Background())
	require.ErrorIs(t, err, entity.ErrModelUnavailable)
	// поиск останавливается на первой недоступной модели
	require.Equal(t, []entity.ModelName{entity.ModelLTRCLobes}, loc.asked)
}
