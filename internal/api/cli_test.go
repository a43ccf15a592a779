package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lungmask/config"
	"lungmask/internal/domain/entity"
)

type captured struct {
	called bool
	run    entity.RunConfig
	cfg    *config.Config
	input  string
	output string
}

func (c *captured) fn(ctx context.Context, cfg *config.Config, run entity.RunConfig, input, output string, stderr io.Writer) error {
	c.called = true
	c.cfg, c.run, c.input, c.output = cfg, run, input, output
	return nil
}

func runCLI(t *testing.T, args ...string) (*captured, string, error) {
	t.Helper()
	t.Setenv("LUNGMASK_CONFIG", "")
	t.Setenv("LUNGMASK_LOG_LEVEL", "")
	t.Setenv("LUNGMASK_LOG_FORMAT", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	c := &captured{}
	cmd := newRootCommand("1.2.3", c.fn)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return c, out.String(), err
}

func existingInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ct.mha")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestRoot_Defaults(t *testing.T) {
	in := existingInput(t)
	c, _, err := runCLI(t, in, "mask.mha")
	require.NoError(t, err)
	require.True(t, c.called)
	require.Equal(t, in, c.input)
	require.Equal(t, "mask.mha", c.output)
	if diff := cmp.Diff(entity.DefaultRunConfig(), c.run); diff != "" {
		t.Fatalf("run config mismatch (-want +got):\n%s", diff)
	}
}

func TestRoot_Flags(t *testing.T) {
	in := existingInput(t)
	c, _, err := runCLI(t, in, "out",
		"--modelname", "LTRCLobes",
		"--modelpath", "/weights/lobes.onnx",
		"--cpu", "--nopostprocess", "--noprogress", "--removemetadata",
		"--batchsize", "5", "--pool", "3",
		"--log-level", "debug",
	)
	require.NoError(t, err)

	want := entity.RunConfig{
		Model:          entity.ModelLTRCLobes,
		ModelPath:      "/weights/lobes.onnx",
		ForceCPU:       true,
		NoPostprocess:  true,
		BatchSize:      5,
		Pool:           3,
		NoProgress:     true,
		RemoveMetadata: true,
	}
	if diff := cmp.Diff(want, c.run); diff != "" {
		t.Fatalf("run config mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "debug", c.cfg.Log.Level)
}

func TestRoot_CPUForcesSingleSliceBatches(t *testing.T) {
	in := existingInput(t)
	c, _, err := runCLI(t, in, "out", "--cpu", "--batchsize", "50")
	require.NoError(t, err)
	require.Equal(t, 50, c.run.BatchSize)
	require.Equal(t, 1, c.run.EffectiveBatchSize())
}

func TestRoot_BatchSizeFromConfig(t *testing.T) {
	in := existingInput(t)
	cfgPath := filepath.Join(t.TempDir(), "lungmask.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("inference:\n  batchSize: 7\n"), 0o644))

	c, _, err := runCLI(t, in, "out", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, 7, c.run.BatchSize)

	c, _, err = runCLI(t, in, "out", "--config", cfgPath, "--batchsize", "2")
	require.NoError(t, err)
	require.Equal(t, 2, c.run.BatchSize)
}

func TestRoot_Version(t *testing.T) {
	c, out, err := runCLI(t, "--version")
	require.NoError(t, err)
	require.False(t, c.called)
	require.Equal(t, "1.2.3\n", out)
}

func TestRoot_Errors(t *testing.T) {
	in := existingInput(t)
	missing := filepath.Join(t.TempDir(), "missing.dcm")

	tests := []struct {
		name string
		args []string
		want error
		code int
	}{
		{"missing input", []string{missing, "out"}, entity.ErrInputNotFound, ExitUsage},
		{"modelpath with composite", []string{in, "out", "--modelname", "LTRCLobes_R231", "--modelpath", "w.onnx"}, entity.ErrModelPathConflict, ExitUsage},
		{"unknown model", []string{in, "out", "--modelname", "R999"}, entity.ErrUnknownModel, ExitUsage},
		{"bad batch size", []string{in, "out", "--batchsize", "0"}, entity.ErrInvalidOption, ExitUsage},
		{"unknown flag", []string{in, "out", "--gpu"}, entity.ErrInvalidOption, ExitUsage},
		{"missing output", []string{in}, entity.ErrInvalidOption, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, err := runCLI(t, tt.args...)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.code, ExitCode(err))
			require.False(t, c.called)
		})
	}

	_, _, err := runCLI(t, missing, "out")
	require.EqualError(t, err, "File not found: "+missing)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, ExitOK, ExitCode(nil))
	require.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	require.Equal(t, ExitModel, ExitCode(fmt.Errorf("load model: %w", entity.ErrModelUnavailable)))
	require.Equal(t, ExitUnsupported, ExitCode(fmt.Errorf("save x: %w", entity.ErrUnsupportedFormat)))
}
