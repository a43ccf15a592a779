// Package cli описывает командную строку lungmask.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lungmask/config"
	app "lungmask/internal/application"
	"lungmask/internal/container"
	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
)

// Коды завершения процесса.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitModel       = 3
	ExitUnsupported = 4
)

// InputNotFoundError входной путь не существует.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string { return "File not found: " + e.Path }

func (e *InputNotFoundError) Unwrap() error { return entity.ErrInputNotFound }

// ExitCode сопоставляет ошибку коду завершения.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, entity.ErrInputNotFound),
		errors.Is(err, entity.ErrModelPathConflict),
		errors.Is(err, entity.ErrUnknownModel),
		errors.Is(err, entity.ErrInvalidOption):
		return ExitUsage
	case errors.Is(err, entity.ErrModelUnavailable):
		return ExitModel
	case errors.Is(err, entity.ErrUnsupportedFormat):
		return ExitUnsupported
	default:
		return ExitFailure
	}
}

type runFunc func(ctx context.Context, cfg *config.Config, run entity.RunConfig, input, output string, stderr io.Writer) error

type options struct {
	model      string
	modelPath  string
	cpu        bool
	noPost     bool
	batchSize  int
	pool       int
	noProgress bool
	removeMeta bool

	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand создаёт корневую команду.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, execute)
}

func newRootCommand(version string, run runFunc) *cobra.Command {
	var opts options

	names := make([]string, 0, len(entity.ModelNames()))
	for _, m := range entity.ModelNames() {
		names = append(names, string(m))
	}

	cmd := &cobra.Command{
		Use:     "lungmask <input> <output>",
		Short:   "Lung segmentation in CT scans",
		Long:    "Segments lungs (or lung lobes) in a CT volume or in every file of a directory and writes the label mask.",
		Version: version,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", entity.ErrInvalidOption, err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := args[0], args[1]
			if err := app.CheckInput(input); err != nil {
				if errors.Is(err, entity.ErrInputNotFound) {
					return &InputNotFoundError{Path: input}
				}
				return err
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = opts.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = opts.logFormat
			}
			if !cmd.Flags().Changed("batchsize") && cfg.Inference.BatchSize > 0 {
				opts.batchSize = cfg.Inference.BatchSize
			}

			rc, err := opts.runConfig()
			if err != nil {
				return err
			}

			logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			ctx := ctxlog.WithLogger(cmd.Context(), logger)

			return run(ctx, cfg, rc, input, output, cmd.ErrOrStderr())
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", entity.ErrInvalidOption, err)
	})

	f := cmd.Flags()
	f.StringVar(&opts.model, "modelname", string(entity.DefaultModel), "model to use for segmentation ("+strings.Join(names, ", ")+")")
	f.StringVar(&opts.modelPath, "modelpath", "", "path to the model weights; default weights are used if not set")
	f.BoolVar(&opts.cpu, "cpu", false, "force using the CPU even when a GPU is available")
	f.BoolVar(&opts.noPost, "nopostprocess", false, "deactivate postprocessing (removal of unconnected components and hole filling)")
	f.IntVar(&opts.batchSize, "batchsize", entity.DefaultBatchSize, "number of slices processed simultaneously; lower for less memory use")
	f.IntVar(&opts.pool, "pool", entity.DefaultPool, "number of workers processing files of a directory in parallel")
	f.BoolVar(&opts.noProgress, "noprogress", false, "no progress bar display")
	f.BoolVar(&opts.removeMeta, "removemetadata", false, "do not keep study/patient related metadata of the input")
	f.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file (default $LUNGMASK_CONFIG)")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	return cmd
}

func (o options) runConfig() (entity.RunConfig, error) {
	model, err := entity.ParseModelName(o.model)
	if err != nil {
		return entity.RunConfig{}, err
	}
	rc := entity.RunConfig{
		Model:          model,
		ModelPath:      o.modelPath,
		ForceCPU:       o.cpu,
		NoPostprocess:  o.noPost,
		BatchSize:      o.batchSize,
		Pool:           o.pool,
		NoProgress:     o.noProgress,
		RemoveMetadata: o.removeMeta,
	}
	return rc, rc.Validate()
}

func execute(ctx context.Context, cfg *config.Config, run entity.RunConfig, input, output string, stderr io.Writer) error {
	c, err := container.New(cfg, run, stderr)
	if err != nil {
		return err
	}
	report, err := c.RunService.Run(ctx, input, output)
	ctxlog.FromContext(ctx).Debug("run finished",
		"processed", report.Processed, "skipped", report.Skipped, "duration", report.Duration)
	return err
}
