package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime загружает разделяемую библиотеку onnxruntime один раз на процесс.
func InitRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNXModel сеть сегментации, исполняемая onnxruntime.
type ONNXModel struct {
	session *ort.DynamicAdvancedSession
	input   string
	output  string
	classes int
	device  string
}

// ONNXOptions параметры сессии.
type ONNXOptions struct {
	ForceCPU bool
	Threads  int
	Classes  int // используется, если модель не объявляет число классов
}

// NewONNXModel открывает модель. Без ForceCPU сначала пробует CUDA
// и переходит на CPU, если провайдер недоступен.
func NewONNXModel(path string, opts ONNXOptions) (*ONNXModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model %s: want 1 input and at least 1 output, got %d and %d", path, len(inputs), len(outputs))
	}

	classes := opts.Classes
	if dims := outputs[0].Dimensions; len(dims) == 4 && dims[1] > 0 {
		classes = int(dims[1])
	}
	if classes < 2 {
		return nil, fmt.Errorf("model %s: cannot determine number of classes", path)
	}

	m := &ONNXModel{
		input:   inputs[0].Name,
		output:  outputs[0].Name,
		classes: classes,
	}

	if !opts.ForceCPU {
		sess, err := m.open(path, opts.Threads, true)
		if err == nil {
			m.session, m.device = sess, "cuda"
			return m, nil
		}
	}
	sess, err := m.open(path, opts.Threads, false)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	m.session, m.device = sess, "cpu"
	return m, nil
}

func (m *ONNXModel) open(path string, threads int, cuda bool) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, err
		}
	}
	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, err
		}
		defer cudaOpts.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, err
		}
	}

	return ort.NewDynamicAdvancedSession(path, []string{m.input}, []string{m.output}, options)
}

// Device возвращает устройство исполнения: "cuda" или "cpu".
func (m *ONNXModel) Device() string { return m.device }

// Classes число выходных каналов.
func (m *ONNXModel) Classes() int { return m.classes }

// Predict прогоняет пакет срезов через сеть.
func (m *ONNXModel) Predict(ctx context.Context, input []float32, n int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const px = Resolution * Resolution
	if len(input) != n*px {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), n*px)
	}

	in, err := ort.NewTensor(ort.NewShape(int64(n), 1, Resolution, Resolution), input)
	if err != nil {
		return nil, err
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(m.classes), Resolution, Resolution))
	if err != nil {
		return nil, err
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}

	res := make([]float32, n*m.classes*px)
	copy(res, out.GetData())
	return res, nil
}

// Close освобождает сессию.
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

var _ SliceModel = (*ONNXModel)(nil)
