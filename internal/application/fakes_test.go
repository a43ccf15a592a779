package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

type fakeReader struct {
	failOn string
	calls  []port.ReadOptions
	mu     sync.Mutex
}

func (r *fakeReader) Read(ctx context.Context, path string, opts port.ReadOptions) (*entity.Image, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()

	if r.failOn != "" && filepath.Base(path) == r.failOn {
		return nil, errors.New("broken file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img := entity.NewImage(3, 2, 2)
	img.Geometry = entity.Geometry{
		Origin:    [3]float64{1, 2, 3},
		Spacing:   [3]float64{0.5, 0.5, 2},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	for i := range img.Voxels {
		img.Voxels[i] = float32(len(data) + i)
	}
	if opts.ReadMetadata {
		img.SetMetadata("0010|0010", "Doe^Jane")
		img.SetMetadata("0028|1050", "-600")
		img.SetMetadata("0028|0030", "0.5\\0.5")
	}
	return img, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	written map[string]*entity.Image
	opts    map[string]port.WriteOptions
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: make(map[string]*entity.Image), opts: make(map[string]port.WriteOptions)}
}

func (w *fakeWriter) Write(ctx context.Context, path string, img *entity.Image, opts port.WriteOptions) error {
	w.mu.Lock()
	w.written[path] = img
	w.opts[path] = opts
	w.mu.Unlock()
	return os.WriteFile(path, []byte("mask"), 0o644)
}

// fakeSegmenter помечает воксели с чётным значением.
type fakeSegmenter struct {
	closed atomic.Bool
}

func (s *fakeSegmenter) Apply(ctx context.Context, img *entity.Image, filename string) (*entity.Mask, error) {
	m := entity.NewMask(img.Size)
	for i, v := range img.Voxels {
		if int(v)%2 == 0 {
			m.Labels[i] = 1
		}
	}
	return m, nil
}

func (s *fakeSegmenter) Close() error {
	s.closed.Store(true)
	return nil
}

type segmenterCounter struct {
	created atomic.Int32
	all     []*fakeSegmenter
	mu      sync.Mutex
}

func (c *segmenterCounter) factory(ctx context.Context) (port.Segmenter, error) {
	c.created.Add(1)
	s := &fakeSegmenter{}
	c.mu.Lock()
	c.all = append(c.all, s)
	c.mu.Unlock()
	return s, nil
}

type recordingNotifier struct {
	reports []entity.RunReport
}

func (n *recordingNotifier) Notify(ctx context.Context, input string, report entity.RunReport) error {
	n.reports = append(n.reports, report)
	return nil
}
