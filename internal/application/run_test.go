package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"lungmask/internal/domain/entity"
)

func writeInputs(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "series"), 0o755))
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("slice%03d.dcm", i))
		require.NoError(t, os.WriteFile(name, make([]byte, i+1), 0o644))
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func newTestRun(cfg entity.RunConfig, reader *fakeReader, writer *fakeWriter, counter *segmenterCounter, notifier *recordingNotifier) *RunService {
	samples := NewSampleService(reader, writer, cfg)
	if notifier == nil {
		return NewRunService(samples, counter.factory, nil, nil, cfg)
	}
	return NewRunService(samples, counter.factory, notifier, nil, cfg)
}

func TestRunService_SingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "ct.dcm")
	require.NoError(t, os.WriteFile(in, []byte("abc"), 0o644))
	out := filepath.Join(dir, "mask.dcm")

	reader, writer, counter := &fakeReader{}, newFakeWriter(), &segmenterCounter{}
	svc := newTestRun(entity.DefaultRunConfig(), reader, writer, counter, nil)

	report, err := svc.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, int32(1), counter.created.Load())
	require.True(t, counter.all[0].closed.Load())

	res := writer.written[out]
	require.NotNil(t, res)
	require.Equal(t, [3]float64{1, 2, 3}, res.Geometry.Origin)
	require.Equal(t, [3]float64{0.5, 0.5, 2}, res.Geometry.Spacing)
	// значения вокселей входа не попадают в маску
	for _, v := range res.Voxels {
		require.Contains(t, []float32{0, 1}, v)
	}

	require.Equal(t, "Doe^Jane", res.Metadata["0010|0010"])
	require.Equal(t, "1", res.Metadata[entity.TagWindowCenter])
	require.Equal(t, "2", res.Metadata[entity.TagWindowWidth])
	require.Equal(t, entity.SeriesDescription, res.Metadata[entity.TagSeriesDescription])
	_, copied := res.Metadata["0028|0030"]
	require.False(t, copied)

	require.True(t, writer.opts[out].KeepOriginalUID)
	require.Equal(t, in, writer.opts[out].SourcePath)
	require.True(t, reader.calls[0].ReadMetadata)
}

func TestRunService_RemoveMetadata(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "ct.dcm")
	require.NoError(t, os.WriteFile(in, []byte("abc"), 0o644))
	out := filepath.Join(dir, "mask.dcm")

	cfg := entity.DefaultRunConfig()
	cfg.RemoveMetadata = true
	reader, writer, counter := &fakeReader{}, newFakeWriter(), &segmenterCounter{}
	svc := newTestRun(cfg, reader, writer, counter, nil)

	_, err := svc.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Empty(t, writer.written[out].Metadata)
	require.False(t, writer.opts[out].KeepOriginalUID)
	require.False(t, reader.calls[0].ReadMetadata)
}

func TestRunService_DirectorySequential(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeInputs(t, in, 5)

	reader, writer, counter := &fakeReader{}, newFakeWriter(), &segmenterCounter{}
	notifier := &recordingNotifier{}
	svc := newTestRun(entity.DefaultRunConfig(), reader, writer, counter, notifier)

	report, err := svc.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 5, report.Total)
	require.Equal(t, 5, report.Processed)
	require.Equal(t, int32(1), counter.created.Load())

	inNames := listNames(t, in)
	require.Equal(t, []string{"slice000.dcm", "slice001.dcm", "slice002.dcm", "slice003.dcm", "slice004.dcm"}, listNames(t, out))
	require.Len(t, inNames, 6)

	require.Len(t, notifier.reports, 1)
	require.True(t, notifier.reports[0].Succeeded())
}

func TestRunService_DirectoryPoolMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeInputs(t, in, 9)

	seqWriter := newFakeWriter()
	_, err := newTestRun(entity.DefaultRunConfig(), &fakeReader{}, seqWriter, &segmenterCounter{}, nil).
		Run(context.Background(), in, filepath.Join(dir, "seq"))
	require.NoError(t, err)

	cfg := entity.DefaultRunConfig()
	cfg.Pool = 4
	poolWriter, counter := newFakeWriter(), &segmenterCounter{}
	report, err := newTestRun(cfg, &fakeReader{}, poolWriter, counter, nil).
		Run(context.Background(), in, filepath.Join(dir, "pool"))
	require.NoError(t, err)
	require.Equal(t, 9, report.Processed)
	require.Equal(t, int32(4), counter.created.Load())
	for _, s := range counter.all {
		require.True(t, s.closed.Load())
	}

	require.Equal(t, listNames(t, filepath.Join(dir, "seq")), listNames(t, filepath.Join(dir, "pool")))
	for path, img := range seqWriter.written {
		other := poolWriter.written[filepath.Join(dir, "pool", filepath.Base(path))]
		require.NotNil(t, other)
		require.Equal(t, img.Voxels, other.Voxels)
	}
}

func TestRunService_PoolFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeInputs(t, in, 6)

	cfg := entity.DefaultRunConfig()
	cfg.Pool = 2
	notifier := &recordingNotifier{}
	svc := newTestRun(cfg, &fakeReader{failOn: "slice002.dcm"}, newFakeWriter(), &segmenterCounter{}, notifier)

	report, err := svc.Run(context.Background(), in, filepath.Join(dir, "out"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "slice002.dcm")
	require.Less(t, report.Processed, 6)
	require.Equal(t, 6-report.Processed, report.Skipped)
	require.False(t, notifier.reports[0].Succeeded())
}

func TestRunService_SequentialStopsAtFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeInputs(t, in, 4)

	svc := newTestRun(entity.DefaultRunConfig(), &fakeReader{failOn: "slice001.dcm"}, newFakeWriter(), &segmenterCounter{}, nil)
	report, err := svc.Run(context.Background(), in, filepath.Join(dir, "out"))
	require.Error(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, []string{"slice000.dcm"}, listNames(t, filepath.Join(dir, "out")))
}

func TestRunService_Preconditions(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	counter := &segmenterCounter{}
	svc := newTestRun(entity.DefaultRunConfig(), &fakeReader{}, newFakeWriter(), counter, nil)
	_, err := svc.Run(context.Background(), filepath.Join(dir, "missing"), out)
	require.ErrorIs(t, err, entity.ErrInputNotFound)

	in := filepath.Join(dir, "in")
	writeInputs(t, in, 2)
	cfg := entity.DefaultRunConfig()
	cfg.Model = entity.ModelLTRCLobesR231
	cfg.ModelPath = filepath.Join(dir, "weights.onnx")
	svc = newTestRun(cfg, &fakeReader{}, newFakeWriter(), counter, nil)
	_, err = svc.Run(context.Background(), in, out)
	require.ErrorIs(t, err, entity.ErrModelPathConflict)

	_, err = os.Stat(out)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, int32(0), counter.created.Load())
}
