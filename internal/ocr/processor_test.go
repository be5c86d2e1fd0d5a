package ocr

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"casebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeFiles struct {
	statErr error
	local   bool
	opened  int
	closed  int
}

func (f *fakeFiles) Stat(ctx context.Context, key string) error { return f.statErr }

func (f *fakeFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.opened++
	return &trackedReader{Reader: strings.NewReader("bytes"), onClose: func() { f.closed++ }}, nil
}

func (f *fakeFiles) LocalPath(key string) (string, bool) {
	if !f.local {
		return "", false
	}
	return "/srv/uploads/" + key, true
}

type trackedReader struct {
	io.Reader
	onClose func()
}

func (r *trackedReader) Close() error {
	r.onClose()
	return nil
}

type fakeAnalyzer struct {
	calls []AnalyzeRequest
	res   *AnalyzeResult
	err   error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	a.calls = append(a.calls, req)
	return a.res, a.err
}

type fakeRecorder struct {
	completed   []uint
	failed      []uint
	completeErr error
	failErr     error
}

func (r *fakeRecorder) CompleteOCR(ctx context.Context, id uint, res *AnalyzeResult) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	r.completed = append(r.completed, id)
	return nil
}

func (r *fakeRecorder) FailOCR(ctx context.Context, id uint) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.failed = append(r.failed, id)
	return nil
}

func TestProcess_Completed_PathMode(t *testing.T) {
	files := &fakeFiles{local: true}
	analyzer := &fakeAnalyzer{res: &AnalyzeResult{}}
	rec := &fakeRecorder{}

	status := NewProcessor(analyzer, files, rec, false, nil).Process(context.Background(), 7, "users/1/cases/1/a.png")

	assert.Equal(t, models.OcrStatusCompleted, status)
	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, "/srv/uploads/users/1/cases/1/a.png", analyzer.calls[0].FilePath)
	assert.Nil(t, analyzer.calls[0].File)
	assert.Equal(t, []uint{7}, rec.completed)
	assert.Empty(t, rec.failed)
	assert.Zero(t, files.opened)
}

func TestProcess_UploadModeClosesFile(t *testing.T) {
	for _, tc := range []struct {
		name       string
		local      bool
		uploadOnly bool
	}{
		{"no local path", false, false},
		{"forced upload", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			files := &fakeFiles{local: tc.local}
			analyzer := &fakeAnalyzer{err: errors.New("boom")}
			rec := &fakeRecorder{}

			status := NewProcessor(analyzer, files, rec, tc.uploadOnly, nil).Process(context.Background(), 3, "k/scan.pdf")

			assert.Equal(t, models.OcrStatusFailed, status)
			require.Len(t, analyzer.calls, 1)
			assert.Equal(t, "scan.pdf", analyzer.calls[0].FileName)
			assert.Empty(t, analyzer.calls[0].FilePath)
			assert.Equal(t, 1, files.opened)
			assert.Equal(t, 1, files.closed)
			assert.Equal(t, []uint{3}, rec.failed)
		})
	}
}

func TestProcess_UnreachableFileSkipsNetwork(t *testing.T) {
	files := &fakeFiles{statErr: errors.New("no such file")}
	analyzer := &fakeAnalyzer{}
	rec := &fakeRecorder{}

	status := NewProcessor(analyzer, files, rec, false, nil).Process(context.Background(), 9, "gone.png")

	assert.Equal(t, models.OcrStatusFailed, status)
	assert.Empty(t, analyzer.calls)
	assert.Equal(t, []uint{9}, rec.failed)
	assert.Empty(t, rec.completed)
}

func TestProcess_WorkerFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &UpstreamError{Detail: "connection refused"}}
	rec := &fakeRecorder{}

	status := NewProcessor(analyzer, &fakeFiles{local: true}, rec, false, nil).Process(context.Background(), 4, "a.png")

	assert.Equal(t, models.OcrStatusFailed, status)
	assert.Equal(t, []uint{4}, rec.failed)
	assert.Empty(t, rec.completed)
}

func TestProcess_CompleteWriteFailureFallsBackToFailed(t *testing.T) {
	rec := &fakeRecorder{completeErr: errors.New("db down")}

	status := NewProcessor(&fakeAnalyzer{res: &AnalyzeResult{}}, &fakeFiles{local: true}, rec, false, nil).
		Process(context.Background(), 5, "a.png")

	assert.Equal(t, models.OcrStatusFailed, status)
	assert.Equal(t, []uint{5}, rec.failed)
}

func TestProcess_FailWriteErrorIsSwallowedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &fakeRecorder{failErr: errors.New("db down")}

	status := NewProcessor(&fakeAnalyzer{err: errors.New("boom")}, &fakeFiles{local: true}, rec, false, zap.New(core)).
		Process(context.Background(), 6, "a.png")

	assert.Equal(t, models.OcrStatusFailed, status)
	entries := logs.FilterMessage("failed to record OCR failure").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, uint64(6), entries[0].ContextMap()["document_id"])
}

func TestProcess_CancelledRequestStillRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen context.Context
	rec := &ctxRecorder{onFail: func(ctx context.Context) { seen = ctx }}

	NewProcessor(&fakeAnalyzer{err: context.Canceled}, &fakeFiles{local: true}, rec, false, nil).Process(ctx, 1, "a.png")

	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
}

type ctxRecorder struct {
	onFail func(context.Context)
}

func (r *ctxRecorder) CompleteOCR(ctx context.Context, id uint, res *AnalyzeResult) error { return nil }

func (r *ctxRecorder) FailOCR(ctx context.Context, id uint) error {
	r.onFail(ctx)
	return nil
}
