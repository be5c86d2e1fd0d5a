// internal/ocr/processor.go
package ocr

import (
	"context"
	"io"
	"path"

	"casebook/internal/models"

	"go.uber.org/zap"
)

type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// Files is the subset of document storage the processor needs.
type Files interface {
	Stat(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	LocalPath(key string) (string, bool)
}

// Recorder persists the outcome of one OCR attempt.
type Recorder interface {
	CompleteOCR(ctx context.Context, documentID uint, res *AnalyzeResult) error
	FailOCR(ctx context.Context, documentID uint) error
}

// Processor runs one best-effort OCR attempt per call and records the outcome
// on the document. It never returns an error; failures end as FAILED.
type Processor struct {
	analyzer   Analyzer
	files      Files
	recorder   Recorder
	uploadOnly bool
	log        *zap.Logger
}

func NewProcessor(analyzer Analyzer, files Files, recorder Recorder, uploadOnly bool, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		analyzer:   analyzer,
		files:      files,
		recorder:   recorder,
		uploadOnly: uploadOnly,
		log:        log,
	}
}

func (p *Processor) Process(ctx context.Context, documentID uint, key string) models.OcrStatus {
	log := p.log.With(zap.Uint("document_id", documentID))

	if err := p.files.Stat(ctx, key); err != nil {
		log.Warn("document file unreachable, skipping OCR", zap.String("key", key), zap.Error(err))
		return p.fail(ctx, log, documentID)
	}

	res, err := p.analyze(ctx, documentID, key)
	if err != nil {
		log.Warn("OCR analyze failed", zap.Error(err))
		return p.fail(ctx, log, documentID)
	}

	// the outcome is recorded even if the caller has gone away
	if err := p.recorder.CompleteOCR(context.WithoutCancel(ctx), documentID, res); err != nil {
		log.Error("failed to record OCR result", zap.Error(err))
		return p.fail(ctx, log, documentID)
	}

	log.Info("OCR completed", zap.Bool("has_parsed_fields", res.ParsedFields != nil))
	return models.OcrStatusCompleted
}

func (p *Processor) analyze(ctx context.Context, documentID uint, key string) (*AnalyzeResult, error) {
	if !p.uploadOnly {
		if local, ok := p.files.LocalPath(key); ok {
			return p.analyzer.Analyze(ctx, AnalyzeRequest{DocumentID: documentID, FilePath: local})
		}
	}

	f, err := p.files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.analyzer.Analyze(ctx, AnalyzeRequest{DocumentID: documentID, File: f, FileName: path.Base(key)})
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, documentID uint) models.OcrStatus {
	if err := p.recorder.FailOCR(context.WithoutCancel(ctx), documentID); err != nil {
		log.Error("failed to record OCR failure", zap.Error(err))
	}
	return models.OcrStatusFailed
}
