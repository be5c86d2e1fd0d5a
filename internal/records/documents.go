// internal/records/documents.go
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casebook/internal/apperrors"
	"casebook/internal/models"
	"casebook/internal/ocr"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateDocument attaches doc to a case owned by userID. The document always
// starts PENDING and unverified.
func (s *Service) CreateDocument(ctx context.Context, userID, caseID uint, doc *models.Document) error {
	if err := s.CheckCaseOwner(ctx, userID, caseID); err != nil {
		return err
	}

	doc.CaseID = caseID
	doc.OcrStatus = models.OcrStatusPending
	doc.OcrStartedAt = nil
	doc.IsVerified = false
	doc.Revision = 0
	if doc.Type == "" {
		doc.Type = models.DocumentTypeOther
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument resolves document -> case -> user. A missing document is
// ErrNotFound, someone else's document is ErrForbidden.
func (s *Service) GetDocument(ctx context.Context, userID, documentID uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).First(&doc, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	var owner models.Case
	err = s.db.WithContext(ctx).Select("id", "user_id").First(&owner, doc.CaseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document case: %w", err)
	}
	if owner.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &doc, nil
}

// ClaimOCR marks a pending document as being processed. Only one caller can
// claim a document; later callers get ErrOCRNotPending.
func (s *Service) ClaimOCR(ctx context.Context, documentID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND ocr_status = ? AND ocr_started_at IS NULL", documentID, models.OcrStatusPending).
		Update("ocr_started_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("claim document %d: %w", documentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOCRNotPending
	}
	return nil
}

// CompleteOCR records a successful analysis. Keys absent from the worker's
// response are left untouched; keys sent as null are cleared.
func (s *Service) CompleteOCR(ctx context.Context, documentID uint, res *ocr.AnalyzeResult) error {
	updates := map[string]any{"ocr_status": models.OcrStatusCompleted}
	if res.Has(ocr.KeyRawText) {
		updates["raw_text"] = res.RawText
	}
	if res.Has(ocr.KeySchemaType) {
		updates["schema_type"] = res.SchemaType
	}
	if res.Has(ocr.KeyParsedFields) {
		updates["parsed_fields"] = jsonOrNil(res.ParsedFields)
	}
	if res.Has(ocr.KeyOcrMeta) {
		updates["ocr_meta"] = jsonOrNil(res.OcrMeta)
	}
	return s.transitionOCR(ctx, documentID, updates)
}

// FailOCR marks a pending document FAILED.
func (s *Service) FailOCR(ctx context.Context, documentID uint) error {
	return s.transitionOCR(ctx, documentID, map[string]any{"ocr_status": models.OcrStatusFailed})
}

// transitionOCR only ever moves a document out of PENDING.
func (s *Service) transitionOCR(ctx context.Context, documentID uint, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND ocr_status = ?", documentID, models.OcrStatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update document %d: %w", documentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOCRNotPending
	}
	return nil
}

func jsonOrNil(raw []byte) any {
	if raw == nil {
		return nil
	}
	return datatypes.JSON(raw)
}
