// internal/records/verify.go
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"casebook/internal/apperrors"
	"casebook/internal/fields"
	"casebook/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VerifyDocument validates a reviewer's corrections, merges them into the
// document's verified set and copies them onto the owning case. Both writes
// commit together or not at all. A concurrent verification that committed
// first makes this one fail with apperrors.ErrConflict.
func (s *Service) VerifyDocument(ctx context.Context, userID, documentID uint, payload map[string]json.RawMessage) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OcrStatus != models.OcrStatusCompleted {
		return nil, apperrors.ErrOCRNotCompleted
	}

	incoming, err := fields.Parse(payload)
	if err != nil {
		return nil, err
	}
	merged := fields.Merge(doc.VerifiedFields.Data(), incoming)

	if err := s.applyVerification(ctx, doc, incoming, merged); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("verify document %d: %w", documentID, err)
	}

	doc.VerifiedFields = datatypes.NewJSONType(merged)
	doc.IsVerified = true
	doc.Revision++
	return doc, nil
}

// applyVerification writes the merged set to the document, guarded by the
// revision doc was read at, and the incoming fields to the case.
func (s *Service) applyVerification(ctx context.Context, doc *models.Document, incoming, merged fields.Set) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ? AND revision = ?", doc.ID, doc.Revision).
			Updates(map[string]any{
				"verified_fields": datatypes.NewJSONType(merged),
				"is_verified":     true,
				"revision":        gorm.Expr("revision + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConflict
		}

		return tx.Model(&models.Case{}).
			Where("id = ?", doc.CaseID).
			Updates(incoming.CaseColumns()).Error
	})
}
