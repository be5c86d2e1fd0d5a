// internal/records/cases.go
package records

import (
	"context"
	"errors"
	"fmt"

	"casebook/internal/apperrors"
	"casebook/internal/models"

	"gorm.io/gorm"
)

// CreateCase creates an empty case owned by userID.
func (s *Service) CreateCase(ctx context.Context, userID uint) (*models.Case, error) {
	c := &models.Case{UserID: userID}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

// ListCases returns the user's cases, newest first.
func (s *Service) ListCases(ctx context.Context, userID uint) ([]models.Case, error) {
	cases := []models.Case{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// GetCase loads a case with its documents. Cases owned by someone else are
// reported as not found.
func (s *Service) GetCase(ctx context.Context, userID, caseID uint) (*models.Case, error) {
	var c models.Case
	err := s.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ? AND user_id = ?", caseID, userID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// CheckCaseOwner reports ErrNotFound unless caseID exists and belongs to userID.
func (s *Service) CheckCaseOwner(ctx context.Context, userID, caseID uint) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Case{}).
		Where("id = ? AND user_id = ?", caseID, userID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check case: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteCase removes a case and its documents and returns the storage keys of
// the removed documents so the caller can clean up files.
func (s *Service) DeleteCase(ctx context.Context, userID, caseID uint) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Case
		err := tx.Where("id = ? AND user_id = ?", caseID, userID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Document{}).Where("case_id = ?", c.ID).Pluck("storage_path", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id = ?", c.ID).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete case: %w", err)
	}
	return keys, nil
}
