// internal/handlers/cases.go
package handlers

import (
	"net/http"

	"casebook/internal/middleware"
	"casebook/internal/models"
	"casebook/internal/records"
	"casebook/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CaseDetail is a case with its documents; documents is always present, even
// when empty.
type CaseDetail struct {
	models.Case
	Documents []models.Document `json:"documents"`
}

func newCaseDetail(kase *models.Case) CaseDetail {
	docs := kase.Documents
	if docs == nil {
		docs = []models.Document{}
	}
	return CaseDetail{Case: *kase, Documents: docs}
}

func CreateCase(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		kase, err := svc.CreateCase(c.Request.Context(), c.GetUint(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, kase)
	}
}

func ListCases(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cases, err := svc.ListCases(c.Request.Context(), c.GetUint(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cases)
	}
}

func GetCase(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID, ok := paramID(c, "id")
		if !ok {
			return
		}

		kase, err := svc.GetCase(c.Request.Context(), c.GetUint(middleware.UserIDKey), caseID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newCaseDetail(kase))
	}
}

// DeleteCase removes the case and its documents, then the stored files. File
// removal is best-effort: the records are already gone.
func DeleteCase(svc *records.Service, store storage.Store, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID, ok := paramID(c, "id")
		if !ok {
			return
		}

		keys, err := svc.DeleteCase(c.Request.Context(), c.GetUint(middleware.UserIDKey), caseID)
		if err != nil {
			respondError(c, err)
			return
		}

		for _, key := range keys {
			if err := store.Delete(c.Request.Context(), key); err != nil {
				log.Warn("failed to delete stored document", zap.Uint("case_id", caseID), zap.String("key", key), zap.Error(err))
			}
		}
		c.Status(http.StatusNoContent)
	}
}
