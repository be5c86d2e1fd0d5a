// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"casebook/internal/apperrors"
	"casebook/internal/fields"
	"casebook/internal/ocr"
	"casebook/internal/storage"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP responses. Anything unrecognised is
// attached to the context for the request logger and answered with 500.
func respondError(c *gin.Context, err error) {
	var verr *fields.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}

	var upstream *ocr.UpstreamError
	if errors.As(err, &upstream) {
		status := http.StatusBadGateway
		if upstream.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "OCR worker request failed", "detail": upstream.Detail})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, apperrors.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, apperrors.ErrNoFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Document was modified concurrently, reload and retry"})
	case errors.Is(err, apperrors.ErrOCRNotCompleted), errors.Is(err, apperrors.ErrOCRNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnreachableFile), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document file not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
