// internal/handlers/documents.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"casebook/internal/apperrors"
	"casebook/internal/fields"
	"casebook/internal/middleware"
	"casebook/internal/models"
	"casebook/internal/records"
	"casebook/internal/storage"
	"casebook/pkg/imaging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead is the body allowance on top of the file size limit for
// multipart framing and the type field.
const multipartOverhead = 1 << 20

// OCRRunner performs one OCR attempt for a stored document.
type OCRRunner interface {
	Process(ctx context.Context, documentID uint, key string) models.OcrStatus
}

// DocumentOCRView is the reviewer's view of a document's extraction.
type DocumentOCRView struct {
	ID             uint             `json:"id"`
	OcrStatus      models.OcrStatus `json:"ocrStatus"`
	RawText        *string          `json:"rawText"`
	SchemaType     *string          `json:"schemaType"`
	ParsedFields   json.RawMessage  `json:"parsedFields"`
	OcrMeta        json.RawMessage  `json:"ocrMeta"`
	VerifiedFields fields.Set       `json:"verifiedFields"`
	ResolvedFields fields.Resolved  `json:"resolvedFields"`
	IsVerified     bool             `json:"isVerified"`
}

type VerifyResponse struct {
	ID             uint       `json:"id"`
	IsVerified     bool       `json:"isVerified"`
	VerifiedFields fields.Set `json:"verifiedFields"`
}

func newDocumentOCRView(doc *models.Document) DocumentOCRView {
	view := DocumentOCRView{
		ID:             doc.ID,
		OcrStatus:      doc.OcrStatus,
		RawText:        doc.RawText,
		SchemaType:     doc.SchemaType,
		VerifiedFields: doc.VerifiedFields.Data(),
		IsVerified:     doc.IsVerified,
	}
	if doc.ParsedFields != nil {
		view.ParsedFields = json.RawMessage(*doc.ParsedFields)
	}
	if doc.OcrMeta != nil {
		view.OcrMeta = json.RawMessage(*doc.OcrMeta)
	}
	view.ResolvedFields = fields.Resolve(view.VerifiedFields, view.ParsedFields)
	return view
}

// UploadDocument stores a scanned document and attaches it to a case as a
// PENDING document. OCR is triggered separately.
func UploadDocument(svc *records.Service, store storage.Store, maxBytes int64, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(middleware.UserIDKey)
		caseID, ok := paramID(c, "id")
		if !ok {
			return
		}

		// cap the whole body so an oversized upload is cut off mid-parse
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

		fileHeader, err := c.FormFile("file")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return
		}

		docType, ok := models.ParseDocumentType(c.PostForm("type"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document type"})
			return
		}
		if fileHeader.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", maxBytes)})
			return
		}
		if err := imaging.CheckExtension(fileHeader.Filename); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
			return
		}
		defer file.Close()

		contentType, err := imaging.DetectContentType(file)
		if errors.Is(err, imaging.ErrUnsupportedType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		// reject foreign cases before writing anything to storage
		if err := svc.CheckCaseOwner(ctx, userID, caseID); err != nil {
			respondError(c, err)
			return
		}

		key := storage.GenerateObjectName(userID, caseID, fileHeader.Filename)
		if err := store.Save(ctx, key, file, fileHeader.Size, contentType); err != nil {
			respondError(c, fmt.Errorf("save upload: %w", err))
			return
		}

		doc := &models.Document{
			Type:         docType,
			StoragePath:  key,
			OriginalName: filepath.Base(fileHeader.Filename),
			ContentType:  contentType,
		}
		if err := svc.CreateDocument(ctx, userID, caseID, doc); err != nil {
			if derr := store.Delete(context.WithoutCancel(ctx), key); derr != nil {
				log.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, doc)
	}
}

func GetDocumentOCR(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := paramID(c, "id")
		if !ok {
			return
		}

		doc, err := svc.GetDocument(c.Request.Context(), c.GetUint(middleware.UserIDKey), docID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newDocumentOCRView(doc))
	}
}

// RunDocumentOCR makes the single OCR attempt for a PENDING document and
// answers with the resulting view, whether it COMPLETED or FAILED.
func RunDocumentOCR(svc *records.Service, runner OCRRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(middleware.UserIDKey)
		docID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		doc, err := svc.GetDocument(ctx, userID, docID)
		if err != nil {
			respondError(c, err)
			return
		}
		if doc.OcrStatus != models.OcrStatusPending {
			respondError(c, apperrors.ErrOCRNotPending)
			return
		}
		// concurrent requests for the same document race here; one wins
		if err := svc.ClaimOCR(ctx, doc.ID); err != nil {
			respondError(c, err)
			return
		}

		runner.Process(ctx, doc.ID, doc.StoragePath)

		doc, err = svc.GetDocument(context.WithoutCancel(ctx), userID, docID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, newDocumentOCRView(doc))
	}
}

func DownloadDocument(svc *records.Service, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		doc, err := svc.GetDocument(ctx, c.GetUint(middleware.UserIDKey), docID)
		if err != nil {
			respondError(c, err)
			return
		}

		rc, err := store.Open(ctx, doc.StoragePath)
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apperrors.ErrUnreachableFile)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		defer rc.Close()

		contentType := doc.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		name := doc.OriginalName
		if name == "" {
			name = filepath.Base(doc.StoragePath)
		}
		c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		})
	}
}

// VerifyDocument applies reviewer corrections. Only recognised keys are read;
// the first invalid one is reported with its field name.
func VerifyDocument(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var payload map[string]json.RawMessage
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a JSON object"})
			return
		}

		doc, err := svc.VerifyDocument(c.Request.Context(), c.GetUint(middleware.UserIDKey), docID, payload)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, VerifyResponse{
			ID:             doc.ID,
			IsVerified:     doc.IsVerified,
			VerifiedFields: doc.VerifiedFields.Data(),
		})
	}
}
