// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"casebook/internal/auth"
	"casebook/internal/middleware"
	"casebook/internal/records"
	"casebook/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Records        *records.Service
	Tokens         *auth.TokenManager
	Store          storage.Store
	OCR            OCRRunner
	Engines        EngineSettings
	MaxUploadBytes int64
	Log            *zap.Logger
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes mounts the public and authenticated API on r.
func RegisterRoutes(r gin.IRouter, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r.GET("/health", Health)

	public := r.Group("/auth")
	{
		public.POST("/register", Register(d.Records, d.Tokens))
		public.POST("/login", Login(d.Records, d.Tokens))
		public.POST("/logout", Logout)
	}

	protected := r.Group("")
	protected.Use(middleware.AuthMiddleware(d.Tokens))
	{
		protected.GET("/auth/me", GetProfile(d.Records))

		protected.POST("/cases", CreateCase(d.Records))
		protected.GET("/cases", ListCases(d.Records))
		protected.GET("/cases/:id", GetCase(d.Records))
		protected.DELETE("/cases/:id", DeleteCase(d.Records, d.Store, log))
		protected.POST("/cases/:id/documents", UploadDocument(d.Records, d.Store, d.MaxUploadBytes, log))

		protected.GET("/documents/:id/ocr", GetDocumentOCR(d.Records))
		protected.POST("/documents/:id/ocr", RunDocumentOCR(d.Records, d.OCR))
		protected.GET("/documents/:id/file", DownloadDocument(d.Records, d.Store))
		protected.PATCH("/documents/:id/verify", VerifyDocument(d.Records))

		protected.GET("/settings/ocr-engines", ListOCREngines(d.Engines))
		protected.POST("/settings/ocr-engines/:id", ToggleOCREngine(d.Engines))
	}
}
