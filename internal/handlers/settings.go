// internal/handlers/settings.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"casebook/internal/ocr"

	"github.com/gin-gonic/gin"
)

// EngineSettings is the OCR worker's engine on/off surface.
type EngineSettings interface {
	ListEngines(ctx context.Context) ([]ocr.EngineState, error)
	SetEngineEnabled(ctx context.Context, engineID string, enabled bool) ([]ocr.EngineState, error)
}

type EnginesResponse struct {
	Engines []ocr.EngineState `json:"engines"`
}

func ListOCREngines(engines EngineSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := engines.ListEngines(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, EnginesResponse{Engines: list})
	}
}

// ToggleOCREngine forwards {"enabled": bool} to the worker. Anything other
// than a JSON boolean is rejected without contacting the worker.
func ToggleOCREngine(engines EngineSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]json.RawMessage
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a JSON object"})
			return
		}

		var value any
		if raw, ok := body["enabled"]; ok {
			_ = json.Unmarshal(raw, &value)
		}
		enabled, ok := value.(bool)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "enabled must be a boolean", "field": "enabled"})
			return
		}

		list, err := engines.SetEngineEnabled(c.Request.Context(), c.Param("id"), enabled)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, EnginesResponse{Engines: list})
	}
}
