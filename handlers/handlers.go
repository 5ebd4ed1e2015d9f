package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"integrity-analyze-service/models"
	"integrity-analyze-service/service"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	service *service.Service
}

// NewHandlers creates new HTTP handlers
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{service: svc}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "integrity-analyze-service",
		"version": "1.0.0",
	})
}

// Analyze handles one baseline/current pair per call. Multi-angle clients
// call it once per angle with a view_label.
func (h *Handlers) Analyze(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusInternalServerError, errorBody("Gemini API key missing or configuration failed."))
		return
	}

	// A malformed body is treated the same as an empty one; the missing
	// image check below produces the caller-facing message.
	var req models.AnalyzeRequest
	_ = c.ShouldBindJSON(&req)

	baselineSrc := req.BaselineSource()
	currentSrc := req.CurrentSource()
	if baselineSrc == "" || currentSrc == "" {
		c.JSON(http.StatusBadRequest, errorBody("Missing baseline or current image"))
		return
	}

	viewLabel := req.ViewLabel
	if viewLabel == "" {
		viewLabel = "single"
	}

	result, err := h.service.Analyze(c.Request.Context(), baselineSrc, currentSrc, viewLabel)
	if err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, errorBody(inputErr.Message))
			return
		}
		body := errorBody("Analyzer internal error")
		body["details"] = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// errorBody keeps error responses shaped like results so clients can always
// read differences/aggregate_tis. UNKNOWN marks the score as unscored.
func errorBody(message string) gin.H {
	return gin.H{
		"error":              message,
		"differences":        []models.Finding{},
		"aggregate_tis":      100,
		"overall_assessment": models.AssessmentUnknown,
	}
}
