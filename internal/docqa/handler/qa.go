// Package handler provides HTTP handlers for the document QA service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imezh/RAG-agent/internal/docqa/biz"
	"github.com/imezh/RAG-agent/internal/docqa/metrics"
)

// queryTimeout bounds a single QA request end to end, including the
// embedding call, retrieval and the LLM completion.
const queryTimeout = 60 * time.Second

// QAHandler handles document QA HTTP requests.
type QAHandler struct {
	service biz.Service
}

// NewQAHandler creates a new QAHandler.
func NewQAHandler(service biz.Service) *QAHandler {
	return &QAHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// QueryRequest represents a QA query request.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query answers a question using the indexed documents.
func (h *QAHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Query timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// IndexDirectoryRequest represents a directory index request.
type IndexDirectoryRequest struct {
	Directory string `json:"directory" binding:"required"`
	Clear     bool   `json:"clear"`
}

// IndexDirectory indexes documents from a local directory.
func (h *QAHandler) IndexDirectory(c *gin.Context) {
	var req IndexDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	report, err := h.service.IndexDirectory(c.Request.Context(), req.Directory, req.Clear)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Directory indexed successfully", Data: report})
}

// Stats returns knowledge base statistics.
func (h *QAHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// Healthz reports service liveness.
func (h *QAHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics exposes service metrics in Prometheus text format.
func (h *QAHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, metrics.GetQAMetrics().Export("docqa", "qa"))
}
