package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docquery/internal/repository"
	"docquery/internal/transport/http/response"
)

// LogHandler exposes read-only views over the persisted processing logs.
type LogHandler struct {
	queryLogs    *repository.QueryLogRepository
	documentLogs *repository.DocumentLogRepository
}

func NewLogHandler(queryLogs *repository.QueryLogRepository, documentLogs *repository.DocumentLogRepository) *LogHandler {
	return &LogHandler{queryLogs: queryLogs, documentLogs: documentLogs}
}

func (h *LogHandler) QueryLogs(c *gin.Context) {
	documentURL := c.Query("document_url")
	if documentURL == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing document_url parameter")
		return
	}

	entries, err := h.queryLogs.ListByDocumentURL(documentURL, queryLimit(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list query logs failed")
		return
	}
	response.OK(c, entries)
}

func (h *LogHandler) DocumentLogs(c *gin.Context) {
	entries, err := h.documentLogs.ListRecent(queryLimit(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list document logs failed")
		return
	}
	response.OK(c, entries)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		return 100
	}
	return limit
}
