package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docquery/internal/app"
	"docquery/internal/document"
	"docquery/internal/rag"
	"docquery/internal/transport/http/response"
)

type QueryHandler struct {
	queryService *app.QueryService
}

type QueryRequest struct {
	Documents string   `json:"documents" binding:"required"`
	Questions []string `json:"questions" binding:"required"`
}

type QueryResponse struct {
	Answers []string `json:"answers"`
}

type DecisionRequest struct {
	Documents string `json:"documents" binding:"required"`
	Question  string `json:"question" binding:"required"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// Run answers a batch of questions against one document. Per-question
// failures are already inline error strings; only document-level failures
// reach the error branch here.
func (h *QueryHandler) Run(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answers, err := h.queryService.ProcessQueries(c.Request.Context(), app.ProcessQueriesInput{
		DocumentURL: req.Documents,
		Questions:   req.Questions,
	})
	if err != nil {
		h.writeQueryError(c, err)
		return
	}
	response.OK(c, QueryResponse{Answers: answers})
}

func (h *QueryHandler) Decision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.queryService.ProcessDecision(c.Request.Context(), req.Documents, req.Question)
	if err != nil {
		h.writeQueryError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *QueryHandler) Metrics(c *gin.Context) {
	response.OK(c, h.queryService.PerformanceReport())
}

func (h *QueryHandler) writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrTooManyQuestions):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, document.ErrAcquisition), errors.Is(err, rag.ErrEmptyDocument):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeDocumentFailed, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query processing failed")
	}
}
