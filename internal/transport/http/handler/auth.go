package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docquery/internal/pkg/jwtutil"
	"docquery/internal/transport/http/response"
)

// AuthHandler exchanges the static API token for a short-lived JWT, so
// downstream callers can avoid shipping the long-lived token on every call.
type AuthHandler struct {
	apiToken      string
	jwtSecret     string
	jwtExpiration time.Duration
}

type TokenRequest struct {
	APIToken string `json:"api_token" binding:"required"`
	Subject  string `json:"subject"`
}

func NewAuthHandler(apiToken, jwtSecret string, jwtExpiration time.Duration) *AuthHandler {
	return &AuthHandler{
		apiToken:      apiToken,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIToken), []byte(h.apiToken)) != 1 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authentication credentials")
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "api-client"
	}
	token, err := jwtutil.IssueToken(h.jwtSecret, subject, h.jwtExpiration)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "issue token failed")
		return
	}
	response.OK(c, gin.H{
		"token":      token,
		"expires_in": int(h.jwtExpiration.Seconds()),
	})
}
