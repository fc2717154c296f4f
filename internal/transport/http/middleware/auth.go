package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"docquery/internal/pkg/jwtutil"
	"docquery/internal/transport/http/response"
)

const ContextSubjectKey = "subject"

// AuthBearer accepts either the static API token or a service-issued JWT in
// the Authorization header.
func AuthBearer(apiToken, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) == 1 {
			c.Set(ContextSubjectKey, "api-token")
			c.Next()
			return
		}

		claims, err := jwtutil.ParseToken(jwtSecret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authentication credentials")
			c.Abort()
			return
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Next()
	}
}
