package server

import (
	"net/http"
	"time"

	"antique-auction/internal/auth"
	"antique-auction/internal/biddingerrors"
	"antique-auction/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if userID := c.GetString("user_id"); userID != "" {
		fields["user_id"] = userID
	}
	utils.Info("HTTP Request", fields)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// token subject under "user_id".
func JWTAuth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Verify(auth.TokenFromRequest(c.Request))
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "unauthorized")
			utils.Warn("JWTAuth: rejected request", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}
