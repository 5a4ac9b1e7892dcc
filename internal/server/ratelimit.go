package server

import (
	"net/http"
	"strconv"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/ratelimit"
	"antique-auction/services/bidding/helpers"
	"antique-auction/utils"

	"github.com/gin-gonic/gin"
)

// BidRateLimit caps bid submissions per user. It is a no-op for a nil
// limiter and fails open when Redis errors.
func BidRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.ClientIP()
		}

		d, err := limiter.Allow(c.Request.Context(), userID)
		if err != nil {
			utils.Warn("BidRateLimit: redis error, allowing request", map[string]any{"user_id": userID, "error": err.Error()})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())+1))
			utils.JSONRejection(c, http.StatusTooManyRequests, biddingerrors.ErrRateLimited, "too many bids", helpers.ReasonRateLimited)
			utils.Info("BidRateLimit: limited", map[string]any{"user_id": userID, "limit": d.Limit})
			c.Abort()
			return
		}
		c.Next()
	}
}
