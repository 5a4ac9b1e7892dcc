package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"antique-auction/internal/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 7, 1, 10, 0, 30, 0, time.UTC)

func newLimitedRouter(t *testing.T, perMinute int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	router := gin.New()
	router.POST("/bids",
		func(c *gin.Context) {
			c.Set("user_id", c.GetHeader("X-User"))
			c.Next()
		},
		BidRateLimit(ratelimit.New(rdb, perMinute).WithNow(func() time.Time { return fixedNow })),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)
	return router, mr
}

func postBid(router *gin.Engine, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bids", nil)
	req.Header.Set("X-User", user)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBidRateLimit_WithRedis(t *testing.T) {
	router, mr := newLimitedRouter(t, 2)

	tests := []struct {
		name          string
		user          string
		wantStatus    int
		wantRemaining string
	}{
		{"first", "alice", http.StatusCreated, "1"},
		{"second", "alice", http.StatusCreated, "0"},
		{"over_limit", "alice", http.StatusTooManyRequests, "0"},
		{"other_user", "bob", http.StatusCreated, "1"},
	}

	for _, tc := range tests {
		w := postBid(router, tc.user)
		require.Equal(t, tc.wantStatus, w.Code, tc.name)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"), tc.name)
		require.Equal(t, tc.wantRemaining, w.Header().Get("X-RateLimit-Remaining"), tc.name)

		if tc.wantStatus != http.StatusTooManyRequests {
			require.Empty(t, w.Header().Get("Retry-After"), tc.name)
			continue
		}
		require.Equal(t, "31", w.Header().Get("Retry-After"), tc.name)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, "rate_limited", body["reason"])
	}

	require.Len(t, mr.Keys(), 2)
	for _, k := range mr.Keys() {
		require.Equal(t, ratelimit.Window+time.Second, mr.TTL(k))
	}
}

func TestBidRateLimit_FailsOpen(t *testing.T) {
	router, mr := newLimitedRouter(t, 1)
	mr.SetError("LOADING redis is loading")

	for i := 0; i < 3; i++ {
		w := postBid(router, "alice")
		require.Equal(t, http.StatusCreated, w.Code)
		require.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
