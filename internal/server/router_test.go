package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"antique-auction/internal/auth"
	bidding "antique-auction/internal/biddingService"
	"antique-auction/internal/ratelimit"
	"antique-auction/internal/realtime"
	"antique-auction/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTAuth(t *testing.T) {
	v := auth.NewVerifier("test-secret")
	token, err := v.Issue("user-7", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", JWTAuth(v), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid_token", "Bearer " + token, http.StatusOK, "user-7"},
		{"missing_token", "", http.StatusUnauthorized, ""},
		{"bad_token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.wantStatus, w.Code)
			if tc.wantBody != "" {
				require.Equal(t, tc.wantBody, w.Body.String())
			}
		})
	}
}

func TestBidRateLimit_DisabledWithoutRedis(t *testing.T) {
	router := gin.New()
	router.POST("/bids", BidRateLimit(ratelimit.New(nil, 1)), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bids", nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}
}

func TestSetupRouter_RoutesAndAuth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(ctx, 16)
	router := SetupRouter(Deps{
		Service:  bidding.NewBiddingService(repository.NewMemoryRepo()),
		Hub:      hub,
		Verifier: auth.NewVerifier("test-secret"),
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "ok", resp["message"])
	})

	t.Run("bids_require_token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bids", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ws_requires_token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auctions/missing", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty_item_history", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bids/item/none", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})
}
