package server

import (
	"context"
	"net/http"
	"time"

	"antique-auction/internal/auth"
	bidding "antique-auction/internal/biddingService"
	"antique-auction/internal/ratelimit"
	"antique-auction/internal/realtime"
	"antique-auction/internal/ws"
	handler "antique-auction/services/bidding/handler"
	"antique-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators the HTTP surface is built from
type Deps struct {
	Service       *bidding.BiddingService
	Tracker       handler.AuctionTracker
	Hub           *realtime.Hub
	Verifier      *auth.Verifier
	Redis         *redis.Client // optional
	BidsPerMinute int
	WSReadTimeout time.Duration
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(d Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(d.Service, d.Tracker)
	requireUser := JWTAuth(d.Verifier)
	limiter := ratelimit.New(d.Redis, d.BidsPerMinute)

	router.GET("/healthz", healthHandler(d.Hub))
	router.GET("/ws", gin.WrapH(ws.NewHandler(d.Service, d.Hub, d.Verifier, d.WSReadTimeout, ws.WithBidLimiter(limiter))))

	bids := router.Group("/bids")
	{
		bids.POST("", requireUser, BidRateLimit(limiter), biddingHandler.PlaceBidHandler)
		bids.GET("/item/:itemId", biddingHandler.GetBidsByItemHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.POST("", requireUser, biddingHandler.CreateAuctionHandler)
		auctions.GET("/:id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:id/bids", biddingHandler.GetAuctionBidsHandler)
	}

	router.POST("/notifications", requireUser, biddingHandler.NotifyHandler)

	return router
}

func healthHandler(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		stats, ok := hub.Stats(ctx)
		if !ok {
			utils.JSONResponse(c, http.StatusServiceUnavailable, nil, "realtime hub unavailable")
			return
		}
		utils.JSONResponse(c, http.StatusOK, gin.H{
			"connections": stats.Connections,
			"rooms":       stats.Rooms,
			"dropped":     stats.Dropped,
		}, "ok")
	}
}
