package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/events"
	"antique-auction/internal/models"
	"antique-auction/internal/money"
	"antique-auction/services/bidding/helpers"
	"antique-auction/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_handler.go -package=handler

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount int64, clientTimestamp time.Time) (models.AcceptedBid, error)
	HistoryByItem(ctx context.Context, itemID string) ([]models.Bid, error)
	History(ctx context.Context, auctionID string) ([]models.Bid, error)
	Snapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error)
	ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
	CreateAuction(ctx context.Context, auction models.Auction) (models.Auction, error)
	Notify(ctx context.Context, userID string, kind events.NotificationKind, message string, data map[string]any) error
}

// AuctionTracker arms lifecycle timers for newly created auctions
type AuctionTracker interface {
	Track(a models.Auction)
}

type BiddingHandler struct {
	service BiddingServiceInterface
	tracker AuctionTracker
}

func NewBiddingHandler(service BiddingServiceInterface, tracker AuctionTracker) *BiddingHandler {
	return &BiddingHandler{service: service, tracker: tracker}
}

// PlaceBidHandler handles POST /bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	bidderID := c.GetString("user_id")
	if bidderID == "" {
		utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "unauthorized")
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	amount, err := money.FromDecimal(*req.Amount)
	if err != nil || amount <= 0 {
		if err == nil {
			err = errors.New("amount must be positive")
		}
		wrapped := fmt.Errorf("%w - %v", biddingerrors.ErrInvalidBid, err)
		utils.JSONRejection(c, http.StatusBadRequest, wrapped, "invalid bid details", helpers.ReasonInvalidBid)
		utils.Warn("PlaceBidHandler: invalid amount", map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  bidderID,
			"amount":     req.Amount.String(),
		})
		return
	}

	var clientTS time.Time
	if req.ClientTimestamp != nil {
		clientTS = req.ClientTimestamp.UTC()
	}

	accepted, err := h.service.SubmitBid(c.Request.Context(), req.AuctionID, bidderID, amount, clientTS)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONRejection(c, status, fmt.Errorf("%s: %w", message, err), message, helpers.BidRejectReason(err))
		fields := map[string]any{
			"handler":    "PlaceBidHandler",
			"auction_id": req.AuctionID,
			"bidder_id":  bidderID,
			"amount":     money.Format(amount),
			"error":      err.Error(),
		}
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			utils.Error("PlaceBidHandler: failed to place bid", fields)
		} else {
			utils.Info("PlaceBidHandler: bid rejected", fields)
		}
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToAcceptedBidResponse(accepted), "bid accepted")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted", map[string]any{
		"bid_id":     accepted.Bid.BidID,
		"auction_id": accepted.Bid.AuctionID,
		"bidder_id":  bidderID,
		"amount":     money.Format(accepted.Bid.Amount),
	})
}

// GetBidsByItemHandler handles GET /bids/item/:itemId
func (h *BiddingHandler) GetBidsByItemHandler(c *gin.Context) {
	itemID := c.Param("itemId")
	bids, err := h.service.HistoryByItem(c.Request.Context(), itemID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByItemHandler: error retrieving bids", map[string]any{"item_id": itemID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByItemHandler", "bids retrieved successfully", map[string]any{
		"item_id": itemID,
		"count":   len(bids),
	})
}

// GetAuctionBidsHandler handles GET /auctions/:id/bids
func (h *BiddingHandler) GetAuctionBidsHandler(c *gin.Context) {
	auctionID := c.Param("id")
	bids, err := h.service.History(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:id. The snapshot carries the
// server time and the time left so clients can hydrate their countdown.
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("id")
	snap, err := h.service.Snapshot(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToSnapshotResponse(snap), "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions?status=live,ending_soon
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	var statuses []models.AuctionStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, models.AuctionStatus(raw))
		}
	}

	auctions, err := h.service.ListAuctions(c.Request.Context(), statuses)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ListAuctionsHandler: error listing auctions", map[string]any{"status": c.Query("status"), "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponses(auctions), "auctions retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	startingBid, err := money.FromDecimal(*req.StartingBid)
	if err != nil {
		wrapped := fmt.Errorf("%w - %v", biddingerrors.ErrInvalidAuction, err)
		utils.JSONError(c, http.StatusBadRequest, wrapped, "invalid auction details")
		return
	}

	auction := models.Auction{
		ItemID:      req.ItemID,
		Title:       req.Title,
		StartingBid: startingBid,
		EndTime:     req.EndTime.UTC(),
	}
	if req.StartTime != nil {
		auction.StartTime = req.StartTime.UTC()
	}

	created, err := h.service.CreateAuction(c.Request.Context(), auction)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{"item_id": req.ItemID, "error": err.Error()})
		return
	}
	if h.tracker != nil {
		h.tracker.Track(created)
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToAuctionResponse(created), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": created.AuctionID,
		"item_id":    created.ItemID,
		"status":     created.Status,
		"created_by": c.GetString("user_id"),
	})
}

// NotifyHandler handles POST /notifications
func (h *BiddingHandler) NotifyHandler(c *gin.Context) {
	var req helpers.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "NotifyHandler", err)
		return
	}

	kind := events.NotificationKind(req.Type)
	if err := h.service.Notify(c.Request.Context(), req.UserID, kind, req.Message, req.Data); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("NotifyHandler: failed to send notification", map[string]any{"user_id": req.UserID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusAccepted, gin.H{"user_id": req.UserID, "type": req.Type}, "notification queued")
}
