package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"antique-auction/internal/biddingerrors"
	"antique-auction/utils"

	"github.com/gin-gonic/gin"
)

// Rejection reasons shared by the REST and websocket surfaces
const (
	ReasonBidTooLow       = "bid_too_low"
	ReasonAuctionNotLive  = "auction_not_live"
	ReasonAlreadyLeading  = "already_leading"
	ReasonServiceBusy     = "service_busy"
	ReasonInvalidBid      = "invalid_bid"
	ReasonAuctionNotFound = "auction_not_found"
	ReasonRateLimited     = "rate_limited"
	ReasonInternal        = "internal_error"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrInvalidNotice):
		return http.StatusBadRequest, "invalid notification"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrAlreadyLeading):
		return http.StatusConflict, "bidder already leads the auction"
	case errors.Is(err, biddingerrors.ErrAuctionNotLive):
		return http.StatusConflict, "auction is not accepting bids"
	case errors.Is(err, biddingerrors.ErrAuctionExists):
		return http.StatusConflict, "auction already exists"
	case errors.Is(err, biddingerrors.ErrLedgerOrder):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrServiceBusy):
		return http.StatusServiceUnavailable, "service busy, retry shortly"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, biddingerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "too many bids"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// BidRejectReason classifies a bid submission error for clients
func BidRejectReason(err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrBidTooLow), errors.Is(err, biddingerrors.ErrLedgerOrder):
		return ReasonBidTooLow
	case errors.Is(err, biddingerrors.ErrAuctionNotLive):
		return ReasonAuctionNotLive
	case errors.Is(err, biddingerrors.ErrAlreadyLeading):
		return ReasonAlreadyLeading
	case errors.Is(err, biddingerrors.ErrServiceBusy):
		return ReasonServiceBusy
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return ReasonInvalidBid
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return ReasonAuctionNotFound
	case errors.Is(err, biddingerrors.ErrRateLimited):
		return ReasonRateLimited
	default:
		return ReasonInternal
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
