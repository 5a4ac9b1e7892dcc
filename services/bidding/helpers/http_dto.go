package helpers

import (
	"time"

	"antique-auction/internal/models"
	"antique-auction/internal/money"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs. Amounts travel as decimal strings in major units.
type PlaceBidRequest struct {
	AuctionID       string           `json:"auction_id" binding:"required"`
	Amount          *decimal.Decimal `json:"amount" binding:"required"`
	ClientTimestamp *time.Time       `json:"client_timestamp"`
}

type CreateAuctionRequest struct {
	ItemID      string           `json:"item_id" binding:"required"`
	Title       string           `json:"title" binding:"required"`
	StartingBid *decimal.Decimal `json:"starting_bid" binding:"required"`
	StartTime   *time.Time       `json:"start_time"`
	EndTime     *time.Time       `json:"end_time" binding:"required"`
}

type NotificationRequest struct {
	UserID  string         `json:"user_id" binding:"required"`
	Type    string         `json:"type" binding:"required"`
	Message string         `json:"message" binding:"required"`
	Data    map[string]any `json:"data"`
}

type BidResponse struct {
	BidID           string `json:"bid_id"`
	AuctionID       string `json:"auction_id"`
	ItemID          string `json:"item_id"`
	BidderID        string `json:"bidder_id"`
	Amount          string `json:"amount"`
	AcceptedAt      string `json:"accepted_at"`
	ClientTimestamp string `json:"client_timestamp,omitempty"`
}

type AuctionResponse struct {
	AuctionID       string `json:"auction_id"`
	ItemID          string `json:"item_id"`
	Title           string `json:"title"`
	StartingBid     string `json:"starting_bid"`
	CurrentBid      string `json:"current_bid"`
	CurrentLeaderID string `json:"current_leader_id,omitempty"`
	BidCount        int    `json:"bid_count"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
}

type AcceptedBidResponse struct {
	Bid     BidResponse     `json:"bid"`
	Auction AuctionResponse `json:"auction"`
}

type SnapshotResponse struct {
	AuctionResponse
	ServerTime  string `json:"server_time"`
	RemainingMS int64  `json:"remaining_ms"`
}

func ToBidResponse(b models.Bid) BidResponse {
	resp := BidResponse{
		BidID:      b.BidID,
		AuctionID:  b.AuctionID,
		ItemID:     b.ItemID,
		BidderID:   b.BidderID,
		Amount:     money.Format(b.Amount),
		AcceptedAt: b.AcceptedAt.UTC().Format(time.RFC3339Nano),
	}
	if !b.ClientTimestamp.IsZero() {
		resp.ClientTimestamp = b.ClientTimestamp.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func ToBidResponses(bids []models.Bid) []BidResponse {
	out := make([]BidResponse, len(bids))
	for i, b := range bids {
		out[i] = ToBidResponse(b)
	}
	return out
}

func ToAuctionResponse(a models.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		ItemID:          a.ItemID,
		Title:           a.Title,
		StartingBid:     money.Format(a.StartingBid),
		CurrentBid:      money.Format(a.CurrentBid),
		CurrentLeaderID: a.CurrentLeaderID,
		BidCount:        a.BidCount,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime.UTC().Format(time.RFC3339),
		Status:          string(a.Status),
	}
}

func ToAuctionResponses(auctions []models.Auction) []AuctionResponse {
	out := make([]AuctionResponse, len(auctions))
	for i, a := range auctions {
		out[i] = ToAuctionResponse(a)
	}
	return out
}

func ToAcceptedBidResponse(ab models.AcceptedBid) AcceptedBidResponse {
	return AcceptedBidResponse{
		Bid:     ToBidResponse(ab.Bid),
		Auction: ToAuctionResponse(ab.Auction),
	}
}

func ToSnapshotResponse(s models.AuctionSnapshot) SnapshotResponse {
	return SnapshotResponse{
		AuctionResponse: ToAuctionResponse(s.Auction),
		ServerTime:      s.ServerTime.UTC().Format(time.RFC3339Nano),
		RemainingMS:     s.Remaining.Milliseconds(),
	}
}
