package broker

import (
	"encoding/json"
	"testing"
	"time"

	"antique-auction/internal/events"
	"antique-auction/internal/models"

	"github.com/stretchr/testify/require"
)

func TestRoutingKey(t *testing.T) {
	require.Equal(t, "auction.new_bid", RoutingKey(events.NewBid))
	require.Equal(t, "auction.auction_ended", RoutingKey(events.AuctionEnded))
	require.Equal(t, "auction.notification", RoutingKey(events.Notification))
}

func TestEncode_NewBid(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := models.Auction{AuctionID: "a1", Title: "Clock", CurrentBid: 15000, BidCount: 2}
	bid := models.Bid{AuctionID: "a1", BidderID: "u2", Amount: 15000, AcceptedAt: at}

	body, err := Encode(events.NewBidEvent(auction, bid))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "new_bid", got["type"])
	require.Equal(t, "a1", got["auctionId"])
	require.NotContains(t, got, "userId")
	require.Equal(t, "2026-03-01T12:00:00Z", got["occurredAt"])

	data := got["data"].(map[string]any)
	require.Equal(t, "150.00", data["amount"])
	require.Equal(t, "u2", data["bidderId"])
	require.Equal(t, float64(2), data["bidCount"])
}

func TestEncode_DirectEventKeepsUser(t *testing.T) {
	e := events.NotificationEvent("u9", events.KindBadge, "new badge", nil, time.Now())

	body, err := Encode(e)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, events.Notification, got.Type)
	require.Equal(t, "u9", got.UserID)
	require.Empty(t, got.AuctionID)
}
