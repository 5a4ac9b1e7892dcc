// Package events defines the realtime auction events and the publisher
// abstraction used to fan them out to rooms, users and the message broker.
package events

import (
	"sync"
	"time"

	"antique-auction/internal/models"
	"antique-auction/internal/money"
)

type Type string

const (
	NewBid            Type = "new_bid"
	Outbid            Type = "outbid"
	AuctionStarted    Type = "auction_started"
	AuctionEndingSoon Type = "auction_ending_soon"
	AuctionEnded      Type = "auction_ended"
	Notification      Type = "notification"
)

// Event is a state change to deliver. Room events carry only AuctionID;
// events targeted at one user also carry UserID and skip the room.
type Event struct {
	Type       Type
	AuctionID  string
	UserID     string
	Payload    any
	OccurredAt time.Time
}

// Direct reports whether the event targets a single user
func (e Event) Direct() bool {
	return e.UserID != ""
}

type NewBidPayload struct {
	AuctionID string `json:"auctionId"`
	Amount    string `json:"amount"`
	BidderID  string `json:"bidderId"`
	ItemTitle string `json:"itemTitle"`
	BidCount  int    `json:"bidCount"`
}

type OutbidPayload struct {
	AuctionID  string `json:"auctionId"`
	ItemTitle  string `json:"itemTitle"`
	CurrentBid string `json:"currentBid"`
}

// AuctionPayload is shared by the lifecycle events
type AuctionPayload struct {
	AuctionID string `json:"auctionId"`
	Title     string `json:"title"`
}

type NotificationKind string

const (
	KindFollow     NotificationKind = "follow"
	KindBadge      NotificationKind = "badge"
	KindItemLiked  NotificationKind = "item_liked"
	KindFraudAlert NotificationKind = "fraud_alert"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindFollow, KindBadge, KindItemLiked, KindFraudAlert:
		return true
	}
	return false
}

type NotificationPayload struct {
	Type    NotificationKind `json:"type"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data,omitempty"`
}

// NewBidEvent announces an accepted bid to the auction room.
func NewBidEvent(a models.Auction, bid models.Bid) Event {
	return Event{
		Type:      NewBid,
		AuctionID: a.AuctionID,
		Payload: NewBidPayload{
			AuctionID: a.AuctionID,
			Amount:    money.Format(bid.Amount),
			BidderID:  bid.BidderID,
			ItemTitle: a.Title,
			BidCount:  a.BidCount,
		},
		OccurredAt: bid.AcceptedAt,
	}
}

// OutbidEvent tells the displaced leader about the new price.
func OutbidEvent(a models.Auction, previousLeaderID string) Event {
	return Event{
		Type:      Outbid,
		AuctionID: a.AuctionID,
		UserID:    previousLeaderID,
		Payload: OutbidPayload{
			AuctionID:  a.AuctionID,
			ItemTitle:  a.Title,
			CurrentBid: money.Format(a.CurrentBid),
		},
		OccurredAt: a.UpdatedAt,
	}
}

// StatusEvent returns the lifecycle event for the auction's current status.
// Scheduled auctions have none.
func StatusEvent(a models.Auction) (Event, bool) {
	var t Type
	switch a.Status {
	case models.StatusLive:
		t = AuctionStarted
	case models.StatusEndingSoon:
		t = AuctionEndingSoon
	case models.StatusEnded:
		t = AuctionEnded
	default:
		return Event{}, false
	}
	return Event{
		Type:       t,
		AuctionID:  a.AuctionID,
		Payload:    AuctionPayload{AuctionID: a.AuctionID, Title: a.Title},
		OccurredAt: a.UpdatedAt,
	}, true
}

func NotificationEvent(userID string, kind NotificationKind, message string, data map[string]any, at time.Time) Event {
	return Event{
		Type:       Notification,
		UserID:     userID,
		Payload:    NotificationPayload{Type: kind, Message: message, Data: data},
		OccurredAt: at,
	}
}

// Publisher receives events. Implementations must not block the caller.
type Publisher interface {
	Publish(e Event)
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// Discard drops every event
type Discard struct{}

func (Discard) Publish(Event) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
