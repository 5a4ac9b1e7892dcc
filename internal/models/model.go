package models

import "time"

// AuctionStatus is the lifecycle state of an auction. It only ever moves
// forward: scheduled -> live -> ending_soon -> ended.
type AuctionStatus string

const (
	StatusScheduled  AuctionStatus = "scheduled"
	StatusLive       AuctionStatus = "live"
	StatusEndingSoon AuctionStatus = "ending_soon"
	StatusEnded      AuctionStatus = "ended"
)

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s AuctionStatus) Rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusLive:
		return 1
	case StatusEndingSoon:
		return 2
	case StatusEnded:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known status
func (s AuctionStatus) Valid() bool {
	return s.Rank() >= 0
}

// AcceptsBids reports whether bids may be placed in this status
func (s AuctionStatus) AcceptsBids() bool {
	return s == StatusLive || s == StatusEndingSoon
}

// Auction is the live state of one auction. Money is held in minor currency units.
type Auction struct {
	AuctionID       string        `json:"auction_id"`
	ItemID          string        `json:"item_id"`
	Title           string        `json:"title"`
	StartingBid     int64         `json:"starting_bid"`
	CurrentBid      int64         `json:"current_bid"`
	CurrentLeaderID string        `json:"current_leader_id,omitempty"`
	BidCount        int           `json:"bid_count"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Status          AuctionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// StatusAt derives the status the auction should have at now, given the
// lead time before EndTime at which it is considered ending soon.
func (a Auction) StatusAt(now time.Time, endingSoonLead time.Duration) AuctionStatus {
	switch {
	case !now.Before(a.EndTime):
		return StatusEnded
	case now.Before(a.StartTime):
		return StatusScheduled
	case !now.Before(a.EndTime.Add(-endingSoonLead)):
		return StatusEndingSoon
	default:
		return StatusLive
	}
}

// NextTransition returns the instant at which the auction leaves its current
// status. Ended auctions have no further transition.
func (a Auction) NextTransition(endingSoonLead time.Duration) (time.Time, bool) {
	switch a.Status {
	case StatusScheduled:
		return a.StartTime, true
	case StatusLive:
		return a.EndTime.Add(-endingSoonLead), true
	case StatusEndingSoon:
		return a.EndTime, true
	default:
		return time.Time{}, false
	}
}

// Bid is an accepted bid. Bids are immutable once recorded in the ledger.
type Bid struct {
	BidID           string    `json:"bid_id"`
	AuctionID       string    `json:"auction_id"`
	ItemID          string    `json:"item_id"`
	BidderID        string    `json:"bidder_id"`
	Amount          int64     `json:"amount"`
	AcceptedAt      time.Time `json:"accepted_at"`
	ClientTimestamp time.Time `json:"client_timestamp,omitempty"`
}

// AcceptedBid is the outcome of a successful bid submission
type AcceptedBid struct {
	Bid              Bid
	Auction          Auction
	PreviousLeaderID string
}

// AuctionSnapshot is the state used to hydrate a client countdown
type AuctionSnapshot struct {
	Auction    Auction
	ServerTime time.Time
	Remaining  time.Duration
}
