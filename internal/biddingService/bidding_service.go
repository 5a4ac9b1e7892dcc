package bidding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"antique-auction/internal/auctionlock"
	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/clock"
	"antique-auction/internal/events"
	"antique-auction/internal/models"
	"antique-auction/internal/money"
	"antique-auction/internal/repository"
	"antique-auction/utils"
)

const (
	DefaultMinIncrement   int64 = 1
	DefaultEndingSoonLead       = 5 * time.Minute
)

// Locker serializes work on one auction
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithPublisher sets where bid and lifecycle events are sent
func WithPublisher(p events.Publisher) Option {
	return func(s *BiddingService) { s.publisher = p }
}

func WithClock(c clock.Clock) Option {
	return func(s *BiddingService) { s.clock = c }
}

func WithLocker(l Locker) Option {
	return func(s *BiddingService) { s.locks = l }
}

// WithMinIncrement sets the minimum raise over the current bid, in minor
// units. Values outside (0, money.MaxAmount] are ignored.
func WithMinIncrement(minor int64) Option {
	return func(s *BiddingService) {
		if minor > 0 && minor <= money.MaxAmount {
			s.minIncrement = minor
		}
	}
}

func WithEndingSoonLead(d time.Duration) Option {
	return func(s *BiddingService) {
		if d >= 0 {
			s.endingSoonLead = d
		}
	}
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo           repository.AuctionDB
	locks          Locker
	publisher      events.Publisher
	clock          clock.Clock
	minIncrement   int64
	endingSoonLead time.Duration
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:           repo,
		locks:          auctionlock.New(auctionlock.DefaultTimeout, auctionlock.DefaultMaxWaiters),
		publisher:      events.Discard{},
		clock:          clock.New(),
		minIncrement:   DefaultMinIncrement,
		endingSoonLead: DefaultEndingSoonLead,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EndingSoonLead is how long before the end an auction turns ending_soon
func (s *BiddingService) EndingSoonLead() time.Duration {
	return s.endingSoonLead
}

// CreateAuction validates and stores a new auction. The initial status is
// derived from the clock without emitting a lifecycle event.
func (s *BiddingService) CreateAuction(ctx context.Context, auction models.Auction) (models.Auction, error) {
	now := s.clock.Now()
	if auction.StartTime.IsZero() {
		auction.StartTime = now
	}
	if err := validateAuction(auction, now); err != nil {
		return models.Auction{}, err
	}

	if auction.AuctionID == "" {
		auction.AuctionID = utils.GenerateID()
	}
	auction.CurrentBid = auction.StartingBid
	auction.CurrentLeaderID = ""
	auction.BidCount = 0
	auction.Status = auction.StatusAt(now, s.endingSoonLead)
	auction.CreatedAt = now
	auction.UpdatedAt = now

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for item %s: %w", auction.ItemID, err)
	}
	return auction, nil
}

func validateAuction(a models.Auction, now time.Time) error {
	switch {
	case strings.TrimSpace(a.ItemID) == "":
		return fmt.Errorf("service: %w - missing itemID", biddingerrors.ErrInvalidAuction)
	case strings.TrimSpace(a.Title) == "":
		return fmt.Errorf("service: %w - missing title", biddingerrors.ErrInvalidAuction)
	case a.StartingBid <= 0:
		return fmt.Errorf("service: %w - non-positive starting bid", biddingerrors.ErrInvalidAuction)
	case a.StartingBid > money.MaxAmount:
		return fmt.Errorf("service: %w - starting bid above %s", biddingerrors.ErrInvalidAuction, money.Format(money.MaxAmount))
	case !a.EndTime.After(a.StartTime):
		return fmt.Errorf("service: %w - end time must be after start time", biddingerrors.ErrInvalidAuction)
	case !a.EndTime.After(now):
		return fmt.Errorf("service: %w - end time is in the past", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

// GetAuction returns the current state of an auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// Snapshot returns the auction state with the server time and the time left,
// used by clients to hydrate their countdown.
func (s *BiddingService) Snapshot(ctx context.Context, auctionID string) (models.AuctionSnapshot, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionSnapshot{}, err
	}
	now := s.clock.Now()
	remaining := auction.EndTime.Sub(now)
	if remaining < 0 || auction.Status == models.StatusEnded {
		remaining = 0
	}
	return models.AuctionSnapshot{Auction: auction, ServerTime: now, Remaining: remaining}, nil
}

// ListAuctions returns auctions in the given statuses, all when none given
func (s *BiddingService) ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("service: %w - unknown status %q", biddingerrors.ErrInvalidAuction, st)
		}
	}
	auctions, err := s.repo.ListAuctions(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// SubmitBid validates and records a bid. Validation and the ledger append
// happen while holding the auction's lock, so concurrent bids on one auction
// are applied one at a time in arrival order.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount int64, clientTimestamp time.Time) (models.AcceptedBid, error) {
	if auctionID == "" || bidderID == "" {
		return models.AcceptedBid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return models.AcceptedBid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if amount > money.MaxAmount {
		return models.AcceptedBid{}, fmt.Errorf("service: %w - bid amount above %s", biddingerrors.ErrInvalidBid, money.Format(money.MaxAmount))
	}

	unlock, err := s.locks.Lock(ctx, auctionID)
	if err != nil {
		return models.AcceptedBid{}, fmt.Errorf("service: %w", err)
	}
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AcceptedBid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	now := s.clock.Now()
	if err := s.validateBid(auction, bidderID, amount, now); err != nil {
		return models.AcceptedBid{}, err
	}

	bid := models.Bid{
		BidID:           utils.GenerateID(),
		AuctionID:       auction.AuctionID,
		ItemID:          auction.ItemID,
		BidderID:        bidderID,
		Amount:          amount,
		AcceptedAt:      now,
		ClientTimestamp: clientTimestamp,
	}

	updated := auction
	updated.CurrentBid = amount
	updated.CurrentLeaderID = bidderID
	updated.BidCount++
	updated.UpdatedAt = now

	if err := s.repo.RecordBid(ctx, bid, updated); err != nil {
		return models.AcceptedBid{}, fmt.Errorf("service: failed to record bid for auction %s by bidder %s: %w", auctionID, bidderID, err)
	}

	s.publisher.Publish(events.NewBidEvent(updated, bid))
	if prev := auction.CurrentLeaderID; prev != "" && prev != bidderID {
		s.publisher.Publish(events.OutbidEvent(updated, prev))
	}

	return models.AcceptedBid{Bid: bid, Auction: updated, PreviousLeaderID: auction.CurrentLeaderID}, nil
}

// validateBid checks timing and amount rules against the locked auction state
func (s *BiddingService) validateBid(auction models.Auction, bidderID string, amount int64, now time.Time) error {
	if !auction.Status.AcceptsBids() || !now.Before(auction.EndTime) {
		return fmt.Errorf("service: %w - auction %s is %s (ends %s)", biddingerrors.ErrAuctionNotLive,
			auction.AuctionID, auction.Status, auction.EndTime.Format(time.RFC3339))
	}

	// both operands are non-negative, so the difference cannot overflow
	if amount-auction.CurrentBid < s.minIncrement {
		return fmt.Errorf("service: %w - current bid is %s, minimum raise is %s",
			biddingerrors.ErrBidTooLow, money.Format(auction.CurrentBid), money.Format(s.minIncrement))
	}

	if bidderID == auction.CurrentLeaderID {
		return fmt.Errorf("service: %w - bidder %s leads auction %s", biddingerrors.ErrAlreadyLeading, bidderID, auction.AuctionID)
	}
	return nil
}

// History returns the accepted bids of an auction, oldest first
func (s *BiddingService) History(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// HistoryByItem returns all bids placed on auctions of an item, oldest first
func (s *BiddingService) HistoryByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}
	return bids, nil
}

// Advance moves the auction to the status dictated by the clock. It runs under
// the auction's lock so a transition to ended cannot interleave with a bid.
// The returned flag is false when the auction was already up to date.
func (s *BiddingService) Advance(ctx context.Context, auctionID string) (models.Auction, bool, error) {
	unlock, err := s.locks.Lock(ctx, auctionID)
	if err != nil {
		return models.Auction{}, false, fmt.Errorf("service: %w", err)
	}
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, false, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	now := s.clock.Now()
	target := auction.StatusAt(now, s.endingSoonLead)
	if target.Rank() <= auction.Status.Rank() {
		return auction, false, nil
	}

	if err := s.repo.UpdateAuctionStatus(ctx, auctionID, target, now); err != nil {
		return models.Auction{}, false, fmt.Errorf("service: failed to move auction %s to %s: %w", auctionID, target, err)
	}
	auction.Status = target
	auction.UpdatedAt = now

	if ev, ok := events.StatusEvent(auction); ok {
		s.publisher.Publish(ev)
	}
	return auction, true, nil
}

// Notify sends a generic notification to every connection of a user
func (s *BiddingService) Notify(_ context.Context, userID string, kind events.NotificationKind, message string, data map[string]any) error {
	if userID == "" {
		return fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidNotice)
	}
	if !kind.Valid() {
		return fmt.Errorf("service: %w - unknown notification type %q", biddingerrors.ErrInvalidNotice, kind)
	}
	s.publisher.Publish(events.NotificationEvent(userID, kind, message, data, s.clock.Now()))
	return nil
}
