package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB stores auction state and the append-only bid ledger
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status models.AuctionStatus, updatedAt time.Time) error
	// RecordBid appends bid to the ledger and stores auction as the new state in one step.
	RecordBid(ctx context.Context, bid models.Bid, auction models.Auction) error
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu           sync.RWMutex
	auctions     map[string]models.Auction // key: auctionID -> value: auction state
	bids         map[string][]models.Bid   // key: auctionID -> value: ledger, oldest first
	itemAuctions map[string][]string       // key: itemID -> value: auctionIDs for the item
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:     make(map[string]models.Auction),
		bids:         make(map[string][]models.Bid),
		itemAuctions: make(map[string][]string),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
	}

	r.auctions[auction.AuctionID] = auction
	r.itemAuctions[auction.ItemID] = append(r.itemAuctions[auction.ItemID], auction.AuctionID)
	return nil
}

// GetAuction returns the current state of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns auctions in the given statuses (all when empty), ordered by end time
func (r *MemoryRepo) ListAuctions(_ context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[models.AuctionStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	out := make([]models.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if len(want) == 0 || want[a.Status] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out, nil
}

// UpdateAuctionStatus sets the lifecycle status of an auction
func (r *MemoryRepo) UpdateAuctionStatus(_ context.Context, auctionID string, status models.AuctionStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("update status of auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	auction.Status = status
	auction.UpdatedAt = updatedAt
	r.auctions[auctionID] = auction
	return nil
}

// RecordBid appends a bid to the auction ledger and replaces the auction state
func (r *MemoryRepo) RecordBid(_ context.Context, bid models.Bid, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bid.AuctionID != auction.AuctionID {
		return fmt.Errorf("record bid %s: %w - bid auction %s does not match state %s",
			bid.BidID, biddingerrors.ErrInvalidBid, bid.AuctionID, auction.AuctionID)
	}
	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}

	ledger := r.bids[bid.AuctionID]
	if n := len(ledger); n > 0 && ledger[n-1].Amount >= bid.Amount {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrLedgerOrder)
	}

	r.bids[bid.AuctionID] = append(ledger, bid)
	r.auctions[bid.AuctionID] = auction
	return nil
}

// GetBidsByAuction returns the ledger of an auction, oldest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

// GetBidsByItem returns every bid placed on any auction of an item, oldest first
func (r *MemoryRepo) GetBidsByItem(_ context.Context, itemID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bids []models.Bid
	for _, auctionID := range r.itemAuctions[itemID] {
		bids = append(bids, r.bids[auctionID]...)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].AcceptedAt.Before(bids[j].AcceptedAt) })
	return bids, nil
}
