package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/models"

	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// testStores lists every AuctionDB implementation; the ledger cases below run
// against each of them
var testStores = []struct {
	name string
	open func(t *testing.T) AuctionDB
}{
	{name: "memory", open: func(*testing.T) AuctionDB { return NewMemoryRepo() }},
	{name: "gorm", open: newSQLiteRepo},
}

func forEachStore(t *testing.T, fn func(t *testing.T, repo AuctionDB)) {
	for _, store := range testStores {
		t.Run(store.name, func(t *testing.T) {
			t.Parallel()
			fn(t, store.open(t))
		})
	}
}

// Helper to create a new Auction
func newAuction(auctionID, itemID string, startingBid int64, end time.Time) models.Auction {
	return models.Auction{
		AuctionID:   auctionID,
		ItemID:      itemID,
		Title:       fmt.Sprintf("%s title", itemID),
		StartingBid: startingBid,
		CurrentBid:  startingBid,
		StartTime:   base,
		EndTime:     end,
		Status:      models.StatusLive,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

// Helper to create a new Bid along with the auction state it produces
func newBid(auction models.Auction, bidID, bidderID string, amount int64, at time.Time) (models.Bid, models.Auction) {
	bid := models.Bid{
		BidID:      bidID,
		AuctionID:  auction.AuctionID,
		ItemID:     auction.ItemID,
		BidderID:   bidderID,
		Amount:     amount,
		AcceptedAt: at,
	}
	auction.CurrentBid = amount
	auction.CurrentLeaderID = bidderID
	auction.BidCount++
	auction.UpdatedAt = at
	return bid, auction
}

func TestRepo_CreateAndGetAuction(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		a := newAuction("a1", "item1", 10000, base.Add(time.Hour))
		require.NoError(t, repo.CreateAuction(ctx, a))

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, a, got)

		err = repo.CreateAuction(ctx, a)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionExists)

		err = repo.CreateAuction(ctx, newAuction("", "item1", 1, base))
		require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)

		_, err = repo.GetAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

// Test RecordBid
func TestRepo_RecordBid(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		a := newAuction("a1", "item1", 10000, base.Add(time.Hour))
		require.NoError(t, repo.CreateAuction(ctx, a))

		bid1, state1 := newBid(a, "b1", "u1", 10100, base.Add(time.Minute))
		require.NoError(t, repo.RecordBid(ctx, bid1, state1))

		tests := []struct {
			name    string
			build   func() (models.Bid, models.Auction)
			wantErr error
		}{
			{
				name: "equal_amount_violates_ledger_order",
				build: func() (models.Bid, models.Auction) {
					return newBid(state1, "b2", "u2", 10100, base.Add(2*time.Minute))
				},
				wantErr: biddingerrors.ErrLedgerOrder,
			},
			{
				name: "lower_amount_violates_ledger_order",
				build: func() (models.Bid, models.Auction) {
					return newBid(state1, "b3", "u2", 5000, base.Add(2*time.Minute))
				},
				wantErr: biddingerrors.ErrLedgerOrder,
			},
			{
				name: "unknown_auction",
				build: func() (models.Bid, models.Auction) {
					return newBid(newAuction("ghost", "item9", 1, base), "b4", "u2", 50000, base)
				},
				wantErr: biddingerrors.ErrAuctionNotFound,
			},
			{
				name: "mismatched_state",
				build: func() (models.Bid, models.Auction) {
					bid, _ := newBid(state1, "b5", "u2", 50000, base)
					return bid, newAuction("other", "item1", 1, base)
				},
				wantErr: biddingerrors.ErrInvalidBid,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				bid, state := tc.build()
				err := repo.RecordBid(ctx, bid, state)
				require.ErrorIs(t, err, tc.wantErr)
			})
		}

		// rejected writes leave the ledger and the state untouched
		bids, err := repo.GetBidsByAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, []string{"b1"}, bidIDs(bids))
		require.Equal(t, bid1.Amount, bids[0].Amount)
		require.True(t, bids[0].AcceptedAt.Equal(bid1.AcceptedAt))

		_, err = repo.GetBidsByItem(ctx, "item9")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids, "a failed write must not leave a ledger row behind")

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, int64(10100), got.CurrentBid)
		require.Equal(t, "u1", got.CurrentLeaderID)
		require.Equal(t, 1, got.BidCount)
	})
}

func TestRepo_GetBidsByAuction(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		a := newAuction("a1", "item1", 100, base.Add(time.Hour))
		require.NoError(t, repo.CreateAuction(ctx, a))

		_, err := repo.GetBidsByAuction(ctx, "a1")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)

		_, err = repo.GetBidsByAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

		state := a
		for i := 1; i <= 3; i++ {
			var bid models.Bid
			bid, state = newBid(state, fmt.Sprintf("b%d", i), fmt.Sprintf("u%d", i%2), int64(100+i*10), base.Add(time.Duration(i)*time.Second))
			require.NoError(t, repo.RecordBid(ctx, bid, state))
		}

		bids, err := repo.GetBidsByAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, []string{"b1", "b2", "b3"}, bidIDs(bids))
		for i := 1; i < len(bids); i++ {
			require.Greater(t, bids[i].Amount, bids[i-1].Amount)
		}

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, int64(130), got.CurrentBid)
		require.Equal(t, 3, got.BidCount)

		// callers get a copy
		bids[0].Amount = 0
		again, err := repo.GetBidsByAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, int64(110), again[0].Amount)
	})
}

func TestRepo_GetBidsByItem_AcrossAuctions(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		first := newAuction("a1", "item1", 100, base.Add(time.Hour))
		relist := newAuction("a2", "item1", 100, base.Add(2*time.Hour))
		unrelated := newAuction("a3", "item2", 100, base.Add(time.Hour))
		for _, a := range []models.Auction{first, relist, unrelated} {
			require.NoError(t, repo.CreateAuction(ctx, a))
		}

		b1, s1 := newBid(first, "b1", "u1", 200, base.Add(3*time.Second))
		b2, s2 := newBid(relist, "b2", "u2", 150, base.Add(1*time.Second))
		b3, s3 := newBid(unrelated, "b3", "u3", 900, base.Add(2*time.Second))
		require.NoError(t, repo.RecordBid(ctx, b1, s1))
		require.NoError(t, repo.RecordBid(ctx, b2, s2))
		require.NoError(t, repo.RecordBid(ctx, b3, s3))

		bids, err := repo.GetBidsByItem(ctx, "item1")
		require.NoError(t, err)
		require.Equal(t, []string{"b2", "b1"}, bidIDs(bids))

		_, err = repo.GetBidsByItem(ctx, "item-none")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
	})
}

func TestRepo_ListAuctionsAndStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		late := newAuction("late", "i1", 1, base.Add(3*time.Hour))
		early := newAuction("early", "i2", 1, base.Add(time.Hour))
		ended := newAuction("done", "i3", 1, base.Add(2*time.Hour))
		ended.Status = models.StatusEnded
		for _, a := range []models.Auction{late, early, ended} {
			require.NoError(t, repo.CreateAuction(ctx, a))
		}

		all, err := repo.ListAuctions(ctx, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"early", "done", "late"}, ids(all))

		live, err := repo.ListAuctions(ctx, []models.AuctionStatus{models.StatusLive})
		require.NoError(t, err)
		require.Equal(t, []string{"early", "late"}, ids(live))

		open, err := repo.ListAuctions(ctx, []models.AuctionStatus{models.StatusScheduled, models.StatusEnded})
		require.NoError(t, err)
		require.Equal(t, []string{"done"}, ids(open))

		require.NoError(t, repo.UpdateAuctionStatus(ctx, "early", models.StatusEndingSoon, base.Add(time.Minute)))
		got, err := repo.GetAuction(ctx, "early")
		require.NoError(t, err)
		require.Equal(t, models.StatusEndingSoon, got.Status)
		require.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))

		err = repo.UpdateAuctionStatus(ctx, "missing", models.StatusEnded, base)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

// Concurrent writers: the ledger must stay strictly increasing whatever the interleaving
func TestRepo_ConcurrentRecordBid(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo AuctionDB) {
		ctx := context.Background()

		a := newAuction("a1", "item1", 0, base.Add(time.Hour))
		require.NoError(t, repo.CreateAuction(ctx, a))

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				bid, state := newBid(a, fmt.Sprintf("b%d", amount), "u", amount, base)
				_ = repo.RecordBid(ctx, bid, state)
			}(int64(i))
		}
		wg.Wait()

		bids, err := repo.GetBidsByAuction(ctx, "a1")
		require.NoError(t, err)
		require.NotEmpty(t, bids)
		for i := 1; i < len(bids); i++ {
			require.Greater(t, bids[i].Amount, bids[i-1].Amount)
		}
	})
}

func ids(auctions []models.Auction) []string {
	out := make([]string, len(auctions))
	for i, a := range auctions {
		out[i] = a.AuctionID
	}
	return out
}

func bidIDs(bids []models.Bid) []string {
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = b.BidID
	}
	return out
}
