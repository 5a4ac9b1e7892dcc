package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// auctionRecord is the persistence model of models.Auction
type auctionRecord struct {
	ID              string `gorm:"primaryKey;size:64"`
	ItemID          string `gorm:"size:64;not null;index"`
	Title           string `gorm:"size:255;not null"`
	StartingBid     int64  `gorm:"not null"`
	CurrentBid      int64  `gorm:"not null"`
	CurrentLeaderID string `gorm:"size:64"`
	BidCount        int    `gorm:"not null;default:0"`
	StartTime       time.Time
	EndTime         time.Time `gorm:"index"`
	Status          string    `gorm:"size:16;not null;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (auctionRecord) TableName() string { return "auctions" }

// bidRecord is one ledger row. Rows are only ever inserted.
type bidRecord struct {
	ID              string    `gorm:"primaryKey;size:64"`
	AuctionID       string    `gorm:"size:64;not null;index:idx_bids_auction_amount,priority:1"`
	ItemID          string    `gorm:"size:64;not null;index"`
	BidderID        string    `gorm:"size:64;not null"`
	Amount          int64     `gorm:"not null;index:idx_bids_auction_amount,priority:2"`
	AcceptedAt      time.Time `gorm:"not null"`
	ClientTimestamp time.Time
}

func (bidRecord) TableName() string { return "bids" }

// GormRepo is a PostgreSQL implementation of AuctionDB
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo connects to PostgreSQL and migrates the schema
func NewGormRepo(dsn string) (*GormRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormRepoFromDB(db)
}

// NewGormRepoFromDB wraps an existing connection and migrates the schema
func NewGormRepoFromDB(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&auctionRecord{}, &bidRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormRepo{db: db}, nil
}

func (r *GormRepo) CreateAuction(ctx context.Context, auction models.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	rec := toAuctionRecord(auction)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
		}
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var rec auctionRecord
	err := r.db.WithContext(ctx).Where("id = ?", auctionID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return fromAuctionRecord(rec), nil
}

func (r *GormRepo) ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error) {
	q := r.db.WithContext(ctx).Order("end_time ASC").Order("id ASC")
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q = q.Where("status IN ?", names)
	}

	var recs []auctionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	out := make([]models.Auction, len(recs))
	for i, rec := range recs {
		out[i] = fromAuctionRecord(rec)
	}
	return out, nil
}

func (r *GormRepo) UpdateAuctionStatus(ctx context.Context, auctionID string, status models.AuctionStatus, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&auctionRecord{}).
		Where("id = ?", auctionID).
		Updates(map[string]any{"status": string(status), "updated_at": updatedAt})
	if res.Error != nil {
		return fmt.Errorf("update status of auction %s: %w", auctionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update status of auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

// RecordBid inserts the ledger row and updates the auction inside one transaction.
func (r *GormRepo) RecordBid(ctx context.Context, bid models.Bid, auction models.Auction) error {
	if bid.AuctionID != auction.AuctionID {
		return fmt.Errorf("record bid %s: %w - bid auction %s does not match state %s",
			bid.BidID, biddingerrors.ErrInvalidBid, bid.AuctionID, auction.AuctionID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last bidRecord
		res := tx.Where("auction_id = ?", bid.AuctionID).Order("amount DESC").Limit(1).Find(&last)
		if res.Error != nil {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, res.Error)
		}
		if res.RowsAffected > 0 && last.Amount >= bid.Amount {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrLedgerOrder)
		}

		rec := toBidRecord(bid)
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
		}

		upd := tx.Model(&auctionRecord{}).
			Where("id = ?", auction.AuctionID).
			Updates(map[string]any{
				"current_bid":       auction.CurrentBid,
				"current_leader_id": auction.CurrentLeaderID,
				"bid_count":         auction.BidCount,
				"updated_at":        auction.UpdatedAt,
			})
		if upd.Error != nil {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, upd.Error)
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
		return nil
	})
}

func (r *GormRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}

	var recs []bidRecord
	if err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).Order("amount ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return fromBidRecords(recs), nil
}

func (r *GormRepo) GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	var recs []bidRecord
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("accepted_at ASC").Order("amount ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return fromBidRecords(recs), nil
}

func toAuctionRecord(a models.Auction) auctionRecord {
	return auctionRecord{
		ID:              a.AuctionID,
		ItemID:          a.ItemID,
		Title:           a.Title,
		StartingBid:     a.StartingBid,
		CurrentBid:      a.CurrentBid,
		CurrentLeaderID: a.CurrentLeaderID,
		BidCount:        a.BidCount,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromAuctionRecord(rec auctionRecord) models.Auction {
	return models.Auction{
		AuctionID:       rec.ID,
		ItemID:          rec.ItemID,
		Title:           rec.Title,
		StartingBid:     rec.StartingBid,
		CurrentBid:      rec.CurrentBid,
		CurrentLeaderID: rec.CurrentLeaderID,
		BidCount:        rec.BidCount,
		StartTime:       rec.StartTime.UTC(),
		EndTime:         rec.EndTime.UTC(),
		Status:          models.AuctionStatus(rec.Status),
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
}

func toBidRecord(b models.Bid) bidRecord {
	return bidRecord{
		ID:              b.BidID,
		AuctionID:       b.AuctionID,
		ItemID:          b.ItemID,
		BidderID:        b.BidderID,
		Amount:          b.Amount,
		AcceptedAt:      b.AcceptedAt,
		ClientTimestamp: b.ClientTimestamp,
	}
}

func fromBidRecords(recs []bidRecord) []models.Bid {
	out := make([]models.Bid, len(recs))
	for i, rec := range recs {
		out[i] = models.Bid{
			BidID:           rec.ID,
			AuctionID:       rec.AuctionID,
			ItemID:          rec.ItemID,
			BidderID:        rec.BidderID,
			Amount:          rec.Amount,
			AcceptedAt:      rec.AcceptedAt.UTC(),
			ClientTimestamp: rec.ClientTimestamp.UTC(),
		}
	}
	return out
}
