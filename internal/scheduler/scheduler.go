// Package scheduler drives auctions through scheduled -> live -> ending_soon
// -> ended. Each auction has at most one armed one-shot timer; every fire asks
// the bidding service to advance the auction against the clock and then arms
// the next transition.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"antique-auction/internal/biddingerrors"
	"antique-auction/internal/clock"
	"antique-auction/internal/models"
	"antique-auction/utils"
)

const (
	defaultRetryDelay  = 250 * time.Millisecond
	defaultFireTimeout = 5 * time.Second
)

// AuctionAdvancer applies clock-driven status transitions
type AuctionAdvancer interface {
	Advance(ctx context.Context, auctionID string) (models.Auction, bool, error)
	ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]models.Auction, error)
}

type pending struct {
	timer clock.Timer
	gen   uint64
	at    time.Time
}

type Scheduler struct {
	svc        AuctionAdvancer
	clock      clock.Clock
	lead       time.Duration
	retryDelay time.Duration

	mu      sync.Mutex
	timers  map[string]*pending
	gen     uint64
	stopped bool
}

// New creates a Scheduler. lead must match the service's ending-soon lead.
func New(svc AuctionAdvancer, clk clock.Clock, lead time.Duration) *Scheduler {
	return &Scheduler{
		svc:        svc,
		clock:      clk,
		lead:       lead,
		retryDelay: defaultRetryDelay,
		timers:     make(map[string]*pending),
	}
}

// Track arms the timer for the auction's next transition, replacing any
// timer already armed for it. Ended auctions are untracked.
func (s *Scheduler) Track(a models.Auction) {
	at, ok := a.NextTransition(s.lead)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.cancelLocked(a.AuctionID)
	if ok {
		s.armLocked(a.AuctionID, at)
	}
}

// Cancel disarms the auction's timer, if any
func (s *Scheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(auctionID)
}

// Stop disarms every timer. Later Track calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.stopped = true
}

// Pending returns the number of armed timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// NextFire reports when the auction's timer is due
func (s *Scheduler) NextFire(auctionID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.timers[auctionID]
	if !ok {
		return time.Time{}, false
	}
	return p.at, true
}

// Reconcile re-derives every unfinished auction's status from the clock and
// arms its next timer. It is the recovery path for timers lost on restart.
func (s *Scheduler) Reconcile(ctx context.Context) (int, error) {
	auctions, err := s.svc.ListAuctions(ctx, []models.AuctionStatus{
		models.StatusScheduled, models.StatusLive, models.StatusEndingSoon,
	})
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, a := range auctions {
		updated, changed, err := s.svc.Advance(ctx, a.AuctionID)
		if err != nil {
			utils.Warn("scheduler: reconcile failed, retrying on timer", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			s.retry(a.AuctionID)
			continue
		}
		if changed {
			advanced++
			utils.Info("scheduler: reconciled auction", map[string]any{
				"auction_id": updated.AuctionID,
				"from":       a.Status,
				"to":         updated.Status,
			})
		}
		s.Track(updated)
	}
	return advanced, nil
}

func (s *Scheduler) cancelLocked(auctionID string) {
	if p, ok := s.timers[auctionID]; ok {
		p.timer.Stop()
		delete(s.timers, auctionID)
	}
}

func (s *Scheduler) armLocked(auctionID string, at time.Time) {
	s.gen++
	gen := s.gen
	d := at.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	t := s.clock.AfterFunc(d, func() { s.fire(auctionID, gen) })
	s.timers[auctionID] = &pending{timer: t, gen: gen, at: at}
}

func (s *Scheduler) fire(auctionID string, gen uint64) {
	s.mu.Lock()
	p, ok := s.timers[auctionID]
	if s.stopped || !ok || p.gen != gen {
		// stale fire from a timer that was replaced or cancelled
		s.mu.Unlock()
		return
	}
	delete(s.timers, auctionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultFireTimeout)
	defer cancel()

	auction, changed, err := s.svc.Advance(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			utils.Warn("scheduler: auction vanished, dropping timer", map[string]any{"auction_id": auctionID})
			return
		}
		utils.Warn("scheduler: transition failed, retrying", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		s.retry(auctionID)
		return
	}
	if changed {
		utils.Info("scheduler: auction transitioned", map[string]any{
			"auction_id": auction.AuctionID,
			"status":     auction.Status,
		})
	}
	s.Track(auction)
}

// retry arms a short timer unless something else already re-armed the auction
func (s *Scheduler) retry(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, ok := s.timers[auctionID]; ok {
		return
	}
	s.armLocked(auctionID, s.clock.Now().Add(s.retryDelay))
}
