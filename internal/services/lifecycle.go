package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"
	"auctionhouse/pkg/utils"
)

// LifecycleService recomputes auction status from wall-clock time and bid
// state. It is invoked lazily on every read that matters (snapshot, bid
// placement) and by the background sweep, both through the same Reconcile
// path. Transitions never regress.
type LifecycleService struct {
	auctions   domain.AuctionRepository
	bids       domain.BidRepository
	accounts   domain.AccountDirectory
	stateCache domain.AuctionStateCache
	fanout     *Fanout
	locks      *LockTable
	log        logger.Logger
}

func NewLifecycleService(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	accounts domain.AccountDirectory,
	stateCache domain.AuctionStateCache,
	fanout *Fanout,
	locks *LockTable,
	log logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		auctions:   auctions,
		bids:       bids,
		accounts:   accounts,
		stateCache: stateCache,
		fanout:     fanout,
		locks:      locks,
		log:        log,
	}
}

// completion carries the outcome of an ONGOING -> COMPLETED transition out
// of the locked section so fan-out happens after the lock is released.
type completion struct {
	auction *domain.Auction
	winner  *domain.Bid
	losers  []*domain.Bid
}

// CreateAuction registers a new auction as SCHEDULED and reconciles it
// immediately, so a start date in the past opens it right away.
func (s *LifecycleService) CreateAuction(ctx context.Context, title, productID string, start, end time.Time, priceStep int64) (*domain.Auction, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if priceStep <= 0 {
		return nil, fmt.Errorf("%w: price step must be positive", domain.ErrValidation)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", domain.ErrValidation)
	}

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:        utils.GenerateID("auction"),
		Title:     title,
		ProductID: productID,
		StartTime: start,
		EndTime:   end,
		PriceStep: priceStep,
		Status:    domain.AuctionScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.auctions.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, auction)

	s.log.Info("Auction created", "auction_id", auction.ID, "start", start, "end", end)

	unlock := s.locks.acquire(auction.ID)
	auction, comp, err := s.reconcileLocked(ctx, auction)
	unlock()

	if comp != nil {
		s.fanout.AuctionCompleted(ctx, comp.auction, comp.winner, comp.losers)
	}
	return auction, err
}

// Reconcile brings the auction's status in line with the clock. Idempotent
// and safe to call concurrently; the per-auction lock guarantees the
// COMPLETED transition and winner selection apply exactly once.
func (s *LifecycleService) Reconcile(ctx context.Context, auctionID string) (*domain.Auction, error) {
	unlock := s.locks.acquire(auctionID)
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	var comp *completion
	if err == nil {
		auction, comp, err = s.reconcileLocked(ctx, auction)
	}
	unlock()

	if comp != nil {
		s.fanout.AuctionCompleted(ctx, comp.auction, comp.winner, comp.losers)
	}
	return auction, err
}

// reconcileLocked applies pending transitions. Caller holds the auction lock.
func (s *LifecycleService) reconcileLocked(ctx context.Context, auction *domain.Auction) (*domain.Auction, *completion, error) {
	now := time.Now().UTC()

	if auction.Status == domain.AuctionScheduled && auction.HasStarted(now) {
		if err := s.auctions.UpdateAuctionStatus(ctx, auction.ID, domain.AuctionOngoing); err != nil {
			return auction, nil, err
		}
		auction.Status = domain.AuctionOngoing
		auction.UpdatedAt = now
		s.cacheStatus(ctx, auction)
		s.log.Info("Auction opened", "auction_id", auction.ID)
	}

	if auction.Status == domain.AuctionOngoing && auction.HasEnded(now) {
		comp, err := s.completeLocked(ctx, auction)
		return auction, comp, err
	}

	return auction, nil, nil
}

// completeLocked resolves the winner and finalizes the auction in one atomic
// store operation. Caller holds the auction lock.
func (s *LifecycleService) completeLocked(ctx context.Context, auction *domain.Auction) (*completion, error) {
	winner, err := s.bids.GetHighestBid(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	all, err := s.bids.GetBidsByAuction(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	var losers []*domain.Bid
	var loserIDs []string
	for _, b := range all {
		if b.Status != domain.BidActive {
			continue
		}
		if winner != nil && b.ID == winner.ID {
			continue
		}
		losers = append(losers, b)
		loserIDs = append(loserIDs, b.ID)
	}

	winningBidID, winnerID := "", ""
	if winner != nil {
		winningBidID, winnerID = winner.ID, winner.BidderID
	}

	if err := s.auctions.FinalizeAuction(ctx, auction.ID, winningBidID, winnerID, loserIDs); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Already finalized by a competing path; nothing left to apply.
			return nil, nil
		}
		return nil, err
	}

	auction.Status = domain.AuctionCompleted
	auction.WinnerID = winnerID
	auction.UpdatedAt = time.Now().UTC()
	if winner != nil {
		winner.Status = domain.BidWinning
	}
	for _, b := range losers {
		b.Status = domain.BidLost
	}
	s.cacheStatus(ctx, auction)

	s.log.Info("Auction completed", "auction_id", auction.ID, "winner_id", winnerID, "losing_bids", len(losers))
	return &completion{auction: auction, winner: winner, losers: losers}, nil
}

// CancelAuction is the administrative path. Allowed while SCHEDULED, or
// while ONGOING with no non-cancelled bids.
func (s *LifecycleService) CancelAuction(ctx context.Context, auctionID string) error {
	unlock := s.locks.acquire(auctionID)
	auction, comp, err := s.cancelLocked(ctx, auctionID)
	unlock()

	if comp != nil {
		s.fanout.AuctionCompleted(ctx, comp.auction, comp.winner, comp.losers)
	}
	if err != nil {
		return err
	}

	s.fanout.AuctionCancelled(ctx, auction)
	return nil
}

func (s *LifecycleService) cancelLocked(ctx context.Context, auctionID string) (*domain.Auction, *completion, error) {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}

	auction, comp, err := s.reconcileLocked(ctx, auction)
	if err != nil {
		return nil, comp, err
	}

	switch auction.Status {
	case domain.AuctionScheduled:
	case domain.AuctionOngoing:
		bids, err := s.bids.GetBidsByAuction(ctx, auctionID)
		if err != nil {
			return nil, comp, err
		}
		for _, b := range bids {
			if b.Status != domain.BidCancelled {
				return nil, comp, fmt.Errorf("%w: auction has bids", domain.ErrInvalidState)
			}
		}
	default:
		return nil, comp, fmt.Errorf("%w: auction is %s", domain.ErrInvalidState, auction.Status)
	}

	if err := s.auctions.UpdateAuctionStatus(ctx, auctionID, domain.AuctionCancelled); err != nil {
		return nil, comp, err
	}
	auction.Status = domain.AuctionCancelled
	auction.UpdatedAt = time.Now().UTC()
	s.cacheStatus(ctx, auction)

	s.log.Info("Auction cancelled", "auction_id", auctionID)
	return auction, comp, nil
}

// GetAuctionSnapshot reconciles first, then materializes the live view.
func (s *LifecycleService) GetAuctionSnapshot(ctx context.Context, auctionID string) (*domain.Snapshot, error) {
	auction, err := s.Reconcile(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(ctx, auction, s.bids, s.accounts)
}

// ListBids reconciles first, then returns the auction's bids ordered by the
// store (amount descending).
func (s *LifecycleService) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := s.Reconcile(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bids.GetBidsByAuction(ctx, auctionID)
}

// GetHighestBid reconciles first, then returns the current price-setting bid
// (nil when there is none).
func (s *LifecycleService) GetHighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	if _, err := s.Reconcile(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bids.GetHighestBid(ctx, auctionID)
}

func (s *LifecycleService) cacheStatus(ctx context.Context, auction *domain.Auction) {
	if err := s.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); err != nil {
		s.log.Warn("Failed to cache auction status", "auction_id", auction.ID, "error", err)
	}
}
