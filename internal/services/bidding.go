package services

import (
	"context"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"
	"auctionhouse/pkg/utils"
)

// BidService arbitrates concurrent bid submissions. Read-validate-write for
// a given auction runs under that auction's lock, so validation always sees
// the latest committed state and commit order defines the leader. Fan-out
// happens strictly after the lock is released and never affects the commit.
type BidService struct {
	auctions      domain.AuctionRepository
	bids          domain.BidRepository
	participation domain.ParticipationVerifier
	accounts      domain.AccountDirectory
	lifecycle     *LifecycleService
	fanout        *Fanout
	policy        Policy
	locks         *LockTable
	log           logger.Logger
}

func NewBidService(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	participation domain.ParticipationVerifier,
	accounts domain.AccountDirectory,
	lifecycle *LifecycleService,
	fanout *Fanout,
	policy Policy,
	locks *LockTable,
	log logger.Logger,
) *BidService {
	return &BidService{
		auctions:      auctions,
		bids:          bids,
		participation: participation,
		accounts:      accounts,
		lifecycle:     lifecycle,
		fanout:        fanout,
		policy:        policy,
		locks:         locks,
		log:           log,
	}
}

type placeResult struct {
	auction  *domain.Auction
	bid      *domain.Bid
	outbid   *domain.Bid
	snapshot *domain.Snapshot
}

// PlaceBid validates and commits a bid against the latest committed state.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return nil, fmt.Errorf("%w: auction and bidder are required", domain.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", domain.ErrValidation)
	}

	unlock := s.locks.acquire(auctionID)
	res, comp, err := s.placeBidLocked(ctx, auctionID, bidderID, amount)
	unlock()

	if comp != nil {
		s.fanout.AuctionCompleted(ctx, comp.auction, comp.winner, comp.losers)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Bid placed", "auction_id", auctionID, "bidder_id", bidderID,
		"amount", amount, "bid_id", res.bid.ID, "extended", res.snapshot.Extended)
	s.fanout.BidPlaced(ctx, res.auction, res.bid, res.outbid, res.snapshot)
	return res.bid, nil
}

func (s *BidService) placeBidLocked(ctx context.Context, auctionID, bidderID string, amount int64) (*placeResult, *completion, error) {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}

	auction, comp, err := s.lifecycle.reconcileLocked(ctx, auction)
	if err != nil {
		return nil, comp, err
	}

	now := time.Now().UTC()
	if auction.Status != domain.AuctionOngoing || !auction.HasStarted(now) || auction.HasEnded(now) {
		return nil, comp, fmt.Errorf("%w: status is %s", domain.ErrAuctionNotActive, auction.Status)
	}

	verified, err := s.participation.VerifyParticipation(ctx, auctionID, bidderID)
	if err != nil {
		return nil, comp, fmt.Errorf("verify participation: %w", err)
	}
	if !verified {
		return nil, comp, domain.ErrDepositRequired
	}

	// Latest committed state, under the lock. Never a cache.
	highest, err := s.bids.GetHighestBid(ctx, auctionID)
	if err != nil {
		return nil, comp, err
	}

	minBid := auction.PriceStep
	if highest != nil {
		minBid = highest.Amount + auction.PriceStep
	}
	if amount < minBid {
		return nil, comp, &domain.BidTooLowError{Minimum: minBid}
	}

	newEnd, extended := s.policy.ExtendOnBid(auction, now)

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    domain.BidActive,
		CreatedAt: now,
	}

	var outbid *domain.Bid
	outbidID := ""
	if highest != nil && highest.Status == domain.BidActive {
		outbid = highest
		outbidID = highest.ID
	}

	var endArg time.Time
	if extended {
		endArg = newEnd
	}
	if err := s.bids.CommitBid(ctx, bid, outbidID, endArg); err != nil {
		return nil, comp, err
	}

	if outbid != nil {
		outbid.Status = domain.BidOutbid
	}
	if extended {
		auction.EndTime = newEnd
		auction.UpdatedAt = now
	}

	snap, err := buildSnapshot(ctx, auction, s.bids, s.accounts)
	if err != nil {
		// The commit stands; the broadcast just degrades.
		s.log.Warn("Failed to build snapshot after bid", "auction_id", auctionID, "error", err)
		snap = &domain.Snapshot{AuctionID: auctionID, Status: auction.Status.String(), CurrentPrice: amount, EndTime: auction.EndTime}
	}
	snap.Extended = extended

	return &placeResult{auction: auction, bid: bid, outbid: outbid, snapshot: snap}, comp, nil
}

// CancelBid withdraws the requester's own ACTIVE bid. The current leader
// cannot cancel in the last 10 minutes; an allowed leading cancellation
// extends the auction by 5 minutes.
func (s *BidService) CancelBid(ctx context.Context, bidID, requesterID string) error {
	if bidID == "" || requesterID == "" {
		return fmt.Errorf("%w: bid and requester are required", domain.ErrValidation)
	}

	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.BidderID != requesterID {
		return fmt.Errorf("%w: only the bid owner may cancel", domain.ErrPermissionDenied)
	}

	unlock := s.locks.acquire(bid.AuctionID)
	auction, snap, comp, err := s.cancelBidLocked(ctx, bid.AuctionID, bidID)
	unlock()

	if comp != nil {
		s.fanout.AuctionCompleted(ctx, comp.auction, comp.winner, comp.losers)
	}
	if err != nil {
		return err
	}

	s.log.Info("Bid cancelled", "bid_id", bidID, "auction_id", auction.ID, "extended", snap.Extended)
	s.fanout.BidCancelled(ctx, auction, snap)
	return nil
}

func (s *BidService) cancelBidLocked(ctx context.Context, auctionID, bidID string) (*domain.Auction, *domain.Snapshot, *completion, error) {
	// Re-read under the lock; the status may have moved since the ownership
	// check.
	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, nil, err
	}
	if bid.Status != domain.BidActive {
		return nil, nil, nil, fmt.Errorf("%w: bid is %s", domain.ErrInvalidState, bid.Status)
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, nil, err
	}

	auction, comp, err := s.lifecycle.reconcileLocked(ctx, auction)
	if err != nil {
		return nil, nil, comp, err
	}

	now := time.Now().UTC()
	if auction.Status != domain.AuctionOngoing || auction.HasEnded(now) {
		return nil, nil, comp, fmt.Errorf("%w: auction is no longer accepting changes", domain.ErrInvalidState)
	}

	extended := false
	var endArg time.Time

	highest, err := s.bids.GetHighestBid(ctx, auctionID)
	if err != nil {
		return nil, nil, comp, err
	}
	if highest != nil && highest.ID == bid.ID {
		newEnd, allowed := s.policy.CancelAllowed(auction, now)
		if !allowed {
			return nil, nil, comp, fmt.Errorf("%w: cannot cancel the leading bid in the last %s", domain.ErrInvalidState, s.policy.CancelGate)
		}
		endArg = newEnd
		extended = true
	}

	if err := s.bids.CancelBid(ctx, bidID, endArg); err != nil {
		return nil, nil, comp, err
	}

	bid.Status = domain.BidCancelled
	if extended {
		auction.EndTime = endArg
		auction.UpdatedAt = now
	}

	snap, err := buildSnapshot(ctx, auction, s.bids, s.accounts)
	if err != nil {
		s.log.Warn("Failed to build snapshot after cancellation", "auction_id", auctionID, "error", err)
		snap = &domain.Snapshot{AuctionID: auctionID, Status: auction.Status.String(), EndTime: auction.EndTime}
	}
	snap.Extended = extended

	return auction, snap, comp, nil
}

// GetBidsByUser returns a bidder's history across auctions.
func (s *BidService) GetBidsByUser(ctx context.Context, userID string) ([]*domain.Bid, error) {
	return s.bids.GetBidsByUser(ctx, userID)
}
