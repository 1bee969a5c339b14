package services

import (
	"context"
	"time"

	"auctionhouse/internal/domain"
)

// buildSnapshot materializes the live view of an auction from committed
// state. The leader handle comes from the account directory; a failed lookup
// degrades to an empty handle rather than failing the snapshot.
func buildSnapshot(ctx context.Context, auction *domain.Auction, bids domain.BidRepository, accounts domain.AccountDirectory) (*domain.Snapshot, error) {
	highest, err := bids.GetHighestBid(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	total, err := bids.CountBids(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snap := &domain.Snapshot{
		AuctionID:     auction.ID,
		Title:         auction.Title,
		Status:        auction.Status.String(),
		NextMinBid:    auction.PriceStep,
		TimeRemaining: int64(auction.TimeRemaining(now) / time.Second),
		TotalBids:     total,
		EndTime:       auction.EndTime,
	}

	if highest != nil {
		snap.CurrentPrice = highest.Amount
		snap.NextMinBid = highest.Amount + auction.PriceStep
		if account, err := accounts.LookupAccount(ctx, highest.BidderID); err == nil && account != nil {
			snap.LeaderHandle = account.Handle()
		}
	}

	return snap, nil
}
