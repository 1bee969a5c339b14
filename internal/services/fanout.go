package services

import (
	"context"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"
	"auctionhouse/pkg/utils"
)

// Fanout propagates committed state changes to live participants and writes
// the durable notification records. Everything here is best-effort: failures
// are logged and swallowed, never rolled back into a commit.
type Fanout struct {
	publisher     domain.EventPublisher
	notifications domain.NotificationRepository
	accounts      domain.AccountDirectory
	bids          domain.BidRepository
	log           logger.Logger
}

func NewFanout(
	publisher domain.EventPublisher,
	notifications domain.NotificationRepository,
	accounts domain.AccountDirectory,
	bids domain.BidRepository,
	log logger.Logger,
) *Fanout {
	return &Fanout{
		publisher:     publisher,
		notifications: notifications,
		accounts:      accounts,
		bids:          bids,
		log:           log,
	}
}

// BidPlaced broadcasts the new snapshot to the auction's viewers and, when a
// different bidder was just overtaken, records and pushes an outbid
// notification to them.
func (f *Fanout) BidPlaced(ctx context.Context, auction *domain.Auction, bid, outbid *domain.Bid, snap *domain.Snapshot) {
	f.publish(ctx, &domain.Event{
		Type:      domain.EventBidUpdate,
		AuctionID: auction.ID,
		Snapshot:  snap,
		Timestamp: time.Now().UTC(),
	})

	if snap.Extended {
		f.publish(ctx, &domain.Event{
			Type:      domain.EventAuctionExtended,
			AuctionID: auction.ID,
			Snapshot:  snap,
			Timestamp: time.Now().UTC(),
		})
	}

	if outbid != nil && outbid.BidderID != bid.BidderID {
		bidderName := "Another bidder"
		if account, err := f.accounts.LookupAccount(ctx, bid.BidderID); err == nil && account != nil {
			bidderName = account.Handle()
		}
		f.record(ctx, &domain.Notification{
			UserID:    outbid.BidderID,
			AuctionID: auction.ID,
			Kind:      domain.NotificationOutbid,
			Title:     "You have been outbid!",
			Message:   fmt.Sprintf("%s placed a higher bid of %d on %s", bidderName, bid.Amount, auction.Title),
		})
	}
}

// BidCancelled broadcasts the recomputed snapshot after a cancellation.
func (f *Fanout) BidCancelled(ctx context.Context, auction *domain.Auction, snap *domain.Snapshot) {
	f.publish(ctx, &domain.Event{
		Type:      domain.EventBidUpdate,
		AuctionID: auction.ID,
		Snapshot:  snap,
		Timestamp: time.Now().UTC(),
	})

	if snap.Extended {
		f.publish(ctx, &domain.Event{
			Type:      domain.EventAuctionExtended,
			AuctionID: auction.ID,
			Snapshot:  snap,
			Timestamp: time.Now().UTC(),
		})
	}
}

// AuctionCompleted notifies the winner and losers and broadcasts the final
// state to the auction channel.
func (f *Fanout) AuctionCompleted(ctx context.Context, auction *domain.Auction, winner *domain.Bid, losers []*domain.Bid) {
	if winner != nil {
		f.record(ctx, &domain.Notification{
			UserID:    winner.BidderID,
			AuctionID: auction.ID,
			Kind:      domain.NotificationWon,
			Title:     "You won the auction!",
			Message:   fmt.Sprintf("Your bid of %d won %s", winner.Amount, auction.Title),
		})
		f.record(ctx, &domain.Notification{
			UserID:    winner.BidderID,
			AuctionID: auction.ID,
			Kind:      domain.NotificationPaymentRequired,
			Title:     "Payment required",
			Message:   fmt.Sprintf("Complete the payment of %d for %s to claim your item", winner.Amount, auction.Title),
		})
	}

	notified := make(map[string]bool)
	if winner != nil {
		notified[winner.BidderID] = true
	}
	for _, b := range losers {
		if notified[b.BidderID] {
			continue
		}
		notified[b.BidderID] = true
		f.record(ctx, &domain.Notification{
			UserID:    b.BidderID,
			AuctionID: auction.ID,
			Kind:      domain.NotificationLost,
			Title:     "Auction ended",
			Message:   fmt.Sprintf("Your bid on %s did not win", auction.Title),
		})
	}

	snap, err := buildSnapshot(ctx, auction, f.bids, f.accounts)
	if err != nil {
		f.log.Warn("Failed to build completion snapshot", "auction_id", auction.ID, "error", err)
		snap = &domain.Snapshot{AuctionID: auction.ID, Status: auction.Status.String(), EndTime: auction.EndTime}
	}
	f.publish(ctx, &domain.Event{
		Type:      domain.EventAuctionCompleted,
		AuctionID: auction.ID,
		Snapshot:  snap,
		Timestamp: time.Now().UTC(),
	})
}

// AuctionCancelled records a notification for every participant and
// broadcasts the cancellation.
func (f *Fanout) AuctionCancelled(ctx context.Context, auction *domain.Auction) {
	bids, err := f.bids.GetBidsByAuction(ctx, auction.ID)
	if err != nil {
		f.log.Warn("Failed to list participants for cancellation", "auction_id", auction.ID, "error", err)
		bids = nil
	}
	notified := make(map[string]bool)
	for _, b := range bids {
		if notified[b.BidderID] {
			continue
		}
		notified[b.BidderID] = true
		f.record(ctx, &domain.Notification{
			UserID:    b.BidderID,
			AuctionID: auction.ID,
			Kind:      domain.NotificationAuctionCancelled,
			Title:     "Auction cancelled",
			Message:   fmt.Sprintf("%s has been cancelled", auction.Title),
		})
	}

	f.publish(ctx, &domain.Event{
		Type:      domain.EventAuctionCancelled,
		AuctionID: auction.ID,
		Timestamp: time.Now().UTC(),
	})
}

// record writes the durable notification and pushes it live to the user.
func (f *Fanout) record(ctx context.Context, n *domain.Notification) {
	n.ID = utils.GenerateID("notification")
	n.CreatedAt = time.Now().UTC()

	if err := f.notifications.CreateNotification(ctx, n); err != nil {
		f.log.Error("Failed to record notification", "user_id", n.UserID,
			"auction_id", n.AuctionID, "kind", n.Kind, "error", err)
		return
	}

	f.publish(ctx, &domain.Event{
		Type:         domain.EventNotification,
		UserID:       n.UserID,
		AuctionID:    n.AuctionID,
		Notification: n,
		Timestamp:    n.CreatedAt,
	})
}

func (f *Fanout) publish(ctx context.Context, event *domain.Event) {
	if err := f.publisher.PublishEvent(ctx, event); err != nil {
		f.log.Error("Failed to publish event", "type", event.Type,
			"auction_id", event.AuctionID, "user_id", event.UserID, "error", err)
	}
}
