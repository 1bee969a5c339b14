package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/infrastructure/memory"
	"auctionhouse/pkg/logger"
	"auctionhouse/pkg/utils"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *memory.Store
	bus       *memory.EventBus
	lifecycle *LifecycleService
	bidding   *BidService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	bus := memory.NewEventBus()
	log := logger.NewNop()
	locks := NewLockTable()
	fanout := NewFanout(bus, store, store, store, log)
	lifecycle := NewLifecycleService(store, store, store, memory.NewStateCache(), fanout, locks, log)
	bidding := NewBidService(store, store, store, store, lifecycle, fanout, DefaultPolicy(), locks, log)

	return &testEnv{
		store:     store,
		bus:       bus,
		lifecycle: lifecycle,
		bidding:   bidding,
	}
}

func seedAuction(t *testing.T, env *testEnv, status domain.AuctionStatus, start, end time.Time, priceStep int64) *domain.Auction {
	t.Helper()

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:        utils.GenerateID("auction"),
		Title:     "Vintage watch",
		ProductID: "product-1",
		StartTime: start,
		EndTime:   end,
		PriceStep: priceStep,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.store.CreateAuction(context.Background(), auction))
	return auction
}

func seedOngoing(t *testing.T, env *testEnv, remaining time.Duration, priceStep int64) *domain.Auction {
	t.Helper()

	now := time.Now().UTC()
	return seedAuction(t, env, domain.AuctionOngoing, now.Add(-time.Hour), now.Add(remaining), priceStep)
}

func seedBid(t *testing.T, env *testEnv, auctionID, bidderID string, amount int64, at time.Time) *domain.Bid {
	t.Helper()

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    domain.BidActive,
		CreatedAt: at,
	}
	require.NoError(t, env.store.CommitBid(context.Background(), bid, "", time.Time{}))
	return bid
}

func TestPlaceBid_FirstBidUsesPriceStepMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	env.store.RegisterParticipation(auction.ID, "alice")

	_, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 9999)
	tooLow, ok := domain.AsBidTooLow(err)
	require.True(t, ok)
	require.Equal(t, int64(10000), tooLow.Minimum)

	bid, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 50000)
	require.NoError(t, err)
	require.Equal(t, domain.BidActive, bid.Status)
	require.Equal(t, int64(50000), bid.Amount)
}

func TestPlaceBid_RejectsBidsBelowCurrentPricePlusStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	env.store.RegisterParticipation(auction.ID, "alice")
	env.store.RegisterParticipation(auction.ID, "bob")

	_, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 50000)
	require.NoError(t, err)

	for _, amount := range []int64{50000, 59999} {
		_, err := env.bidding.PlaceBid(ctx, auction.ID, "bob", amount)
		tooLow, ok := domain.AsBidTooLow(err)
		require.True(t, ok, "amount %d should be rejected", amount)
		require.Equal(t, int64(60000), tooLow.Minimum)
	}

	bid, err := env.bidding.PlaceBid(ctx, auction.ID, "bob", 60000)
	require.NoError(t, err)
	require.Equal(t, domain.BidActive, bid.Status)
}

func TestPlaceBid_OutbidsPreviousLeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	env.store.RegisterParticipation(auction.ID, "alice")
	env.store.RegisterParticipation(auction.ID, "bob")

	first, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 50000)
	require.NoError(t, err)

	second, err := env.bidding.PlaceBid(ctx, auction.ID, "bob", 60000)
	require.NoError(t, err)

	stored, err := env.store.GetBid(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidOutbid, stored.Status)

	highest, err := env.store.GetHighestBid(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, highest.ID)

	notifications, err := env.store.GetNotificationsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, domain.NotificationOutbid, notifications[0].Kind)
}

func TestPlaceBid_RequiresVerifiedDeposit(t *testing.T) {
	env := newTestEnv(t)
	auction := seedOngoing(t, env, time.Hour, 10000)

	_, err := env.bidding.PlaceBid(context.Background(), auction.ID, "alice", 50000)
	require.ErrorIs(t, err, domain.ErrDepositRequired)
}

func TestPlaceBid_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	auction := seedOngoing(t, env, time.Hour, 10000)

	tests := []struct {
		name      string
		auctionID string
		bidderID  string
		amount    int64
	}{
		{"missing auction", "", "alice", 50000},
		{"missing bidder", auction.ID, "", 50000},
		{"zero amount", auction.ID, "alice", 0},
		{"negative amount", auction.ID, "alice", -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.bidding.PlaceBid(context.Background(), tt.auctionID, tt.bidderID, tt.amount)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.bidding.PlaceBid(context.Background(), "auction-missing", "alice", 50000)
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestPlaceBid_ScheduledAuctionRejected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	auction := seedAuction(t, env, domain.AuctionScheduled, now.Add(time.Hour), now.Add(2*time.Hour), 10000)
	env.store.RegisterParticipation(auction.ID, "alice")

	_, err := env.bidding.PlaceBid(context.Background(), auction.ID, "alice", 50000)
	require.ErrorIs(t, err, domain.ErrAuctionNotActive)
}

func TestPlaceBid_ExpiredAuctionFinalizesAndRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)
	env.store.RegisterParticipation(auction.ID, "bob")
	winning := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC().Add(-30*time.Minute))

	_, err := env.bidding.PlaceBid(ctx, auction.ID, "bob", 60000)
	require.ErrorIs(t, err, domain.ErrAuctionNotActive)

	stored, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, stored.Status)
	require.Equal(t, "alice", stored.WinnerID)

	bid, err := env.store.GetBid(ctx, winning.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidWinning, bid.Status)
}

func TestPlaceBid_AntiSnipeExtendsFromPreviousEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, 3*time.Minute, 10000)
	env.store.RegisterParticipation(auction.ID, "alice")
	previousEnd := auction.EndTime

	_, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 50000)
	require.NoError(t, err)

	stored, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.EndTime.Equal(previousEnd.Add(5*time.Minute)),
		"end should move from %v to %v, got %v", previousEnd, previousEnd.Add(5*time.Minute), stored.EndTime)
}

func TestPlaceBid_NoExtensionOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, 30*time.Minute, 10000)
	env.store.RegisterParticipation(auction.ID, "alice")
	previousEnd := auction.EndTime

	_, err := env.bidding.PlaceBid(ctx, auction.ID, "alice", 50000)
	require.NoError(t, err)

	stored, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.EndTime.Equal(previousEnd))
}

// Concurrent bidders retry from the minimum carried in the rejection, so
// every one of them eventually commits and each commit outbids the previous
// leader.
func TestPlaceBid_SerializesConcurrentBidders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)

	const bidders = 8
	ids := make([]string, bidders)
	for i := range ids {
		ids[i] = utils.GenerateID("user")
		env.store.RegisterParticipation(auction.ID, ids[i])
	}

	errs := make(chan error, bidders)
	var wg sync.WaitGroup
	for _, bidderID := range ids {
		wg.Add(1)
		go func(bidderID string) {
			defer wg.Done()
			amount := int64(10000)
			for {
				_, err := env.bidding.PlaceBid(ctx, auction.ID, bidderID, amount)
				if err == nil {
					return
				}
				if tooLow, ok := domain.AsBidTooLow(err); ok {
					amount = tooLow.Minimum
					continue
				}
				errs <- err
				return
			}
		}(bidderID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected bid error: %v", err)
	}

	bids, err := env.store.GetBidsByAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, bidders)

	active := 0
	for _, b := range bids {
		switch b.Status {
		case domain.BidActive:
			active++
		case domain.BidOutbid:
		default:
			t.Fatalf("unexpected bid status %s", b.Status)
		}
	}
	require.Equal(t, 1, active)

	highest, err := env.store.GetHighestBid(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10000*bidders), highest.Amount)
}

func TestCancelBid_LeadingOutsideGateExtends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, 15*time.Minute, 10000)
	bid := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())
	previousEnd := auction.EndTime

	require.NoError(t, env.bidding.CancelBid(ctx, bid.ID, "alice"))

	stored, err := env.store.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidCancelled, stored.Status)

	updated, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, updated.EndTime.Equal(previousEnd.Add(5*time.Minute)))

	highest, err := env.store.GetHighestBid(ctx, auction.ID)
	require.NoError(t, err)
	require.Nil(t, highest)
}

func TestCancelBid_LeadingInsideGateBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, 8*time.Minute, 10000)
	bid := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())

	err := env.bidding.CancelBid(ctx, bid.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := env.store.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidActive, stored.Status)
}

func TestCancelBid_NonLeadingIgnoresGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, 8*time.Minute, 10000)
	now := time.Now().UTC()
	seedBid(t, env, auction.ID, "bob", 70000, now)
	trailing := seedBid(t, env, auction.ID, "alice", 50000, now.Add(-time.Minute))
	previousEnd := auction.EndTime

	require.NoError(t, env.bidding.CancelBid(ctx, trailing.ID, "alice"))

	updated, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, updated.EndTime.Equal(previousEnd), "non-leading cancellation must not move the end")
}

func TestCancelBid_RequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	auction := seedOngoing(t, env, time.Hour, 10000)
	bid := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())

	err := env.bidding.CancelBid(context.Background(), bid.ID, "mallory")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCancelBid_OnlyActiveBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	bid := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())

	require.NoError(t, env.bidding.CancelBid(ctx, bid.ID, "alice"))
	err := env.bidding.CancelBid(ctx, bid.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelBid_UnknownBid(t *testing.T) {
	env := newTestEnv(t)

	err := env.bidding.CancelBid(context.Background(), "bid-missing", "alice")
	require.True(t, errors.Is(err, domain.ErrBidNotFound))
}
