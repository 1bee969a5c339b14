package services

import (
	"context"
	"testing"
	"time"

	"auctionhouse/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestCreateAuction_Validation(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	tests := []struct {
		name      string
		title     string
		start     time.Time
		end       time.Time
		priceStep int64
	}{
		{"missing title", "", now, now.Add(time.Hour), 10000},
		{"zero price step", "Vintage watch", now, now.Add(time.Hour), 0},
		{"negative price step", "Vintage watch", now, now.Add(time.Hour), -1},
		{"end before start", "Vintage watch", now.Add(time.Hour), now, 10000},
		{"end equals start", "Vintage watch", now, now, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.lifecycle.CreateAuction(context.Background(), tt.title, "product-1", tt.start, tt.end, tt.priceStep)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateAuction_PastStartOpensImmediately(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	auction, err := env.lifecycle.CreateAuction(context.Background(), "Vintage watch", "product-1",
		now.Add(-time.Minute), now.Add(time.Hour), 10000)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionOngoing, auction.Status)
}

func TestCreateAuction_FutureStartStaysScheduled(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	auction, err := env.lifecycle.CreateAuction(context.Background(), "Vintage watch", "product-1",
		now.Add(time.Hour), now.Add(2*time.Hour), 10000)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionScheduled, auction.Status)
}

func TestReconcile_CompletesWithoutBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)

	updated, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, updated.Status)
	require.Empty(t, updated.WinnerID)
}

func TestReconcile_PicksHighestActiveBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)
	now := time.Now().UTC()

	low := seedBid(t, env, auction.ID, "alice", 50000, now.Add(-30*time.Minute))
	high := seedBid(t, env, auction.ID, "bob", 70000, now.Add(-20*time.Minute))
	withdrawn := seedBid(t, env, auction.ID, "carol", 60000, now.Add(-10*time.Minute))
	require.NoError(t, env.store.CancelBid(ctx, withdrawn.ID, time.Time{}))

	updated, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, updated.Status)
	require.Equal(t, "bob", updated.WinnerID)

	statuses := map[string]domain.BidStatus{
		high.ID:      domain.BidWinning,
		low.ID:       domain.BidLost,
		withdrawn.ID: domain.BidCancelled,
	}
	for bidID, want := range statuses {
		bid, err := env.store.GetBid(ctx, bidID)
		require.NoError(t, err)
		require.Equal(t, want, bid.Status, "bid %s", bidID)
	}

	winnerNotes, err := env.store.GetNotificationsByUser(ctx, "bob")
	require.NoError(t, err)
	kinds := make(map[domain.NotificationKind]bool)
	for _, n := range winnerNotes {
		kinds[n.Kind] = true
	}
	require.True(t, kinds[domain.NotificationWon])
	require.True(t, kinds[domain.NotificationPaymentRequired])

	loserNotes, err := env.store.GetNotificationsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, loserNotes, 1)
	require.Equal(t, domain.NotificationLost, loserNotes[0].Kind)
}

func TestReconcile_TieGoesToEarliestBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)
	now := time.Now().UTC()

	earlier := seedBid(t, env, auction.ID, "alice", 50000, now.Add(-30*time.Minute))
	seedBid(t, env, auction.ID, "bob", 50000, now.Add(-20*time.Minute))

	updated, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", updated.WinnerID)

	bid, err := env.store.GetBid(ctx, earlier.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidWinning, bid.Status)
}

func TestReconcile_IdempotentAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)
	seedBid(t, env, auction.ID, "bob", 70000, time.Now().UTC().Add(-20*time.Minute))

	_, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)
	first, err := env.store.GetNotificationsByUser(ctx, "bob")
	require.NoError(t, err)

	updated, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, updated.Status)

	second, err := env.store.GetNotificationsByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, second, len(first), "a second pass must not duplicate notifications")
}

func TestCancelAuction_Scheduled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	auction := seedAuction(t, env, domain.AuctionScheduled, now.Add(time.Hour), now.Add(2*time.Hour), 10000)

	require.NoError(t, env.lifecycle.CancelAuction(ctx, auction.ID))

	updated, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCancelled, updated.Status)
}

func TestCancelAuction_OngoingWithActiveBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())

	err := env.lifecycle.CancelAuction(ctx, auction.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelAuction_OngoingWithOnlyCancelledBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	bid := seedBid(t, env, auction.ID, "alice", 50000, time.Now().UTC())
	require.NoError(t, env.store.CancelBid(ctx, bid.ID, time.Time{}))

	require.NoError(t, env.lifecycle.CancelAuction(ctx, auction.ID))

	updated, err := env.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCancelled, updated.Status)
}

func TestCancelAuction_CompletedRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, -time.Minute, 10000)

	_, err := env.lifecycle.Reconcile(ctx, auction.ID)
	require.NoError(t, err)

	err = env.lifecycle.CancelAuction(ctx, auction.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestGetAuctionSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auction := seedOngoing(t, env, time.Hour, 10000)
	now := time.Now().UTC()
	seedBid(t, env, auction.ID, "alice", 50000, now.Add(-2*time.Minute))
	seedBid(t, env, auction.ID, "bob", 60000, now.Add(-time.Minute))
	env.store.AddAccount(domain.AccountSummary{ID: "bob", Username: "bob", DisplayName: "Bob K"})

	snap, err := env.lifecycle.GetAuctionSnapshot(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, auction.ID, snap.AuctionID)
	require.Equal(t, "ONGOING", snap.Status)
	require.Equal(t, int64(60000), snap.CurrentPrice)
	require.Equal(t, int64(70000), snap.NextMinBid)
	require.Equal(t, 2, snap.TotalBids)
	require.Equal(t, "Bob K", snap.LeaderHandle)
	require.Greater(t, snap.TimeRemaining, int64(0))
}

func TestGetAuctionSnapshot_EmptyAuction(t *testing.T) {
	env := newTestEnv(t)
	auction := seedOngoing(t, env, time.Hour, 10000)

	snap, err := env.lifecycle.GetAuctionSnapshot(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), snap.CurrentPrice)
	require.Equal(t, int64(10000), snap.NextMinBid)
	require.Equal(t, 0, snap.TotalBids)
	require.Empty(t, snap.LeaderHandle)
}
