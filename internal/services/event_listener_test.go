package services

import (
	"testing"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"

	"github.com/stretchr/testify/require"
)

type recordingConnManager struct {
	broadcasts []string
	unicasts   []string
	closed     []string
}

func (r *recordingConnManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	return nil
}

func (r *recordingConnManager) UnregisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	return nil
}

func (r *recordingConnManager) BroadcastToAuction(auctionID string, event *domain.Event) error {
	r.broadcasts = append(r.broadcasts, auctionID)
	return nil
}

func (r *recordingConnManager) NotifyUser(userID string, event *domain.Event) error {
	r.unicasts = append(r.unicasts, userID)
	return nil
}

func (r *recordingConnManager) CloseConnectionsForAuction(auctionID string) error {
	r.closed = append(r.closed, auctionID)
	return nil
}

func TestEventListener_RoutesEvents(t *testing.T) {
	cm := &recordingConnManager{}
	listener := NewEventListener(cm, logger.NewNop())

	require.NoError(t, listener.handleEvent(&domain.Event{
		Type:      domain.EventBidUpdate,
		AuctionID: "auction-1",
		Timestamp: time.Now().UTC(),
	}))
	require.Equal(t, []string{"auction-1"}, cm.broadcasts)
	require.Empty(t, cm.closed)

	require.NoError(t, listener.handleEvent(&domain.Event{
		Type:      domain.EventNotification,
		AuctionID: "auction-1",
		UserID:    "alice",
		Timestamp: time.Now().UTC(),
	}))
	require.Equal(t, []string{"alice"}, cm.unicasts)
	require.Equal(t, []string{"auction-1"}, cm.broadcasts, "unicast events must not broadcast")
}

func TestEventListener_ClosesConnectionsOnTerminalEvents(t *testing.T) {
	cm := &recordingConnManager{}
	listener := NewEventListener(cm, logger.NewNop())

	require.NoError(t, listener.handleEvent(&domain.Event{
		Type:      domain.EventAuctionCompleted,
		AuctionID: "auction-1",
		Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, listener.handleEvent(&domain.Event{
		Type:      domain.EventAuctionCancelled,
		AuctionID: "auction-2",
		Timestamp: time.Now().UTC(),
	}))

	require.Equal(t, []string{"auction-1", "auction-2"}, cm.closed)
}
