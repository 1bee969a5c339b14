package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	userID    string
	auctionID string
	sent      [][]byte
	failSend  bool
	closed    bool
}

func newFakeConn(userID, auctionID string) *fakeConn {
	return &fakeConn{userID: userID, auctionID: auctionID}
}

func (f *fakeConn) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSend {
		return errors.New("peer gone")
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) UserID() string    { return f.userID }
func (f *fakeConn) AuctionID() string { return f.auctionID }

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testEvent(auctionID string) *domain.Event {
	return &domain.Event{
		Type:      domain.EventBidUpdate,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
	}
}

func TestBroadcastToAuction(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	alice := newFakeConn("alice", "auction-1")
	bob := newFakeConn("bob", "auction-1")
	other := newFakeConn("carol", "auction-2")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", alice))
	require.NoError(t, cm.RegisterConnection("bob", "auction-1", bob))
	require.NoError(t, cm.RegisterConnection("carol", "auction-2", other))

	require.NoError(t, cm.BroadcastToAuction("auction-1", testEvent("auction-1")))

	require.Equal(t, 1, alice.sentCount())
	require.Equal(t, 1, bob.sentCount())
	require.Equal(t, 0, other.sentCount())
}

func TestBroadcastPrunesDeadConnections(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	dead := newFakeConn("alice", "auction-1")
	dead.failSend = true
	live := newFakeConn("bob", "auction-1")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", dead))
	require.NoError(t, cm.RegisterConnection("bob", "auction-1", live))

	require.NoError(t, cm.BroadcastToAuction("auction-1", testEvent("auction-1")))
	require.True(t, dead.isClosed())

	require.NoError(t, cm.BroadcastToAuction("auction-1", testEvent("auction-1")))
	require.Equal(t, 2, live.sentCount())
	require.Empty(t, cm.connectionsForUser("alice"))
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	old := newFakeConn("alice", "auction-1")
	replacement := newFakeConn("alice", "auction-1")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", old))
	require.NoError(t, cm.RegisterConnection("alice", "auction-1", replacement))

	require.True(t, old.isClosed())
	require.NoError(t, cm.BroadcastToAuction("auction-1", testEvent("auction-1")))
	require.Equal(t, 0, old.sentCount())
	require.Equal(t, 1, replacement.sentCount())
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	old := newFakeConn("alice", "auction-1")
	replacement := newFakeConn("alice", "auction-1")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", old))
	require.NoError(t, cm.RegisterConnection("alice", "auction-1", replacement))

	// The old connection's cleanup runs after the replacement registered.
	require.NoError(t, cm.UnregisterConnection("alice", "auction-1", old))

	require.NoError(t, cm.BroadcastToAuction("auction-1", testEvent("auction-1")))
	require.Equal(t, 1, replacement.sentCount())
}

func TestNotifyUserReachesAllAuctions(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	first := newFakeConn("alice", "auction-1")
	second := newFakeConn("alice", "auction-2")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", first))
	require.NoError(t, cm.RegisterConnection("alice", "auction-2", second))

	require.NoError(t, cm.NotifyUser("alice", testEvent("")))

	require.Equal(t, 1, first.sentCount())
	require.Equal(t, 1, second.sentCount())
}

func TestCloseConnectionsForAuction(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	alice := newFakeConn("alice", "auction-1")
	bob := newFakeConn("bob", "auction-1")
	other := newFakeConn("alice", "auction-2")

	require.NoError(t, cm.RegisterConnection("alice", "auction-1", alice))
	require.NoError(t, cm.RegisterConnection("bob", "auction-1", bob))
	require.NoError(t, cm.RegisterConnection("alice", "auction-2", other))

	require.NoError(t, cm.CloseConnectionsForAuction("auction-1"))

	require.True(t, alice.isClosed())
	require.True(t, bob.isClosed())
	require.False(t, other.isClosed())

	require.NoError(t, cm.NotifyUser("alice", testEvent("")))
	require.Equal(t, 0, alice.sentCount())
	require.Equal(t, 1, other.sentCount())
}
