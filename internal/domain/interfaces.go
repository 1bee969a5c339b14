package domain

import (
	"context"
	"time"
)

// Repository interfaces. The store is the single source of truth; compound
// writes (bid commit, winner resolution) are atomic at this boundary so a
// partial application can never be observed.

type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error

	// FinalizeAuction applies the whole completion in one atomic unit:
	// status COMPLETED, winner reference, winning bid marked WINNING, loser
	// bids marked LOST. winningBidID and winnerID are empty when the auction
	// closes without bids. It fails with ErrConflict if the auction is no
	// longer ONGOING.
	FinalizeAuction(ctx context.Context, auctionID, winningBidID, winnerID string, loserBidIDs []string) error

	// ListDueAuctions returns auctions whose status no longer matches the
	// clock: SCHEDULED past start, or ONGOING past end.
	ListDueAuctions(ctx context.Context, now time.Time) ([]*Auction, error)
}

type BidRepository interface {
	// CommitBid inserts the bid as ACTIVE, marks outbidBidID OUTBID (when
	// non-empty) and moves the auction end to newEnd (when non-zero), all in
	// one atomic unit.
	CommitBid(ctx context.Context, bid *Bid, outbidBidID string, newEnd time.Time) error

	// CancelBid marks the bid CANCELLED and, when newEnd is non-zero, moves
	// the auction end, atomically.
	CancelBid(ctx context.Context, bidID string, newEnd time.Time) error

	GetBid(ctx context.Context, bidID string) (*Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]*Bid, error)

	// GetHighestBid returns the highest bid counting toward the price
	// (ACTIVE, WINNING or WON), ties broken by earliest creation. Returns
	// (nil, nil) when there is none.
	GetHighestBid(ctx context.Context, auctionID string) (*Bid, error)

	CountBids(ctx context.Context, auctionID string) (int, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotificationsByUser(ctx context.Context, userID string) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
}

// External collaborators. The engine only ever sees these interfaces; their
// implementations belong to other services.

type ParticipationVerifier interface {
	// VerifyParticipation reports whether the user holds a verified deposit
	// for the auction.
	VerifyParticipation(ctx context.Context, auctionID, userID string) (bool, error)
}

type AccountDirectory interface {
	LookupAccount(ctx context.Context, userID string) (*AccountSummary, error)
}

// Cache interfaces. Display only; bid validation never trusts a cache.

type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// Event interfaces.

type EventPublisher interface {
	PublishEvent(ctx context.Context, event *Event) error
}

type EventHandler func(event *Event) error

type EventSubscriber interface {
	SubscribeToEvents(ctx context.Context, handler EventHandler) error
}

// Leader election interface. The background sweep runs on one instance.

type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Live connection interfaces.

type WebSocketConnection interface {
	Send(message []byte) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string, conn WebSocketConnection) error
	BroadcastToAuction(auctionID string, event *Event) error
	NotifyUser(userID string, event *Event) error
	CloseConnectionsForAuction(auctionID string) error
}
