package domain

import (
	"fmt"
	"time"
)

type Auction struct {
	ID        string
	Title     string
	ProductID string
	StartTime time.Time
	EndTime   time.Time
	PriceStep int64
	Status    AuctionStatus
	WinnerID  string // empty until the auction completes with a winner
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasStarted reports whether the auction window has opened at the given time.
func (a *Auction) HasStarted(now time.Time) bool {
	return !now.Before(a.StartTime)
}

// HasEnded reports whether the auction window has closed at the given time.
func (a *Auction) HasEnded(now time.Time) bool {
	return !now.Before(a.EndTime)
}

func (a *Auction) TimeRemaining(now time.Time) time.Duration {
	if a.HasEnded(now) {
		return 0
	}
	return a.EndTime.Sub(now)
}

type AuctionStatus int

const (
	AuctionScheduled AuctionStatus = iota
	AuctionOngoing
	AuctionCompleted
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionScheduled:
		return "SCHEDULED"
	case AuctionOngoing:
		return "ONGOING"
	case AuctionCompleted:
		return "COMPLETED"
	case AuctionCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParseAuctionStatus converts the storage representation back to the typed
// status. The string form is the single canonical representation at the
// storage boundary; all comparisons happen on the typed value.
func ParseAuctionStatus(s string) (AuctionStatus, error) {
	switch s {
	case "SCHEDULED":
		return AuctionScheduled, nil
	case "ONGOING":
		return AuctionOngoing, nil
	case "COMPLETED":
		return AuctionCompleted, nil
	case "CANCELLED":
		return AuctionCancelled, nil
	default:
		return AuctionScheduled, fmt.Errorf("unknown auction status %q", s)
	}
}

type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    int64 // smallest currency unit
	Status    BidStatus
	CreatedAt time.Time
}

type BidStatus int

const (
	BidActive BidStatus = iota
	BidOutbid
	BidWinning
	BidWon
	BidLost
	BidCancelled
)

func (s BidStatus) String() string {
	switch s {
	case BidActive:
		return "active"
	case BidOutbid:
		return "outbid"
	case BidWinning:
		return "winning"
	case BidWon:
		return "won"
	case BidLost:
		return "lost"
	case BidCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseBidStatus(s string) (BidStatus, error) {
	switch s {
	case "active":
		return BidActive, nil
	case "outbid":
		return BidOutbid, nil
	case "winning":
		return BidWinning, nil
	case "won":
		return BidWon, nil
	case "lost":
		return BidLost, nil
	case "cancelled":
		return BidCancelled, nil
	default:
		return BidActive, fmt.Errorf("unknown bid status %q", s)
	}
}

// CountsTowardPrice reports whether a bid in this status contributes to the
// auction's current price.
func (s BidStatus) CountsTowardPrice() bool {
	return s == BidActive || s == BidWinning || s == BidWon
}

type NotificationKind string

const (
	NotificationOutbid           NotificationKind = "bid_outbid"
	NotificationWon              NotificationKind = "bid_won"
	NotificationLost             NotificationKind = "bid_lost"
	NotificationPaymentRequired  NotificationKind = "payment_required"
	NotificationAuctionCompleted NotificationKind = "auction_completed"
	NotificationAuctionCancelled NotificationKind = "auction_cancelled"
)

// Notification is the durable per-user record. It is written regardless of
// whether the user is connected; a live push is layered on top.
type Notification struct {
	ID        string
	UserID    string
	AuctionID string
	Kind      NotificationKind
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// AccountSummary is the slice of account data the engine needs from the
// identity collaborator.
type AccountSummary struct {
	ID          string
	Username    string
	DisplayName string
}

// Handle returns the name shown to other participants.
func (a *AccountSummary) Handle() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
