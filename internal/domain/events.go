package domain

import "time"

// Snapshot is the materialized view of an auction pushed to live viewers.
// Everything in it is re-derivable from the store; no authoritative state
// lives only in the transport layer.
type Snapshot struct {
	AuctionID     string    `json:"auction_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	CurrentPrice  int64     `json:"current_price"`
	NextMinBid    int64     `json:"next_min_bid"`
	TimeRemaining int64     `json:"time_remaining_seconds"`
	TotalBids     int       `json:"total_bids"`
	LeaderHandle  string    `json:"leader_handle,omitempty"`
	EndTime       time.Time `json:"end_time"`
	Extended      bool      `json:"extended,omitempty"`
}

type EventType string

const (
	EventSnapshot         EventType = "snapshot"
	EventBidUpdate        EventType = "bid_update"
	EventAuctionExtended  EventType = "auction_extended"
	EventAuctionCompleted EventType = "auction_completed"
	EventAuctionCancelled EventType = "auction_cancelled"
	EventNotification     EventType = "notification"
)

// Event is the unit of live delivery. AuctionID targets a per-auction
// broadcast; a non-empty UserID targets a unicast instead.
type Event struct {
	Type         EventType     `json:"type"`
	AuctionID    string        `json:"auction_id,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	Snapshot     *Snapshot     `json:"snapshot,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
