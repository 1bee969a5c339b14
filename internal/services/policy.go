package services

import (
	"time"

	"auctionhouse/internal/domain"
)

// Policy holds the bidding rules that move an auction's closing time.
type Policy struct {
	// A bid committed with at most AntiSnipeWindow remaining pushes the end
	// out by AntiSnipeExtension, measured from the pre-bid end. Every
	// qualifying bid re-triggers it, so an auction only closes after a quiet
	// window with no bids.
	AntiSnipeWindow    time.Duration
	AntiSnipeExtension time.Duration

	// The leading bid cannot be cancelled with CancelGate or less remaining.
	// An accepted leading cancellation still extends the end by
	// CancelExtension to give the remaining bidders reaction time.
	CancelGate      time.Duration
	CancelExtension time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AntiSnipeWindow:    5 * time.Minute,
		AntiSnipeExtension: 5 * time.Minute,
		CancelGate:         10 * time.Minute,
		CancelExtension:    5 * time.Minute,
	}
}

// ExtendOnBid returns the new end time for a bid committed at now, and
// whether an extension applies.
func (p Policy) ExtendOnBid(auction *domain.Auction, now time.Time) (time.Time, bool) {
	if auction.TimeRemaining(now) <= p.AntiSnipeWindow {
		return auction.EndTime.Add(p.AntiSnipeExtension), true
	}
	return auction.EndTime, false
}

// CancelAllowed reports whether the current leader may cancel at now, and
// the extended end time applied when the cancellation goes through.
func (p Policy) CancelAllowed(auction *domain.Auction, now time.Time) (time.Time, bool) {
	if auction.TimeRemaining(now) <= p.CancelGate {
		return auction.EndTime, false
	}
	return auction.EndTime.Add(p.CancelExtension), true
}
