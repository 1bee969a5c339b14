package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrBidNotFound          = errors.New("bid not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrAuctionNotActive covers both a wrong status and being outside the
	// bidding window.
	ErrAuctionNotActive = errors.New("auction is not accepting bids")

	// ErrDepositRequired means the bidder has no verified participation
	// record for the auction.
	ErrDepositRequired = errors.New("deposit payment required before bidding")

	ErrInvalidState     = errors.New("operation not permitted in current state")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("invalid input")

	// ErrConflict signals a lost race under the per-auction lock. Safe to
	// retry once.
	ErrConflict = errors.New("conflicting concurrent update")

	ErrUnavailable = errors.New("storage unavailable")
)

// BidTooLowError carries the computed minimum so the caller can act on it.
type BidTooLowError struct {
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %d", e.Minimum)
}

// AsBidTooLow unwraps err into a BidTooLowError if it is one.
func AsBidTooLow(err error) (*BidTooLowError, bool) {
	var tooLow *BidTooLowError
	if errors.As(err, &tooLow) {
		return tooLow, true
	}
	return nil, false
}
