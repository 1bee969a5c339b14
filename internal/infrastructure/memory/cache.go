package memory

import (
	"context"
	"sync"

	"auctionhouse/internal/domain"
)

// StateCache is the in-process AuctionStateCache used in tests and
// single-process runs.
type StateCache struct {
	mu       sync.RWMutex
	statuses map[string]domain.AuctionStatus
}

func NewStateCache() *StateCache {
	return &StateCache{statuses: make(map[string]domain.AuctionStatus)}
}

func (c *StateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[auctionID] = status
	return nil
}

func (c *StateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status, ok := c.statuses[auctionID]
	return status, ok, nil
}
