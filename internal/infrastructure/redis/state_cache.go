package redis

import (
	"context"
	"fmt"

	"auctionhouse/internal/domain"

	"github.com/go-redis/redis/v8"
)

// StateCache mirrors auction statuses for display paths. Bid validation
// never reads it; the store stays authoritative.
type StateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *StateCache {
	return &StateCache{client: client}
}

func (c *StateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction_status:%s", auctionID)
	return c.client.Set(ctx, key, status.String(), 0).Err()
}

func (c *StateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	key := fmt.Sprintf("auction_status:%s", auctionID)

	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.AuctionScheduled, false, nil
		}
		return domain.AuctionScheduled, false, err
	}

	status, err := domain.ParseAuctionStatus(value)
	if err != nil {
		return domain.AuctionScheduled, false, err
	}
	return status, true, nil
}
