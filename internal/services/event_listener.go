package services

import (
	"context"
	"fmt"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"
)

// EventListener bridges published events into the local connection registry.
// Every instance runs one, so a bid committed anywhere reaches viewers
// connected everywhere.
type EventListener struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.Event) error {
	if event.UserID != "" {
		return el.connManager.NotifyUser(event.UserID, event)
	}
	if event.AuctionID == "" {
		return fmt.Errorf("event %s has no destination", event.Type)
	}

	if err := el.connManager.BroadcastToAuction(event.AuctionID, event); err != nil {
		return err
	}

	switch event.Type {
	case domain.EventAuctionCompleted, domain.EventAuctionCancelled:
		return el.connManager.CloseConnectionsForAuction(event.AuctionID)
	}
	return nil
}
