package services

import (
	"context"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper is the periodic reconciliation pass: auctions with zero viewers
// still open and close on time. It runs only on the elected leader and goes
// through the same Reconcile path as the lazy reads, so each auction lock is
// held for no more than one transition check.
type Sweeper struct {
	cron       *cron.Cron
	auctions   domain.AuctionRepository
	lifecycle  *LifecycleService
	leader     domain.LeaderElection
	instanceID string
	interval   time.Duration
	log        logger.Logger
}

func NewSweeper(
	auctions domain.AuctionRepository,
	lifecycle *LifecycleService,
	leader domain.LeaderElection,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *Sweeper {
	return &Sweeper{
		cron:       cron.New(cron.WithSeconds()),
		auctions:   auctions,
		lifecycle:  lifecycle,
		leader:     leader,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting lifecycle sweeper", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("Stopping lifecycle sweeper")
	s.cron.Stop()
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	due, err := s.auctions.ListDueAuctions(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("Failed to list due auctions", "error", err)
		return
	}

	for _, auction := range due {
		if _, err := s.lifecycle.Reconcile(ctx, auction.ID); err != nil {
			s.log.Error("Failed to reconcile auction", "auction_id", auction.ID, "error", err)
		}
	}
}
