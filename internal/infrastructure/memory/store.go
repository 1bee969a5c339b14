package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"auctionhouse/internal/domain"
)

// Store is a concurrency-safe in-memory implementation of the auction store
// interfaces. It backs the test suites and single-process development runs;
// the compound writes honor the same atomicity contract as the MySQL store.
type Store struct {
	mu             sync.RWMutex
	auctions       map[string]domain.Auction
	bids           map[string]domain.Bid
	notifications  map[string]domain.Notification
	participations map[string]bool // auctionID + "/" + userID
	accounts       map[string]domain.AccountSummary
}

func NewStore() *Store {
	return &Store{
		auctions:       make(map[string]domain.Auction),
		bids:           make(map[string]domain.Bid),
		notifications:  make(map[string]domain.Notification),
		participations: make(map[string]bool),
		accounts:       make(map[string]domain.AccountSummary),
	}
}

// --- AuctionRepository ---

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions[auction.ID] = *auction
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return &auction, nil
}

func (s *Store) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.Status = status
	auction.UpdatedAt = time.Now().UTC()
	s.auctions[auctionID] = auction
	return nil
}

func (s *Store) FinalizeAuction(ctx context.Context, auctionID, winningBidID, winnerID string, loserBidIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if auction.Status != domain.AuctionOngoing {
		return domain.ErrConflict
	}

	auction.Status = domain.AuctionCompleted
	auction.WinnerID = winnerID
	auction.UpdatedAt = time.Now().UTC()
	s.auctions[auctionID] = auction

	if winningBidID != "" {
		if bid, ok := s.bids[winningBidID]; ok {
			bid.Status = domain.BidWinning
			s.bids[winningBidID] = bid
		}
	}
	for _, id := range loserBidIDs {
		if bid, ok := s.bids[id]; ok {
			bid.Status = domain.BidLost
			s.bids[id] = bid
		}
	}
	return nil
}

func (s *Store) ListDueAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.Auction
	for _, auction := range s.auctions {
		a := auction
		switch {
		case a.Status == domain.AuctionScheduled && a.HasStarted(now):
			due = append(due, &a)
		case a.Status == domain.AuctionOngoing && a.HasEnded(now):
			due = append(due, &a)
		}
	}
	return due, nil
}

// --- BidRepository ---

func (s *Store) CommitBid(ctx context.Context, bid *domain.Bid, outbidBidID string, newEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[bid.AuctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}

	s.bids[bid.ID] = *bid

	if outbidBidID != "" {
		prev, ok := s.bids[outbidBidID]
		if !ok {
			delete(s.bids, bid.ID)
			return domain.ErrBidNotFound
		}
		prev.Status = domain.BidOutbid
		s.bids[outbidBidID] = prev
	}

	if !newEnd.IsZero() {
		auction.EndTime = newEnd
		auction.UpdatedAt = time.Now().UTC()
		s.auctions[bid.AuctionID] = auction
	}
	return nil
}

func (s *Store) CancelBid(ctx context.Context, bidID string, newEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return domain.ErrBidNotFound
	}
	bid.Status = domain.BidCancelled
	s.bids[bidID] = bid

	if !newEnd.IsZero() {
		auction, ok := s.auctions[bid.AuctionID]
		if !ok {
			return domain.ErrAuctionNotFound
		}
		auction.EndTime = newEnd
		auction.UpdatedAt = time.Now().UTC()
		s.auctions[bid.AuctionID] = auction
	}
	return nil
}

func (s *Store) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, domain.ErrBidNotFound
	}
	return &bid, nil
}

func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bids []*domain.Bid
	for _, bid := range s.bids {
		if bid.AuctionID != auctionID {
			continue
		}
		b := bid
		bids = append(bids, &b)
	}
	sortBids(bids)
	return bids, nil
}

func (s *Store) GetBidsByUser(ctx context.Context, userID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bids []*domain.Bid
	for _, bid := range s.bids {
		if bid.BidderID != userID {
			continue
		}
		b := bid
		bids = append(bids, &b)
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
	return bids, nil
}

func (s *Store) GetHighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest *domain.Bid
	for _, bid := range s.bids {
		if bid.AuctionID != auctionID || !bid.Status.CountsTowardPrice() {
			continue
		}
		b := bid
		if highest == nil ||
			b.Amount > highest.Amount ||
			(b.Amount == highest.Amount && b.CreatedAt.Before(highest.CreatedAt)) {
			highest = &b
		}
	}
	return highest, nil
}

func (s *Store) CountBids(ctx context.Context, auctionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, bid := range s.bids {
		if bid.AuctionID == auctionID {
			count++
		}
	}
	return count, nil
}

// --- NotificationRepository ---

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) GetNotificationsByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		copied := n
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	if n.UserID != userID {
		return domain.ErrPermissionDenied
	}
	n.Read = true
	s.notifications[notificationID] = n
	return nil
}

// --- ParticipationVerifier ---

func (s *Store) VerifyParticipation(ctx context.Context, auctionID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.participations[auctionID+"/"+userID], nil
}

// RegisterParticipation records a verified deposit for the auction.
func (s *Store) RegisterParticipation(auctionID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participations[auctionID+"/"+userID] = true
}

// --- AccountDirectory ---

func (s *Store) LookupAccount(ctx context.Context, userID string) (*domain.AccountSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[userID]
	if !ok {
		// Accounts live with the identity collaborator; fall back to the ID
		// so snapshots stay usable.
		return &domain.AccountSummary{ID: userID, Username: userID}, nil
	}
	return &account, nil
}

// AddAccount seeds the directory.
func (s *Store) AddAccount(account domain.AccountSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account
}

func sortBids(bids []*domain.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
}
