package services

import "sync"

// LockTable hands out one mutex per auction ID. Every mutation that depends
// on an auction's current state (bid commit, cancellation, extension, status
// transition, winner resolution) runs under that auction's lock; mutations on
// different auctions never block each other.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the auction's lock is held and returns the release
// function. Locks are created lazily and kept for the life of the process;
// the per-auction footprint is a single mutex.
func (t *LockTable) acquire(auctionID string) func() {
	t.mu.Lock()
	l, ok := t.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[auctionID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
