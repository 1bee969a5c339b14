package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

// CommitBid inserts the bid, demotes the previous highest and extends the
// auction end in one transaction. A failure anywhere rolls the whole unit
// back, so a half-applied commit is never visible.
func (r *MySQLBidRepository) CommitBid(ctx context.Context, bid *domain.Bid, outbidBidID string, newEnd time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.Status.String(), bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if outbidBidID != "" {
		result, err := tx.ExecContext(ctx,
			`UPDATE bids SET status = ? WHERE id = ? AND status = ?`,
			domain.BidOutbid.String(), outbidBidID, domain.BidActive.String())
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return domain.ErrConflict
		}
	}

	if !newEnd.IsZero() {
		_, err := tx.ExecContext(ctx,
			`UPDATE auctions SET end_time = ?, updated_at = ? WHERE id = ?`,
			newEnd, time.Now().UTC(), bid.AuctionID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLBidRepository) CancelBid(ctx context.Context, bidID string, newEnd time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer tx.Rollback()

	var auctionID string
	row := tx.QueryRowContext(ctx, `SELECT auction_id FROM bids WHERE id = ? FOR UPDATE`, bidID)
	if err := row.Scan(&auctionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrBidNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bids SET status = ? WHERE id = ?`,
		domain.BidCancelled.String(), bidID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if !newEnd.IsZero() {
		_, err := tx.ExecContext(ctx,
			`UPDATE auctions SET end_time = ?, updated_at = ? WHERE id = ?`,
			newEnd, time.Now().UTC(), auctionID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, status, created_at FROM bids WHERE id = ?`
	bid, err := scanBid(r.db.QueryRowContext(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) GetBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, status, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY amount DESC, created_at ASC
    `
	return r.queryBids(ctx, query, auctionID)
}

func (r *MySQLBidRepository) GetBidsByUser(ctx context.Context, userID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, status, created_at
        FROM bids WHERE bidder_id = ?
        ORDER BY created_at DESC
    `
	return r.queryBids(ctx, query, userID)
}

func (r *MySQLBidRepository) GetHighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, status, created_at
        FROM bids
        WHERE auction_id = ? AND status IN (?, ?, ?)
        ORDER BY amount DESC, created_at ASC
        LIMIT 1
    `
	bid, err := scanBid(r.db.QueryRowContext(ctx, query, auctionID,
		domain.BidActive.String(), domain.BidWinning.String(), domain.BidWon.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) CountBids(ctx context.Context, auctionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return count, nil
}

func (r *MySQLBidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var status string

	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &status, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseBidStatus(status)
	if err != nil {
		return nil, err
	}
	bid.Status = parsed
	return &bid, nil
}
