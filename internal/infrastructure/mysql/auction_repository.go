package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/domain"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, product_id, start_time, end_time, price_step, status, winner_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, auction.ProductID,
		auction.StartTime, auction.EndTime, auction.PriceStep,
		auction.Status.String(), nullable(auction.WinnerID),
		auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `
        SELECT id, title, product_id, start_time, end_time, price_step, status, winner_id, created_at, updated_at
        FROM auctions WHERE id = ?
    `
	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, status.String(), time.Now().UTC(), auctionID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

// FinalizeAuction applies the completion as one transaction: auction row
// locked FOR UPDATE, status guard against double application, winner and
// loser bid classifications.
func (r *MySQLAuctionRepository) FinalizeAuction(ctx context.Context, auctionID, winningBidID, winnerID string, loserBidIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx, `SELECT status FROM auctions WHERE id = ? FOR UPDATE`, auctionID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAuctionNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	current, err := domain.ParseAuctionStatus(status)
	if err != nil {
		return err
	}
	if current != domain.AuctionOngoing {
		return domain.ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET status = ?, winner_id = ?, updated_at = ? WHERE id = ?`,
		domain.AuctionCompleted.String(), nullable(winnerID), time.Now().UTC(), auctionID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if winningBidID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET status = ? WHERE id = ?`,
			domain.BidWinning.String(), winningBidID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
	}

	for _, bidID := range loserBidIDs {
		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET status = ? WHERE id = ?`,
			domain.BidLost.String(), bidID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) ListDueAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT id, title, product_id, start_time, end_time, price_step, status, winner_id, created_at, updated_at
        FROM auctions
        WHERE (status = ? AND start_time <= ?) OR (status = ? AND end_time <= ?)
    `
	rows, err := r.db.QueryContext(ctx, query,
		domain.AuctionScheduled.String(), now,
		domain.AuctionOngoing.String(), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status string
	var winnerID sql.NullString

	err := row.Scan(&auction.ID, &auction.Title, &auction.ProductID,
		&auction.StartTime, &auction.EndTime, &auction.PriceStep,
		&status, &winnerID, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseAuctionStatus(status)
	if err != nil {
		return nil, err
	}
	auction.Status = parsed
	auction.WinnerID = winnerID.String
	return &auction, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
