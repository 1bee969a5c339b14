package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"auctionhouse/internal/domain"
)

// MySQLParticipationRepository reads the payment records written by the
// external settlement service. A bidder participates once a deposit payment
// for the auction has completed.
type MySQLParticipationRepository struct {
	db *sql.DB
}

func NewMySQLParticipationRepository(db *sql.DB) *MySQLParticipationRepository {
	return &MySQLParticipationRepository{db: db}
}

func (r *MySQLParticipationRepository) VerifyParticipation(ctx context.Context, auctionID, userID string) (bool, error) {
	query := `
        SELECT COUNT(*) FROM payments
        WHERE auction_id = ? AND user_id = ? AND payment_type = 'deposit' AND payment_status = 'completed'
    `
	var count int
	if err := r.db.QueryRowContext(ctx, query, auctionID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return count > 0, nil
}
