package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"auctionhouse/internal/domain"
)

// MySQLAccountRepository is the read-only view onto the accounts owned by
// the identity collaborator.
type MySQLAccountRepository struct {
	db *sql.DB
}

func NewMySQLAccountRepository(db *sql.DB) *MySQLAccountRepository {
	return &MySQLAccountRepository{db: db}
}

func (r *MySQLAccountRepository) LookupAccount(ctx context.Context, userID string) (*domain.AccountSummary, error) {
	query := `SELECT id, username, first_name, last_name FROM accounts WHERE id = ?`

	var account domain.AccountSummary
	var firstName, lastName sql.NullString

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&account.ID, &account.Username, &firstName, &lastName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s not found", userID)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	account.DisplayName = strings.TrimSpace(firstName.String + " " + lastName.String)
	return &account, nil
}
