package bank

import (
	"context"
	"database/sql"
	"errors"

	"github.com/liamba05/Fynnance/internal/db"
)

// ErrNoLinkedItem means the user has no stored access token for the
// requested item.
var ErrNoLinkedItem = errors.New("bank: no linked item")

// ItemStore persists aggregator access tokens per linked item. The
// access token never leaves the backend; clients only ever see the
// item id.
type ItemStore struct {
	db *db.DB
}

func NewItemStore(db *db.DB) *ItemStore {
	return &ItemStore{db: db}
}

func (s *ItemStore) Save(ctx context.Context, userID, itemID, accessToken string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_items (user_id, item_id, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id)
		DO UPDATE SET access_token = EXCLUDED.access_token
	`, userID, itemID, accessToken)
	return err
}

// AccessToken returns the stored token for a user's item.
func (s *ItemStore) AccessToken(ctx context.Context, userID, itemID string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token FROM bank_items
		WHERE user_id = $1 AND item_id = $2
	`, userID, itemID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoLinkedItem
	}
	return token, err
}
