package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/liamba05/Fynnance/internal/db"
	"github.com/liamba05/Fynnance/internal/link"

	"github.com/shopspring/decimal"
)

var ErrUnknownField = errors.New("profile: unknown field")

// Readable/writable profile fields, keyed by API name. Only columns
// in this map are ever interpolated into SQL.
var fieldColumns = map[string]string{
	"first_name":    "first_name",
	"last_name":     "last_name",
	"email":         "email",
	"date_of_birth": "date_of_birth",
	"income":        "income",
	"assets":        "assets",
	"zip_code":      "zip_code",
	"goals":         "goals",
	"preferences":   "preferences",
}

type Store struct {
	db *db.DB
}

func NewStore(db *db.DB) *Store {
	return &Store{db: db}
}

// Ensure creates an empty profile row for the user if none exists.
// Called at registration.
func (s *Store) Ensure(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	var (
		p      Profile
		dob    sql.NullTime
		income decimal.NullDecimal
		assets decimal.NullDecimal
		connID sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, first_name, last_name, email, date_of_birth,
		       income, assets, zip_code, goals, preferences,
		       bank_connected, bank_connection_id, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(
		&p.UserID, &p.FirstName, &p.LastName, &p.Email, &dob,
		&income, &assets, &p.ZipCode, &p.Goals, &p.Preferences,
		&p.BankConnected, &connID, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}
	p.Income = income
	p.Assets = assets
	if connID.Valid {
		id := connID.String
		p.BankConnectionID = &id
	}

	return &p, nil
}

// GetField reads a single profile field by API name. Values come back
// as JSON-encodable types; absent optional fields are nil.
func (s *Store) GetField(ctx context.Context, userID, field string) (any, error) {
	col, ok := fieldColumns[field]
	if !ok {
		return nil, ErrUnknownField
	}

	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE user_id = $1`, col)

	switch field {
	case "date_of_birth":
		var v sql.NullTime
		if err := s.db.QueryRowContext(ctx, query, userID).Scan(&v); err != nil {
			return nil, err
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Time.Format("2006-01-02"), nil

	case "income", "assets":
		var v decimal.NullDecimal
		if err := s.db.QueryRowContext(ctx, query, userID).Scan(&v); err != nil {
			return nil, err
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Decimal.String(), nil

	default:
		var v string
		if err := s.db.QueryRowContext(ctx, query, userID).Scan(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// SetField writes a single profile field by API name, parsing the
// value per the column type.
func (s *Store) SetField(ctx context.Context, userID, field, value string) error {
	col, ok := fieldColumns[field]
	if !ok {
		return ErrUnknownField
	}

	var typed any
	switch field {
	case "date_of_birth":
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return fmt.Errorf("profile: invalid date_of_birth: %w", err)
		}
		typed = t

	case "income", "assets":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("profile: invalid %s: %w", field, err)
		}
		typed = d

	default:
		typed = value
	}

	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s = $2, updated_at = NOW()
		WHERE user_id = $1
	`, col)

	res, err := s.db.ExecContext(ctx, query, userID, typed)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetBankConnection records a durable bank connection. Connected
// flag, connection id and timestamp land in one UPDATE so the
// connected-iff-id invariant can never be observed half-written.
func (s *Store) SetBankConnection(ctx context.Context, userID, connectionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET bank_connected = true,
		    bank_connection_id = $2,
		    updated_at = $3
		WHERE user_id = $1
	`, userID, connectionID, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ConnectionWriter binds the store to one user for the link flow's
// final write.
type ConnectionWriter struct {
	store  *Store
	userID string
}

var _ link.ConnectionWriter = (*ConnectionWriter)(nil)

func NewConnectionWriter(store *Store, userID string) *ConnectionWriter {
	return &ConnectionWriter{store: store, userID: userID}
}

func (w *ConnectionWriter) WriteConnection(ctx context.Context, connectionID string, at time.Time) error {
	return w.store.SetBankConnection(ctx, w.userID, connectionID, at)
}
