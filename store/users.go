package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a row of the users table.
type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	Role               string
	IsBlocked          bool
	MustChangePassword bool
	EmailVerified      bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Users is the credential store.
type Users struct {
	db *sql.DB
}

// NewUsers returns a Users repository over db.
func NewUsers(db *DB) *Users {
	return &Users{db: db.DB}
}

const userColumns = `id, username, email, password_hash, role, is_blocked, must_change_password, email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsBlocked, &u.MustChangePassword, &u.EmailVerified,
		timestamp{&u.CreatedAt}, timestamp{&u.UpdatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create inserts u unless its username or email is already taken
// (case-sensitive). Both the pre-check and the unique constraints report
// ErrDuplicate, so a concurrent duplicate registration cannot slip through.
func (r *Users) Create(ctx context.Context, u *User) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		var taken int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2`,
			u.Username, u.Email,
		).Scan(&taken)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if taken > 0 {
			return ErrDuplicate
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password_hash, role, is_blocked, must_change_password, email_verified, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
			u.IsBlocked, u.MustChangePassword, u.EmailVerified,
			u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

// GetByUsername looks a user up by exact username.
func (r *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// GetByID looks a user up by id.
func (r *Users) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdatePasswordHash replaces the stored hash, used for transparent rehashing.
func (r *Users) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		hash, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectRow(res)
}

// SetBlocked toggles the account lock flag.
func (r *Users) SetBlocked(ctx context.Context, id string, blocked bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_blocked = $1, updated_at = $2 WHERE id = $3`,
		blocked, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
