package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device is a row of the devices table.
//
// TokenHash is the hex SHA-256 of the one token currently valid for the
// device; the token itself is never stored.
type Device struct {
	ID           string
	UserID       string
	DeviceID     string
	Name         string
	Type         string
	OS           string
	Browser      string
	IPAddress    string
	TokenHash    string
	TokenVersion int64
	IsActive     bool
	IsTrusted    bool
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeviceMeta is the client-reported device description sent with a login.
// Empty fields are treated as omitted and keep the stored value.
type DeviceMeta struct {
	DeviceID  string
	Name      string
	Type      string
	OS        string
	Browser   string
	IPAddress string
}

// Devices is the device registry. Every lookup is scoped by user.
type Devices struct {
	db DBTX
}

// NewDevices returns a Devices repository over db.
func NewDevices(db *DB) *Devices {
	return &Devices{db: db.DB}
}

const deviceColumns = `id, user_id, device_id, device_name, device_type, os, browser, ip_address,
	token_hash, token_version, is_active, is_trusted, last_login_at, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*Device, error) {
	var (
		d                                  Device
		name, typ, osName, browser, ipAddr sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.DeviceID, &name, &typ, &osName, &browser, &ipAddr,
		&d.TokenHash, &d.TokenVersion, &d.IsActive, &d.IsTrusted,
		timestamp{&d.LastLoginAt}, timestamp{&d.CreatedAt}, timestamp{&d.UpdatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	d.Name, d.Type, d.OS, d.Browser, d.IPAddress = name.String, typ.String, osName.String, browser.String, ipAddr.String
	return &d, nil
}

// Find returns the device row for (userID, deviceID).
func (r *Devices) Find(ctx context.Context, userID, deviceID string) (*Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND device_id = $2`,
		userID, deviceID))
}

// UpsertOnLogin records a login as one atomic statement.
//
// A new pair is inserted active and untrusted at token version 1. An existing
// pair gets the new token hash, version+1, last_login_at, is_active = true,
// and each metadata column replaced only when a new value was supplied.
// Concurrent calls for the same pair serialize on the row; the last one to
// complete owns the stored token.
func (r *Devices) UpsertOnLogin(ctx context.Context, userID string, meta DeviceMeta, tokenHash string, now time.Time) (*Device, error) {
	now = now.UTC()
	return scanDevice(r.db.QueryRowContext(ctx, `
		INSERT INTO devices (
			id, user_id, device_id, device_name, device_type, os, browser, ip_address,
			token_hash, token_version, is_active, is_trusted, last_login_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, TRUE, FALSE, $10, $10, $10)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			token_hash    = excluded.token_hash,
			token_version = devices.token_version + 1,
			is_active     = TRUE,
			last_login_at = excluded.last_login_at,
			updated_at    = excluded.updated_at,
			device_name   = COALESCE(excluded.device_name, devices.device_name),
			device_type   = COALESCE(excluded.device_type, devices.device_type),
			os            = COALESCE(excluded.os, devices.os),
			browser       = COALESCE(excluded.browser, devices.browser),
			ip_address    = COALESCE(excluded.ip_address, devices.ip_address)
		RETURNING `+deviceColumns,
		uuid.NewString(), userID, meta.DeviceID,
		nullable(meta.Name), nullable(meta.Type), nullable(meta.OS), nullable(meta.Browser), nullable(meta.IPAddress),
		tokenHash, now,
	))
}

// Deactivate marks (userID, deviceID) inactive and returns the row as it was
// deactivated, token hash included.
func (r *Devices) Deactivate(ctx context.Context, userID, deviceID string, now time.Time) (*Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, `
		UPDATE devices SET is_active = FALSE, updated_at = $1
		WHERE user_id = $2 AND device_id = $3
		RETURNING `+deviceColumns,
		now.UTC(), userID, deviceID))
}

// DeactivateAll marks every device of userID inactive and reports how many
// rows were touched.
func (r *Devices) DeactivateAll(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_active = FALSE, updated_at = $1 WHERE user_id = $2 AND is_active = TRUE`,
		now.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Trust sets is_trusted. Trusting an already-trusted device is a no-op.
func (r *Devices) Trust(ctx context.Context, userID, deviceID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_trusted = TRUE, updated_at = $1 WHERE user_id = $2 AND device_id = $3`,
		now.UTC(), userID, deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectRow(res)
}

// List returns every device of userID, most recent login first.
func (r *Devices) List(ctx context.Context, userID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY last_login_at DESC, device_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
