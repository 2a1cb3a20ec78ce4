package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver:      "sqlite3",
		DSN:         filepath.Join(t.TempDir(), "devauth.db"),
		BusyTimeout: 5 * time.Second,
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, id, username string) *User {
	t.Helper()
	now := time.Now()
	u := &User{
		ID:                 id,
		Username:           username,
		Email:              username + "@example.com",
		PasswordHash:       "$argon2id$stub",
		Role:               "user",
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := NewUsers(db).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}
