// Package store is the durable side of devAuth: the credential store (users)
// and the device registry (devices), on PostgreSQL or SQLite through
// database/sql.
//
// Queries are written once with $N placeholders in first-appearance order,
// which the pgx, lib/pq and go-sqlite3 drivers all bind positionally.
// The device upsert is a single INSERT ... ON CONFLICT ... RETURNING statement
// so concurrent logins for one (user, device) pair serialize on the row.
package store
