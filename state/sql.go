package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	createStateTableQuery = `CREATE TABLE IF NOT EXISTS failover_state (
	name       VARCHAR(255) NOT NULL PRIMARY KEY,
	payload    MEDIUMTEXT   NOT NULL,
	updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
)`

	selectStateQuery = `SELECT payload FROM failover_state WHERE name = ?`

	upsertStateQuery = `INSERT INTO failover_state (name, payload) VALUES (?, ?) ON DUPLICATE KEY UPDATE payload = VALUES(payload)`
)

// SQLMedium stores the encoded state as one row of the failover_state table,
// keyed by name so several monitored records can share a database.
type SQLMedium struct {
	db   *sqlx.DB
	name string
}

// NewSQLMedium returns a medium storing the row called name.
func NewSQLMedium(db *sqlx.DB, name string) *SQLMedium {
	return &SQLMedium{
		db:   db,
		name: name,
	}
}

func (m *SQLMedium) String() string {
	return "mysql:" + m.name
}

// EnsureSchema creates the failover_state table when it does not exist.
func (m *SQLMedium) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createStateTableQuery); err != nil {
		return fmt.Errorf("failed to create failover_state table: %w", err)
	}
	return nil
}

func (m *SQLMedium) Read(ctx context.Context) ([]byte, error) {
	var payload string
	err := m.db.GetContext(ctx, &payload, selectStateQuery, m.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	} else if err != nil {
		return nil, fmt.Errorf("failed to select state row: %w", err)
	}
	return []byte(payload), nil
}

func (m *SQLMedium) Write(ctx context.Context, data []byte) error {
	if _, err := m.db.ExecContext(ctx, upsertStateQuery, m.name, string(data)); err != nil {
		return fmt.Errorf("failed to upsert state row: %w", err)
	}
	return nil
}
