// Package store persists mailbox account credentials in a local
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailgate/internal/mailbox"
	"github.com/nhle/mailgate/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. Writes go through transactions, which supplies the atomic
// replace-on-write and no-tear-on-read guarantees the registry needs.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// accountRow mirrors the accounts table.
type accountRow struct {
	Address      string    `db:"address"`
	RefreshToken string    `db:"refresh_token"`
	ClientID     string    `db:"client_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r accountRow) credential() model.Credential {
	return model.Credential{
		Address:      r.Address,
		RefreshToken: r.RefreshToken,
		ClientID:     r.ClientID,
	}
}

// GetCredential returns the stored credential for an address.
func (s *SQLiteStore) GetCredential(ctx context.Context, address string) (model.Credential, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM accounts WHERE address = ?", address)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, &mailbox.NotFoundError{Kind: "account", ID: address}
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("reading account %s: %w", address, err)
	}

	return row.credential(), nil
}

// ListCredentials returns every stored credential keyed by address.
func (s *SQLiteStore) ListCredentials(ctx context.Context) (map[string]model.Credential, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM accounts ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	creds := make(map[string]model.Credential, len(rows))
	for _, row := range rows {
		creds[row.Address] = row.credential()
	}
	return creds, nil
}

// PutCredential inserts or replaces the credential for its address.
func (s *SQLiteStore) PutCredential(ctx context.Context, cred model.Credential) error {
	const query = `
		INSERT INTO accounts (address, refresh_token, client_id, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (address) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			client_id     = excluded.client_id,
			updated_at    = CURRENT_TIMESTAMP`

	_, err := s.db.ExecContext(ctx, query, cred.Address, cred.RefreshToken, cred.ClientID)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", cred.Address, err)
	}
	return nil
}

// DeleteCredentials removes the given addresses in one transaction and
// reports per-batch deleted and not-found counts.
func (s *SQLiteStore) DeleteCredentials(ctx context.Context, addresses []string) (model.DeleteResult, error) {
	var result model.DeleteResult
	if len(addresses) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, address := range addresses {
		res, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE address = ?", address)
		if err != nil {
			return model.DeleteResult{}, fmt.Errorf("deleting account %s: %w", address, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return model.DeleteResult{}, fmt.Errorf("counting deletes for %s: %w", address, err)
		}
		if affected > 0 {
			result.Deleted++
		} else {
			result.NotFound++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.DeleteResult{}, fmt.Errorf("committing deletes: %w", err)
	}
	return result, nil
}
