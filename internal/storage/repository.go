package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tutorkasse/internal/core"
	ports "tutorkasse/internal/sheets"

	_ "modernc.org/sqlite"
)

const entryColumns = `id, entry_date, person, category, cost_cents, income_cents, note, receipt,
	reimbursed, surplus_handed_over, confirmed`

// SQLiteRepository is the local ledger. Every write bumps the ledger version
// so the sync worker can tell which snapshot the spreadsheet has seen.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.LedgerStore = (*SQLiteRepository)(nil)

// SyncState is the ledger version and the last version mirrored elsewhere.
type SyncState struct {
	Version       int64
	SyncedVersion int64
	SyncedAt      time.Time
}

// Pending reports whether writes happened since the last mirror.
func (s SyncState) Pending() bool { return s.Version > s.SyncedVersion }

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer, avoids SQLITE_BUSY between server and worker goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReadAll implements sheets.LedgerReader
func (r *SQLiteRepository) ReadAll(ctx context.Context) ([]core.Entry, error) {
	entries, _, err := r.Snapshot(ctx)
	return entries, err
}

// Snapshot returns all entries and the version they belong to, read in one
// transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]core.Entry, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY position`)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}

	var version int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM ledger_state WHERE id = 1`).Scan(&version); err != nil {
		return nil, 0, fmt.Errorf("read ledger version: %w", err)
	}
	return entries, version, nil
}

// Append implements sheets.LedgerWriter
func (r *SQLiteRepository) Append(ctx context.Context, e core.Entry) (string, error) {
	if e.ID == "" {
		e.ID = core.NewID()
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM entries`).Scan(&next); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		if err := insertEntry(ctx, tx, e, next); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"component", "storage",
		"entry_id", e.ID,
		"person", e.Person,
		"cost_cents", e.Cost.Cents,
		"income_cents", e.Income.Cents)

	return "sqlite:" + e.ID, nil
}

// ReplaceAll implements sheets.LedgerWriter
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, entries []core.Entry) error {
	entries = ports.EnsureIDs(entries)
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		for i, e := range entries {
			if err := insertEntry(ctx, tx, e, int64(i)); err != nil {
				return err
			}
		}
		return bumpVersion(ctx, tx)
	})
}

// SyncState returns the current ledger and mirror versions.
func (r *SQLiteRepository) SyncState(ctx context.Context) (SyncState, error) {
	var (
		s        SyncState
		syncedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT version, synced_version, synced_at FROM ledger_state WHERE id = 1`).
		Scan(&s.Version, &s.SyncedVersion, &syncedAt)
	if err != nil {
		return SyncState{}, fmt.Errorf("read sync state: %w", err)
	}
	if syncedAt.Valid {
		s.SyncedAt = syncedAt.Time
	}
	return s, nil
}

// CurrentVersion returns the ledger version, bumped by every write.
func (r *SQLiteRepository) CurrentVersion(ctx context.Context) (int64, error) {
	s, err := r.SyncState(ctx)
	return s.Version, err
}

// MarkSynced records that version has been mirrored. Older versions never
// overwrite a newer mark.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_state SET synced_version = MAX(synced_version, ?), synced_at = ? WHERE id = 1`,
		version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "component", "storage", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_state SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump ledger version: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e core.Entry, position int64) error {
	if err := core.ValidateEdit(e); err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date.String(), e.Person, e.Category, e.Cost.Cents, e.Income.Cents, e.Note, e.Receipt,
		e.Reimbursed, e.SurplusHandedOver, e.Confirmed, position)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e    core.Entry
		date string
	)
	err := s.Scan(&e.ID, &date, &e.Person, &e.Category, &e.Cost.Cents, &e.Income.Cents, &e.Note, &e.Receipt,
		&e.Reimbursed, &e.SurplusHandedOver, &e.Confirmed)
	if err != nil {
		return core.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Date = core.ParseDate(date)
	return e, nil
}
