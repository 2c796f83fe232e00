package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ofarias/chatpagos/internal/ledger"
	"github.com/ofarias/chatpagos/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	markerKey    = "last_processed"
	markerLayout = "2006-01-02 15:04:05"
)

// Store persists the ledger in an embedded sqlite database. Amounts are
// stored as decimal strings so reloading never loses precision.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path, creating it if needed, and applies
// pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) ([]ledger.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT group_id, group_name, branch, paid_date, paid_time, payment, savings,
	       payment_number, shift, confirmed, source_file, created_at
	FROM payments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.PaymentRecord
	for rows.Next() {
		var (
			r       ledger.PaymentRecord
			payment string
			savings string
		)
		if err := rows.Scan(&r.GroupID, &r.GroupName, &r.Branch, &r.Date, &r.Time,
			&payment, &savings, &r.PaymentNumber, &r.Shift, &r.Confirmed,
			&r.SourceFile, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if r.Payment, err = decimal.NewFromString(payment); err != nil {
			return nil, fmt.Errorf("payment amount %q: %w", payment, err)
		}
		if r.Savings, err = decimal.NewFromString(savings); err != nil {
			return nil, fmt.Errorf("savings amount %q: %w", savings, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return out, nil
}

// Replace swaps the stored ledger for records in one transaction, so a
// failed write leaves the previous state intact.
func (s *Store) Replace(ctx context.Context, records []ledger.PaymentRecord) error {
	if err := store.CheckUnique(records); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments`); err != nil {
			return fmt.Errorf("clear payments: %w", err)
		}
		for i, r := range records {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments(
			 id, group_id, group_name, branch, paid_date, paid_time, payment, savings,
			 payment_number, shift, confirmed, source_file, created_at, position)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
			`,
				r.ID(), r.GroupID, r.GroupName, r.Branch, r.Date, r.Time,
				r.Payment.String(), r.Savings.String(), r.PaymentNumber, r.Shift,
				r.Confirmed, r.SourceFile, insertTime(r.CreatedAt), i); err != nil {
				if strings.Contains(err.Error(), "UNIQUE") {
					return fmt.Errorf("%w: %s", store.ErrConflict, r.Key())
				}
				return fmt.Errorf("insert payment %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

// insertTime keeps timestamps second-granular, consistent with sqlite's
// CURRENT_TIMESTAMP.
func insertTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Second)
}

func (s *Store) LastProcessed(ctx context.Context) (time.Time, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, markerKey).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load marker: %w", err)
	}
	t, err := time.Parse(markerLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse marker %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) SetLastProcessed(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO meta(key, value) VALUES(?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		markerKey, t.UTC().Format(markerLayout))
	if err != nil {
		return fmt.Errorf("save marker: %w", err)
	}
	return nil
}

// Clear drops all records and the marker, then reclaims file space.
func (s *Store) Clear(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM meta`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
