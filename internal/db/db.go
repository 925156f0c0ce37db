// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"chesed/internal/models"
)

// Store is the Postgres-backed persistence layer. It plays the role of the
// document store: one table per collection, conditional updates for claims and
// transactions for edit-request approval.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// New wraps an existing connection pool. Used by Open and by tests.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Open connects to Postgres, verifies the connection and bootstraps the schema.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	parsedURL, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	query := parsedURL.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "prefer")
	}
	parsedURL.RawQuery = query.Encode()

	conn, err := sql.Open("postgres", parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(20)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(conn, logger)
	s.logger.Info("connected to database", zap.String("host", parsedURL.Hostname()))

	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		s.logger.Info("database connection closed")
	}
}

const createTablesSQL = `
        CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT UNIQUE,
            password_hash TEXT NOT NULL DEFAULT '',
            display_name TEXT NOT NULL DEFAULT '',
            is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS admins (
            user_id TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS neighborhoods (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            sort_order INTEGER NOT NULL DEFAULT 0
        );
        CREATE TABLE IF NOT EXISTS deliveries (
            id TEXT PRIMARY KEY,
            recipient_name TEXT NOT NULL,
            street TEXT NOT NULL DEFAULT '',
            city TEXT NOT NULL DEFAULT '',
            neighborhood TEXT NOT NULL DEFAULT '',
            apartment TEXT NOT NULL DEFAULT '',
            door_code TEXT NOT NULL DEFAULT '',
            lat DOUBLE PRECISION,
            lng DOUBLE PRECISION,
            phone TEXT NOT NULL DEFAULT '',
            package_count INTEGER NOT NULL DEFAULT 1,
            notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            assigned_volunteer_id TEXT,
            volunteer_completed BOOLEAN NOT NULL DEFAULT FALSE,
            created_by TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            delivered_by TEXT,
            delivered_at TIMESTAMPTZ
        );
        CREATE TABLE IF NOT EXISTS pending_index (
            delivery_id TEXT PRIMARY KEY,
            neighborhood TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS volunteers (
            id TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            last_seen TIMESTAMPTZ,
            daily_goal INTEGER NOT NULL DEFAULT 0,
            weekly_goal INTEGER NOT NULL DEFAULT 0,
            monthly_goal INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS edit_requests (
            id TEXT PRIMARY KEY,
            delivery_id TEXT NOT NULL,
            changes JSONB NOT NULL DEFAULT '{}',
            status TEXT NOT NULL,
            created_by TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            reviewed_by TEXT,
            reviewed_at TIMESTAMPTZ,
            admin_note TEXT NOT NULL DEFAULT ''
        );
    `

// migrations are idempotent schema changes applied after table creation.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "deliveries.household_size_campaign",
		sql: `ALTER TABLE deliveries
                  ADD COLUMN IF NOT EXISTS household_size INTEGER,
                  ADD COLUMN IF NOT EXISTS campaign TEXT NOT NULL DEFAULT '';`,
	},
}

const createIndexesSQL = `
        CREATE INDEX IF NOT EXISTS idx_pending_index_neighborhood ON pending_index(neighborhood, created_at);
        CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
        CREATE INDEX IF NOT EXISTS idx_deliveries_assigned ON deliveries(assigned_volunteer_id);
        CREATE INDEX IF NOT EXISTS idx_deliveries_delivered_by ON deliveries(delivered_by, delivered_at);
        CREATE INDEX IF NOT EXISTS idx_edit_requests_status ON edit_requests(status, created_at);
    `

// Migrate creates tables, applies migrations and creates indexes.
func (s *Store) Migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	for _, m := range migrations {
		if _, errM := s.db.ExecContext(ctx, m.sql); errM != nil {
			if strings.Contains(errM.Error(), "already exists") {
				s.logger.Info("migration skipped", zap.String("migration", m.name), zap.Error(errM))
				continue
			}
			return fmt.Errorf("migration %q: %w", m.name, errM)
		}
	}

	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, errIdx := s.db.ExecContext(ctx, stmt); errIdx != nil {
			s.logger.Warn("create index failed", zap.String("statement", stmt), zap.Error(errIdx))
		}
	}

	s.logger.Info("database schema ready")
	return nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// notFoundOr maps sql.ErrNoRows to models.ErrNotFound and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
