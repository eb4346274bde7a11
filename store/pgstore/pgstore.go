// Package pgstore persists the service snapshot in PostgreSQL. Every
// Save rewrites the snapshot inside one transaction, which keeps the
// durable copy byte-equivalent to what the file backend would hold.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"bundlebot/bundle"
	"bundlebot/core/database"
	"bundlebot/core/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements bundle.Store on top of sqlx.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database, applies migrations, and returns the store.
func Open(cfg database.Config) (*Store, error) {
	if err := database.RunMigrations(cfg, migrationsFS, "migrations"); err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection. Used by tests.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type statusRow struct {
	Online        bool   `db:"online"`
	OfflineNotice string `db:"offline_notice"`
}

// Load reads the full snapshot. An empty database yields first-run defaults.
func (s *Store) Load(ctx context.Context) (bundle.Snapshot, error) {
	snap := bundle.EmptySnapshot()

	var orders []bundle.Order
	if err := s.db.SelectContext(ctx, &orders, `
		SELECT id, buyer_id, buyer_name, buyer_username, package_id,
		       quantity, total_price, payment_ref, status,
		       created_at, resolved_at, resolved_by
		FROM orders`); err != nil {
		return bundle.Snapshot{}, fmt.Errorf("pgstore: load orders: %w", err)
	}
	for _, o := range orders {
		snap.Orders[o.ID] = o
	}

	if err := s.db.SelectContext(ctx, &snap.OfflineQueue,
		`SELECT buyer_id FROM offline_queue ORDER BY buyer_id`); err != nil {
		return bundle.Snapshot{}, fmt.Errorf("pgstore: load offline queue: %w", err)
	}

	var st statusRow
	err := s.db.GetContext(ctx, &st,
		`SELECT online, offline_notice FROM service_status WHERE id = 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// keep defaults
	case err != nil:
		return bundle.Snapshot{}, fmt.Errorf("pgstore: load status: %w", err)
	default:
		snap.Status.Online = st.Online
		if st.OfflineNotice != "" {
			snap.Status.OfflineNotice = st.OfflineNotice
		}
	}

	logger.Debug(ctx, "store", "load.done",
		slog.String("backend", "postgres"),
		slog.Int("orders", len(snap.Orders)),
		slog.Int("offline_queue", len(snap.OfflineQueue)),
		slog.Bool("online", snap.Status.Online),
	)
	return snap, nil
}

// Save rewrites the whole snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap bundle.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders`); err != nil {
		return fmt.Errorf("pgstore: clear orders: %w", err)
	}
	for _, o := range snap.Orders {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO orders (
				id, buyer_id, buyer_name, buyer_username, package_id,
				quantity, total_price, payment_ref, status,
				created_at, resolved_at, resolved_by
			) VALUES (
				:id, :buyer_id, :buyer_name, :buyer_username, :package_id,
				:quantity, :total_price, :payment_ref, :status,
				:created_at, :resolved_at, :resolved_by
			)`, o); err != nil {
			return fmt.Errorf("pgstore: insert order %s: %w", o.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM offline_queue`); err != nil {
		return fmt.Errorf("pgstore: clear offline queue: %w", err)
	}
	for _, id := range snap.OfflineQueue {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO offline_queue (buyer_id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
			return fmt.Errorf("pgstore: insert offline buyer %d: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO service_status (id, online, offline_notice)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET online = $1, offline_notice = $2`,
		snap.Status.Online, snap.Status.OfflineNotice); err != nil {
		return fmt.Errorf("pgstore: save status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
