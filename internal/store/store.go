package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the single-writer handle onto the embedded SQLite database.
// SQLite tolerates exactly one writer at a time, so every exported method
// takes mu before touching db, mirroring the "process-wide mutex around
// the connection" design note (spec.md §9) rather than the teacher's
// pgxpool, which serializes writers itself.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and runs
// all pending migrations. Migration failure is fatal to startup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("database is ready")
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSearchQuery inserts q, or does nothing if a row with the same hash
// already exists (legacy re-normalization is a no-op; see SPEC_FULL.md §3).
func (s *Store) UpsertSearchQuery(ctx context.Context, q SearchQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_queries (hash, text) VALUES (?, ?) ON CONFLICT (hash) DO NOTHING`,
		q.Hash, q.Text,
	)
	if err != nil {
		return fmt.Errorf("upsert search query %d: %w", q.Hash, err)
	}
	return nil
}

// FetchSearchText returns the persisted text for hash, as used to render
// commands whose deep-link payload carries only the hash.
func (s *Store) FetchSearchText(ctx context.Context, hash int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM search_queries WHERE hash = ?`, hash).Scan(&text)
	if err != nil {
		return "", fmt.Errorf("fetch search text for hash %d: %w", hash, err)
	}
	return text, nil
}

// UpsertSubscription adds the (chatID, hash) subscription, or does nothing
// if it already exists.
func (s *Store) UpsertSubscription(ctx context.Context, chatID, hash int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (chat_id, query_hash) VALUES (?, ?) ON CONFLICT (chat_id, query_hash) DO NOTHING`,
		chatID, hash,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription (%d, %d): %w", chatID, hash, err)
	}
	return nil
}

// DeleteSubscription removes the (chatID, hash) subscription, if present.
func (s *Store) DeleteSubscription(ctx context.Context, chatID, hash int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND query_hash = ?`,
		chatID, hash,
	)
	if err != nil {
		return fmt.Errorf("delete subscription (%d, %d): %w", chatID, hash, err)
	}
	return nil
}

const subscriptionRowQuery = `
	SELECT subscriptions.chat_id, subscriptions.query_hash, search_queries.text
	FROM subscriptions
	JOIN search_queries ON search_queries.hash = subscriptions.query_hash
`

func scanSubscriptionRow(row *sql.Row) (SubscriptionRow, bool, error) {
	var r SubscriptionRow
	err := row.Scan(&r.Subscription.ChatID, &r.Subscription.QueryHash, &r.Query.Text)
	switch {
	case err == sql.ErrNoRows:
		return SubscriptionRow{}, false, nil
	case err != nil:
		return SubscriptionRow{}, false, err
	}
	r.Query.Hash = r.Subscription.QueryHash
	return r, true, nil
}

// SubscriptionsOf returns chatID's subscriptions ordered by query hash.
func (s *Store) SubscriptionsOf(ctx context.Context, chatID int64) ([]SubscriptionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, subscriptionRowQuery+`
		WHERE subscriptions.chat_id = ?
		ORDER BY subscriptions.query_hash
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("fetch subscriptions of chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var out []SubscriptionRow
	for rows.Next() {
		var r SubscriptionRow
		if err := rows.Scan(&r.Subscription.ChatID, &r.Subscription.QueryHash, &r.Query.Text); err != nil {
			return nil, fmt.Errorf("scan subscription of chat %d: %w", chatID, err)
		}
		r.Query.Hash = r.Subscription.QueryHash
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions of chat %d: %w", chatID, err)
	}
	return out, nil
}

// FirstSubscription returns the lexicographically smallest (chat_id,
// query_hash) row, or ok == false if the table is empty.
func (s *Store) FirstSubscription(ctx context.Context) (row SubscriptionRow, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlRow := s.db.QueryRowContext(ctx, subscriptionRowQuery+`
		ORDER BY subscriptions.chat_id, subscriptions.query_hash
		LIMIT 1
	`)
	row, ok, err = scanSubscriptionRow(sqlRow)
	if err != nil {
		return SubscriptionRow{}, false, fmt.Errorf("fetch first subscription: %w", err)
	}
	return row, ok, nil
}

// NextSubscriptionAfter returns the strictly-greater successor of key under
// the (chat_id, query_hash) ordering, or ok == false if key was last.
func (s *Store) NextSubscriptionAfter(ctx context.Context, key SubscriptionKey) (row SubscriptionRow, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlRow := s.db.QueryRowContext(ctx, subscriptionRowQuery+`
		WHERE (subscriptions.chat_id, subscriptions.query_hash) > (?, ?)
		ORDER BY subscriptions.chat_id, subscriptions.query_hash
		LIMIT 1
	`, key.ChatID, key.QueryHash)
	row, ok, err = scanSubscriptionRow(sqlRow)
	if err != nil {
		return SubscriptionRow{}, false, fmt.Errorf("fetch subscription after (%d, %d): %w", key.ChatID, key.QueryHash, err)
	}
	return row, ok, nil
}

// UpsertItem records that id was last seen at updatedAt. Purely a debugging
// cache; never consulted for notification dedup.
func (s *Store) UpsertItem(ctx context.Context, id string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, updated_at) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert item %q: %w", id, err)
	}
	return nil
}

// NotificationExists reports whether chatID has already been notified about
// itemID. Its presence is what suppresses re-notification.
func (s *Store) NotificationExists(ctx context.Context, chatID int64, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM notifications WHERE chat_id = ? AND item_id = ?`,
		chatID, itemID,
	).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check notification (%d, %q): %w", chatID, itemID, err)
	}
	return true, nil
}

// UpsertNotification records that chatID was told about itemID. Called only
// after a successful send; a failed send must never call this.
func (s *Store) UpsertNotification(ctx context.Context, chatID int64, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (chat_id, item_id) VALUES (?, ?) ON CONFLICT (chat_id, item_id) DO NOTHING`,
		chatID, itemID,
	)
	if err != nil {
		return fmt.Errorf("upsert notification (%d, %q): %w", chatID, itemID, err)
	}
	return nil
}

// OAuthTokens is a refreshable marketplace token pair, persisted across
// restarts. Supplemental to the core schema; see SPEC_FULL.md §4.3.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
}

// FetchOAuthTokens returns the persisted tokens for marketplace, if any.
func (s *Store) FetchOAuthTokens(ctx context.Context, marketplace string) (OAuthTokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t OAuthTokens
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM oauth_tokens WHERE marketplace = ?`,
		marketplace,
	).Scan(&t.AccessToken, &t.RefreshToken)
	switch {
	case err == sql.ErrNoRows:
		return OAuthTokens{}, false, nil
	case err != nil:
		return OAuthTokens{}, false, fmt.Errorf("fetch oauth tokens for %q: %w", marketplace, err)
	}
	return t, true, nil
}

// UpsertOAuthTokens stores the refreshed token pair for marketplace.
func (s *Store) UpsertOAuthTokens(ctx context.Context, marketplace string, tokens OAuthTokens, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (marketplace, access_token, refresh_token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (marketplace) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, marketplace, tokens.AccessToken, tokens.RefreshToken, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert oauth tokens for %q: %w", marketplace, err)
	}
	return nil
}
