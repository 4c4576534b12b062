// Package store is the durable persistence layer: search queries,
// subscriptions, fetched items, and delivered notifications, plus the
// subscription cursor the crawl reactor walks.
//
// Grounded on original_source/src/db.rs, db/item.rs, db/key_values.rs, and
// the teacher's internal/db/pg.go (single shared handle) and
// internal/syncx/cursor.go (pure position-advance function).
package store

import "time"

// SearchQuery is the canonical, persisted form of a normalized search.
type SearchQuery struct {
	Hash int64
	Text string
}

// Subscription is a (chat, query) pair: "notify this chat on new items
// matching this query".
type Subscription struct {
	ChatID    int64
	QueryHash int64
}

// Item is the debugging/observability cache of the most recently seen
// marketplace listings. It is never consulted for notification dedup.
type Item struct {
	ID        string
	UpdatedAt time.Time
}

// Notification records that a chat has already been told about an item.
// Its presence suppresses re-notification.
type Notification struct {
	ChatID int64
	ItemID string
}

// SubscriptionKey identifies a row in the subscriptions table under the
// (chat_id, query_hash) lexicographic ordering the cursor walks.
type SubscriptionKey struct {
	ChatID    int64
	QueryHash int64
}

// Less reports whether k sorts strictly before other under the ordering
// used by first_subscription/next_subscription_after: chat_id then
// query_hash.
func (k SubscriptionKey) Less(other SubscriptionKey) bool {
	if k.ChatID != other.ChatID {
		return k.ChatID < other.ChatID
	}
	return k.QueryHash < other.QueryHash
}

// SubscriptionRow pairs a subscription with the search query it references.
type SubscriptionRow struct {
	Subscription Subscription
	Query        SearchQuery
}

// Key returns the row's position in cursor order.
func (r SubscriptionRow) Key() SubscriptionKey {
	return SubscriptionKey{ChatID: r.Subscription.ChatID, QueryHash: r.Subscription.QueryHash}
}
