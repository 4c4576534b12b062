package store

import "context"

// Entry is what the cursor yields each step: either a subscription row, or
// the explicit "table is empty" marker (Ok == false) the Crawl Reactor uses
// to still perform an idle check-in without treating the empty table as an
// error.
type Entry struct {
	Row SubscriptionRow
	Ok  bool
}

// Advance computes one step of the subscription cursor: a pure function of
// the previous position to the next entry, plus "wrap to first when
// exhausted." The crawler holds the only mutable state — prev — across
// calls; Advance itself never remembers anything between invocations.
//
// Grounded on original_source/src/db.rs (subscriptions(), a try_unfold over
// first_subscription/next_subscription) and the teacher's
// internal/syncx/cursor.go position-token idiom (EncodeCursor/DecodeCursor
// as pure functions over an opaque prior position).
func Advance(ctx context.Context, s *Store, prev *SubscriptionKey) (Entry, error) {
	if prev == nil {
		row, ok, err := s.FirstSubscription(ctx)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Row: row, Ok: ok}, nil
	}

	row, ok, err := s.NextSubscriptionAfter(ctx, *prev)
	if err != nil {
		return Entry{}, err
	}
	if ok {
		return Entry{Row: row, Ok: true}, nil
	}

	// Reached the end: restart from the first subscription.
	row, ok, err = s.FirstSubscription(ctx)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Row: row, Ok: ok}, nil
}
