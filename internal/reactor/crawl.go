package reactor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/render"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
)

// CrawlReactor walks the subscriptions table one step per tick via
// store.Advance, searches the current subscription's query, and emits a
// notification for every item not already delivered to that chat.
//
// Grounded on original_source/src/db.rs's cursor contract and
// src/bot/telegram.rs's notification path; spec.md §4.8.
type CrawlReactor struct {
	store        *store.Store
	marketplaces *marketplace.Marketplaces
	links        crawlLinkBuilder
	interval     time.Duration
}

// crawlLinkBuilder is the slice of command.LinkBuilder the Crawl Reactor
// needs: an unsubscribe link attached to each delivered notification.
type crawlLinkBuilder interface {
	UnsubscribeLink(hash int64) string
}

// NewCrawlReactor builds a Crawl Reactor ticking every interval.
func NewCrawlReactor(st *store.Store, marketplaces *marketplace.Marketplaces, links crawlLinkBuilder, interval time.Duration) *CrawlReactor {
	return &CrawlReactor{store: st, marketplaces: marketplaces, links: links, interval: interval}
}

// Run ticks forever, advancing the cursor one step and dispatching any due
// notifications per step. It returns only when ctx is cancelled.
func (r *CrawlReactor) Run(ctx context.Context, out chan<- Outbound) error {
	var cursor *store.SubscriptionKey

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := r.step(ctx, cursor, out)
		if err != nil {
			log.Error().Err(err).Msg("crawl step failed")
			continue
		}
		cursor = next
	}
}

// step advances the cursor exactly once and, if a subscription exists,
// searches and notifies on its behalf. It returns the new cursor position,
// or nil if the subscriptions table is empty.
func (r *CrawlReactor) step(ctx context.Context, cursor *store.SubscriptionKey, out chan<- Outbound) (*store.SubscriptionKey, error) {
	entry, err := store.Advance(ctx, r.store, cursor)
	if err != nil {
		return cursor, err
	}
	if !entry.Ok {
		// No subscriptions at all: just confirm the marketplaces are
		// reachable and wait for the next tick.
		r.marketplaces.CheckIn(ctx)
		return nil, nil
	}

	row := entry.Row
	key := row.Key()

	items := r.marketplaces.SearchInfallible(ctx, row.Query, 0)
	for _, item := range items {
		if err := r.store.UpsertItem(ctx, item.ID, time.Now()); err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("failed to cache item")
		}

		exists, err := r.store.NotificationExists(ctx, row.Subscription.ChatID, item.ID)
		if err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("failed to check notification dedup")
			continue
		}
		if exists {
			continue
		}

		manageBlock := render.ManageSearchQuery(row.Query.Text, []render.Link{
			{Text: "Unsubscribe", URL: r.links.UnsubscribeLink(row.Query.Hash)},
		})
		caption := render.ItemDescription(item, manageBlock)
		pictures := pictureURLs(item)

		done := make(chan error, 1)
		select {
		case out <- Notification(row.Subscription.ChatID, caption, pictures, done):
		case <-ctx.Done():
			return &key, ctx.Err()
		}

		select {
		case sendErr := <-done:
			if sendErr != nil {
				log.Error().Err(sendErr).Str("item_id", item.ID).Msg("failed to send notification, will retry next crawl")
				continue
			}
		case <-ctx.Done():
			return &key, ctx.Err()
		}

		if err := r.store.UpsertNotification(ctx, row.Subscription.ChatID, item.ID); err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("failed to record notification")
		}
	}

	return &key, nil
}
