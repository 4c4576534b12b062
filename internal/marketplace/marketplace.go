package marketplace

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/eigenein/mrktpltsbot-go/internal/store"
)

// Marketplace is the capability every upstream second-hand marketplace
// implements: a health check-in and a search that returns raw, already
// locally-filtered listings.
type Marketplace interface {
	fmt.Stringer

	// CheckIn pings an optional health-monitoring endpoint. Errors are
	// logged only; CheckIn never returns one.
	CheckIn(ctx context.Context)

	// Search sends q's search text upstream, then applies q.Matches
	// locally to the returned listings' title-and-brand tokens to drop
	// false positives upstream cannot filter for (negative terms).
	Search(ctx context.Context, q store.SearchQuery) ([]Item, error)
}

// SearchInfallible wraps m.Search: it truncates to limit (if limit > 0),
// logs and swallows any error, and returns an empty slice on total
// failure. On success it also invokes CheckIn, matching the original's
// "successful search implies the marketplace is reachable" heartbeat
// coupling. The Crawl Reactor always calls through this wrapper.
func SearchInfallible(ctx context.Context, m Marketplace, q store.SearchQuery, limit int) []Item {
	items, err := m.Search(ctx, q)
	if err != nil {
		log.Error().Err(err).Str("marketplace", m.String()).Str("query", q.Text).Msg("marketplace search failed")
		return nil
	}
	m.CheckIn(ctx)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Marketplaces is the composite capability: it fans a search out to every
// configured marketplace concurrently and concatenates the results,
// preserving per-marketplace order. A single marketplace's failure never
// fails the composite call.
type Marketplaces struct {
	all []Marketplace
}

// New builds a composite over the given marketplaces, in iteration order.
func New(marketplaces ...Marketplace) *Marketplaces {
	return &Marketplaces{all: marketplaces}
}

// CheckIn pings every configured marketplace concurrently.
func (m *Marketplaces) CheckIn(ctx context.Context) {
	var g errgroup.Group
	for _, mp := range m.all {
		mp := mp
		g.Go(func() error {
			mp.CheckIn(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// SearchInfallible fans q out to every marketplace concurrently via
// SearchInfallible and concatenates the results. Per-marketplace order is
// preserved by assigning each marketplace a fixed output slot rather than
// appending as results complete.
func (m *Marketplaces) SearchInfallible(ctx context.Context, q store.SearchQuery, limit int) []Item {
	results := make([][]Item, len(m.all))

	var g errgroup.Group
	for i, mp := range m.all {
		i, mp := i, mp
		g.Go(func() error {
			results[i] = SearchInfallible(ctx, mp, q, limit)
			return nil
		})
	}
	_ = g.Wait()

	var out []Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out
}
