package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/eigenein/mrktpltsbot-go/internal/command"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
	"github.com/eigenein/mrktpltsbot-go/internal/telegram"
)

// defaultCommands is the bot's registered slash-command menu.
var defaultCommands = map[string]string{
	"manage": "list and manage your subscriptions",
}

const outboundBufferSize = 64

// Supervisor owns the Chat Client and is the only thing in the process
// allowed to touch it. It starts the Telegram Reactor and the Crawl
// Reactor as siblings, merges their outbound streams, and dispatches each
// through the Chat Client in order of arrival.
//
// Grounded on original_source/src/main.rs's async_main:
// tokio_stream::StreamExt::merge(telegram_reactions,
// marktplaats_reactions).try_for_each(|r| r.call_discarded_on(&telegram)).
// If either reactor's Run returns (including on error), the whole
// Supervisor returns, per spec.md §4.9 ("no restart loop").
type Supervisor struct {
	client   *telegram.Client
	telegram *TelegramReactor
	crawl    *CrawlReactor
}

// NewSupervisor wires a Chat Client and the two reactors into a Supervisor.
func NewSupervisor(client *telegram.Client, telegramReactor *TelegramReactor, crawlReactor *CrawlReactor) *Supervisor {
	return &Supervisor{client: client, telegram: telegramReactor, crawl: crawlReactor}
}

// Run starts both reactors and the dispatch loop, blocking until ctx is
// cancelled or either reactor returns an error.
func (s *Supervisor) Run(ctx context.Context) error {
	out := make(chan Outbound, outboundBufferSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.telegram.Run(ctx, out) })
	g.Go(func() error { return s.crawl.Run(ctx, out) })
	g.Go(func() error { return s.dispatchLoop(ctx, out) })

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (s *Supervisor) dispatchLoop(ctx context.Context, out <-chan Outbound) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o := <-out:
			if err := Dispatch(ctx, s.client, o); err != nil {
				log.Error().Err(err).Int64("chat_id", o.ChatID).Msg("failed to dispatch outbound send")
			}
		}
	}
}

// NewSupervisorFromConfig is the top-level wiring entry point: it learns
// the bot's own identity, publishes its description and command menu, and
// assembles the Telegram and Crawl reactors behind a Supervisor. Grounded
// on original_source/src/main.rs's async_main wiring order (Client ->
// Telegram -> Marktplaats -> Db -> command_builder -> reactors -> merge).
func NewSupervisorFromConfig(ctx context.Context, client *telegram.Client, st *store.Store, marketplaces *marketplace.Marketplaces, authorizedChatIDs []int64, pollTimeoutSecs int, crawlInterval time.Duration) (*Supervisor, error) {
	me, err := client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bot identity: %w", err)
	}
	if err := client.SetMyDescription(ctx, "Subscribe to second-hand marketplace searches and get notified about new listings."); err != nil {
		log.Warn().Err(err).Msg("failed to set bot description")
	}
	if err := client.SetMyCommands(ctx, defaultCommands); err != nil {
		log.Warn().Err(err).Msg("failed to set bot commands")
	}

	links := command.NewLinkBuilder(me.Username)
	telegramReactor := NewTelegramReactor(client, st, marketplaces, authorizedChatIDs, links, pollTimeoutSecs)
	crawlReactor := NewCrawlReactor(st, marketplaces, links, crawlInterval)

	return NewSupervisor(client, telegramReactor, crawlReactor), nil
}
