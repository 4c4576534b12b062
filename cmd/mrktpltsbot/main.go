// Command mrktpltsbot runs the marketplace subscription bot: it long-polls
// Telegram for commands and free-text searches, and periodically crawls
// subscribed queries against the configured marketplaces, notifying
// subscribers of new listings exactly once each.
//
// Grounded on original_source/src/main.rs's async_main wiring order
// (Client -> Telegram -> Marktplaats -> Db -> command_builder -> reactors
// -> merge) and the teacher's cmd/server/main.go startup/shutdown style.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/eigenein/mrktpltsbot-go/internal/config"
	"github.com/eigenein/mrktpltsbot-go/internal/errreport"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace/marktplaats"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace/vinted"
	"github.com/eigenein/mrktpltsbot-go/internal/reactor"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
	"github.com/eigenein/mrktpltsbot-go/internal/telegram"
)

const userAgent = "mrktpltsbot-go / dev (+https://github.com/eigenein/mrktpltsbot-go)"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	sink := errreport.New(cfg.ErrorReportingDSN, userAgent)
	log.Logger = log.With().Str("service", "mrktpltsbot").Logger().Hook(sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	// The Chat Client bounds every call with its method's own timeout (the
	// long-poll timeout plus slack for getUpdates), so it shares the
	// transport but not the 30s whole-request cap.
	chatClient := telegram.New(&http.Client{Transport: httpClient.Transport}, cfg.BotToken, userAgent)

	marktplaatsClient := marktplaats.New(
		httpClient,
		rate.NewLimiter(rate.Every(time.Second), 1),
		cfg.MarketplaceSearchLimit,
		cfg.SearchInTitleAndDesc,
		cfg.MarktplaatsHeartbeatURL,
		userAgent,
	)
	vintedClient, err := vinted.New(
		ctx,
		httpClient,
		rate.NewLimiter(rate.Every(time.Second), 1),
		st,
		cfg.MarketplaceSearchLimit,
		cfg.VintedHeartbeatURL,
		userAgent,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vinted client")
	}

	marketplaces := marketplace.New(marktplaatsClient, vintedClient)

	supervisor, err := reactor.NewSupervisorFromConfig(
		ctx,
		chatClient,
		st,
		marketplaces,
		cfg.AuthorizedChatIDs,
		cfg.PollTimeoutSeconds,
		cfg.CrawlInterval,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize supervisor")
	}

	log.Info().Msg("mrktpltsbot is starting")
	if err := supervisor.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("supervisor exited with an error")
	}
	log.Info().Msg("mrktpltsbot stopped")
}
