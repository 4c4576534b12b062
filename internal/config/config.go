// Package config loads the bot's startup configuration from CLI flags,
// the process environment, and an optional .env file, in that precedence
// order (godotenv.Load never overrides a variable already set in the
// process environment), as described by spec.md §6.
//
// Grounded on the teacher's cmd/server/main.go env() helper (flags with a
// fallback default) and adred-codev-ws_poc/ws/config.go's godotenv.Load()
// handling ("ENV vars > .env file > defaults", missing file logged not
// fatal).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// env mirrors the teacher's cmd/server/main.go env(k, def) helper: read the
// named environment variable (populated by godotenv.Load from an optional
// .env file, or set directly in the process environment), falling back to
// def if unset or empty. The typed envInt/envBool/... helpers below apply
// the same fallback for their respective flag types.
func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := env(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("var", k).Str("value", v).Msg("invalid integer in environment, using default")
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	v := env(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("var", k).Str("value", v).Msg("invalid boolean in environment, using default")
		return def
	}
	return b
}

func envDuration(k string, def time.Duration) time.Duration {
	v := env(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("var", k).Str("value", v).Msg("invalid duration in environment, using default")
		return def
	}
	return d
}

func envInt64Slice(k string, def []int64) []int64 {
	v := env(k, "")
	if v == "" {
		return def
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Warn().Str("var", k).Str("value", v).Msg("invalid int64 list in environment, using default")
			return def
		}
		out = append(out, n)
	}
	return out
}

// Config is every value the Supervisor needs to start.
type Config struct {
	DatabasePath            string
	BotToken                string
	AuthorizedChatIDs       []int64
	PollTimeoutSeconds      int
	CrawlInterval           time.Duration
	MarketplaceSearchLimit  int
	SearchInTitleAndDesc    bool
	MarktplaatsHeartbeatURL string
	VintedHeartbeatURL      string
	ErrorReportingDSN       string
}

// Load parses CLI flags (via args, typically os.Args[1:]), applying .env
// and process-environment values as fallbacks for any flag left at its
// default, and validates the required fields.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using process environment only")
	} else {
		log.Info().Msg("loaded configuration overrides from .env file")
	}

	fs := pflag.NewFlagSet("mrktpltsbot", pflag.ContinueOnError)

	databasePath := fs.String("db-path", env("DB_PATH", ""), "path to the SQLite database file (required)")
	botToken := fs.String("bot-token", env("BOT_TOKEN", ""), "Telegram bot API token (required)")
	authorizedChatIDs := fs.Int64Slice("authorized-chat-id", envInt64Slice("AUTHORIZED_CHAT_IDS", nil), "chat ID allowed to use the bot (repeatable, at least one required)")
	pollTimeout := fs.Int("poll-timeout", envInt("POLL_TIMEOUT_SECONDS", 60), "Telegram long-poll timeout in seconds")
	crawlInterval := fs.Duration("crawl-interval", envDuration("CRAWL_INTERVAL", 5*time.Minute), "interval between crawl reactor steps")
	searchLimit := fs.Int("marketplace-search-limit", envInt("MARKETPLACE_SEARCH_LIMIT", 30), "maximum items to keep per marketplace per search")
	searchInTitleAndDesc := fs.Bool("search-in-title-and-description", envBool("SEARCH_IN_TITLE_AND_DESCRIPTION", false), "match query terms against descriptions too, not just titles")
	marktplaatsHeartbeat := fs.String("marktplaats-heartbeat-url", env("MARKTPLAATS_HEARTBEAT_URL", ""), "optional health-check POST URL pinged after a successful Marktplaats search")
	vintedHeartbeat := fs.String("vinted-heartbeat-url", env("VINTED_HEARTBEAT_URL", ""), "optional health-check POST URL pinged after a successful Vinted search")
	errorReportingDSN := fs.String("error-reporting-dsn", env("ERROR_REPORTING_DSN", ""), "optional DSN to post fatal/error events to")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Config{
		DatabasePath:            *databasePath,
		BotToken:                *botToken,
		AuthorizedChatIDs:       *authorizedChatIDs,
		PollTimeoutSeconds:      *pollTimeout,
		CrawlInterval:           *crawlInterval,
		MarketplaceSearchLimit:  *searchLimit,
		SearchInTitleAndDesc:    *searchInTitleAndDesc,
		MarktplaatsHeartbeatURL: *marktplaatsHeartbeat,
		VintedHeartbeatURL:      *vintedHeartbeat,
		ErrorReportingDSN:       *errorReportingDSN,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: --db-path is required")
	}
	if c.BotToken == "" {
		return fmt.Errorf("config: --bot-token is required")
	}
	if len(c.AuthorizedChatIDs) == 0 {
		return fmt.Errorf("config: at least one --authorized-chat-id is required")
	}
	if c.PollTimeoutSeconds <= 0 {
		return fmt.Errorf("config: --poll-timeout must be positive, got %d", c.PollTimeoutSeconds)
	}
	if c.MarketplaceSearchLimit <= 0 {
		return fmt.Errorf("config: --marketplace-search-limit must be positive, got %d", c.MarketplaceSearchLimit)
	}
	return nil
}
