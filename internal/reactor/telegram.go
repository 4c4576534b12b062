package reactor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eigenein/mrktpltsbot-go/internal/command"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/query"
	"github.com/eigenein/mrktpltsbot-go/internal/render"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
	"github.com/eigenein/mrktpltsbot-go/internal/telegram"
)

// TelegramReactor consumes chat updates, authorizes the sender, routes
// `/`-prefixed commands versus free text, and produces outbound send
// requests onto out. Grounded on original_source/src/bot/telegram.rs's
// Bot::run_forever/on_message/on_search/on_command.
type TelegramReactor struct {
	client        *telegram.Client
	store         *store.Store
	marketplaces  *marketplace.Marketplaces
	authorized    map[int64]struct{}
	links         command.LinkBuilder
	pollTimeoutS  int
	searchLimit   int
}

// NewTelegramReactor builds a Telegram Reactor. authorizedChatIDs must be
// non-empty; links is built from the bot's own username, learned via
// GetMe at startup.
func NewTelegramReactor(client *telegram.Client, st *store.Store, marketplaces *marketplace.Marketplaces, authorizedChatIDs []int64, links command.LinkBuilder, pollTimeoutSecs int) *TelegramReactor {
	authorized := make(map[int64]struct{}, len(authorizedChatIDs))
	for _, id := range authorizedChatIDs {
		authorized[id] = struct{}{}
	}
	return &TelegramReactor{
		client:       client,
		store:        st,
		marketplaces: marketplaces,
		authorized:   authorized,
		links:        links,
		pollTimeoutS: pollTimeoutSecs,
		searchLimit:  1,
	}
}

// Run is the outer long-poll loop. It returns only on ctx cancellation; a
// failed long-poll is logged and retried on the next turn, per spec.md
// §4.7/§4.9 ("if either task returns, the process exits with an error").
func (r *TelegramReactor) Run(ctx context.Context, out chan<- Outbound) error {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := r.client.GetUpdates(ctx, offset, r.pollTimeoutS)
		if err != nil {
			// The long-poll itself failed: log, skip advancing the offset,
			// and retry on the next turn (spec.md §7 exception).
			log.Error().Err(err).Msg("long-poll for Telegram updates failed")
			continue
		}

		for _, u := range updates {
			// Advance the offset unconditionally before handling, even if
			// the update itself fails, so a poison update is never
			// retried forever (spec.md §4.7, SPEC_FULL.md §3).
			offset = u.UpdateID + 1

			if u.Message == nil {
				continue
			}
			if err := r.handleMessage(ctx, *u.Message, out); err != nil {
				correlationID := uuid.New().String()
				log.Error().Err(err).Int64("update_id", u.UpdateID).Str("correlation_id", correlationID).Msg("failed to handle update")
				out <- Message(u.Message.Chat.ID, fmt.Sprintf("💥 An internal error occurred (reference: <code>%s</code>)", correlationID))
			}
		}
	}
}

func (r *TelegramReactor) handleMessage(ctx context.Context, msg telegram.Message, out chan<- Outbound) error {
	chatID := msg.Chat.ID
	if msg.Text == "" {
		log.Warn().Int64("chat_id", chatID).Msg("message without text, skipping")
		return nil
	}

	if _, ok := r.authorized[chatID]; !ok {
		log.Warn().Int64("chat_id", chatID).Msg("unauthorized chat")
		out <- Message(chatID, render.Unauthorized(chatID))
		return nil
	}

	if len(msg.Text) > 0 && msg.Text[0] == '/' {
		return r.handleCommand(ctx, chatID, msg.Text, out)
	}
	return r.onSearch(ctx, chatID, msg.Text, out)
}

func (r *TelegramReactor) handleCommand(ctx context.Context, chatID int64, text string, out chan<- Outbound) error {
	switch {
	case text == "/start":
		out <- Message(chatID, "👋")
		out <- Message(chatID, "Just send me a search query to start")
		return nil
	case len(text) > len("/start ") && text[:len("/start ")] == "/start ":
		return r.handleStartPayload(ctx, chatID, text[len("/start "):], out)
	case text == "/manage":
		return r.sendSubscriptionList(ctx, chatID, out)
	default:
		out <- Message(chatID, "I am sorry, but I do not know this command")
		return nil
	}
}

func (r *TelegramReactor) handleStartPayload(ctx context.Context, chatID int64, token string, out chan<- Outbound) error {
	payload, err := command.DecodeToken(token)
	if err != nil {
		return fmt.Errorf("decode /start payload: %w", err)
	}

	if payload.Manage {
		return r.sendSubscriptionList(ctx, chatID, out)
	}

	if payload.Subscription == nil {
		return nil
	}

	hash := payload.Subscription.QueryHash
	switch payload.Subscription.Action {
	case command.Subscribe:
		text, err := r.store.FetchSearchText(ctx, hash)
		if err != nil {
			return fmt.Errorf("fetch search text for hash %d: %w", hash, err)
		}
		if err := r.store.UpsertSubscription(ctx, chatID, hash); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		body := render.ManageSearchQuery(text, []render.Link{
			{Text: "Unsubscribe", URL: r.links.UnsubscribeLink(hash)},
			{Text: "Manage", URL: r.links.ManageLink()},
		})
		out <- Message(chatID, "✅ You are now subscribed\n\n"+body)
	case command.Unsubscribe:
		text, err := r.store.FetchSearchText(ctx, hash)
		if err != nil {
			return fmt.Errorf("fetch search text for hash %d: %w", hash, err)
		}
		if err := r.store.DeleteSubscription(ctx, chatID, hash); err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}
		body := render.ManageSearchQuery(text, []render.Link{
			{Text: "Re-subscribe", URL: r.links.ResubscribeLink(hash)},
			{Text: "Manage", URL: r.links.ManageLink()},
		})
		out <- Message(chatID, "✅ You are now unsubscribed\n\n"+body)
	default:
		// Unknown action: silently ignored, per spec.md §4.7.
	}
	return nil
}

func (r *TelegramReactor) sendSubscriptionList(ctx context.Context, chatID int64, out chan<- Outbound) error {
	rows, err := r.store.SubscriptionsOf(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list subscriptions of chat %d: %w", chatID, err)
	}
	if len(rows) == 0 {
		out <- Message(chatID, "You have no subscriptions yet. Just send me a search query to start")
		return nil
	}

	text := "Your subscriptions:\n\n"
	for _, row := range rows {
		text += render.ManageSearchQuery(row.Query.Text, []render.Link{
			{Text: "Unsubscribe", URL: r.links.UnsubscribeLink(row.Query.Hash)},
		}) + "\n"
	}
	out <- Message(chatID, text)
	return nil
}

// onSearch implements spec.md §4.7's free-text search behavior: persist
// the normalized query regardless of results, fan out with limit=1, and
// reply with either a subscribe-link prompt or an item notification.
func (r *TelegramReactor) onSearch(ctx context.Context, chatID int64, text string, out chan<- Outbound) error {
	normalized := query.Parse(text)
	searchQuery := store.SearchQuery{Hash: query.Fingerprint(normalized), Text: normalized.Unparse()}

	if err := r.store.UpsertSearchQuery(ctx, searchQuery); err != nil {
		return fmt.Errorf("upsert search query: %w", err)
	}

	items := r.marketplaces.SearchInfallible(ctx, searchQuery, r.searchLimit)
	subscribeLink := r.links.SubscribeLink(searchQuery.Hash)

	if len(items) == 0 {
		body := render.ManageSearchQuery(searchQuery.Text, []render.Link{{Text: "Subscribe", URL: subscribeLink}})
		out <- Message(chatID, "There are no items matching the search query. Try a different query or subscribe anyway to wait for them to appear\n\n"+body)
		return nil
	}

	for _, item := range items {
		manageBlock := render.ManageSearchQuery(searchQuery.Text, []render.Link{{Text: "Subscribe", URL: subscribeLink}})
		caption := render.ItemDescription(item, manageBlock)
		pictures := pictureURLs(item)
		out <- Notification(chatID, caption, pictures, nil)
	}
	return nil
}

func pictureURLs(item marketplace.Item) []string {
	if item.PictureURL == "" {
		return nil
	}
	return []string{item.PictureURL}
}
