package reactor

import (
	"context"
	"strings"
	"testing"

	"github.com/eigenein/mrktpltsbot-go/internal/command"
	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/query"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
	"github.com/eigenein/mrktpltsbot-go/internal/telegram"
)

type fakeMarketplace struct {
	name  string
	items []marketplace.Item
}

func (f *fakeMarketplace) String() string             { return f.name }
func (f *fakeMarketplace) CheckIn(ctx context.Context) {}

func (f *fakeMarketplace) Search(ctx context.Context, q store.SearchQuery) ([]marketplace.Item, error) {
	return f.items, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func drain(ch chan Outbound) []Outbound {
	var out []Outbound
	for {
		select {
		case o := <-ch:
			out = append(out, o)
		default:
			return out
		}
	}
}

func newTestReactor(t *testing.T, st *store.Store, items []marketplace.Item, authorized []int64) *TelegramReactor {
	t.Helper()
	marketplaces := marketplace.New(&fakeMarketplace{name: "fake", items: items})
	links := command.NewLinkBuilder("mrktpltsbot")
	return NewTelegramReactor(nil, st, marketplaces, authorized, links, 30)
}

func fakeMessage(chatID int64, text string) telegram.Message {
	return telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: chatID}, Text: text}
}

func TestUnauthorizedChatGetsWarnedAndNoStateIsWritten(t *testing.T) {
	st := openTestStore(t)
	r := newTestReactor(t, st, nil, []int64{1})
	out := make(chan Outbound, 4)

	msg := fakeMessage(2, "sofa")
	if err := r.handleMessage(context.Background(), msg, out); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	sent := drain(out)
	if len(sent) != 1 {
		t.Fatalf("got %d outbound messages, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "2") {
		t.Fatalf("expected chat id 2 rendered as code, got %q", sent[0].Text)
	}

	rows, err := st.SubscriptionsOf(context.Background(), 2)
	if err != nil {
		t.Fatalf("subscriptions of 2: %v", err)
	}
	if len(rows) != 0 {
		t.Fatal("unauthorized chat must not gain a subscription")
	}
}

func TestSearchWithNoHitsPersistsQueryAndOffersSubscribeLink(t *testing.T) {
	st := openTestStore(t)
	r := newTestReactor(t, st, nil, []int64{1})
	out := make(chan Outbound, 4)

	if err := r.handleMessage(context.Background(), fakeMessage(1, "vintage lamp"), out); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	sent := drain(out)
	if len(sent) != 1 {
		t.Fatalf("got %d outbound messages, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "t.me/mrktpltsbot?start=") {
		t.Fatalf("expected a subscribe deep link, got %q", sent[0].Text)
	}

	hash := query.Fingerprint(query.Parse("vintage lamp"))
	text, err := st.FetchSearchText(context.Background(), hash)
	if err != nil {
		t.Fatalf("fetch search text: %v", err)
	}
	if text != "lamp vintage" {
		t.Fatalf("persisted text = %q, want normalized %q", text, "lamp vintage")
	}
}

func TestSubscribeDeepLinkThenCrawlDeliversExactlyOnce(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	searchText := "camera"
	hash := query.Fingerprint(query.Parse(searchText))
	sq := store.SearchQuery{Hash: hash, Text: searchText}
	if err := st.UpsertSearchQuery(ctx, sq); err != nil {
		t.Fatalf("seed search query: %v", err)
	}

	links := command.NewLinkBuilder("mrktpltsbot")
	token := command.EncodeToken(command.Payload{Subscription: &command.Subscription{QueryHash: sq.Hash, Action: command.Subscribe}})

	r := newTestReactor(t, st, nil, []int64{42})
	out := make(chan Outbound, 4)
	if err := r.handleMessage(ctx, fakeMessage(42, "/start "+token), out); err != nil {
		t.Fatalf("handle /start: %v", err)
	}
	drain(out)

	rows, err := st.SubscriptionsOf(ctx, 42)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected exactly one subscription, got %v, err %v", rows, err)
	}

	item := marketplace.Item{ID: "item-1", Title: "Camera", PublicURL: "https://example.com/item-1"}
	crawl := NewCrawlReactor(st, marketplace.New(&fakeMarketplace{name: "fake", items: []marketplace.Item{item}}), links, 0)

	crawlOut := make(chan Outbound, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range crawlOut {
			if o.Done != nil {
				o.Done <- nil
			}
		}
	}()

	if _, err := crawl.step(ctx, nil, crawlOut); err != nil {
		t.Fatalf("first crawl step: %v", err)
	}
	close(crawlOut)
	<-done

	exists, err := st.NotificationExists(ctx, 42, "item-1")
	if err != nil {
		t.Fatalf("notification exists: %v", err)
	}
	if !exists {
		t.Fatal("expected the item to be marked as delivered")
	}

	// A second crawl pass over the same subscription must not re-notify.
	crawlOut2 := make(chan Outbound, 4)
	if _, err := crawl.step(ctx, nil, crawlOut2); err != nil {
		t.Fatalf("second crawl step: %v", err)
	}
	if len(drain(crawlOut2)) != 0 {
		t.Fatal("expected no re-notification on the second crawl pass")
	}
}

func TestUnknownCommandGetsApology(t *testing.T) {
	st := openTestStore(t)
	r := newTestReactor(t, st, nil, []int64{1})
	out := make(chan Outbound, 4)

	if err := r.handleMessage(context.Background(), fakeMessage(1, "/nonsense"), out); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	sent := drain(out)
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "do not know this command") {
		t.Fatalf("got %v, want one apology message", sent)
	}
}
