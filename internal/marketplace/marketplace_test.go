package marketplace

import (
	"context"
	"fmt"
	"testing"

	"github.com/eigenein/mrktpltsbot-go/internal/store"
)

type fakeMarketplace struct {
	name      string
	items     []Item
	err       error
	checkedIn bool
}

func (f *fakeMarketplace) String() string { return f.name }

func (f *fakeMarketplace) CheckIn(ctx context.Context) { f.checkedIn = true }

func (f *fakeMarketplace) Search(ctx context.Context, q store.SearchQuery) ([]Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func TestSearchInfallibleSwallowsErrors(t *testing.T) {
	m := &fakeMarketplace{name: "broken", err: fmt.Errorf("boom")}
	items := SearchInfallible(context.Background(), m, store.SearchQuery{Text: "x"}, 0)
	if items != nil {
		t.Fatalf("expected nil items on error, got %v", items)
	}
	if m.checkedIn {
		t.Fatal("must not check in after a failed search")
	}
}

func TestSearchInfallibleTruncatesAndChecksIn(t *testing.T) {
	m := &fakeMarketplace{name: "ok", items: []Item{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	items := SearchInfallible(context.Background(), m, store.SearchQuery{Text: "x"}, 2)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if !m.checkedIn {
		t.Fatal("expected check-in after a successful search")
	}
}

func TestMarketplacesSearchInfallibleConcatenatesInOrder(t *testing.T) {
	first := &fakeMarketplace{name: "first", items: []Item{{ID: "a"}}}
	second := &fakeMarketplace{name: "second", err: fmt.Errorf("down")}
	third := &fakeMarketplace{name: "third", items: []Item{{ID: "b"}, {ID: "c"}}}

	composite := New(first, second, third)
	items := composite.SearchInfallible(context.Background(), store.SearchQuery{Text: "x"}, 0)

	want := []string{"a", "b", "c"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d (%v)", len(items), len(want), items)
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("item %d = %q, want %q", i, items[i].ID, id)
		}
	}
}
