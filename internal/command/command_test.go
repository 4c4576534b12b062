package command

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Payload{
		{},
		{Manage: true},
		{Subscription: &Subscription{QueryHash: 42, Action: Subscribe}},
		{Subscription: &Subscription{QueryHash: -7, Action: Unsubscribe}},
	}
	for _, p := range cases {
		got, err := Decode(Encode(p))
		if err != nil {
			t.Fatalf("decode(encode(%+v)): %v", p, err)
		}
		if got.Manage != p.Manage {
			t.Fatalf("manage = %v, want %v", got.Manage, p.Manage)
		}
		if (got.Subscription == nil) != (p.Subscription == nil) {
			t.Fatalf("subscription presence mismatch for %+v: got %+v", p, got)
		}
		if p.Subscription != nil && *got.Subscription != *p.Subscription {
			t.Fatalf("subscription = %+v, want %+v", *got.Subscription, *p.Subscription)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	p := Payload{Subscription: &Subscription{QueryHash: 123456789, Action: Subscribe}}
	token := EncodeToken(p)
	got, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if *got.Subscription != *p.Subscription {
		t.Fatalf("got %+v, want %+v", *got.Subscription, *p.Subscription)
	}
}

func TestDecodeSkipsUnknownTags(t *testing.T) {
	// tag 99, length 3, value "xyz", followed by a well-formed manage field.
	data := append([]byte{99, 3, 'x', 'y', 'z'}, Encode(Payload{Manage: true})...)
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("decode with unknown tag: %v", err)
	}
	if !p.Manage {
		t.Fatal("expected the known field after the unknown tag to still be parsed")
	}
}

func TestLinkBuilderConstructsDeepLinks(t *testing.T) {
	b := NewLinkBuilder("mrktpltsbot")

	link := b.SubscribeLink(42)
	payload, err := tokenFromLink(t, link)
	if err != nil {
		t.Fatalf("parse subscribe link: %v", err)
	}
	if payload.Subscription == nil || payload.Subscription.Action != Subscribe || payload.Subscription.QueryHash != 42 {
		t.Fatalf("unexpected payload from subscribe link: %+v", payload)
	}

	manageLink := b.ManageLink()
	payload, err = tokenFromLink(t, manageLink)
	if err != nil {
		t.Fatalf("parse manage link: %v", err)
	}
	if !payload.Manage {
		t.Fatalf("expected manage flag set, got %+v", payload)
	}
}

func tokenFromLink(t *testing.T, link string) (Payload, error) {
	t.Helper()
	const prefix = "https://t.me/mrktpltsbot?start="
	if len(link) <= len(prefix) || link[:len(prefix)] != prefix {
		t.Fatalf("link %q missing expected prefix %q", link, prefix)
	}
	return DecodeToken(link[len(prefix):])
}
