package command

import "fmt"

// LinkBuilder builds https://t.me/<username>?start=<token> deep links for
// a bot whose @username is learned once at startup via GetMe.
type LinkBuilder struct {
	username string
}

// NewLinkBuilder builds a LinkBuilder for the given bot username (without
// the leading @).
func NewLinkBuilder(username string) LinkBuilder {
	return LinkBuilder{username: username}
}

func (b LinkBuilder) link(p Payload) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", b.username, EncodeToken(p))
}

// SubscribeLink builds a deep link that subscribes the clicking chat to
// the query identified by hash.
func (b LinkBuilder) SubscribeLink(hash int64) string {
	return b.link(Payload{Subscription: &Subscription{QueryHash: hash, Action: Subscribe}})
}

// UnsubscribeLink builds a deep link that unsubscribes the clicking chat
// from the query identified by hash.
func (b LinkBuilder) UnsubscribeLink(hash int64) string {
	return b.link(Payload{Subscription: &Subscription{QueryHash: hash, Action: Unsubscribe}})
}

// ResubscribeLink is an alias for SubscribeLink, named per spec.md §4.4's
// distinct "resubscribe" convenience constructor: offered after an
// unsubscribe confirmation, where "subscribe again" reads better than
// "subscribe".
func (b LinkBuilder) ResubscribeLink(hash int64) string {
	return b.SubscribeLink(hash)
}

// ManageLink builds a deep link that lists the clicking chat's
// subscriptions.
func (b LinkBuilder) ManageLink() string {
	return b.link(Payload{Manage: true})
}
