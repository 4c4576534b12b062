// Package reactor wires the two top-level concurrent loops — the
// Telegram update reactor and the subscription Crawl Reactor — whose
// outbound send requests merge into a single stream the Supervisor
// forwards to the Chat Client.
//
// Grounded on original_source/src/main.rs (tokio_stream::StreamExt::merge
// over the two reactors' outputs) and src/bot/telegram.rs, bot.rs. The
// "reactors produce data, Supervisor forwards it" inversion is spec.md
// §9's Design Note on avoiding cyclic reactor↔client references.
package reactor

import (
	"context"
	"fmt"

	"github.com/eigenein/mrktpltsbot-go/internal/telegram"
)

// OutboundKind is the closed set of outbound send requests a reactor can
// produce, mirroring spec.md §9's "outbound-notification shape" sum type.
type OutboundKind int

const (
	OutboundMessage OutboundKind = iota
	OutboundNotification
)

// Outbound is a tagged union: Kind selects which fields are meaningful.
// OutboundMessage uses Text; OutboundNotification uses Caption and
// PictureURLs. Done, if non-nil, receives the Dispatch error exactly once,
// letting a reactor that needs to know the outcome (the Crawl Reactor's
// "mark sent only once delivered" rule) wait for it without ever holding a
// reference to the Chat Client itself.
type Outbound struct {
	Kind        OutboundKind
	ChatID      int64
	Text        string
	Caption     string
	PictureURLs []string
	Done        chan<- error
}

// Message builds a plain-text outbound send request.
func Message(chatID int64, text string) Outbound {
	return Outbound{Kind: OutboundMessage, ChatID: chatID, Text: text}
}

// Notification builds an item-notification outbound send request whose
// Dispatch outcome is reported on done.
func Notification(chatID int64, caption string, pictureURLs []string, done chan<- error) Outbound {
	return Outbound{Kind: OutboundNotification, ChatID: chatID, Caption: caption, PictureURLs: pictureURLs, Done: done}
}

// Dispatch sends o through client, picking the primitive its Kind names,
// and reports the outcome on o.Done if set.
func Dispatch(ctx context.Context, client *telegram.Client, o Outbound) error {
	err := dispatch(ctx, client, o)
	if o.Done != nil {
		o.Done <- err
	}
	return err
}

func dispatch(ctx context.Context, client *telegram.Client, o Outbound) error {
	switch o.Kind {
	case OutboundMessage:
		_, err := client.SendMessage(ctx, o.ChatID, o.Text)
		return err
	case OutboundNotification:
		return client.SendNotification(ctx, o.ChatID, o.Caption, o.PictureURLs)
	default:
		return fmt.Errorf("reactor: unknown outbound kind %d", o.Kind)
	}
}
