// Package render is the pure mapping from domain entities to the HTML
// subset Telegram's Bot API accepts (parse_mode=HTML). It performs no I/O.
//
// Grounded on original_source/src/telegram/render.rs (maud html! markup)
// and format.rs; ported from maud's macro-based builder to strings.Builder
// chains, since Go has no macro equivalent.
package render

import (
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
)

// Delimiter separates inline facts, matching render.rs's DELIMITER.
const Delimiter = "<strong> • </strong>"

func escape(s string) string { return html.EscapeString(s) }

func link(href, text string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, escape(href), escape(text))
}

// Unauthorized renders the self-introduction shown to a chat that is not
// on the authorized list; it literally prints chatID as code so the
// operator can add it to the allow-list.
func Unauthorized(chatID int64) string {
	var b strings.Builder
	b.WriteString("👋 Thank you for your interest\n\n")
	b.WriteString("This bot cannot handle many users, so it is private and only intended for authorized users.\n\n")
	b.WriteString("However, <strong>its " + link("https://github.com/eigenein/mrktpltsbot-go", "source code") + " is open</strong>, and you are free to deploy your own instance.\n\n")
	b.WriteString("If you are already setting it up for yourself, or someone is setting it up for you, ")
	b.WriteString("<strong>the following ID should be added to the list of authorized chat IDs:</strong>\n\n")
	b.WriteString("<pre><code>" + strconv.FormatInt(chatID, 10) + "</code></pre>")
	return b.String()
}

// Link is a single rendered management link: display text plus target URL.
type Link struct {
	Text string
	URL  string
}

// ManageSearchQuery renders the emphasized search-query text followed by
// delimiter-separated management links (e.g. unsubscribe, manage), in the
// given order.
func ManageSearchQuery(searchText string, links []Link) string {
	var b strings.Builder
	b.WriteString("<em>" + escape(searchText) + "</em>")
	for _, l := range links {
		b.WriteString(Delimiter)
		b.WriteString(link(l.URL, l.Text))
	}
	return b.String()
}

// Price renders a marketplace.Price.
func Price(p marketplace.Price) string {
	switch p.Kind {
	case marketplace.PriceFixed:
		if p.Amount.Value == "0" || p.Amount.Value == "0.00" || p.Amount.Value == "" {
			return "<em>🆓 free</em>"
		}
		return "<strong>" + escape(amountText(p.Amount)) + "</strong>"
	case marketplace.PriceOnRequest:
		return "🙋price on request"
	case marketplace.PriceMinimalBid:
		return "<strong>" + escape(amountText(p.Amount)) + "</strong>" + Delimiter + "⬆️ bidding"
	case marketplace.PriceMaximalBid:
		return "<strong>" + escape(amountText(p.Amount)) + "</strong>" + Delimiter + "⬇️ bidding"
	case marketplace.PriceSeeDescription:
		return "📝 price in description"
	case marketplace.PriceToBeAgreed:
		return "🤝 price to be agreed"
	case marketplace.PriceReserved:
		return "⚠️ reserved"
	case marketplace.PriceFastBid:
		return "⬆️ auction"
	case marketplace.PriceExchange:
		return "💱 exchange"
	default:
		return ""
	}
}

func amountText(a marketplace.Amount) string {
	if a.Value == "" {
		return a.Currency
	}
	return a.Value + " " + a.Currency
}

// Condition renders a marketplace.ConditionKind.
func Condition(c marketplace.ConditionKind) string {
	switch c {
	case marketplace.ConditionNewWithTags:
		return "🟢 new with tags"
	case marketplace.ConditionNewWithoutTags:
		return "🟢 new without tags"
	case marketplace.ConditionNewAsGood:
		return "🟡 as good as new"
	case marketplace.ConditionNewUnspecified:
		return "🟢 new"
	case marketplace.ConditionUsedVeryGood:
		return "🟠 very good"
	case marketplace.ConditionUsedGood:
		return "🟠 good"
	case marketplace.ConditionUsedSatisfactory:
		return "🟠 satisfactory"
	case marketplace.ConditionUsedUnspecified:
		return "🟠 used"
	case marketplace.ConditionUsedNotFullyFunctional:
		return "⛔️ not fully functional"
	case marketplace.ConditionRefurbished:
		return "🟡 refurbished"
	default:
		return ""
	}
}

// Delivery renders a marketplace.DeliveryKind.
func Delivery(d marketplace.DeliveryKind) string {
	switch d {
	case marketplace.DeliveryCollectionOnly:
		return "🚶 collection"
	case marketplace.DeliveryShippingOnly:
		return "📦 shipping"
	case marketplace.DeliveryBoth:
		return "📦 shipping" + Delimiter + "🚶 collection"
	default:
		return ""
	}
}

// Seller renders a marketplace.Seller as an @-prefixed link to their
// profile.
func Seller(s marketplace.Seller) string {
	return link(s.URL, "@"+s.Name)
}

// Location renders a marketplace.Location as a link to a map centered on
// its toponym, with coordinates appended to the query when available.
func Location(loc marketplace.Location) string {
	values := url.Values{"q": {loc.Toponym}}
	if loc.Latitude != nil && loc.Longitude != nil {
		values.Set("ll", fmt.Sprintf("%g,%g", *loc.Latitude, *loc.Longitude))
	}
	mapURL := "https://maps.apple.com/maps?" + values.Encode()
	return link(mapURL, loc.Toponym)
}

// ItemDescription renders the full notification caption for item: title
// link, the management block (search query text + links), price, optional
// condition/delivery, blockquoted description, seller, optional location.
func ItemDescription(item marketplace.Item, manageBlock string) string {
	var b strings.Builder

	b.WriteString("<strong>" + link(item.PublicURL, item.Title) + "</strong>\n")
	b.WriteString(manageBlock)
	b.WriteString("\n\n")
	b.WriteString(Price(item.Price))
	if item.Condition != nil {
		b.WriteString(Delimiter)
		b.WriteString(Condition(*item.Condition))
	}
	if item.Delivery != nil {
		b.WriteString(Delimiter)
		b.WriteString(Delivery(*item.Delivery))
	}
	b.WriteString("\n\n")
	b.WriteString("<blockquote>" + escape(item.Description) + "</blockquote>")
	b.WriteString("\n\n")
	if item.Seller != nil {
		b.WriteString(Seller(*item.Seller))
	}
	if item.Location != nil {
		b.WriteString(Delimiter)
		b.WriteString(Location(*item.Location))
	}
	return b.String()
}
