// Package marktplaats implements marketplace.Marketplace against
// Marktplaats's public search JSON endpoint.
//
// Grounded on original_source/src/marketplace/marktplaats.rs (the
// SearchRequest builder and Listing → Item mapping).
package marktplaats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/query"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
)

const searchURL = "https://www.marktplaats.nl/lrp/api/search"

// Client implements marketplace.Marketplace against Marktplaats.
type Client struct {
	http                 *http.Client
	limiter              *rate.Limiter
	searchLimit          int
	searchInTitleAndDesc bool
	heartbeatURL         string
	userAgent            string
}

// New builds a Marktplaats client. heartbeatURL may be empty to disable
// the health check-in. limiter paces outbound requests (additive
// politeness, grounded on the teacher's internal/httpapi/ratelimit.go
// token bucket; see SPEC_FULL.md §4.3).
func New(httpClient *http.Client, limiter *rate.Limiter, searchLimit int, searchInTitleAndDesc bool, heartbeatURL, userAgent string) *Client {
	return &Client{
		http:                 httpClient,
		limiter:              limiter,
		searchLimit:          searchLimit,
		searchInTitleAndDesc: searchInTitleAndDesc,
		heartbeatURL:         heartbeatURL,
		userAgent:            userAgent,
	}
}

func (c *Client) String() string { return "Marktplaats" }

// CheckIn POSTs to the optional health-monitoring URL. Errors are logged
// only, matching original_source's Heartbeat::check_in.
func (c *Client) CheckIn(ctx context.Context) {
	if c.heartbeatURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.heartbeatURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build Marktplaats heartbeat request")
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Marktplaats heartbeat failed")
		return
	}
	resp.Body.Close()
}

type searchResponse struct {
	Listings []listing `json:"listings"`
}

type listing struct {
	ItemID      string         `json:"itemId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	PriceInfo   priceInfo      `json:"priceInfo"`
	Attributes  []attribute    `json:"attributes"`
	Pictures    []picture      `json:"pictures"`
	Location    listingLoc     `json:"location"`
	SellerInfo  sellerInfo     `json:"sellerInformation"`
}

type priceInfo struct {
	PriceCents *int64 `json:"priceCents"`
	PriceType  string `json:"priceType"`
}

type attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type picture struct {
	MediaURL string `json:"mediaUrl"`
}

type listingLoc struct {
	CityName  string   `json:"cityName"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type sellerInfo struct {
	SellerID   int64  `json:"sellerId"`
	SellerName string `json:"sellerName"`
}

func (l listing) brand() (string, bool) {
	for _, a := range l.Attributes {
		if strings.EqualFold(a.Key, "brand") {
			return a.Value, true
		}
	}
	return "", false
}

func (l listing) toItem() marketplace.Item {
	item := marketplace.Item{
		ID:          l.ItemID,
		Title:       l.Title,
		Description: l.Description,
		Price:       toPrice(l.PriceInfo),
		PublicURL:   fmt.Sprintf("https://www.marktplaats.nl/v/%s", l.ItemID),
	}
	if len(l.Pictures) > 0 {
		item.PictureURL = l.Pictures[0].MediaURL
	}
	if l.SellerInfo.SellerName != "" {
		item.Seller = &marketplace.Seller{
			Name: l.SellerInfo.SellerName,
			URL:  fmt.Sprintf("https://www.marktplaats.nl/verkopers/%d/", l.SellerInfo.SellerID),
		}
	}
	if l.Location.CityName != "" {
		item.Location = &marketplace.Location{
			Toponym:   l.Location.CityName,
			Latitude:  l.Location.Latitude,
			Longitude: l.Location.Longitude,
		}
	}
	return item
}

func toPrice(p priceInfo) marketplace.Price {
	switch strings.ToUpper(p.PriceType) {
	case "FIXED":
		return marketplace.Price{Kind: marketplace.PriceFixed, Amount: centsToAmount(p.PriceCents)}
	case "MIN_BID":
		return marketplace.Price{Kind: marketplace.PriceMinimalBid, Amount: centsToAmount(p.PriceCents)}
	case "SEE_DESCRIPTION":
		return marketplace.Price{Kind: marketplace.PriceSeeDescription}
	case "ON_REQUEST", "RESERVED":
		return marketplace.Price{Kind: marketplace.PriceOnRequest}
	case "EXCHANGE":
		return marketplace.Price{Kind: marketplace.PriceExchange}
	default:
		return marketplace.Price{Kind: marketplace.PriceToBeAgreed}
	}
}

func centsToAmount(cents *int64) marketplace.Amount {
	if cents == nil {
		return marketplace.Amount{Currency: "EUR"}
	}
	return marketplace.Amount{Value: strconv.FormatFloat(float64(*cents)/100, 'f', 2, 64), Currency: "EUR"}
}

// Search sends q's search text to Marktplaats, then re-filters the
// returned listings' title and brand tokens locally against q's include
// and exclude sets before mapping survivors onto marketplace.Item.
func (c *Client) Search(ctx context.Context, q store.SearchQuery) ([]marketplace.Item, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	normalized := query.Parse(q.Text)
	searchText := normalized.ToSearchText()

	values := url.Values{}
	values.Set("query", searchText)
	values.Set("limit", strconv.Itoa(c.searchLimit))
	if c.searchInTitleAndDesc {
		values.Set("searchInTitleAndDescription", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build Marktplaats search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Marktplaats search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Marktplaats search returned HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode Marktplaats search response: %w", err)
	}

	items := make([]marketplace.Item, 0, len(parsed.Listings))
	for _, l := range parsed.Listings {
		tokens := strings.Fields(l.Title)
		if brand, ok := l.brand(); ok {
			tokens = append(tokens, brand)
		}
		if !normalized.Matches(tokens) {
			continue
		}
		items = append(items, l.toItem())
	}

	log.Debug().
		Str("search_text", searchText).
		Int("n_fetched", len(parsed.Listings)).
		Int("n_filtered", len(items)).
		Msg("fetched from Marktplaats")

	return items, nil
}
