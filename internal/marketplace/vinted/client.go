// Package vinted implements marketplace.Marketplace against Vinted's
// catalog search endpoint, including the cookie-based access-token
// refresh flow Vinted requires.
//
// Grounded on original_source/src/marketplace/vinted/client.rs
// (refresh_token, search, AuthenticationTokens).
package vinted

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/eigenein/mrktpltsbot-go/internal/marketplace"
	"github.com/eigenein/mrktpltsbot-go/internal/query"
	"github.com/eigenein/mrktpltsbot-go/internal/store"
)

const (
	refreshURL = "https://www.vinted.com/web/api/auth/refresh"
	searchURL  = "https://www.vinted.nl/api/v2/catalog/items"
)

// ErrReauthenticate reports that Vinted rejected the current access token
// (401/403). Search returns it only when the search made right after a
// successful token refresh is rejected as well.
var ErrReauthenticate = fmt.Errorf("vinted: access token rejected, reauthentication required")

// Tokens is the refreshable Vinted cookie pair, persisted via
// store.Store's oauth_tokens table between process restarts.
type Tokens = store.OAuthTokens

// Client implements marketplace.Marketplace against Vinted. It keeps the
// current token pair in memory and persists refreshes through st.
type Client struct {
	http         *http.Client
	limiter      *rate.Limiter
	st           *store.Store
	searchLimit  int
	heartbeatURL string
	userAgent    string
	tokens       Tokens
}

// New builds a Vinted client with the last-persisted token pair, if any.
func New(ctx context.Context, httpClient *http.Client, limiter *rate.Limiter, st *store.Store, searchLimit int, heartbeatURL, userAgent string) (*Client, error) {
	c := &Client{
		http:         httpClient,
		limiter:      limiter,
		st:           st,
		searchLimit:  searchLimit,
		heartbeatURL: heartbeatURL,
		userAgent:    userAgent,
	}
	tokens, ok, err := st.FetchOAuthTokens(ctx, "vinted")
	if err != nil {
		return nil, fmt.Errorf("load persisted Vinted tokens: %w", err)
	}
	if ok {
		c.tokens = tokens
	}
	return c, nil
}

func (c *Client) String() string { return "Vinted" }

// CheckIn POSTs to the optional health-monitoring URL. Errors are logged
// only.
func (c *Client) CheckIn(ctx context.Context) {
	if c.heartbeatURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.heartbeatURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build Vinted heartbeat request")
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Vinted heartbeat failed")
		return
	}
	resp.Body.Close()
}

// RefreshToken exchanges the current refresh-token cookie for a fresh
// access/refresh pair and persists the result.
func (c *Client) RefreshToken(ctx context.Context) error {
	log.Info().Msg("refreshing Vinted access token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, nil)
	if err != nil {
		return fmt.Errorf("build Vinted refresh request: %w", err)
	}
	req.Header.Set("Cookie", "refresh_token_web="+c.tokens.RefreshToken)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("Vinted refresh request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("Vinted refresh returned HTTP %d", resp.StatusCode)
	}

	var access, refresh string
	for _, cookie := range resp.Cookies() {
		switch strings.ToLower(cookie.Name) {
		case "access_token_web":
			access = cookie.Value
		case "refresh_token_web":
			refresh = cookie.Value
		}
	}
	if access == "" || refresh == "" {
		return fmt.Errorf("Vinted refresh response missing token cookies")
	}

	c.tokens = Tokens{AccessToken: access, RefreshToken: refresh}
	if err := c.st.UpsertOAuthTokens(ctx, "vinted", c.tokens, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist refreshed Vinted tokens: %w", err)
	}
	return nil
}

type searchResponse struct {
	Items []catalogItem `json:"items"`
}

type catalogItem struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       catalogPrice `json:"price"`
	Photo       *catalogPhoto `json:"photo"`
	Brand       string       `json:"brand_title"`
	User        catalogUser  `json:"user"`
	URL         string       `json:"url"`
}

type catalogPrice struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type catalogPhoto struct {
	URL string `json:"url"`
}

type catalogUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

func (it catalogItem) toItem() marketplace.Item {
	item := marketplace.Item{
		ID:          strconv.FormatInt(it.ID, 10),
		Title:       it.Title,
		Description: it.Description,
		Price:       marketplace.Price{Kind: marketplace.PriceFixed, Amount: marketplace.Amount{Value: it.Price.Amount, Currency: it.Price.CurrencyCode}},
		PublicURL:   it.URL,
	}
	if it.Photo != nil {
		item.PictureURL = it.Photo.URL
	}
	if it.User.Login != "" {
		item.Seller = &marketplace.Seller{
			Name: it.User.Login,
			URL:  fmt.Sprintf("https://www.vinted.nl/member/%d", it.User.ID),
		}
	}
	return item
}

// Search sends q's search text to Vinted's catalog endpoint using the
// current access-token cookie and re-filters results locally against q's
// include and exclude sets. On a 401/403 it calls RefreshToken itself and
// retries the search once.
func (c *Client) Search(ctx context.Context, q store.SearchQuery) ([]marketplace.Item, error) {
	items, err := c.search(ctx, q)
	if err == ErrReauthenticate {
		if refreshErr := c.RefreshToken(ctx); refreshErr != nil {
			return nil, fmt.Errorf("search rejected, refresh failed: %w", refreshErr)
		}
		items, err = c.search(ctx, q)
	}
	return items, err
}

func (c *Client) search(ctx context.Context, q store.SearchQuery) ([]marketplace.Item, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	normalized := query.Parse(q.Text)
	searchText := normalized.ToSearchText()

	values := url.Values{}
	values.Set("search_text", searchText)
	values.Set("per_page", strconv.Itoa(c.searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build Vinted search request: %w", err)
	}
	req.Header.Set("Cookie", "access_token_web="+c.tokens.AccessToken)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Vinted search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrReauthenticate
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Vinted search returned HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode Vinted search response: %w", err)
	}

	items := make([]marketplace.Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		tokens := strings.Fields(it.Title)
		if it.Brand != "" {
			tokens = append(tokens, it.Brand)
		}
		if !normalized.Matches(tokens) {
			continue
		}
		items = append(items, it.toItem())
	}

	log.Debug().
		Str("search_text", searchText).
		Int("n_fetched", len(parsed.Items)).
		Int("n_filtered", len(items)).
		Msg("fetched from Vinted")

	return items, nil
}
