package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxTransientRetries bounds the exponential-backoff budget for transient
// (non-429) failures; once exhausted the error surfaces to the caller.
const maxTransientRetries = 5

// apiResponse is the untagged ok/error envelope every Bot API call
// returns, grounded on original_source/src/telegram.rs's Response<T>.
type apiResponse[T any] struct {
	OK          bool                `json:"ok"`
	Result      T                   `json:"result"`
	Description string              `json:"description"`
	ErrorCode   int                 `json:"error_code"`
	Parameters  *responseParameters `json:"parameters"`
}

type responseParameters struct {
	RetryAfterSecs *int `json:"retry_after"`
}

// Client is a cheaply-clonable handle over a shared HTTP connection pool
// and bot token, per spec.md §3's ownership note.
type Client struct {
	http      *http.Client
	token     string
	userAgent string
}

// New builds a Chat Client for the given bot token.
func New(httpClient *http.Client, token, userAgent string) *Client {
	return &Client{http: httpClient, token: token, userAgent: userAgent}
}

func call[R any](ctx context.Context, c *Client, m method, body any) (R, error) {
	var zero R

	encoded, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("marshal %s request: %w", m.name(), err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, m.name())
	correlationID := uuid.New().String()
	logger := log.With().Str("method", m.name()).Str("correlation_id", correlationID).Logger()

	var transientAttempt int
	transientBackoff := backoff.NewExponentialBackOff()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			return zero, fmt.Errorf("build %s request: %w", m.name(), err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		reqCtx, cancel := context.WithTimeout(ctx, m.timeout())
		resp, err := c.http.Do(req.WithContext(reqCtx))
		cancel()
		if err != nil {
			transientAttempt++
			if transientAttempt > maxTransientRetries {
				return zero, fmt.Errorf("call %s: %w", m.name(), err)
			}
			wait := transientBackoff.NextBackOff()
			logger.Warn().Err(err).Int("attempt", transientAttempt).Dur("wait", wait).Msg("transient error calling Telegram, retrying")
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return zero, sleepErr
			}
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return zero, fmt.Errorf("read %s response: %w", m.name(), err)
		}

		var parsed apiResponse[R]
		if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
			transientAttempt++
			if transientAttempt > maxTransientRetries {
				return zero, fmt.Errorf("decode %s response: %w", m.name(), jsonErr)
			}
			wait := transientBackoff.NextBackOff()
			logger.Warn().Err(jsonErr).Int("attempt", transientAttempt).Msg("malformed Telegram response, retrying")
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return zero, sleepErr
			}
			continue
		}

		if parsed.OK {
			return parsed.Result, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests && parsed.Parameters != nil && parsed.Parameters.RetryAfterSecs != nil {
			wait := time.Duration(*parsed.Parameters.RetryAfterSecs) * time.Second
			logger.Warn().Dur("wait", wait).Msg("throttled by Telegram, waiting mandatory retry_after")
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return zero, sleepErr
			}
			continue // mandatory wait does not consume the backoff budget
		}

		if resp.StatusCode >= 500 {
			transientAttempt++
			if transientAttempt > maxTransientRetries {
				return zero, fmt.Errorf("call %s: API error %d: %s", m.name(), parsed.ErrorCode, parsed.Description)
			}
			wait := transientBackoff.NextBackOff()
			logger.Warn().Int("attempt", transientAttempt).Str("description", parsed.Description).Msg("server error from Telegram, retrying")
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return zero, sleepErr
			}
			continue
		}

		// Other 4xx: surface immediately, no retry.
		return zero, fmt.Errorf("call %s: API error %d: %s", m.name(), parsed.ErrorCode, parsed.Description)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetMe returns the bot's own identity.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, getMe{}, getMe{})
}

// GetUpdates long-polls for new updates starting at offset, listening
// only for message updates.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSecs int) ([]Update, error) {
	m := getUpdates{Offset: offset, TimeoutSecs: timeoutSecs, AllowedUpdates: []string{"message"}}
	return call[[]Update](ctx, c, m, m)
}

// SendMessage sends a quick HTML-formatted message with its link preview
// disabled.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (Message, error) {
	m := quickHTML(chatID, text)
	return call[Message](ctx, c, m, m)
}

// SendPhoto sends a single captioned photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) (Message, error) {
	m := sendPhoto{ChatID: chatID, Photo: photoURL, Caption: caption, ParseMode: "HTML"}
	return call[Message](ctx, c, m, m)
}

// SendMediaGroup sends a photo album; only the first entry carries a
// caption, per spec.md §4.6.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, photoURLs []string, caption string) ([]Message, error) {
	media := make([]inputMediaPhoto, len(photoURLs))
	for i, u := range photoURLs {
		media[i] = inputMediaPhoto{Type: "photo", Media: u}
	}
	if len(media) > 0 {
		media[0].Caption = caption
		media[0].ParseMode = "HTML"
	}
	m := sendMediaGroup{ChatID: chatID, Media: media}
	return call[[]Message](ctx, c, m, m)
}

// SetMyDescription sets the bot's description shown in an empty chat.
func (c *Client) SetMyDescription(ctx context.Context, description string) error {
	m := setMyDescription{Description: description}
	_, err := call[bool](ctx, c, m, m)
	return err
}

// SetMyCommands registers the bot's slash-command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands map[string]string) error {
	m := setMyCommands{}
	for command, description := range commands {
		m.Commands = append(m.Commands, botCommand{Command: command, Description: description})
	}
	_, err := call[bool](ctx, c, m, m)
	return err
}

// SendNotification is the derived method of spec.md §4.6: it picks the
// right primitive based on how many pictures are supplied. 0 pictures →
// SendMessage with link preview disabled; 1 → SendPhoto with caption;
// ≥2 → SendMediaGroup where only the first photo carries the caption.
func (c *Client) SendNotification(ctx context.Context, chatID int64, caption string, pictureURLs []string) error {
	switch len(pictureURLs) {
	case 0:
		_, err := c.SendMessage(ctx, chatID, caption)
		return err
	case 1:
		_, err := c.SendPhoto(ctx, chatID, pictureURLs[0], caption)
		return err
	default:
		_, err := c.SendMediaGroup(ctx, chatID, pictureURLs, caption)
		return err
	}
}
