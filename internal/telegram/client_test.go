package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Client{
		http: &http.Client{Transport: redirectTransport{base: server.URL}},
		token: "test-token",
		userAgent: "mrktpltsbot-go-test",
	}
}

type redirectTransport struct{ base string }

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	baseURL, err := req.URL.Parse(t.base)
	if err != nil {
		return nil, err
	}
	u := *req.URL
	u.Scheme = baseURL.Scheme
	u.Host = baseURL.Host
	req.URL = &u
	return http.DefaultTransport.RoundTrip(req)
}

func TestGetMeReturnsIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"ok": true, "result": {"id": 1, "username": "mrktpltsbot"}}`))
	})

	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if me.Username != "mrktpltsbot" {
		t.Fatalf("username = %q, want mrktpltsbot", me.Username)
	}
}

func TestThrottlingWaitsRetryAfterThenSucceeds(t *testing.T) {
	var attempts int32
	start := time.Now()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok": false, "error_code": 429, "description": "too many requests", "parameters": {"retry_after": 1}}`))
			return
		}
		w.Write([]byte(`{"ok": true, "result": {"message_id": 1, "chat": {"id": 1}}}`))
	})

	_, err := c.SendMessage(context.Background(), 1, "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", attempts)
	}
	if time.Since(start) < time.Second {
		t.Fatalf("expected the client to wait at least 1s for retry_after")
	}
}

func TestNon429FourXXSurfacesImmediately(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "error_code": 400, "description": "bad request"}`))
	})

	_, err := c.SendMessage(context.Background(), 1, "hello")
	if err == nil {
		t.Fatal("expected an error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected no retry on non-429 4xx, got %d attempts", attempts)
	}
}

func TestSendNotificationPicksPrimitiveByPictureCount(t *testing.T) {
	var lastPath string
	var lastBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		buf, _ := io.ReadAll(r.Body)
		lastBody = string(buf)
		if strings.HasSuffix(r.URL.Path, "/sendMediaGroup") {
			w.Write([]byte(`{"ok": true, "result": [{"message_id": 1, "chat": {"id": 1}}]}`))
			return
		}
		w.Write([]byte(`{"ok": true, "result": {"message_id": 1, "chat": {"id": 1}}}`))
	})

	if err := c.SendNotification(context.Background(), 1, "caption", nil); err != nil {
		t.Fatalf("0 pictures: %v", err)
	}
	if !strings.HasSuffix(lastPath, "/sendMessage") {
		t.Fatalf("0 pictures should call sendMessage, got %q", lastPath)
	}

	if err := c.SendNotification(context.Background(), 1, "caption", []string{"https://example.com/1.jpg"}); err != nil {
		t.Fatalf("1 picture: %v", err)
	}
	if !strings.HasSuffix(lastPath, "/sendPhoto") {
		t.Fatalf("1 picture should call sendPhoto, got %q", lastPath)
	}

	if err := c.SendNotification(context.Background(), 1, "caption", []string{"https://example.com/1.jpg", "https://example.com/2.jpg"}); err != nil {
		t.Fatalf("2 pictures: %v", err)
	}
	if !strings.HasSuffix(lastPath, "/sendMediaGroup") {
		t.Fatalf("2 pictures should call sendMediaGroup, got %q", lastPath)
	}
	if strings.Count(lastBody, `"caption"`) != 1 {
		t.Fatalf("expected exactly one caption in media group body, got %q", lastBody)
	}
}
