package errreport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSinkPostsOnErrorLevelOnly(t *testing.T) {
	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
	}))
	defer server.Close()

	sink := New(server.URL, "test-agent")
	logger := zerolog.New(io.Discard).Hook(sink)

	logger.Info().Msg("informational, should not report")
	logger.Error().Msg("this should report")

	waitFor(t, func() bool { return atomic.LoadInt32(&posts) == 1 })

	// Give a moment past the expected single post to confirm info didn't
	// also sneak a report through.
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&posts); got != 1 {
		t.Fatalf("got %d posts, want exactly 1", got)
	}
}

func TestEmptyDSNIsANoOp(t *testing.T) {
	sink := New("", "test-agent")
	logger := zerolog.New(io.Discard).Hook(sink)
	logger.Error().Msg("no dsn configured, must not panic or block")
}
