// Package errreport is a minimal, DSN-gated error-reporting side channel.
// It mirrors the *shape* of original_source/src/logging.rs's Sentry wiring
// — error/fatal events fire-and-forget to an external collaborator — but
// deliberately skips the full sentry-go SDK, since spec.md places the
// external error-reporting backend itself out of core scope (see
// DESIGN.md).
package errreport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// event is the body posted to the DSN. Deliberately small: level, message,
// and time; the other fields of the log line are not included.
type event struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Sink posts error and fatal level log events to dsn as fire-and-forget
// HTTP POSTs. A zero Sink (empty DSN) is a no-op hook.
type Sink struct {
	dsn    string
	http   *http.Client
	userAgent string
}

// New builds a Sink. An empty dsn disables reporting entirely; callers can
// always install the hook unconditionally.
func New(dsn, userAgent string) *Sink {
	return &Sink{dsn: dsn, http: &http.Client{Timeout: 5 * time.Second}, userAgent: userAgent}
}

// Run implements zerolog.Hook: it fires an async POST for Error and above,
// and never fails the log call itself. Fatal and panic events are posted
// before Run returns, since zerolog stops the process right after logging
// them.
func (s *Sink) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if s == nil || s.dsn == "" || level < zerolog.ErrorLevel {
		return
	}
	if level == zerolog.FatalLevel || level == zerolog.PanicLevel {
		s.report(level, message)
		return
	}
	go s.report(level, message)
}

func (s *Sink) report(level zerolog.Level, message string) {
	body, err := json.Marshal(event{Level: level.String(), Message: message, Time: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.dsn, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
