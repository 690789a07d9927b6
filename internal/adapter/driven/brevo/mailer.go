// Package brevo implements the Mailer port with the Brevo transactional
// e-mail API.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Mailer = (*Mailer)(nil)

// DefaultBaseURL is the production Brevo API root.
const DefaultBaseURL = "https://api.brevo.com"

// ErrSend is returned when Brevo rejects or fails to accept a message.
var ErrSend = errors.New("brevo send failed")

// Sender identifies the From address of outgoing mail.
type Sender struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type recipient struct {
	Email string `json:"email"`
}

type sendRequest struct {
	Sender      Sender      `json:"sender"`
	To          []recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
	TextContent string      `json:"textContent,omitempty"`
}

// Mailer sends e-mail through Brevo.
type Mailer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sender     Sender
	newBackOff func() backoff.BackOff
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Mailer) { m.httpClient = hc }
}

// WithBaseURL points the mailer at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(m *Mailer) { m.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithBackOff sets the retry policy used for 5xx and 429 responses.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(m *Mailer) { m.newBackOff = newBackOff }
}

// NewMailer creates a Mailer that sends as sender.
func NewMailer(apiKey string, sender Sender, opts ...Option) *Mailer {
	m := &Mailer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		sender:     sender,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers msg to every address in msg.To as a single message.
func (m *Mailer) Send(ctx context.Context, msg driven.Email) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrSend)
	}

	to := make([]recipient, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, recipient{Email: addr})
	}
	payload, err := json.Marshal(sendRequest{
		Sender:      m.sender,
		To:          to,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	op := func() error { return m.post(ctx, payload) }
	if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}

func (m *Mailer) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v3/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	sendErr := fmt.Errorf("%w: status %d: %s", ErrSend, resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return sendErr
	}
	return backoff.Permanent(sendErr)
}
