package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// HTTPSender sends mail through a JSON mail API (Mailtrap sending API shape):
// POST {from:{email}, to:[{email}], subject, html} with a bearer token.
type HTTPSender struct {
	URL        string
	Token      string
	From       Senders
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender posting to url with the given API token.
func NewHTTPSender(url, token string, from Senders) *HTTPSender {
	return &HTTPSender{
		URL:        url,
		Token:      token,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type address struct {
	Email string `json:"email"`
}

type apiRequest struct {
	From     address   `json:"from"`
	To       []address `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	Category string    `json:"category,omitempty"`
}

func (s *HTTPSender) SendVerificationLink(ctx context.Context, to, link string) error {
	return s.send(ctx, KindVerification, s.From.render(KindVerification, to, link))
}

func (s *HTTPSender) SendResetLink(ctx context.Context, to, link string) error {
	return s.send(ctx, KindReset, s.From.render(KindReset, to, link))
}

func (s *HTTPSender) SendPasswordChangedNotice(ctx context.Context, to string) error {
	return s.send(ctx, KindPasswordChanged, s.From.render(KindPasswordChanged, to, ""))
}

// send posts msg. The body carries a bearer link, so it is never included in errors.
func (s *HTTPSender) send(ctx context.Context, kind Kind, msg Message) error {
	if s.URL == "" {
		return fmt.Errorf("mail: API URL not configured")
	}
	raw, err := json.Marshal(apiRequest{
		From:     address{Email: msg.From},
		To:       []address{{Email: msg.To}},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Category: string(kind),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
