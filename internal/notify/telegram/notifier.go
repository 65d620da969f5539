// Package telegram delivers alerts through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/listing"
)

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Config holds the bot credentials and transport settings.
type Config struct {
	Token   string
	ChatID  string
	APIBase string
	Timeout time.Duration
}

// Configured reports whether both credentials are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChatID) != ""
}

// Notifier posts each alert to sendMessage.
type Notifier struct {
	endpoint string
	chatID   string
	client   *http.Client
}

// New creates a Notifier. Both credentials are required.
func New(cfg Config) (*Notifier, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Notifier{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.Token),
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Send posts alert.Text to the configured chat.
func (n *Notifier) Send(ctx context.Context, alert listing.Alert) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", alert.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.Notify("build telegram request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		// the token is part of the URL; keep it out of the error text
		return apperrors.Notify("post telegram message", redact(err))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Notify("post telegram message",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s sendMessage: %w", ue.Op, ue.Err)
	}
	return err
}
