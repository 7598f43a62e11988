// Package notify sends trade notifications to Telegram. Delivery is best
// effort; a failed notification is logged and never blocks the trading path.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/ledger"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
	retryBase      = time.Second
	retryCap       = 10 * time.Second
)

// Telegram posts messages to one chat via the bot API.
type Telegram struct {
	http    *http.Client
	log     zerolog.Logger
	baseURL string
	token   string
	chatID  string
	wait    func(ctx context.Context, d time.Duration) bool
}

// NewTelegram builds a notifier. Token and chat id come from the environment,
// not the config file.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		http:    &http.Client{Timeout: requestTimeout},
		log:     log.With().Str("component", "telegram").Logger(),
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		wait:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send posts a MarkdownV2 message, retrying transient failures with doubling
// backoff. The text is escaped here; callers pass plain strings.
func (t *Telegram) Send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {EscapeMarkdownV2(text)},
		"parse_mode": {"MarkdownV2"},
	}

	var lastErr error
	backoff := retryBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := t.post(ctx, endpoint, form); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == maxAttempts {
			break
		}
		if !t.wait(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
		if backoff > retryCap {
			backoff = retryCap
		}
	}
	return fmt.Errorf("telegram send after %d attempts: %w", maxAttempts, lastErr)
}

// Notify sends in the background and logs on failure. Used on the trading
// path where delivery must not stall the loop.
func (t *Telegram) Notify(ctx context.Context, text string) {
	go func() {
		if err := t.Send(ctx, text); err != nil {
			t.log.Error().Err(err).Msg("notification failed")
		}
	}()
}

func (t *Telegram) post(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// TradeAlerts adapts the notifier to the engine's position event hooks.
type TradeAlerts struct {
	T *Telegram
}

// NotifyOpen formats and sends the open message in the background.
func (a TradeAlerts) NotifyOpen(ctx context.Context, pos ledger.Position) {
	a.T.Notify(ctx, OpenMessage(pos))
}

// NotifyClose formats and sends the close message in the background.
func (a TradeAlerts) NotifyClose(ctx context.Context, res ledger.Result) {
	a.T.Notify(ctx, CloseMessage(res))
}

// OpenMessage formats a new hedged position for the chat.
func OpenMessage(pos ledger.Position) string {
	return fmt.Sprintf(
		"Opened %s %s\nSize: %v\nSpot entry: %v\nFutures entry: %v",
		pos.Side, pos.Symbol, pos.Size, pos.SpotEntry, pos.FuturesEntry,
	)
}

// CloseMessage formats a closed round trip for the chat.
func CloseMessage(res ledger.Result) string {
	return fmt.Sprintf(
		"Closed %s %s\nSize: %v\nSpot: %v -> %v\nFutures: %v -> %v\nNet PnL: %.4f USD\nHeld: %.2f min",
		res.Side, res.Symbol, res.Size,
		res.SpotEntry, res.SpotExit,
		res.FutEntry, res.FutExit,
		res.NetPnL, res.HoldMinutes,
	)
}

var mdV2Escaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// EscapeMarkdownV2 escapes every character the Telegram MarkdownV2 parser
// treats as markup.
func EscapeMarkdownV2(s string) string {
	return mdV2Escaper.Replace(s)
}
