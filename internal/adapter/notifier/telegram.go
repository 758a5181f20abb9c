package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/ports"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramChannel sends alerts through the Telegram Bot API.
type TelegramChannel struct {
	apiBase    string
	botToken   string
	chatIDs    []string
	template   string
	enabled    bool
	httpClient *http.Client
}

func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	template := cfg.Template
	if template == "" {
		template = DefaultTelegramTemplate
	}
	return &TelegramChannel{
		apiBase:  telegramAPIBase,
		botToken: cfg.BotToken,
		chatIDs:  cfg.ChatIDs,
		template: template,
		enabled:  cfg.Enabled && cfg.BotToken != "" && len(cfg.ChatIDs) > 0,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Enabled() bool { return t.enabled }

// Send relays the message to every configured chat. It succeeds when at
// least one chat accepted the message.
func (t *TelegramChannel) Send(ctx context.Context, msg ports.Message) error {
	text := AppendSummary(RenderTemplate(t.template, TemplateVars(msg)), t.template, msg)

	sent := 0
	var lastErr error
	for _, chatID := range t.chatIDs {
		if err := t.sendMessage(ctx, chatID, text); err != nil {
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 {
		return fmt.Errorf("telegram: all %d chats failed: %w", len(t.chatIDs), lastErr)
	}
	if lastErr != nil {
		return fmt.Errorf("telegram: %d/%d chats failed: %w", len(t.chatIDs)-sent, len(t.chatIDs), lastErr)
	}
	return nil
}

func (t *TelegramChannel) sendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
