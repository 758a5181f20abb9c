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

// TeamsChannel posts alerts to Microsoft Teams incoming webhooks.
type TeamsChannel struct {
	webhookURLs []string
	template    string
	enabled     bool
	httpClient  *http.Client
}

func NewTeamsChannel(cfg config.TeamsConfig) *TeamsChannel {
	template := cfg.Template
	if template == "" {
		template = DefaultTeamsTemplate
	}
	return &TeamsChannel{
		webhookURLs: cfg.WebhookURLs,
		template:    template,
		enabled:     cfg.Enabled && len(cfg.WebhookURLs) > 0,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TeamsChannel) Name() string { return "teams" }

func (t *TeamsChannel) Enabled() bool { return t.enabled }

func (t *TeamsChannel) Send(ctx context.Context, msg ports.Message) error {
	text := AppendSummary(RenderTemplate(t.template, TemplateVars(msg)), t.template, msg)

	sent := 0
	var lastErr error
	for _, url := range t.webhookURLs {
		if err := t.post(ctx, url, text); err != nil {
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 {
		return fmt.Errorf("teams: all %d webhooks failed: %w", len(t.webhookURLs), lastErr)
	}
	if lastErr != nil {
		return fmt.Errorf("teams: %d/%d webhooks failed: %w", len(t.webhookURLs)-sent, len(t.webhookURLs), lastErr)
	}
	return nil
}

func (t *TeamsChannel) post(ctx context.Context, url, text string) error {
	jsonData, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal teams payload: %w", err)
	}

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

	// Webhook connectors answer 200, some tenants 201/202.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("teams webhook returned status %d: %s", resp.StatusCode, string(body))
	}
}
