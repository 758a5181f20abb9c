package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/ports"
)

// Bridge talks to the third-party WhatsApp gateway. The gateway drops
// connections during session re-auth, so this client retries.
type Bridge struct {
	baseURL string
	http    *http.Client
}

// BridgeResponse is the gateway's uniform envelope.
type BridgeResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	QR       string          `json:"qr,omitempty"`
	Sessions json.RawMessage `json:"sessions,omitempty"`
	Groups   json.RawMessage `json:"groups,omitempty"`
	Logs     json.RawMessage `json:"logs,omitempty"`
}

func NewBridge(baseURL string) *Bridge {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil // suppress default logging
	retryClient.HTTPClient.Timeout = 20 * time.Second

	return &Bridge{
		baseURL: trimSlash(baseURL),
		http:    retryClient.StandardClient(),
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func (b *Bridge) Sessions(ctx context.Context) (*BridgeResponse, error) {
	return b.get(ctx, "/api/sessions", nil)
}

func (b *Bridge) Connect(ctx context.Context, session string) (*BridgeResponse, error) {
	return b.post(ctx, "/api/connect", map[string]string{"session": session})
}

func (b *Bridge) QR(ctx context.Context, session string) (*BridgeResponse, error) {
	return b.get(ctx, "/api/qr", url.Values{"session": {session}})
}

func (b *Bridge) Groups(ctx context.Context, session string) (*BridgeResponse, error) {
	return b.get(ctx, "/api/groups", url.Values{"session": {session}})
}

func (b *Bridge) FetchGroups(ctx context.Context, session string) (*BridgeResponse, error) {
	return b.get(ctx, "/api/fetch-groups", url.Values{"session": {session}})
}

func (b *Bridge) Logs(ctx context.Context, session string) (*BridgeResponse, error) {
	return b.get(ctx, "/api/logs", url.Values{"session": {session}})
}

// SendMessage posts to the gateway's send endpoint (named "kirim-pesan"
// by the upstream node gateway).
func (b *Bridge) SendMessage(ctx context.Context, numberOrGroup, message, session string) (*BridgeResponse, error) {
	return b.post(ctx, "/api/kirim-pesan", map[string]string{
		"number":  numberOrGroup,
		"message": message,
		"session": session,
	})
}

func (b *Bridge) get(ctx context.Context, path string, params url.Values) (*BridgeResponse, error) {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return b.do(req)
}

func (b *Bridge) post(ctx context.Context, path string, payload any) (*BridgeResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *Bridge) do(req *http.Request) (*BridgeResponse, error) {
	req.Header.Set("User-Agent", "s1relay/1.0")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var out BridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &out, nil
}

// WhatsAppChannel fans a message out to the configured recipients
// through the gateway bridge.
type WhatsAppChannel struct {
	bridge     *Bridge
	session    string
	recipients []string
	template   string
	enabled    bool
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig) *WhatsAppChannel {
	template := cfg.Template
	if template == "" {
		template = DefaultWhatsAppTemplate
	}
	session := cfg.Session
	if session == "" {
		session = "default"
	}
	return &WhatsAppChannel{
		bridge:     NewBridge(cfg.GatewayURL),
		session:    session,
		recipients: cfg.Recipients,
		template:   template,
		enabled:    cfg.Enabled && cfg.GatewayURL != "" && len(cfg.Recipients) > 0,
	}
}

func (w *WhatsAppChannel) Name() string { return "whatsapp" }

func (w *WhatsAppChannel) Enabled() bool { return w.enabled }

// Send delivers to every recipient; it succeeds when at least one
// accepted the message.
func (w *WhatsAppChannel) Send(ctx context.Context, msg ports.Message) error {
	text := AppendSummary(RenderTemplate(w.template, TemplateVars(msg)), w.template, msg)

	sent := 0
	var lastErr error
	for _, recipient := range w.recipients {
		resp, err := w.bridge.SendMessage(ctx, recipient, text, w.session)
		if err != nil {
			lastErr = err
			continue
		}
		if !resp.Success {
			reason := resp.Error
			if reason == "" {
				reason = resp.Message
			}
			lastErr = fmt.Errorf("gateway rejected send to %s: %s", recipient, reason)
			continue
		}
		sent++
	}

	if sent == 0 {
		return fmt.Errorf("whatsapp: all %d recipients failed: %w", len(w.recipients), lastErr)
	}
	if lastErr != nil {
		return fmt.Errorf("whatsapp: %d/%d recipients failed: %w", len(w.recipients)-sent, len(w.recipients), lastErr)
	}
	return nil
}
