package security

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/kawalsec/s1relay/internal/adapter/archive"
	"github.com/kawalsec/s1relay/internal/adapter/handler"
	"github.com/kawalsec/s1relay/internal/adapter/notifier"
	"github.com/kawalsec/s1relay/internal/adapter/platform"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
	"github.com/kawalsec/s1relay/internal/relay"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*httptest.Server, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")

	cfg := config.Default()
	cfg.Web.PIN = "1234"
	cfg.Backup.Location = filepath.Join(dir, "storage")
	if mutate != nil {
		mutate(cfg)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatalf("config.Save failed: %v", err)
	}

	logs, err := logstore.Open(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("logstore.Open failed: %v", err)
	}

	factories := handler.Factories{
		Relay: func(c *config.Config) *relay.Relay {
			rl, err := relay.FromConfig(c, logs, nil)
			if err != nil {
				t.Fatalf("relay.FromConfig failed: %v", err)
			}
			return rl
		},
		Platform: func(c *config.Config) handler.PlatformClient {
			return platform.NewClient(c.SentinelOne.BaseURL, c.SentinelOne.APIToken, nil)
		},
		Bridge: func(c *config.Config) handler.GatewayBridge {
			return notifier.NewBridge(c.Channels.WhatsApp.GatewayURL)
		},
		Archive: func(c *config.Config) ports.EventArchive {
			return archive.NewStore(c.Backup.Location, c.Backup.RetentionDays)
		},
		Index: func(c *config.Config) ports.EventIndex { return nil },
	}

	h := handler.NewRestHandler(cfgPath, logs, factories)
	router := mux.NewRouter()
	h.Register(router)
	router.Use(h.AuthMiddleware)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, cfgPath
}

func login(t *testing.T, server *httptest.Server, pin string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"pin": pin})
	resp, err := http.Post(server.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "s1relay_session" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestDashboardEndpointsRequireAuth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	protected := []struct {
		method string
		path   string
	}{
		{"GET", "/api/config"},
		{"POST", "/api/config"},
		{"GET", "/api/backups"},
		{"GET", "/api/logs"},
		{"GET", "/api/events?date=2026-08-29"},
		{"POST", "/api/test-notification"},
		{"POST", "/api/backup/run-now"},
		{"GET", "/api/wa/sessions"},
		{"GET", "/api/wa/logs"},
	}

	for _, tt := range protected {
		req, _ := http.NewRequest(tt.method, server.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s without session: status %d, want 401", tt.method, tt.path, resp.StatusCode)
		}
	}
}

func TestHealthIsPublic(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestLoginWrongPIN(t *testing.T) {
	server, _ := newTestServer(t, nil)

	body, _ := json.Marshal(map[string]string{"pin": "0000"})
	resp, err := http.Post(server.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong PIN: status %d, want 401", resp.StatusCode)
	}
}

func TestLoginRejectedWhenPINUnset(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.Config) { cfg.Web.PIN = "" })

	body, _ := json.Marshal(map[string]string{"pin": ""})
	resp, err := http.Post(server.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unset PIN: status %d, want 403 (never allow empty-PIN login)", resp.StatusCode)
	}
}

func TestSessionCookieGrantsAccess(t *testing.T) {
	server, _ := newTestServer(t, nil)
	cookie := login(t, server, "1234")

	req, _ := http.NewRequest("GET", server.URL+"/api/config", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated request: status %d", resp.StatusCode)
	}
}

func TestBearerAPIKeyGrantsAccess(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.Config) { cfg.Web.APIKey = "automation-key" })

	req, _ := http.NewRequest("GET", server.URL+"/api/config", nil)
	req.Header.Set("Authorization", "Bearer automation-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("bearer request: status %d", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong bearer key: status %d, want 401", resp.StatusCode)
	}
}

func TestConfigResponseRedactsSecrets(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.SentinelOne.APIToken = "super-secret-token"
		cfg.Channels.Telegram.BotToken = "bot-secret"
		cfg.AI.APIKey = "sk-secret"
	})
	cookie := login(t, server, "1234")

	req, _ := http.NewRequest("GET", server.URL+"/api/config", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, secret := range []string{"super-secret-token", "bot-secret", "sk-secret", "1234"} {
		if strings.Contains(string(body), secret) {
			t.Errorf("config response leaks secret %q", secret)
		}
	}
	if !strings.Contains(string(body), "***") {
		t.Error("redaction marker missing from config response")
	}
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Post(server.URL+"/send/alert", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid JSON: status %d, want 400", resp.StatusCode)
	}
}

func TestWebhookSecretEnforced(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.Config) { cfg.SentinelOne.WebhookSecret = "hook-secret" })

	// Missing secret
	resp, err := http.Post(server.URL+"/send/alert", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing secret: status %d, want 401", resp.StatusCode)
	}

	// Correct secret
	req, _ := http.NewRequest("POST", server.URL+"/send/alert", strings.NewReader(`{"alertId":"a-1"}`))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("correct secret: status %d, want 200", resp.StatusCode)
	}
}

func TestDownloadPathTraversalBlocked(t *testing.T) {
	server, _ := newTestServer(t, nil)
	cookie := login(t, server, "1234")

	paths := []string{
		"/api/logs/download?path=../../etc/passwd",
		"/api/logs/download?path=..%2F..%2Fetc%2Fpasswd",
		"/api/logs/download?path=config.json",
		"/api/backups/download?path=../config.json",
		"/api/backups/download?path=/etc/passwd",
	}

	for _, p := range paths {
		req, _ := http.NewRequest("GET", server.URL+p, nil)
		req.AddCookie(cookie)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s failed: %v", p, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", p, resp.StatusCode)
		}
	}
}

func TestSaveConfigKeepsStoredSecretsOnRedactedRoundTrip(t *testing.T) {
	server, cfgPath := newTestServer(t, func(cfg *config.Config) {
		cfg.SentinelOne.APIToken = "stored-token"
	})
	cookie := login(t, server, "1234")

	// Fetch, then save back what the dashboard would send (redacted).
	req, _ := http.NewRequest("GET", server.URL+"/api/config", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	redactedDoc, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	req, _ = http.NewRequest("POST", server.URL+"/api/config", bytes.NewReader(redactedDoc))
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save returned status %d", resp.StatusCode)
	}

	stored, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if stored.SentinelOne.APIToken != "stored-token" {
		t.Errorf("APIToken on disk = %q, the redacted round-trip wiped the secret", stored.SentinelOne.APIToken)
	}
}
