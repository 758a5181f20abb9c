package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kawalsec/s1relay/internal/adapter/notifier"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
	"github.com/kawalsec/s1relay/internal/relay"
)

const (
	sessionCookie = "s1relay_session"
	sessionTTL    = 12 * time.Hour
	maxBodySize   = 1 << 20
	redacted      = "***"
)

// PlatformClient is what the handler needs from the SentinelOne client.
type PlatformClient interface {
	TestConnection(ctx context.Context) (int, error)
}

// GatewayBridge is what the handler needs from the WhatsApp bridge.
type GatewayBridge interface {
	Sessions(ctx context.Context) (*notifier.BridgeResponse, error)
	Connect(ctx context.Context, session string) (*notifier.BridgeResponse, error)
	QR(ctx context.Context, session string) (*notifier.BridgeResponse, error)
	Groups(ctx context.Context, session string) (*notifier.BridgeResponse, error)
	FetchGroups(ctx context.Context, session string) (*notifier.BridgeResponse, error)
	Logs(ctx context.Context, session string) (*notifier.BridgeResponse, error)
	SendMessage(ctx context.Context, numberOrGroup, message, session string) (*notifier.BridgeResponse, error)
}

// Factories build config-bound adapters per request, because the config
// document can change underneath a running web process.
type Factories struct {
	Relay    func(cfg *config.Config) *relay.Relay
	Platform func(cfg *config.Config) PlatformClient
	Bridge   func(cfg *config.Config) GatewayBridge
	Archive  func(cfg *config.Config) ports.EventArchive
	Index    func(cfg *config.Config) ports.EventIndex
}

// RestHandler serves the dashboard API and the webhook receiver.
type RestHandler struct {
	cfgPath   string
	logs      *logstore.Store
	factories Factories

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewRestHandler(cfgPath string, logs *logstore.Store, factories Factories) *RestHandler {
	return &RestHandler{
		cfgPath:   cfgPath,
		logs:      logs,
		factories: factories,
		sessions:  make(map[string]time.Time),
	}
}

// Register wires every route onto the router. Auth is handled by
// AuthMiddleware, registered by the caller alongside logging.
func (h *RestHandler) Register(router *mux.Router) {
	// Public surface
	router.HandleFunc("/api/v1/health", h.Health).Methods("GET")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/logout", h.Logout).Methods("GET")
	router.HandleFunc("/send/alert", h.ReceiveAlert).Methods("POST")

	// Configuration
	router.HandleFunc("/api/config", h.GetConfig).Methods("GET")
	router.HandleFunc("/api/config", h.SaveConfig).Methods("POST")
	router.HandleFunc("/api/backup/save-config", h.SaveBackupConfig).Methods("POST")
	router.HandleFunc("/api/polling/save-config", h.SavePollingConfig).Methods("POST")
	router.HandleFunc("/api/channels/save-config", h.SaveChannelsConfig).Methods("POST")

	// Manual triggers
	router.HandleFunc("/api/test-connection", h.TestConnection).Methods("POST")
	router.HandleFunc("/api/test-notification", h.TestNotification).Methods("POST")
	router.HandleFunc("/api/backup/run-now", h.RunBackupNow).Methods("POST")

	// Archive and logs
	router.HandleFunc("/api/backups", h.ListBackups).Methods("GET")
	router.HandleFunc("/api/backups/download", h.DownloadBackup).Methods("GET")
	router.HandleFunc("/api/events", h.GetEvents).Methods("GET")
	router.HandleFunc("/api/logs", h.ListLogs).Methods("GET")
	router.HandleFunc("/api/logs/download", h.DownloadLog).Methods("GET")
	router.HandleFunc("/api/logs/tail", h.TailLog).Methods("GET")

	// WhatsApp gateway proxy
	router.HandleFunc("/api/wa/sessions", h.WASessions).Methods("GET")
	router.HandleFunc("/api/wa/connect", h.WAConnect).Methods("POST")
	router.HandleFunc("/api/wa/qr", h.WAQR).Methods("GET")
	router.HandleFunc("/api/wa/groups", h.WAGroups).Methods("GET")
	router.HandleFunc("/api/wa/fetch-groups", h.WAFetchGroups).Methods("GET")
	router.HandleFunc("/api/wa/logs", h.WALogs).Methods("GET")
	router.HandleFunc("/api/wa/send", h.WASend).Methods("POST")
}

func (h *RestHandler) loadConfig() *config.Config {
	cfg, err := config.Load(h.cfgPath)
	if err != nil {
		h.logs.Error("Failed to load config: %v", err)
		return config.Default()
	}
	return cfg
}

// ---- auth ----

func publicPath(path string) bool {
	switch path {
	case "/api/v1/health", "/login", "/send/alert":
		return true
	}
	return false
}

// AuthMiddleware guards everything except the public surface with the
// PIN session cookie, or a Bearer token matching web.api_key.
func (h *RestHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cfg := h.loadConfig()
		if auth := r.Header.Get("Authorization"); cfg.Web.APIKey != "" && auth == "Bearer "+cfg.Web.APIKey {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(sessionCookie); err == nil && h.sessionValid(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (h *RestHandler) sessionValid(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	expiry, ok := h.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(h.sessions, token)
		return false
	}
	return true
}

func (h *RestHandler) Login(w http.ResponseWriter, r *http.Request) {
	var pin string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			PIN string `json:"pin"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		pin = body.PIN
	} else {
		pin = r.FormValue("pin")
	}

	cfg := h.loadConfig()
	if cfg.Web.PIN == "" {
		h.logs.Error("Login rejected: dashboard PIN is not configured")
		writeError(w, http.StatusForbidden, "dashboard PIN is not configured")
		return
	}
	if pin != cfg.Web.PIN {
		h.logs.Error("Login failed: wrong PIN")
		writeError(w, http.StatusUnauthorized, "wrong PIN")
		return
	}

	token := uuid.NewString()
	h.mu.Lock()
	h.sessions[token] = time.Now().Add(sessionTTL)
	h.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
	h.logs.Success("Dashboard login")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RestHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		h.mu.Lock()
		delete(h.sessions, cookie.Value)
		h.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ---- health ----

func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "s1relay-web",
	})
}

// ---- webhook ----

// ReceiveAlert accepts pushed SentinelOne alerts and runs them through
// the same pipeline the polling loop uses.
func (h *RestHandler) ReceiveAlert(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()

	if secret := cfg.SentinelOne.WebhookSecret; secret != "" {
		if r.Header.Get("X-Webhook-Secret") != secret {
			h.logs.Error("Webhook rejected: bad secret")
			writeError(w, http.StatusUnauthorized, "bad webhook secret")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(body) {
		h.logs.Error("Invalid JSON payload for /send/alert")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	report := h.factories.Relay(cfg).ProcessRaw(ctx, body, domain.SourceWebhook)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"event_id": report.EventID,
		"file":     report.ArchiveFile,
		"attempts": report.Attempts,
	})
}

// ---- configuration ----

func redactConfig(cfg *config.Config) *config.Config {
	out := *cfg
	if out.SentinelOne.APIToken != "" {
		out.SentinelOne.APIToken = redacted
	}
	if out.SentinelOne.WebhookSecret != "" {
		out.SentinelOne.WebhookSecret = redacted
	}
	if out.Channels.Telegram.BotToken != "" {
		out.Channels.Telegram.BotToken = redacted
	}
	if out.AI.APIKey != "" {
		out.AI.APIKey = redacted
	}
	if out.Web.PIN != "" {
		out.Web.PIN = redacted
	}
	if out.Web.APIKey != "" {
		out.Web.APIKey = redacted
	}
	if out.Database.DSN != "" {
		out.Database.DSN = redacted
	}
	return &out
}

func (h *RestHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, redactConfig(h.loadConfig()))
}

// SaveConfig replaces the document wholesale. Fields sent back as the
// redaction marker keep their stored values, so a dashboard round-trip
// never wipes a secret.
func (h *RestHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	current := h.loadConfig()

	incoming := *current
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	restoreRedacted(&incoming.SentinelOne.APIToken, current.SentinelOne.APIToken)
	restoreRedacted(&incoming.SentinelOne.WebhookSecret, current.SentinelOne.WebhookSecret)
	restoreRedacted(&incoming.Channels.Telegram.BotToken, current.Channels.Telegram.BotToken)
	restoreRedacted(&incoming.AI.APIKey, current.AI.APIKey)
	restoreRedacted(&incoming.Web.PIN, current.Web.PIN)
	restoreRedacted(&incoming.Web.APIKey, current.Web.APIKey)
	restoreRedacted(&incoming.Database.DSN, current.Database.DSN)

	if err := config.Save(h.cfgPath, &incoming); err != nil {
		h.logs.Error("Failed to save config: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	h.logs.Success("Config saved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func restoreRedacted(field *string, stored string) {
	if *field == redacted {
		*field = stored
	}
}

func (h *RestHandler) SaveBackupConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&cfg.Backup); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if cfg.Backup.RetentionDays < 0 {
		writeError(w, http.StatusBadRequest, "retention_days must not be negative")
		return
	}
	if err := config.Save(h.cfgPath, cfg); err != nil {
		h.logs.Error("Failed to save backup config: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	h.logs.Success("Backup configuration saved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RestHandler) SavePollingConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&cfg.Polling); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if cfg.Polling.IntervalSeconds < 10 {
		writeError(w, http.StatusBadRequest, "interval_seconds must be at least 10")
		return
	}
	if err := config.Save(h.cfgPath, cfg); err != nil {
		h.logs.Error("Failed to save polling config: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	h.logs.Success("Polling configuration saved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RestHandler) SaveChannelsConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()
	incoming := cfg.Channels
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	restoreRedacted(&incoming.Telegram.BotToken, cfg.Channels.Telegram.BotToken)
	cfg.Channels = incoming
	if err := config.Save(h.cfgPath, cfg); err != nil {
		h.logs.Error("Failed to save channel config: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	h.logs.Success("Channel configuration saved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ---- manual triggers ----

func (h *RestHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()

	var override struct {
		BaseURL  string `json:"base_url"`
		APIToken string `json:"api_token"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&override)
	}
	if override.BaseURL != "" {
		cfg.SentinelOne.BaseURL = override.BaseURL
	}
	if override.APIToken != "" && override.APIToken != redacted {
		cfg.SentinelOne.APIToken = override.APIToken
	}

	if cfg.SentinelOne.BaseURL == "" || cfg.SentinelOne.APIToken == "" {
		writeError(w, http.StatusBadRequest, "sentinelone base_url and api_token are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	agents, err := h.factories.Platform(cfg).TestConnection(ctx)
	if err != nil {
		h.logs.Error("SentinelOne connection test failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	h.logs.Success("SentinelOne API connected. Agents found: %d", agents)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "agents": agents})
}

func (h *RestHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.factories.Relay(h.loadConfig()).SendTest(ctx, body.Channel); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RestHandler) RunBackupNow(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()
	removed, err := h.factories.Archive(cfg).Prune(time.Now())
	if err != nil {
		h.logs.Error("Manual retention sweep failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	h.logs.Success("Manual retention sweep removed %d file(s)", len(removed))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": len(removed), "files": removed})
}

// ---- archive and logs ----

func (h *RestHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.factories.Archive(h.loadConfig()).List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	kind := r.URL.Query().Get("type")
	filtered := files[:0:0]
	for _, f := range files {
		if search != "" && !strings.Contains(strings.ToLower(f.Name), search) {
			continue
		}
		if kind != "" && f.Kind != kind {
			continue
		}
		filtered = append(filtered, f)
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	total := len(filtered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"files": filtered[offset:end],
	})
}

func (h *RestHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "missing 'path' parameter")
		return
	}

	path, err := h.factories.Archive(h.loadConfig()).Resolve(rel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	w.Header().Set("Content-Disposition", "attachment")
	http.ServeFile(w, r, path)
}

// GetEvents serves the dashboard event browser: by archive date, by
// search term, or the most recent events when neither is given. Term
// and recency queries go to the index when one is configured.
func (h *RestHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	cfg := h.loadConfig()
	store := h.factories.Archive(cfg)
	limit := queryInt(r, "limit", 100)

	if date := r.URL.Query().Get("date"); date != "" {
		events, err := store.ReadDate(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(events), "events": events})
		return
	}

	search := r.URL.Query().Get("search")

	if index := h.factories.Index(cfg); index != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		var events []domain.Event
		var err error
		if search == "" {
			events, err = index.FindSince(ctx, time.Now().UTC().AddDate(0, 0, -7), limit)
		} else {
			events, err = index.Search(ctx, search, limit)
		}
		if err != nil {
			h.logs.Error("Event index query failed: %v", err)
			writeError(w, http.StatusInternalServerError, "event lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(events), "events": events})
		return
	}

	// No index: scan the most recent partitions. An empty search term
	// matches everything, so this also serves the no-parameter listing.
	events := h.scanRecent(store, search, limit, 7)
	writeJSON(w, http.StatusOK, map[string]any{"count": len(events), "events": events})
}

func (h *RestHandler) scanRecent(store ports.EventArchive, term string, limit, days int) []domain.Event {
	term = strings.ToLower(term)
	matches := []domain.Event{}
	for i := 0; i < days && len(matches) < limit; i++ {
		date := time.Now().UTC().AddDate(0, 0, -i).Format("2006-01-02")
		events, err := store.ReadDate(date)
		if err != nil {
			continue
		}
		for _, ev := range events {
			haystack := strings.ToLower(ev.ThreatName + " " + ev.Classification + " " + ev.AgentName)
			if strings.Contains(haystack, term) {
				matches = append(matches, ev)
				if len(matches) >= limit {
					break
				}
			}
		}
	}
	return matches
}

func (h *RestHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	files, err := h.logs.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *RestHandler) DownloadLog(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("path")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing 'path' parameter")
		return
	}
	path, err := h.logs.Resolve(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	w.Header().Set("Content-Disposition", "attachment")
	http.ServeFile(w, r, path)
}

func (h *RestHandler) TailLog(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = logstore.FileAll
	}
	lines, err := h.logs.Tail(name, queryInt(r, "lines", 200))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "lines": lines})
}

// ---- WhatsApp gateway proxy ----

func (h *RestHandler) waBridge() (GatewayBridge, string, bool) {
	cfg := h.loadConfig()
	if cfg.Channels.WhatsApp.GatewayURL == "" {
		return nil, "", false
	}
	session := cfg.Channels.WhatsApp.Session
	if session == "" {
		session = "default"
	}
	return h.factories.Bridge(cfg), session, true
}

func (h *RestHandler) waProxy(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error)) {
	bridge, session, ok := h.waBridge()
	if !ok {
		writeError(w, http.StatusBadRequest, "whatsapp gateway is not configured")
		return
	}
	if s := r.URL.Query().Get("session"); s != "" {
		session = s
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	resp, err := call(ctx, bridge, session)
	if err != nil {
		h.logs.Error("WhatsApp gateway call failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RestHandler) WASessions(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, _ string) (*notifier.BridgeResponse, error) {
		return bridge.Sessions(ctx)
	})
}

func (h *RestHandler) WAConnect(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		if s := r.FormValue("session"); s != "" {
			session = s
		}
		return bridge.Connect(ctx, session)
	})
}

func (h *RestHandler) WAQR(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		return bridge.QR(ctx, session)
	})
}

func (h *RestHandler) WAGroups(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		return bridge.Groups(ctx, session)
	})
}

func (h *RestHandler) WAFetchGroups(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		return bridge.FetchGroups(ctx, session)
	})
}

func (h *RestHandler) WALogs(w http.ResponseWriter, r *http.Request) {
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		return bridge.Logs(ctx, session)
	})
}

func (h *RestHandler) WASend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Number  string `json:"number"`
		Message string `json:"message"`
		Session string `json:"session"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if body.Number == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "number and message are required")
		return
	}
	h.waProxy(w, r, func(ctx context.Context, bridge GatewayBridge, session string) (*notifier.BridgeResponse, error) {
		if body.Session != "" {
			session = body.Session
		}
		return bridge.SendMessage(ctx, body.Number, body.Message, session)
	})
}

// ---- helpers ----

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
