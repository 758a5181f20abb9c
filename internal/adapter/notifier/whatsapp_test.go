package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
)

func TestBridgeSendMessage(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/kirim-pesan" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		json.NewEncoder(w).Encode(BridgeResponse{Success: true})
	}))
	defer server.Close()

	bridge := NewBridge(server.URL)
	resp, err := bridge.SendMessage(context.Background(), "628123@g.us", "hello", "default")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !resp.Success {
		t.Error("expected success response")
	}
	if got["number"] != "628123@g.us" || got["message"] != "hello" || got["session"] != "default" {
		t.Errorf("payload = %v", got)
	}
}

func TestBridgeRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "gateway restarting", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(BridgeResponse{Success: true})
	}))
	defer server.Close()

	bridge := NewBridge(server.URL)
	resp, err := bridge.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions failed after retries: %v", err)
	}
	if !resp.Success {
		t.Error("expected success after retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestBridgeQRPassesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/qr" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("session") != "office" {
			t.Errorf("session = %q", r.URL.Query().Get("session"))
		}
		json.NewEncoder(w).Encode(BridgeResponse{Success: true, QR: "data:image/png;base64,xyz"})
	}))
	defer server.Close()

	resp, err := NewBridge(server.URL).QR(context.Background(), "office")
	if err != nil {
		t.Fatalf("QR failed: %v", err)
	}
	if resp.QR == "" {
		t.Error("QR payload missing")
	}
}

func TestWhatsAppChannelSend(t *testing.T) {
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		texts = append(texts, body["message"])
		json.NewEncoder(w).Encode(BridgeResponse{Success: true})
	}))
	defer server.Close()

	ch := NewWhatsAppChannel(config.WhatsAppConfig{
		Enabled:    true,
		GatewayURL: server.URL,
		Recipients: []string{"628111", "628222"},
	})

	msg := ports.Message{Event: domain.Event{ThreatName: "EICAR", AgentName: "[HOST]"}}
	if err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(texts) != 2 {
		t.Fatalf("sent to %d recipients, want 2", len(texts))
	}
	if !strings.Contains(texts[0], "EICAR") {
		t.Errorf("message missing threat: %q", texts[0])
	}
}

func TestWhatsAppChannelGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(BridgeResponse{Success: false, Error: "session not connected"})
	}))
	defer server.Close()

	ch := NewWhatsAppChannel(config.WhatsAppConfig{
		Enabled:    true,
		GatewayURL: server.URL,
		Recipients: []string{"628111"},
	})

	err := ch.Send(context.Background(), ports.Message{})
	if err == nil {
		t.Fatal("expected error when gateway rejects")
	}
	if !strings.Contains(err.Error(), "session not connected") {
		t.Errorf("rejection reason lost: %v", err)
	}
}

func TestWhatsAppEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WhatsAppConfig
		want bool
	}{
		{"Fully configured", config.WhatsAppConfig{Enabled: true, GatewayURL: "http://gw", Recipients: []string{"1"}}, true},
		{"No gateway", config.WhatsAppConfig{Enabled: true, Recipients: []string{"1"}}, false},
		{"No recipients", config.WhatsAppConfig{Enabled: true, GatewayURL: "http://gw"}, false},
		{"Disabled", config.WhatsAppConfig{GatewayURL: "http://gw", Recipients: []string{"1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewWhatsAppChannel(tt.cfg).Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrimSlash(t *testing.T) {
	if got := trimSlash("http://gw//"); got != "http://gw" {
		t.Errorf("trimSlash = %q", got)
	}
	if got := trimSlash("http://gw"); got != "http://gw" {
		t.Errorf("trimSlash = %q", got)
	}
}
