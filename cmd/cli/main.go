package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Small operator tool: push an alert file into a running relay, or
// fire a test notification, without opening the dashboard.
func main() {
	serverAddr := flag.String("server", "http://localhost:8899", "Base URL of the relay web server")
	targetFile := flag.String("file", "", "Path to a JSON alert payload to push through /send/alert")
	testChannel := flag.String("test-channel", "", "Send a test notification through the named channel (telegram, teams, whatsapp)")
	apiKey := flag.String("api-key", os.Getenv("S1RELAY_API_KEY"), "API key for authenticated endpoints")
	secret := flag.String("secret", os.Getenv("S1RELAY_WEBHOOK_SECRET"), "Webhook secret for /send/alert")
	flag.Parse()

	client := &http.Client{Timeout: 60 * time.Second}

	switch {
	case *targetFile != "":
		pushAlert(client, *serverAddr, *targetFile, *secret)
	case *testChannel != "":
		sendTest(client, *serverAddr, *testChannel, *apiKey)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func pushAlert(client *http.Client, server, path, secret string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("❌ error reading file: %v", err)
	}
	if !json.Valid(payload) {
		log.Fatalf("❌ %s is not valid JSON", path)
	}

	req, err := http.NewRequest(http.MethodPost, server+"/send/alert", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("❌ error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}

	fmt.Printf("🔍 pushing %s to %s...\n\n", path, server)

	body, status := do(client, req)
	if status != http.StatusOK {
		fmt.Printf("❌ FAIL: relay returned status %d: %s\n", status, body)
		os.Exit(1)
	}

	var report struct {
		EventID  string `json:"event_id"`
		File     string `json:"file"`
		Attempts []struct {
			Channel string `json:"channel"`
			OK      bool   `json:"ok"`
			Error   string `json:"error"`
		} `json:"attempts"`
	}
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		log.Fatalf("❌ error parsing response: %v", err)
	}

	fmt.Printf("📦 event %s archived as %s\n", report.EventID, report.File)

	failed := 0
	for _, a := range report.Attempts {
		if a.OK {
			fmt.Printf("✅ [SENT] %s\n", a.Channel)
		} else {
			fmt.Printf("🚨 [FAILED] %s -> %s\n", a.Channel, a.Error)
			failed++
		}
	}

	fmt.Println("------------------------------------------------")
	if failed > 0 {
		fmt.Printf("❌ FAIL: %d channel(s) did not deliver.\n", failed)
		os.Exit(1)
	}
	fmt.Println("✅ SUCCESS: alert relayed.")
}

func sendTest(client *http.Client, server, channel, apiKey string) {
	payload, _ := json.Marshal(map[string]string{"channel": channel})
	req, err := http.NewRequest(http.MethodPost, server+"/api/test-notification", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("❌ error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	body, status := do(client, req)
	if status == http.StatusUnauthorized {
		fmt.Println("❌ FAIL: unauthorized (set -api-key or S1RELAY_API_KEY)")
		os.Exit(1)
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		log.Fatalf("❌ error parsing response (status %d): %v", status, err)
	}

	if !result.Success {
		fmt.Printf("❌ FAIL: %s test failed: %s\n", channel, result.Error)
		os.Exit(1)
	}
	fmt.Printf("✅ SUCCESS: %s test notification sent.\n", channel)
}

func do(client *http.Client, req *http.Request) (string, int) {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("❌ error connecting to relay: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Fatalf("❌ error reading response: %v", err)
	}
	return string(body), resp.StatusCode
}
