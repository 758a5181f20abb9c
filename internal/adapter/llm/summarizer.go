package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/domain"
)

// Summarizer asks an OpenAI-compatible chat completions API for a short
// analysis and mitigation steps. Events must be sanitized before they
// get here; the prompt only ever sees masked fields.
type Summarizer struct {
	apiURL  string
	apiKey  string
	model   string
	client  *ResilientClient
	enabled bool
}

func NewSummarizer(cfg config.AIConfig) *Summarizer {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1/chat/completions"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	rcfg := DefaultResilientClientConfig()
	client := NewResilientClient(30*time.Second, rcfg)

	return &Summarizer{
		apiURL:  apiURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  client,
		enabled: cfg.Enabled && cfg.APIKey != "",
	}
}

func (s *Summarizer) IsEnabled() bool { return s.enabled }

// Enabled satisfies ports.Summarizer.
func (s *Summarizer) Enabled() bool { return s.enabled }

// Summarize analyzes a sanitized event. Guardrails may answer without an
// API call; otherwise the response JSON is extracted and clamped.
func (s *Summarizer) Summarize(ctx context.Context, ev domain.Event) (*domain.Summary, error) {
	timer := StartTimer()
	defer timer.ObserveDuration()

	if !s.enabled {
		return nil, fmt.Errorf("summarizer is not enabled")
	}

	if pre, skip := ApplyPreGuardrails(ev); skip {
		RecordSummarizeRequest("skipped", "pre_filter")
		RecordResult(pre)
		return pre, nil
	}

	prompt := s.buildPrompt(ev)

	response, err := s.callAPI(ctx, prompt)
	if err != nil {
		RecordSummarizeRequest("error", "api")
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded") {
			RecordError("timeout")
		} else if strings.Contains(err.Error(), "circuit breaker") {
			RecordError("circuit_open")
		} else if strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "403") {
			RecordError("auth")
		}
		return nil, fmt.Errorf("failed to call LLM: %w", err)
	}

	result, err := s.parseResponse(response)
	if err != nil {
		RecordSummarizeRequest("error", "parse")
		RecordError("parse")
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	result = ApplyPostGuardrails(result, ev)

	RecordSummarizeRequest("success", "api")
	RecordResult(result)
	return result, nil
}

func (s *Summarizer) buildPrompt(ev domain.Event) string {
	var sb strings.Builder

	sb.WriteString("You are a SOC analyst. Summarize the following endpoint-protection alert for an on-call notification.\n\n")
	sb.WriteString(fmt.Sprintf("**Alert ID:** %s\n", ev.ID))
	sb.WriteString(fmt.Sprintf("**Threat:** %s\n", ev.ThreatName))
	sb.WriteString(fmt.Sprintf("**Classification:** %s\n", ev.Classification))
	sb.WriteString(fmt.Sprintf("**Endpoint:** %s (%s)\n", ev.AgentName, ev.AgentOS))
	if ev.ProcessName != "" {
		sb.WriteString(fmt.Sprintf("**Process:** %s\n", ev.ProcessName))
	}
	if ev.FilePath != "" {
		sb.WriteString(fmt.Sprintf("**File:** %s\n", ev.FilePath))
	}
	if ev.Severity != "" {
		sb.WriteString(fmt.Sprintf("**Reported Severity:** %s\n", ev.Severity))
	}

	sb.WriteString("\nSensitive values are masked with placeholders like [HOST] and [PATH]; do not speculate about them.\n")

	sb.WriteString("\n**Task:**\n")
	sb.WriteString("Respond with JSON only, in this format:\n")
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"summary\": \"One or two sentences for the notification\",\n")
	sb.WriteString("  \"severity\": \"critical|high|medium|low|info\",\n")
	sb.WriteString("  \"mitigation\": [\"step1\", \"step2\"],\n")
	sb.WriteString("  \"confidence\": 0-100\n")
	sb.WriteString("}\n")
	sb.WriteString("```\n")

	return sb.String()
}

func (s *Summarizer) callAPI(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are an expert security analyst. Summarize alerts and suggest mitigation steps in JSON format.",
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": 0.3,
		"max_tokens":  500,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return response.Choices[0].Message.Content, nil
}

func (s *Summarizer) parseResponse(response string) (*domain.Summary, error) {
	jsonStr := response
	if idx := strings.Index(response, "```json"); idx != -1 {
		jsonStr = response[idx+7:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		jsonStr = response[idx+3:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	}
	jsonStr = strings.TrimSpace(jsonStr)

	var result domain.Summary
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w (response: %s)", err, jsonStr)
	}
	return &result, nil
}
