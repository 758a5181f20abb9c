package llm

import (
	"log"
	"strings"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

// Rule-based filters around the LLM call: classifications that are
// conclusive on their own skip the API, and whatever the model returns
// gets normalized before it reaches a notification.

// BenignClassifications never warrant an LLM call or an urgent ping.
var BenignClassifications = []string{
	"benign",
	"pua",
	"potentially unwanted",
}

// HighRiskClassifications are conclusive enough that the canned summary
// beats a model round-trip.
var HighRiskClassifications = []string{
	"ransomware",
	"malware",
	"trojan",
	"worm",
	"backdoor",
	"rootkit",
	"infostealer",
	"exploit",
}

var validSeverities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
	"info":     true,
}

// ApplyPreGuardrails returns a canned summary and true when the event's
// classification decides the outcome without the LLM.
func ApplyPreGuardrails(ev domain.Event) (*domain.Summary, bool) {
	if isBenignClassification(ev.Classification) {
		log.Printf("⚡ Pre-filter: classification %q is benign, skipping LLM", ev.Classification)
		RecordGuardrail("pre", "skip")
		return &domain.Summary{
			Text:       "Detection classified as " + ev.Classification + "; no urgent action expected.",
			Severity:   "info",
			Mitigation: []string{"Review the detection when convenient", "Tune the policy if this recurs"},
			Confidence: 90,
		}, true
	}

	if isHighRiskClassification(ev.Classification) {
		log.Printf("⚡ Pre-filter: classification %q is conclusive, skipping LLM", ev.Classification)
		RecordGuardrail("pre", "skip")
		return &domain.Summary{
			Text:       ev.Classification + " detection on " + ev.AgentName + ": " + ev.ThreatName,
			Severity:   "high",
			Mitigation: []string{"Isolate the endpoint", "Verify mitigation status in the console", "Check neighboring endpoints"},
			Confidence: 90,
		}, true
	}

	return nil, false
}

// ApplyPostGuardrails normalizes model output so a malformed answer
// never produces a bogus notification.
func ApplyPostGuardrails(result *domain.Summary, ev domain.Event) *domain.Summary {
	if result == nil {
		return nil
	}

	normalized := normalizeSeverity(result.Severity)
	if normalized != result.Severity {
		RecordGuardrail("post", "override")
	}
	result.Severity = normalized
	result.Confidence = normalizeConfidence(result.Confidence)

	if result.Text == "" {
		RecordGuardrail("post", "override")
		result.Text = ev.ThreatName + " detected on " + ev.AgentName
	}

	return result
}

func isBenignClassification(classification string) bool {
	c := strings.ToLower(strings.TrimSpace(classification))
	for _, b := range BenignClassifications {
		if c == b || strings.Contains(c, b) {
			return true
		}
	}
	return false
}

func isHighRiskClassification(classification string) bool {
	c := strings.ToLower(strings.TrimSpace(classification))
	for _, h := range HighRiskClassifications {
		if c == h {
			return true
		}
	}
	return false
}

func normalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	if validSeverities[s] {
		return s
	}
	return "medium"
}

func normalizeConfidence(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
