package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventSource tells which ingestion path produced an event.
type EventSource string

const (
	SourceWebhook EventSource = "webhook"
	SourcePolling EventSource = "polling"
	SourceManual  EventSource = "manual"
)

// Event is a single security finding reported by SentinelOne.
// Immutable once sanitized; persisted once to the archive.
type Event struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	ReceivedAt     time.Time       `json:"received_at"`
	Source         EventSource     `json:"source"`
	ThreatName     string          `json:"threat_name"`
	Classification string          `json:"classification"`
	AgentName      string          `json:"agent_name"`
	AgentOS        string          `json:"agent_os"`
	AgentUser      string          `json:"agent_user,omitempty"`
	ProcessName    string          `json:"process_name,omitempty"`
	FilePath       string          `json:"file_path,omitempty"`
	SiteName       string          `json:"site_name,omitempty"`
	Severity       string          `json:"severity,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
	Sanitized      bool            `json:"sanitized,omitempty"`
}

// Summary is the optional LLM analysis attached to a sanitized event
// before it is relayed to the channels.
type Summary struct {
	Text       string   `json:"summary"`
	Severity   string   `json:"severity"`   // critical, high, medium, low, info
	Mitigation []string `json:"mitigation"` // recommended actions
	Confidence int      `json:"confidence"` // 0-100
}

// s1Alert covers the payload shapes SentinelOne sends: the webhook body,
// the cloud-detection alert list items, and the legacy threat shape.
type s1Alert struct {
	ID      string `json:"id"`
	AlertID string `json:"alertId"`
	Threat  string `json:"threat"`

	CreatedAt string `json:"createdAt"`

	AlertInfo struct {
		AlertID   string `json:"alertId"`
		CreatedAt string `json:"createdAt"`
		Source    string `json:"source"`
	} `json:"alertInfo"`

	ThreatInfo struct {
		ThreatName        string `json:"threatName"`
		Classification    string `json:"classification"`
		FilePath          string `json:"filePath"`
		OriginatorProcess string `json:"originatorProcess"`
		CreatedAt         string `json:"createdAt"`
	} `json:"threatInfo"`

	RuleInfo struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"ruleInfo"`

	AgentRealtimeInfo struct {
		AgentComputerName string `json:"agentComputerName"`
		AgentOSType       string `json:"agentOsType"`
		SiteName          string `json:"siteName"`
	} `json:"agentRealtimeInfo"`

	AgentDetectionInfo struct {
		AgentComputerName string `json:"agentComputerName"`
		AgentOSName       string `json:"agentOsName"`
		AgentLastLoggedIn string `json:"agentLastLoggedInUserName"`
		SiteName          string `json:"siteName"`
		Name              string `json:"name"`
		OSFamily          string `json:"osFamily"`
	} `json:"agentDetectionInfo"`

	SourceProcessInfo struct {
		Name     string `json:"name"`
		User     string `json:"user"`
		FilePath string `json:"filePath"`
	} `json:"sourceProcessInfo"`
}

// ParseAlert maps a raw SentinelOne payload to an Event. Unknown shapes
// still yield an event carrying the raw body, so nothing is dropped.
func ParseAlert(raw []byte) Event {
	ev := Event{
		ReceivedAt: time.Now().UTC(),
		Raw:        append(json.RawMessage(nil), raw...),
	}

	var a s1Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		ev.ID = uuid.NewString()
		ev.CreatedAt = ev.ReceivedAt
		ev.ThreatName = "unparsed alert"
		return ev
	}

	ev.ID = firstNonEmpty(a.AlertID, a.AlertInfo.AlertID, a.ID)
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	ev.ThreatName = firstNonEmpty(a.ThreatInfo.ThreatName, a.RuleInfo.Name, a.Threat)
	if ev.ThreatName == "" {
		ev.ThreatName = "N/A"
	}
	ev.Classification = a.ThreatInfo.Classification
	ev.Severity = a.RuleInfo.Severity

	ev.AgentName = firstNonEmpty(
		a.AgentRealtimeInfo.AgentComputerName,
		a.AgentDetectionInfo.AgentComputerName,
		a.AgentDetectionInfo.Name,
	)
	if ev.AgentName == "" {
		ev.AgentName = "Unknown"
	}
	ev.AgentOS = firstNonEmpty(a.AgentRealtimeInfo.AgentOSType, a.AgentDetectionInfo.AgentOSName, a.AgentDetectionInfo.OSFamily)
	ev.AgentUser = firstNonEmpty(a.SourceProcessInfo.User, a.AgentDetectionInfo.AgentLastLoggedIn)
	ev.ProcessName = firstNonEmpty(a.ThreatInfo.OriginatorProcess, a.SourceProcessInfo.Name)
	ev.FilePath = firstNonEmpty(a.ThreatInfo.FilePath, a.SourceProcessInfo.FilePath)
	ev.SiteName = firstNonEmpty(a.AgentRealtimeInfo.SiteName, a.AgentDetectionInfo.SiteName)

	ev.CreatedAt = parseTimestamp(
		firstNonEmpty(a.ThreatInfo.CreatedAt, a.AlertInfo.CreatedAt, a.CreatedAt),
		ev.ReceivedAt,
	)

	return ev
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
