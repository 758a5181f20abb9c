package notifier

import (
	"strings"
	"time"

	"github.com/kawalsec/s1relay/internal/core/ports"
)

// Default message templates per channel. Operators can override them in
// config; {{name}} placeholders are substituted from the event.
const (
	DefaultTelegramTemplate = "🚨 <b>SentinelOne Alert</b>\n\n<b>Agent:</b> {{agent}}\n<b>Threat:</b> {{threat}}\n<b>Classification:</b> {{classification}}\n<b>Time:</b> {{timestamp}}\n<b>File:</b> {{file}}"
	DefaultTeamsTemplate    = "🚨 SentinelOne Alert\n\nAgent: {{agent}}\nThreat: {{threat}}\nClassification: {{classification}}\nTime: {{timestamp}}\nFile: {{file}}"
	DefaultWhatsAppTemplate = "🚨 *SentinelOne Alert*\n\n*Agent:* {{agent}}\n*Threat:* {{threat}}\n*Time:* {{timestamp}}\n*File:* {{file}}"
)

// RenderTemplate substitutes {{key}} placeholders. Unknown placeholders
// are left as-is so a template typo is visible in the message.
func RenderTemplate(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{{"+key+"}}", value)
	}
	return template
}

// TemplateVars builds the substitution set for a relay message.
func TemplateVars(msg ports.Message) map[string]string {
	vars := map[string]string{
		"agent":          msg.Event.AgentName,
		"threat":         msg.Event.ThreatName,
		"classification": msg.Event.Classification,
		"timestamp":      time.Now().Format("2006-01-02 15:04:05"),
		"file":           msg.ArchiveFile,
		"severity":       msg.Event.Severity,
		"summary":        "",
	}
	if msg.Summary != nil {
		vars["summary"] = msg.Summary.Text
		vars["severity"] = msg.Summary.Severity
	}
	return vars
}

// AppendSummary adds the LLM analysis block when one is attached and the
// template didn't place it explicitly.
func AppendSummary(rendered, template string, msg ports.Message) string {
	if msg.Summary == nil || strings.Contains(template, "{{summary}}") {
		return rendered
	}
	var sb strings.Builder
	sb.WriteString(rendered)
	sb.WriteString("\n\n🤖 ")
	sb.WriteString(msg.Summary.Text)
	if len(msg.Summary.Mitigation) > 0 {
		sb.WriteString("\nRecommended:")
		for _, step := range msg.Summary.Mitigation {
			sb.WriteString("\n• ")
			sb.WriteString(step)
		}
	}
	return sb.String()
}
