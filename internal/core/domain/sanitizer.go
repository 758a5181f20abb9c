package domain

import (
	"fmt"
	"regexp"
)

// Mask placeholders used when scrubbing sensitive values.
const (
	MaskUser     = "[USER]"
	MaskHost     = "[HOST]"
	MaskIP       = "[IP]"
	MaskPath     = "[PATH]"
	MaskRedacted = "[REDACTED]"
)

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`)
	ipv6Pattern = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`)
	winPattern  = regexp.MustCompile(`(?i)\b[a-z]:\\(?:[^\\/:*?"<>|\s]+\\)*[^\\/:*?"<>|\s]*`)
	unixPattern = regexp.MustCompile(`(?:/[\w][\w.-]*){2,}`)
)

// Sanitizer masks sensitive substrings before an event leaves the system.
// Zero value is usable; extra patterns come from operator config.
type Sanitizer struct {
	extra []*regexp.Regexp
}

// NewSanitizer compiles the operator-configured extra patterns. A bad
// pattern is an error so a typo never silently disables masking.
func NewSanitizer(extraPatterns []string) (*Sanitizer, error) {
	s := &Sanitizer{}
	for _, p := range extraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid sanitizer pattern %q: %w", p, err)
		}
		s.extra = append(s.extra, re)
	}
	return s, nil
}

// Scrub masks IPs, file paths and configured patterns inside free text.
func (s *Sanitizer) Scrub(text string) string {
	if text == "" {
		return text
	}
	text = winPattern.ReplaceAllString(text, MaskPath)
	text = unixPattern.ReplaceAllString(text, MaskPath)
	text = ipv4Pattern.ReplaceAllString(text, MaskIP)
	text = ipv6Pattern.ReplaceAllString(text, MaskIP)
	for _, re := range s.extra {
		text = re.ReplaceAllString(text, MaskRedacted)
	}
	return text
}

// SanitizeEvent returns a masked copy of the event. The input is never
// modified; the copy drops the raw payload and is marked sanitized so it
// can be handed to the summarizer and the channels.
func (s *Sanitizer) SanitizeEvent(ev Event) Event {
	if ev.Sanitized {
		return ev
	}
	clean := ev
	clean.Raw = nil
	clean.Sanitized = true

	// Remember identity values before masking the fields that hold them,
	// then strip any echo of those values from the free-text fields.
	agent := clean.AgentName
	user := clean.AgentUser

	if clean.AgentUser != "" {
		clean.AgentUser = MaskUser
	}
	if clean.AgentName != "" && clean.AgentName != "Unknown" {
		clean.AgentName = MaskHost
	}
	if clean.FilePath != "" {
		clean.FilePath = MaskPath
	}

	clean.ThreatName = s.scrubIdentity(s.Scrub(clean.ThreatName), agent, user)
	clean.ProcessName = s.scrubIdentity(s.Scrub(clean.ProcessName), agent, user)
	clean.SiteName = s.Scrub(clean.SiteName)

	return clean
}

func (s *Sanitizer) scrubIdentity(text, agent, user string) string {
	if agent != "" && agent != "Unknown" {
		text = replaceFold(text, agent, MaskHost)
	}
	if user != "" {
		text = replaceFold(text, user, MaskUser)
	}
	return text
}

// replaceFold is a case-insensitive strings.ReplaceAll. Matching runs
// on the original string: ToLower can change rune byte lengths, so
// offsets into a lowered copy do not map back safely.
func replaceFold(text, old, mask string) string {
	if old == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(text, mask)
}
