package ports

import (
	"context"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

// Message is what the relay hands to each channel: the sanitized event,
// the optional LLM summary, and the archive file the raw alert went to.
type Message struct {
	Event       domain.Event
	Summary     *domain.Summary
	ArchiveFile string
}

// Channel is a notification destination (Telegram, Teams, WhatsApp).
// Channels render their own template; a failed send must not affect
// other channels.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}

// Summarizer produces the optional LLM analysis for a sanitized event.
type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, ev domain.Event) (*domain.Summary, error)
}
