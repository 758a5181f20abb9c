package relay

import (
	"fmt"

	"github.com/kawalsec/s1relay/internal/adapter/archive"
	"github.com/kawalsec/s1relay/internal/adapter/llm"
	"github.com/kawalsec/s1relay/internal/adapter/notifier"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
)

// FromConfig assembles a Relay with the adapters the config document
// enables. The index is passed in because its connection pool outlives
// individual config reloads.
func FromConfig(cfg *config.Config, logs *logstore.Store, index ports.EventIndex) (*Relay, error) {
	store := archive.NewStore(cfg.Backup.Location, cfg.Backup.RetentionDays)

	var sanitizer *domain.Sanitizer
	if cfg.Sanitizer.Enabled {
		s, err := domain.NewSanitizer(cfg.Sanitizer.ExtraPatterns)
		if err != nil {
			return nil, fmt.Errorf("failed to build sanitizer: %w", err)
		}
		sanitizer = s
	}

	var summarizer ports.Summarizer
	if cfg.AI.Enabled {
		summarizer = llm.NewSummarizer(cfg.AI)
	}

	channels := []ports.Channel{
		notifier.NewTelegramChannel(cfg.Channels.Telegram),
		notifier.NewTeamsChannel(cfg.Channels.Teams),
		notifier.NewWhatsAppChannel(cfg.Channels.WhatsApp),
	}

	return New(store, index, sanitizer, summarizer, channels, logs), nil
}
