package ports

import (
	"context"
	"time"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

// ArchiveFile describes one file in the event archive, for dashboard listings.
type ArchiveFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Kind    string    `json:"kind"` // "events" or "alerts"
}

// EventArchive is the flat-file persistence for events and raw alerts.
type EventArchive interface {
	Append(events []domain.Event) (int, error)
	SaveRawAlert(body []byte) (string, error)
	ReadDate(date string) ([]domain.Event, error)
	List() ([]ArchiveFile, error)
	Prune(now time.Time) ([]string, error)
	// Resolve maps a listing-relative path to a real path inside the
	// archive dir, rejecting traversal. Used for dashboard downloads.
	Resolve(rel string) (string, error)
}

// EventIndex is the optional database index over archived events,
// serving dashboard search. The archive files remain source of truth.
type EventIndex interface {
	SaveBatch(ctx context.Context, events []domain.Event) error
	FindSince(ctx context.Context, since time.Time, limit int) ([]domain.Event, error)
	Search(ctx context.Context, term string, limit int) ([]domain.Event, error)
}
