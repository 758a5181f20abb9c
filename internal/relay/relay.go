package relay

import (
	"context"
	"errors"
	"time"

	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
)

// Attempt is the outcome of one channel delivery.
type Attempt struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes one trip through the pipeline.
type Report struct {
	EventID     string    `json:"event_id"`
	ArchiveFile string    `json:"archive_file,omitempty"`
	Summarized  bool      `json:"summarized"`
	Attempts    []Attempt `json:"attempts"`
}

// Relay runs the receive → archive → sanitize → summarize → notify flow.
// Both the webhook receiver and the polling loop feed it, so the two
// ingestion paths converge on identical downstream processing.
type Relay struct {
	archive    ports.EventArchive
	index      ports.EventIndex // nil when no database is configured
	sanitizer  *domain.Sanitizer
	summarizer ports.Summarizer // nil when AI is disabled
	channels   []ports.Channel
	logs       *logstore.Store
}

func New(archive ports.EventArchive, index ports.EventIndex, sanitizer *domain.Sanitizer, summarizer ports.Summarizer, channels []ports.Channel, logs *logstore.Store) *Relay {
	return &Relay{
		archive:    archive,
		index:      index,
		sanitizer:  sanitizer,
		summarizer: summarizer,
		channels:   channels,
		logs:       logs,
	}
}

// ProcessRaw handles a pushed alert body: snapshot the raw payload,
// parse it, and run the event pipeline.
func (r *Relay) ProcessRaw(ctx context.Context, body []byte, source domain.EventSource) *Report {
	file, err := r.archive.SaveRawAlert(body)
	if err != nil {
		// Losing the snapshot is bad but not a reason to drop the alert.
		r.logs.Error("Failed saving raw alert: %v", err)
		file = ""
	} else {
		r.logs.Info("Saved incoming alert to %s", file)
	}

	ev := domain.ParseAlert(body)
	ev.Source = source
	return r.ProcessEvent(ctx, ev, file)
}

// ProcessEvent archives, sanitizes, optionally summarizes, and relays an
// event to every enabled channel. One channel failing never blocks the
// others; every attempt is logged individually.
func (r *Relay) ProcessEvent(ctx context.Context, ev domain.Event, archiveFile string) *Report {
	start := time.Now()
	defer observePipeline(start)
	recordEvent(string(ev.Source))

	report := &Report{EventID: ev.ID, ArchiveFile: archiveFile}

	if n, err := r.archive.Append([]domain.Event{ev}); err != nil {
		r.logs.Error("Failed to archive event %s: %v", ev.ID, err)
	} else {
		r.logs.Info("Appended %d event(s) to archive", n)
	}

	if r.index != nil {
		if err := r.index.SaveBatch(ctx, []domain.Event{ev}); err != nil {
			r.logs.Error("Failed to index event %s: %v", ev.ID, err)
		}
	}

	clean := ev
	if r.sanitizer != nil {
		clean = r.sanitizer.SanitizeEvent(ev)
	}

	var summary *domain.Summary
	if r.summarizer != nil && r.summarizer.Enabled() {
		sum, err := r.summarizer.Summarize(ctx, clean)
		if err != nil {
			r.logs.Error("AI summary failed for event %s: %v", ev.ID, err)
		} else {
			summary = sum
			report.Summarized = true
		}
	}

	msg := ports.Message{Event: clean, Summary: summary, ArchiveFile: archiveFile}

	for _, ch := range r.channels {
		if !ch.Enabled() {
			continue
		}
		attempt := Attempt{Channel: ch.Name()}
		if err := ch.Send(ctx, msg); err != nil {
			attempt.Error = err.Error()
			recordNotification(ch.Name(), "failure")
			r.logs.Error("%s notification failed for event %s: %v", ch.Name(), ev.ID, err)
		} else {
			attempt.OK = true
			recordNotification(ch.Name(), "success")
			r.logs.Success("%s alert sent for event %s", ch.Name(), ev.ID)
		}
		report.Attempts = append(report.Attempts, attempt)
	}

	return report
}

// SendTest pushes a synthetic event through a single named channel, for
// the dashboard's connection tests.
func (r *Relay) SendTest(ctx context.Context, channelName string) error {
	ev := domain.Event{
		ID:             "test-" + time.Now().Format("20060102150405"),
		CreatedAt:      time.Now().UTC(),
		ReceivedAt:     time.Now().UTC(),
		Source:         domain.SourceManual,
		ThreatName:     "Test notification",
		Classification: "Test",
		AgentName:      "s1relay",
		AgentOS:        "n/a",
		Sanitized:      true,
	}
	msg := ports.Message{Event: ev}

	for _, ch := range r.channels {
		if ch.Name() != channelName {
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			recordNotification(ch.Name(), "failure")
			r.logs.Error("%s test notification failed: %v", ch.Name(), err)
			return err
		}
		recordNotification(ch.Name(), "success")
		r.logs.Success("%s test notification sent", ch.Name())
		return nil
	}
	return ErrUnknownChannel
}

// ErrUnknownChannel is returned by SendTest for an unconfigured channel.
var ErrUnknownChannel = errors.New("unknown notification channel")
