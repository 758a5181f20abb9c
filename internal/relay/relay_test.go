package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
)

type fakeArchive struct {
	appended  []domain.Event
	rawBodies [][]byte
	appendErr error
	rawErr    error
}

func (f *fakeArchive) Append(events []domain.Event) (int, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.appended = append(f.appended, events...)
	return len(events), nil
}

func (f *fakeArchive) SaveRawAlert(body []byte) (string, error) {
	if f.rawErr != nil {
		return "", f.rawErr
	}
	f.rawBodies = append(f.rawBodies, body)
	return "alerts/alert_test.json", nil
}

func (f *fakeArchive) ReadDate(string) ([]domain.Event, error) { return nil, nil }
func (f *fakeArchive) List() ([]ports.ArchiveFile, error)      { return nil, nil }
func (f *fakeArchive) Prune(time.Time) ([]string, error)       { return nil, nil }
func (f *fakeArchive) Resolve(rel string) (string, error)      { return rel, nil }

type fakeChannel struct {
	name    string
	enabled bool
	err     error
	got     []ports.Message
}

func (f *fakeChannel) Name() string  { return f.name }
func (f *fakeChannel) Enabled() bool { return f.enabled }
func (f *fakeChannel) Send(_ context.Context, msg ports.Message) error {
	f.got = append(f.got, msg)
	return f.err
}

type fakeSummarizer struct {
	summary *domain.Summary
	err     error
	got     []domain.Event
}

func (f *fakeSummarizer) Enabled() bool { return true }
func (f *fakeSummarizer) Summarize(_ context.Context, ev domain.Event) (*domain.Summary, error) {
	f.got = append(f.got, ev)
	return f.summary, f.err
}

func testLogs(t *testing.T) *logstore.Store {
	t.Helper()
	logs, err := logstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("logstore.Open failed: %v", err)
	}
	return logs
}

func testSanitizer(t *testing.T) *domain.Sanitizer {
	t.Helper()
	s, err := domain.NewSanitizer(nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestProcessEventFanOut(t *testing.T) {
	store := &fakeArchive{}
	a := &fakeChannel{name: "telegram", enabled: true}
	b := &fakeChannel{name: "teams", enabled: true}

	r := New(store, nil, testSanitizer(t), nil, []ports.Channel{a, b}, testLogs(t))

	ev := domain.Event{ID: "e1", ThreatName: "EICAR", AgentName: "wks-1"}
	report := r.ProcessEvent(context.Background(), ev, "alerts/x.json")

	if len(store.appended) != 1 || store.appended[0].ID != "e1" {
		t.Errorf("event not archived: %+v", store.appended)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("fan-out incomplete: telegram=%d teams=%d", len(a.got), len(b.got))
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("report has %d attempts, want 2", len(report.Attempts))
	}
	for _, att := range report.Attempts {
		if !att.OK {
			t.Errorf("attempt %s failed: %s", att.Channel, att.Error)
		}
	}
}

func TestProcessEventFailingChannelDoesNotBlockOthers(t *testing.T) {
	bad := &fakeChannel{name: "telegram", enabled: true, err: errors.New("bot token revoked")}
	good := &fakeChannel{name: "teams", enabled: true}

	r := New(&fakeArchive{}, nil, testSanitizer(t), nil, []ports.Channel{bad, good}, testLogs(t))

	report := r.ProcessEvent(context.Background(), domain.Event{ID: "e1"}, "")

	if len(good.got) != 1 {
		t.Error("second channel not attempted after the first failed")
	}
	if report.Attempts[0].OK || report.Attempts[0].Error == "" {
		t.Errorf("failed attempt not reported: %+v", report.Attempts[0])
	}
	if !report.Attempts[1].OK {
		t.Errorf("successful attempt reported as failure: %+v", report.Attempts[1])
	}
}

func TestProcessEventSkipsDisabledChannels(t *testing.T) {
	off := &fakeChannel{name: "whatsapp", enabled: false}
	on := &fakeChannel{name: "teams", enabled: true}

	r := New(&fakeArchive{}, nil, testSanitizer(t), nil, []ports.Channel{off, on}, testLogs(t))
	report := r.ProcessEvent(context.Background(), domain.Event{ID: "e1"}, "")

	if len(off.got) != 0 {
		t.Error("disabled channel was called")
	}
	if len(report.Attempts) != 1 || report.Attempts[0].Channel != "teams" {
		t.Errorf("attempts = %+v", report.Attempts)
	}
}

func TestProcessEventSanitizesBeforeSend(t *testing.T) {
	ch := &fakeChannel{name: "teams", enabled: true}
	sum := &fakeSummarizer{summary: &domain.Summary{Text: "ok"}}

	r := New(&fakeArchive{}, nil, testSanitizer(t), sum, []ports.Channel{ch}, testLogs(t))

	ev := domain.Event{
		ID:        "e1",
		AgentName: "WKS-07",
		AgentUser: "jsmith",
		FilePath:  `C:\Users\jsmith\evil.exe`,
		Raw:       []byte(`{"x":1}`),
	}
	r.ProcessEvent(context.Background(), ev, "")

	sent := ch.got[0].Event
	if sent.AgentUser != domain.MaskUser || sent.AgentName != domain.MaskHost || sent.FilePath != domain.MaskPath {
		t.Errorf("unsanitized event reached the channel: %+v", sent)
	}
	if sent.Raw != nil {
		t.Error("raw payload leaked to the channel")
	}

	if len(sum.got) != 1 || !sum.got[0].Sanitized {
		t.Error("summarizer must only see sanitized events")
	}
}

func TestProcessEventArchivesOriginal(t *testing.T) {
	store := &fakeArchive{}
	r := New(store, nil, testSanitizer(t), nil, nil, testLogs(t))

	ev := domain.Event{ID: "e1", AgentUser: "jsmith"}
	r.ProcessEvent(context.Background(), ev, "")

	if store.appended[0].AgentUser != "jsmith" {
		t.Errorf("archive should keep the unmasked event, got %q", store.appended[0].AgentUser)
	}
}

func TestProcessEventSummarizerFailureIsNotFatal(t *testing.T) {
	ch := &fakeChannel{name: "teams", enabled: true}
	sum := &fakeSummarizer{err: errors.New("api down")}

	r := New(&fakeArchive{}, nil, testSanitizer(t), sum, []ports.Channel{ch}, testLogs(t))
	report := r.ProcessEvent(context.Background(), domain.Event{ID: "e1"}, "")

	if report.Summarized {
		t.Error("failed summary reported as success")
	}
	if len(ch.got) != 1 {
		t.Error("notification skipped because the summarizer failed")
	}
	if ch.got[0].Summary != nil {
		t.Error("channel received a summary that does not exist")
	}
}

func TestProcessEventAttachesSummary(t *testing.T) {
	ch := &fakeChannel{name: "teams", enabled: true}
	sum := &fakeSummarizer{summary: &domain.Summary{Text: "bad stuff", Severity: "high"}}

	r := New(&fakeArchive{}, nil, testSanitizer(t), sum, []ports.Channel{ch}, testLogs(t))
	report := r.ProcessEvent(context.Background(), domain.Event{ID: "e1"}, "")

	if !report.Summarized {
		t.Error("summary not reported")
	}
	if ch.got[0].Summary == nil || ch.got[0].Summary.Text != "bad stuff" {
		t.Errorf("summary not attached to message: %+v", ch.got[0].Summary)
	}
}

func TestProcessRaw(t *testing.T) {
	store := &fakeArchive{}
	ch := &fakeChannel{name: "teams", enabled: true}

	r := New(store, nil, testSanitizer(t), nil, []ports.Channel{ch}, testLogs(t))

	body := []byte(`{"alertId":"a-1","threatInfo":{"threatName":"EICAR"}}`)
	report := r.ProcessRaw(context.Background(), body, domain.SourceWebhook)

	if len(store.rawBodies) != 1 || string(store.rawBodies[0]) != string(body) {
		t.Error("raw body not snapshotted")
	}
	if report.EventID != "a-1" {
		t.Errorf("EventID = %q", report.EventID)
	}
	if report.ArchiveFile != "alerts/alert_test.json" {
		t.Errorf("ArchiveFile = %q", report.ArchiveFile)
	}
	if len(store.appended) != 1 || store.appended[0].Source != domain.SourceWebhook {
		t.Errorf("parsed event not archived with webhook source: %+v", store.appended)
	}
}

func TestProcessRawSnapshotFailureStillRelays(t *testing.T) {
	store := &fakeArchive{rawErr: errors.New("disk full")}
	ch := &fakeChannel{name: "teams", enabled: true}

	r := New(store, nil, testSanitizer(t), nil, []ports.Channel{ch}, testLogs(t))
	report := r.ProcessRaw(context.Background(), []byte(`{"alertId":"a-1"}`), domain.SourceWebhook)

	if len(ch.got) != 1 {
		t.Error("alert dropped because the raw snapshot failed")
	}
	if report.ArchiveFile != "" {
		t.Errorf("ArchiveFile = %q, want empty", report.ArchiveFile)
	}
}

func TestSendTest(t *testing.T) {
	a := &fakeChannel{name: "telegram", enabled: true}
	b := &fakeChannel{name: "teams", enabled: true}

	r := New(&fakeArchive{}, nil, testSanitizer(t), nil, []ports.Channel{a, b}, testLogs(t))

	if err := r.SendTest(context.Background(), "teams"); err != nil {
		t.Fatalf("SendTest failed: %v", err)
	}
	if len(a.got) != 0 {
		t.Error("test hit the wrong channel")
	}
	if len(b.got) != 1 {
		t.Fatal("named channel not called")
	}
	if !b.got[0].Event.Sanitized {
		t.Error("synthetic test event should be marked sanitized")
	}

	if err := r.SendTest(context.Background(), "pager"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("err = %v, want ErrUnknownChannel", err)
	}
}
